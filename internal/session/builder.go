package session

import (
	"fmt"
	"time"
)

// Builder collects players and settings, then starts a session.
type Builder struct {
	cfg     Config
	players map[int]Player
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return NewBuilderWithConfig(DefaultConfig())
}

func NewBuilderWithConfig(cfg Config) *Builder {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Builder{cfg: cfg, players: make(map[int]Player)}
}

func (b *Builder) WithNumPlayers(n int) *Builder {
	b.cfg.NumPlayers = n
	return b
}

func (b *Builder) WithInputDelay(frames int) *Builder {
	b.cfg.InputDelay = frames
	return b
}

func (b *Builder) WithMaxPrediction(frames int) *Builder {
	b.cfg.MaxPrediction = frames
	return b
}

func (b *Builder) WithDisconnectTimeout(d time.Duration) *Builder {
	b.cfg.DisconnectTimeout = d
	return b
}

func (b *Builder) WithDesyncInterval(frames int) *Builder {
	b.cfg.DesyncInterval = frames
	return b
}

func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.cfg.Clock = clock
	return b
}

// AddPlayer registers a player for a seat. Handles are seat indices, which
// are also the team each player controls.
func (b *Builder) AddPlayer(p Player, handle int) error {
	if handle < 0 || handle >= b.cfg.NumPlayers {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidHandle, handle, b.cfg.NumPlayers)
	}
	if _, ok := b.players[handle]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateHandle, handle)
	}
	if p.Type == PlayerRemote && p.Addr == "" {
		return fmt.Errorf("%w: remote player %d has no address", ErrInvalidHandle, handle)
	}
	b.players[handle] = p
	return nil
}

func (b *Builder) validate() error {
	cfg := b.cfg
	switch {
	case cfg.NumPlayers < 1 || cfg.NumPlayers > 2:
		return fmt.Errorf("%w: %d", ErrInvalidPlayerCount, cfg.NumPlayers)
	case cfg.InputDelay < 0:
		return fmt.Errorf("%w: input delay %d", ErrInvalidSetting, cfg.InputDelay)
	case cfg.MaxPrediction < 1:
		return fmt.Errorf("%w: max prediction %d", ErrInvalidSetting, cfg.MaxPrediction)
	case cfg.DesyncInterval < 0:
		return fmt.Errorf("%w: desync interval %d", ErrInvalidSetting, cfg.DesyncInterval)
	case cfg.SyncRoundTrips < 1:
		return fmt.Errorf("%w: sync round trips %d", ErrInvalidSetting, cfg.SyncRoundTrips)
	}
	return nil
}

// StartP2P validates the registration and starts a session that talks to
// its remote players through sock. Exactly NumPlayers players must be
// registered and exactly one of them must be local.
func (b *Builder) StartP2P(sock Socket, sim Simulator) (*P2PSession, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if len(b.players) != b.cfg.NumPlayers {
		return nil, fmt.Errorf("%w: %d registered, %d required", ErrInvalidPlayerCount, len(b.players), b.cfg.NumPlayers)
	}

	local := -1
	for handle := 0; handle < b.cfg.NumPlayers; handle++ {
		if b.players[handle].Type != PlayerLocal {
			continue
		}
		if local >= 0 {
			return nil, ErrTooManyLocal
		}
		local = handle
	}
	if local < 0 {
		return nil, ErrNoLocalPlayer
	}

	players := make([]Player, b.cfg.NumPlayers)
	for handle, p := range b.players {
		players[handle] = p
	}
	return newP2PSession(b.cfg, players, local, sock, sim), nil
}

// StartSyncTest starts a local session that rolls back checkDistance frames
// after every frame and verifies the resimulation reproduces the same
// checksums. Every player is local; registered players are ignored.
func (b *Builder) StartSyncTest(sim Simulator, checkDistance int) (*SyncTestSession, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if checkDistance < 0 {
		return nil, fmt.Errorf("%w: check distance %d", ErrInvalidSetting, checkDistance)
	}
	return newSyncTestSession(b.cfg, sim, checkDistance), nil
}
