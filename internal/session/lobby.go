package session

import (
	"fmt"
	"log"
)

// Roster is the bootstrap contract from discovery: one peer per seat and
// the seat this process plays. The entry at LocalSeat is ignored.
type Roster struct {
	Peers     []PeerID
	LocalSeat int
}

// PeerSource reports who has joined the room. ok stays false until every
// seat is filled.
type PeerSource interface {
	Roster() (roster Roster, ok bool)
}

// Lobby waits for a full roster and then starts a P2P session.
type Lobby struct {
	cfg    Config
	source PeerSource
	sock   Socket
	sim    Simulator

	session *P2PSession
	lastErr error
}

func NewLobby(cfg Config, source PeerSource, sock Socket, sim Simulator) *Lobby {
	return &Lobby{cfg: cfg, source: source, sock: sock, sim: sim}
}

// State is WaitingForPeers until a session has been started, then the
// session's own state.
func (l *Lobby) State() State {
	if l.session == nil {
		return StateWaitingForPeers
	}
	return l.session.state
}

// Session returns the started session, or nil.
func (l *Lobby) Session() *P2PSession {
	return l.session
}

// Poll checks the peer source and starts the session once the roster is
// complete. A registration failure is returned and the lobby stays in
// WaitingForPeers; the next Poll tries again with whatever the source
// reports then.
func (l *Lobby) Poll() (*P2PSession, error) {
	if l.session != nil {
		return l.session, nil
	}
	roster, ok := l.source.Roster()
	if !ok {
		return nil, nil
	}

	sess, err := l.start(roster)
	if err != nil {
		if l.lastErr == nil || l.lastErr.Error() != err.Error() {
			log.Printf("❌ Cannot start session: %v", err)
		}
		l.lastErr = err
		return nil, err
	}
	l.lastErr = nil
	l.session = sess
	return sess, nil
}

func (l *Lobby) start(roster Roster) (*P2PSession, error) {
	if len(roster.Peers) != l.cfg.NumPlayers {
		return nil, fmt.Errorf("%w: roster has %d peers, need %d", ErrInvalidPlayerCount, len(roster.Peers), l.cfg.NumPlayers)
	}

	b := NewBuilderWithConfig(l.cfg)
	for seat, id := range roster.Peers {
		p := RemotePlayer(id)
		if seat == roster.LocalSeat {
			p = LocalPlayer()
		}
		if err := b.AddPlayer(p, seat); err != nil {
			return nil, fmt.Errorf("register seat %d: %w", seat, err)
		}
	}
	return b.StartP2P(l.sock, l.sim)
}
