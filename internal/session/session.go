// Package session keeps two peers' simulations in lockstep with rollback.
//
// Each peer simulates every frame immediately, predicting the remote
// player's input as whatever it last confirmed. When the real input arrives
// and differs, the session restores the snapshot taken before the first
// mispredicted frame and resimulates up to the present. Only the
// simulation goroutine touches a session; transports hand datagrams over
// through an Inbox.
package session

import (
	"time"

	"online-breakout/internal/game"
)

// PeerID is a transport address for a remote peer.
type PeerID string

// State of a session.
type State uint8

const (
	StateWaitingForPeers State = iota
	StateSynchronizing
	StateRunning
	StateRollingBack
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaitingForPeers:
		return "waiting_for_peers"
	case StateSynchronizing:
		return "synchronizing"
	case StateRunning:
		return "running"
	case StateRollingBack:
		return "rolling_back"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Simulator is the deterministic game a session drives. game.World
// implements it.
type Simulator interface {
	Step(inputs []game.Input) []game.Event
	Save(dst *game.State)
	Load(src *game.State)
	Checksum() uint64
	Over() bool
}

// Socket is what a session needs from a transport. Receive must not block
// and is only ever called from the simulation goroutine.
type Socket interface {
	SendTo(to PeerID, payload []byte) error
	Receive(dst []Datagram) []Datagram
}

// Session is the API shared by P2P and sync-test sessions.
type Session interface {
	// AddLocalInput queues the input of a local player for the next
	// AdvanceFrame.
	AddLocalInput(handle int, in game.Input) error
	// AdvanceFrame simulates one frame and returns the events it produced.
	// Events from resimulated frames are never returned.
	AdvanceFrame() ([]game.Event, error)
	// Poll services the network without advancing.
	Poll()
	// Events drains session notifications.
	Events() []Event
	Status() Status
	LocalHandles() []int
}

// PlayerType tells a session where a player's inputs come from.
type PlayerType uint8

const (
	PlayerLocal PlayerType = iota
	PlayerRemote
)

// Player registers one seat with a Builder.
type Player struct {
	Type PlayerType
	Addr PeerID
}

func LocalPlayer() Player {
	return Player{Type: PlayerLocal}
}

func RemotePlayer(addr PeerID) Player {
	return Player{Type: PlayerRemote, Addr: addr}
}

// EventKind identifies a session notification.
type EventKind uint8

const (
	EventSynchronizing EventKind = iota
	EventSynchronized
	EventRunning
	EventNetworkInterrupted
	EventNetworkResumed
	EventDisconnected
	EventDesyncDetected
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventSynchronizing:
		return "synchronizing"
	case EventSynchronized:
		return "synchronized"
	case EventRunning:
		return "running"
	case EventNetworkInterrupted:
		return "network_interrupted"
	case EventNetworkResumed:
		return "network_resumed"
	case EventDisconnected:
		return "disconnected"
	case EventDesyncDetected:
		return "desync_detected"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a session notification, separate from game events.
type Event struct {
	Kind EventKind
	Peer PeerID
	// Synchronizing progress.
	Count int
	Total int
	// DesyncDetected details.
	Frame  int
	Local  uint64
	Remote uint64
	// NetworkInterrupted: time left before the peer counts as disconnected.
	Timeout time.Duration
}

// Status is a snapshot of session health for frames and metrics.
type Status struct {
	State          State
	Frame          int
	ConfirmedFrame int
	AwaitingPeer   bool
	Rollbacks      int
	RollbackFrames int
	LastRollback   int
	Desyncs        int
	BadDatagrams   int
	SendErrors     int
}

// Config holds session tunables. Both peers must use the same InputDelay,
// since each pre-confirms the other's first InputDelay frames as idle; the
// rest are local choices.
type Config struct {
	NumPlayers            int
	InputDelay            int
	MaxPrediction         int
	DisconnectTimeout     time.Duration
	DisconnectNotifyStart time.Duration
	DesyncInterval        int
	SyncRoundTrips        int
	SyncRetryInterval     time.Duration
	ResendInterval        time.Duration
	Clock                 func() time.Time
}

// DefaultConfig returns the settings used by the game.
func DefaultConfig() Config {
	return Config{
		NumPlayers:            game.NumTeams,
		InputDelay:            2,
		MaxPrediction:         8,
		DisconnectTimeout:     2 * time.Second,
		DisconnectNotifyStart: 500 * time.Millisecond,
		DesyncInterval:        60,
		SyncRoundTrips:        5,
		SyncRetryInterval:     200 * time.Millisecond,
		ResendInterval:        50 * time.Millisecond,
		Clock:                 time.Now,
	}
}
