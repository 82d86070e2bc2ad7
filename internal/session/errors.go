package session

import (
	"errors"
	"fmt"
)

// Construction errors. Any of them keeps the lobby in WaitingForPeers.
var (
	ErrInvalidPlayerCount = errors.New("session: invalid player count")
	ErrInvalidHandle      = errors.New("session: player handle out of range")
	ErrDuplicateHandle    = errors.New("session: player handle already registered")
	ErrNoLocalPlayer      = errors.New("session: no local player registered")
	ErrTooManyLocal       = errors.New("session: more than one local player registered")
	ErrInvalidSetting     = errors.New("session: invalid setting")
)

// Runtime errors.
var (
	// ErrPredictionThreshold means the session is too far ahead of the
	// slowest peer. Not fatal: keep polling and try again next tick.
	ErrPredictionThreshold = errors.New("session: prediction threshold reached")
	ErrNotSynchronized     = errors.New("session: peers not synchronized yet")
	ErrMissingLocalInput   = errors.New("session: local input missing for this frame")
	ErrNotLocalHandle      = errors.New("session: handle is not a local player")
	ErrSessionFinished     = errors.New("session: match finished")
	ErrSnapshotMissing     = errors.New("session: snapshot not in ring")
)

// DesyncError reports a frame whose resimulated state differs from the
// state produced the first time around.
type DesyncError struct {
	Frame int
	Want  uint64
	Got   uint64
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("session: desync at frame %d: checksum %016x, resimulated %016x", e.Frame, e.Want, e.Got)
}
