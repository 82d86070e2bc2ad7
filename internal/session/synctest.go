package session

import (
	"fmt"
	"log"

	"online-breakout/internal/game"
)

// SyncTestSession checks a Simulator for determinism. Every player is
// local and every input is confirmed the moment it is added. After each
// frame the session rolls back checkDistance frames, resimulates them and
// compares each resimulated checksum with the one recorded the first time.
type SyncTestSession struct {
	cfg           Config
	sim           Simulator
	checkDistance int
	queues        []*inputQueue
	ring          *snapshotRing

	state   State
	frame   int
	pending []game.Input
	added   []bool

	inputs  []game.Input
	gameEvs []game.Event
	events  []Event
	checks  int
}

func newSyncTestSession(cfg Config, sim Simulator, checkDistance int) *SyncTestSession {
	s := &SyncTestSession{
		cfg:           cfg,
		sim:           sim,
		checkDistance: checkDistance,
		queues:        make([]*inputQueue, cfg.NumPlayers),
		ring:          newSnapshotRing(checkDistance + 2),
		state:         StateRunning,
		pending:       make([]game.Input, cfg.NumPlayers),
		added:         make([]bool, cfg.NumPlayers),
		inputs:        make([]game.Input, cfg.NumPlayers),
	}
	for h := range s.queues {
		s.queues[h] = newInputQueue(game.MatchDurationTick + 1)
	}
	log.Printf("🧪 Sync test session: %d players, check distance %d", cfg.NumPlayers, checkDistance)
	return s
}

func (s *SyncTestSession) LocalHandles() []int {
	handles := make([]int, len(s.queues))
	for h := range handles {
		handles[h] = h
	}
	return handles
}

func (s *SyncTestSession) AddLocalInput(handle int, in game.Input) error {
	if handle < 0 || handle >= len(s.queues) {
		return fmt.Errorf("%w: %d", ErrNotLocalHandle, handle)
	}
	s.pending[handle] = in.Sanitize()
	s.added[handle] = true
	return nil
}

// AdvanceFrame simulates one frame and then verifies the last
// checkDistance frames resimulate identically. A mismatch is returned as a
// *DesyncError.
func (s *SyncTestSession) AdvanceFrame() ([]game.Event, error) {
	if s.state == StateFinished {
		return nil, ErrSessionFinished
	}
	for h, ok := range s.added {
		if !ok {
			return nil, fmt.Errorf("%w: handle %d", ErrMissingLocalInput, h)
		}
	}
	for h, q := range s.queues {
		q.confirm(s.frame, s.pending[h])
		s.added[h] = false
	}

	s.ring.save(s.frame, s.sim)
	s.gameEvs = append(s.gameEvs[:0], s.step(s.frame)...)
	s.frame++

	if s.checkDistance > 0 && s.frame > s.checkDistance {
		if err := s.check(); err != nil {
			return nil, err
		}
	}

	if s.sim.Over() {
		s.state = StateFinished
		s.events = append(s.events, Event{Kind: EventFinished, Frame: s.frame})
		log.Printf("🏁 Sync test finished at frame %d after %d checks", s.frame, s.checks)
	}
	return s.gameEvs, nil
}

// check rolls back checkDistance frames and replays them.
func (s *SyncTestSession) check() error {
	want := s.sim.Checksum()
	from := s.frame - s.checkDistance
	snap, ok := s.ring.get(from)
	if !ok {
		return fmt.Errorf("%w: frame %d", ErrSnapshotMissing, from)
	}

	s.state = StateRollingBack
	s.sim.Load(&snap.state)
	for f := from; f < s.frame; f++ {
		if f > from {
			recorded, ok := s.ring.get(f)
			if !ok {
				return fmt.Errorf("%w: frame %d", ErrSnapshotMissing, f)
			}
			if got := s.sim.Checksum(); got != recorded.checksum {
				return &DesyncError{Frame: f, Want: recorded.checksum, Got: got}
			}
		}
		s.step(f)
	}
	if got := s.sim.Checksum(); got != want {
		return &DesyncError{Frame: s.frame, Want: want, Got: got}
	}
	s.state = StateRunning
	s.checks++
	return nil
}

func (s *SyncTestSession) step(frame int) []game.Event {
	for h, q := range s.queues {
		in := q.input(frame)
		q.use(frame, in)
		s.inputs[h] = in
	}
	return s.sim.Step(s.inputs)
}

// Poll has nothing to service without a network.
func (s *SyncTestSession) Poll() {}

func (s *SyncTestSession) Events() []Event {
	evs := s.events
	s.events = nil
	return evs
}

func (s *SyncTestSession) Status() Status {
	return Status{
		State:          s.state,
		Frame:          s.frame,
		ConfirmedFrame: s.frame - 1,
		Rollbacks:      s.checks,
		RollbackFrames: s.checks * s.checkDistance,
		LastRollback:   s.checkDistance,
	}
}
