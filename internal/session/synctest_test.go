package session

import (
	"errors"
	"testing"

	"online-breakout/internal/game"
)

// leakySim keeps a counter outside the saved state, so resimulating a frame
// does not reproduce it.
type leakySim struct {
	*game.World
	steps uint64
}

func (l *leakySim) Step(inputs []game.Input) []game.Event {
	l.steps++
	return l.World.Step(inputs)
}

func (l *leakySim) Checksum() uint64 {
	return l.World.Checksum() ^ l.steps
}

// TestSyncTestDeterministicWorld verifies the real world survives a rollback
// after every frame.
func TestSyncTestDeterministicWorld(t *testing.T) {
	s, err := NewBuilder().StartSyncTest(game.NewMatch(), 7)
	if err != nil {
		t.Fatalf("StartSyncTest: %v", err)
	}

	for frame := 0; frame < 600; frame++ {
		for _, h := range s.LocalHandles() {
			if err := s.AddLocalInput(h, script(h, frame)); err != nil {
				t.Fatalf("AddLocalInput: %v", err)
			}
		}
		if _, err := s.AdvanceFrame(); err != nil {
			t.Fatalf("Frame %d: %v", frame, err)
		}
	}

	st := s.Status()
	if st.Frame != 600 {
		t.Errorf("Expected frame 600, got %d", st.Frame)
	}
	if want := 600 - 7; st.Rollbacks != want {
		t.Errorf("Expected %d checks, got %d", want, st.Rollbacks)
	}
}

// TestSyncTestDetectsLeak verifies state kept outside the snapshot is
// reported as a desync.
func TestSyncTestDetectsLeak(t *testing.T) {
	sim := &leakySim{World: game.NewMatch()}
	s, err := NewBuilder().StartSyncTest(sim, 3)
	if err != nil {
		t.Fatalf("StartSyncTest: %v", err)
	}

	var desync *DesyncError
	for frame := 0; frame < 10; frame++ {
		s.AddLocalInput(0, 0)
		s.AddLocalInput(1, 0)
		if _, err := s.AdvanceFrame(); err != nil {
			if !errors.As(err, &desync) {
				t.Fatalf("Expected *DesyncError, got %v", err)
			}
			break
		}
	}
	if desync == nil {
		t.Fatal("Expected a desync")
	}
	if desync.Want == desync.Got {
		t.Errorf("Desync with equal checksums: %+v", desync)
	}
}

// TestSyncTestRequiresEveryInput verifies a frame needs input from every
// handle.
func TestSyncTestRequiresEveryInput(t *testing.T) {
	s, err := NewBuilder().StartSyncTest(game.NewMatch(), 2)
	if err != nil {
		t.Fatalf("StartSyncTest: %v", err)
	}

	s.AddLocalInput(0, game.InputLeft)
	if _, err := s.AdvanceFrame(); !errors.Is(err, ErrMissingLocalInput) {
		t.Errorf("Expected ErrMissingLocalInput, got %v", err)
	}
	if err := s.AddLocalInput(2, 0); !errors.Is(err, ErrNotLocalHandle) {
		t.Errorf("Expected ErrNotLocalHandle, got %v", err)
	}
}

// TestSyncTestFinishes verifies the session ends with the match.
func TestSyncTestFinishes(t *testing.T) {
	w := game.NewMatch()
	w.State().TimerTicks = 20
	s, err := NewBuilder().StartSyncTest(w, 4)
	if err != nil {
		t.Fatalf("StartSyncTest: %v", err)
	}

	var over bool
	for frame := 0; frame < 40; frame++ {
		s.AddLocalInput(0, 0)
		s.AddLocalInput(1, 0)
		evs, err := s.AdvanceFrame()
		if errors.Is(err, ErrSessionFinished) {
			break
		}
		if err != nil {
			t.Fatalf("Frame %d: %v", frame, err)
		}
		for _, ev := range evs {
			if ev.Type == game.EventGameOver {
				over = true
			}
		}
	}

	if !over {
		t.Error("Expected a game over event")
	}
	if s.Status().State != StateFinished {
		t.Errorf("Expected finished, got %s", s.Status().State)
	}
	var finished bool
	for _, ev := range s.Events() {
		finished = finished || ev.Kind == EventFinished
	}
	if !finished {
		t.Error("Expected a finished notification")
	}
}
