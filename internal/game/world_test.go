package game

import (
	"math/rand"
	"reflect"
	"testing"
)

// scriptedInputs returns a reproducible input history for both teams.
func scriptedInputs(seed int64, ticks int) [][]Input {
	rng := rand.New(rand.NewSource(seed))
	history := make([][]Input, ticks)
	for i := range history {
		history[i] = []Input{Input(rng.Intn(4)), Input(rng.Intn(4))}
	}
	return history
}

// TestNewMatchLayout verifies the kickoff store.
func TestNewMatchLayout(t *testing.T) {
	s := NewMatch().State()

	if len(s.Walls) != 4 {
		t.Errorf("Expected 4 walls, got %d", len(s.Walls))
	}
	if len(s.Paddles) != 2 {
		t.Errorf("Expected 2 paddles, got %d", len(s.Paddles))
	}
	if len(s.Balls) != 2 {
		t.Errorf("Expected 2 balls, got %d", len(s.Balls))
	}
	if got := s.CellCount(Team0); got != FieldCols*FieldRows {
		t.Errorf("Expected %d team0 cells, got %d", FieldCols*FieldRows, got)
	}
	if got := s.CellCount(Team1); got != FieldCols*FieldRows {
		t.Errorf("Expected %d team1 cells, got %d", FieldCols*FieldRows, got)
	}
	for _, c := range s.Cells {
		if (c.Team == Team0) != (c.Pos.Y > 0) {
			t.Fatalf("Cell %d of %s on the wrong half: %+v", c.ID, c.Team, c.Pos)
		}
	}
	if p := s.Paddle(Team0); p == nil || p.Pos.Y != -PaddleY {
		t.Errorf("Team0 paddle misplaced: %+v", p)
	}
	if s.TimerTicks != MatchDurationTick {
		t.Errorf("Expected timer %d, got %d", MatchDurationTick, s.TimerTicks)
	}

	var last EntityID
	for _, c := range s.Cells {
		if c.ID <= last {
			t.Fatalf("Cell IDs not ascending at %d", c.ID)
		}
		last = c.ID
	}
}

// TestDeterminism verifies two independent runs over the same inputs agree
// bit for bit on every tick.
func TestDeterminism(t *testing.T) {
	history := scriptedInputs(42, 3000)

	a, b := NewMatch(), NewMatch()
	for tick, inputs := range history {
		a.Step(inputs)
		b.Step(inputs)
		if a.Checksum() != b.Checksum() {
			t.Fatalf("Checksums diverged at tick %d", tick)
		}
	}
	if !reflect.DeepEqual(a.State(), b.State()) {
		t.Error("Final states differ")
	}
}

// TestDifferentInputsDiverge verifies the checksum notices input changes.
func TestDifferentInputsDiverge(t *testing.T) {
	a, b := NewMatch(), NewMatch()
	a.Step([]Input{InputLeft, 0})
	b.Step([]Input{InputRight, 0})

	if a.Checksum() == b.Checksum() {
		t.Error("Expected different checksums for different inputs")
	}
}

// TestSaveLoadReplay verifies restoring a snapshot and replaying the same
// inputs reproduces the same future, including entity IDs.
func TestSaveLoadReplay(t *testing.T) {
	history := scriptedInputs(7, 600)
	w := NewMatch()
	for _, in := range history[:300] {
		w.Step(in)
	}

	var snap State
	w.Save(&snap)

	for _, in := range history[300:] {
		w.Step(in)
	}
	want := w.Checksum()
	wantNext := w.State().NextID

	w.Load(&snap)
	if w.State().Tick != 300 {
		t.Fatalf("Expected tick 300 after load, got %d", w.State().Tick)
	}
	for _, in := range history[300:] {
		w.Step(in)
	}

	if got := w.Checksum(); got != want {
		t.Errorf("Replay diverged: %x != %x", got, want)
	}
	if w.State().NextID != wantNext {
		t.Errorf("Expected NextID %d, got %d", wantNext, w.State().NextID)
	}
}

// TestSnapshotIsDeep verifies a saved snapshot is unaffected by later ticks.
func TestSnapshotIsDeep(t *testing.T) {
	w := NewMatch()
	snap := w.State().Clone()
	before := Checksum(snap)

	for i := 0; i < 60; i++ {
		w.Step([]Input{InputRight, InputLeft})
	}

	if Checksum(snap) != before {
		t.Error("Snapshot changed after stepping the world")
	}
}

// TestStepEmptyInputs verifies missing inputs mean no buttons.
func TestStepEmptyInputs(t *testing.T) {
	a, b := NewMatch(), NewMatch()
	for i := 0; i < 30; i++ {
		a.Step(nil)
		b.Step([]Input{0, 0})
	}
	if a.Checksum() != b.Checksum() {
		t.Error("nil inputs should behave like zero inputs")
	}
}
