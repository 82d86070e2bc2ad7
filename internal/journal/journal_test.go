package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"online-breakout/internal/game"
)

// TestJournalWritesJSONL verifies recorded entries land in the file in
// order, one JSON object per line.
func TestJournalWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.jsonl")

	j := New()
	if err := j.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ev := game.Event{Type: game.EventCellHit, Tick: 42}
	kinds := []string{"cell_hit", "ball_out", "result"}
	for i, kind := range kinds {
		if !j.Record(40+i, kind, ev) {
			t.Fatalf("Record %q rejected", kind)
		}
	}
	j.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var got []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Line %q is not JSON: %v", scanner.Text(), err)
		}
		got = append(got, e)
	}

	if len(got) != len(kinds) {
		t.Fatalf("Expected %d lines, got %d", len(kinds), len(got))
	}
	for i, e := range got {
		if e.Kind != kinds[i] || e.Frame != 40+i || e.Seq != uint64(i+1) {
			t.Errorf("Line %d: %+v", i, e)
		}
	}
}

func TestJournalRejectsWhenStopped(t *testing.T) {
	j := New()
	if j.Record(0, "cell_hit", nil) {
		t.Error("Expected Record before Start to fail")
	}
	if err := j.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	j.Stop()
	if j.Record(0, "cell_hit", nil) {
		t.Error("Expected Record after Stop to fail")
	}
}

// TestJournalRateLimitsKind verifies a burst of one kind is cut off while
// other kinds still get through.
func TestJournalRateLimitsKind(t *testing.T) {
	j := New()
	if err := j.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer j.Stop()

	accepted := 0
	for i := 0; i < 500; i++ {
		if j.Record(i, "session_desync_detected", nil) {
			accepted++
		}
	}
	if accepted >= 500 || accepted == 0 {
		t.Errorf("Expected a partial burst, accepted %d", accepted)
	}
	if j.Dropped() == 0 {
		t.Error("Expected dropped entries")
	}
	if !j.Record(0, "result", nil) {
		t.Error("Expected another kind to be accepted")
	}
}
