package session

import (
	"sync"
	"testing"
)

func TestInboxOrder(t *testing.T) {
	q := NewInbox(4)
	for _, id := range []PeerID{"a", "b", "c"} {
		if !q.Push(Datagram{From: id}) {
			t.Fatalf("Push(%s) failed", id)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Expected len 3, got %d", q.Len())
	}

	got := q.Drain(nil)
	if len(got) != 3 || got[0].From != "a" || got[2].From != "c" {
		t.Errorf("Unexpected drain order: %+v", got)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty inbox, got %d", q.Len())
	}
}

// TestInboxDropsWhenFull verifies a full inbox refuses and counts.
func TestInboxDropsWhenFull(t *testing.T) {
	q := NewInbox(3) // rounds up to 4
	for i := 0; i < 6; i++ {
		q.Push(Datagram{From: "a"})
	}
	if q.Len() != 4 {
		t.Errorf("Expected 4 queued, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("Expected 2 dropped, got %d", q.Dropped())
	}

	q.Drain(nil)
	if !q.Push(Datagram{From: "a"}) {
		t.Error("Expected room after drain")
	}
}

// TestInboxConcurrent verifies one producer and one consumer see every
// datagram exactly once and in order.
func TestInboxConcurrent(t *testing.T) {
	const total = 10000
	q := NewInbox(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Push(Datagram{Payload: []byte{byte(i)}}) {
				i++
			}
		}
	}()

	var buf []Datagram
	received := 0
	for received < total {
		buf = q.Drain(buf[:0])
		for _, d := range buf {
			if d.Payload[0] != byte(received) {
				t.Fatalf("Datagram %d out of order: %d", received, d.Payload[0])
			}
			received++
		}
	}
	wg.Wait()
}
