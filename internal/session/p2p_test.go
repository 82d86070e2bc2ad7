package session

import (
	"errors"
	"testing"
	"time"

	"online-breakout/internal/game"
)

const tickDuration = time.Second / game.TickRate

func testConfig(clock *fakeClock) Config {
	cfg := DefaultConfig()
	cfg.Clock = clock.Now
	return cfg
}

// advanceBoth feeds each session its scripted input and advances it,
// tolerating the non-fatal statuses.
func advanceBoth(t *testing.T, sessions ...*P2PSession) {
	t.Helper()
	for _, s := range sessions {
		if s.state == StateFinished {
			s.Poll()
			continue
		}
		if err := s.AddLocalInput(s.local, script(s.local, s.frame)); err != nil {
			t.Fatalf("AddLocalInput: %v", err)
		}
		_, err := s.AdvanceFrame()
		switch {
		case err == nil,
			errors.Is(err, ErrPredictionThreshold),
			errors.Is(err, ErrNotSynchronized),
			errors.Is(err, ErrSessionFinished):
		default:
			t.Fatalf("AdvanceFrame at frame %d: %v", s.frame, err)
		}
	}
}

// TestP2PConvergesWithLatencyAndLoss verifies two peers exchanging inputs
// over a slow lossy link end up with exactly the states a straight-through
// run with the confirmed inputs produces.
func TestP2PConvergesWithLatencyAndLoss(t *testing.T) {
	const target = 600

	clock := newFakeClock()
	cfg := testConfig(clock)
	net := newFakeNet(4, 5)
	a, b, err := startPair(cfg, net, game.NewMatch(), game.NewMatch())
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	done := func(s *P2PSession) bool {
		_, ok := s.localChecksums[target]
		return ok
	}
	for tick := 0; tick < 5000 && !(done(a) && done(b)); tick++ {
		advanceBoth(t, a, b)
		clock.Advance(tickDuration)
		net.advance()
	}
	if !done(a) || !done(b) {
		t.Fatalf("Sessions did not confirm frame %d: a=%+v b=%+v", target, a.Status(), b.Status())
	}

	ref := game.NewMatch()
	for f := 0; f <= target; f++ {
		if f > 0 && f%cfg.DesyncInterval == 0 {
			want := ref.Checksum()
			for name, s := range map[string]*P2PSession{"a": a, "b": b} {
				if got := s.localChecksums[f]; got != want {
					t.Errorf("peer %s frame %d: checksum %x, straight-through %x", name, f, got, want)
				}
			}
		}
		ref.Step(scriptedInputs(f, cfg.InputDelay, 2))
	}

	if a.rollbacks+b.rollbacks == 0 {
		t.Error("Expected at least one rollback with 4 ticks of latency")
	}
	if a.desyncs != 0 || b.desyncs != 0 {
		t.Errorf("Unexpected desyncs: a=%d b=%d", a.desyncs, b.desyncs)
	}
}

// TestP2PSynchronizes verifies the handshake events and the transition to
// running, including links whose round trip exceeds the sync retry interval.
func TestP2PSynchronizes(t *testing.T) {
	tests := []struct {
		name    string
		latency int // ticks, one way
	}{
		{"fast link", 1},
		{"rtt above retry interval", 10},
		{"rtt far above retry interval", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			net := newFakeNet(tt.latency, 0)
			a, b, err := startPair(testConfig(clock), net, game.NewMatch(), game.NewMatch())
			if err != nil {
				t.Fatalf("startPair: %v", err)
			}

			if _, err := a.AdvanceFrame(); !errors.Is(err, ErrNotSynchronized) {
				t.Fatalf("Expected ErrNotSynchronized before handshake, got %v", err)
			}

			for tick := 0; tick < 1000 && (a.state != StateRunning || b.state != StateRunning); tick++ {
				a.Poll()
				b.Poll()
				clock.Advance(tickDuration)
				net.advance()
			}
			if a.state != StateRunning || b.state != StateRunning {
				t.Fatalf("Expected both running, got %s/%s", a.state, b.state)
			}

			var progress, synced, running int
			for _, ev := range a.Events() {
				switch ev.Kind {
				case EventSynchronizing:
					progress++
				case EventSynchronized:
					synced++
				case EventRunning:
					running++
				}
			}
			want := DefaultConfig().SyncRoundTrips - 1
			if progress != want || synced != 1 || running != 1 {
				t.Errorf("Expected %d/1/1 sync events, got %d/%d/%d", want, progress, synced, running)
			}
		})
	}
}

// TestP2PPredictionThreshold verifies a session stops MaxPrediction frames
// past the last confirmed remote frame and resumes once inputs arrive.
func TestP2PPredictionThreshold(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	net := newFakeNet(1, 0)
	a, b, err := startPair(cfg, net, game.NewMatch(), game.NewMatch())
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	// b only services the network and never commits an input.
	var stalled bool
	for tick := 0; tick < 200 && !stalled; tick++ {
		a.AddLocalInput(0, game.InputRight)
		_, err := a.AdvanceFrame()
		if errors.Is(err, ErrPredictionThreshold) {
			stalled = true
		}
		b.Poll()
		clock.Advance(tickDuration)
		net.advance()
	}
	if !stalled {
		t.Fatal("Expected the prediction threshold to be reached")
	}

	st := a.Status()
	if !st.AwaitingPeer {
		t.Error("Expected AwaitingPeer status")
	}
	if want := cfg.InputDelay + cfg.MaxPrediction; st.Frame != want {
		t.Errorf("Expected to stall at frame %d, got %d", want, st.Frame)
	}

	for tick := 0; tick < 50; tick++ {
		advanceBoth(t, a, b)
		clock.Advance(tickDuration)
		net.advance()
	}
	if st := a.Status(); st.Frame <= cfg.InputDelay+cfg.MaxPrediction {
		t.Errorf("Expected session to resume, got %+v", st)
	}
}

// TestP2PDisconnect verifies silence is reported, then the peer is marked
// disconnected, and the session stalls instead of failing.
func TestP2PDisconnect(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	net := newFakeNet(1, 0)
	a, b, err := startPair(cfg, net, game.NewMatch(), game.NewMatch())
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}
	for tick := 0; tick < 60; tick++ {
		advanceBoth(t, a, b)
		clock.Advance(tickDuration)
		net.advance()
	}
	a.Events()

	net.dropAll = true
	var interrupted, disconnected bool
	for tick := 0; tick < 4*game.TickRate; tick++ {
		a.AddLocalInput(0, 0)
		if _, err := a.AdvanceFrame(); err != nil && !errors.Is(err, ErrPredictionThreshold) {
			t.Fatalf("Unexpected error while peer is silent: %v", err)
		}
		for _, ev := range a.Events() {
			switch ev.Kind {
			case EventNetworkInterrupted:
				interrupted = true
				if ev.Timeout <= 0 || ev.Timeout > cfg.DisconnectTimeout {
					t.Errorf("Unexpected interruption timeout %v", ev.Timeout)
				}
			case EventDisconnected:
				if !interrupted {
					t.Error("Disconnected reported before interruption")
				}
				disconnected = true
			}
		}
		clock.Advance(tickDuration)
		net.advance()
	}

	if !interrupted || !disconnected {
		t.Errorf("Expected interruption and disconnect, got %v/%v", interrupted, disconnected)
	}
	if !a.Status().AwaitingPeer {
		t.Error("Expected session to be awaiting its disconnected peer")
	}
}

// TestP2PDesyncDetected verifies differing states are reported through
// checksum exchange without stopping the session.
func TestP2PDesyncDetected(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	net := newFakeNet(1, 0)

	tampered := game.NewMatch()
	tampered.State().Cells[0].Team = game.TeamItem
	a, b, err := startPair(cfg, net, game.NewMatch(), tampered)
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	var desync *Event
	for tick := 0; tick < 300 && desync == nil; tick++ {
		advanceBoth(t, a, b)
		for _, ev := range a.Events() {
			if ev.Kind == EventDesyncDetected {
				ev := ev
				desync = &ev
			}
		}
		clock.Advance(tickDuration)
		net.advance()
	}

	if desync == nil {
		t.Fatal("Expected a desync to be detected")
	}
	if desync.Frame != cfg.DesyncInterval || desync.Peer != "b" {
		t.Errorf("Unexpected desync event %+v", *desync)
	}
	if a.state == StateFinished {
		t.Error("Desync must not end the session")
	}
}

// TestP2PFinishes verifies both peers finish on the same confirmed frame
// with the same result and keep answering afterwards.
func TestP2PFinishes(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	net := newFakeNet(3, 7)

	wa, wb := game.NewMatch(), game.NewMatch()
	wa.State().TimerTicks = 90
	wb.State().TimerTicks = 90
	a, b, err := startPair(cfg, net, wa, wb)
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	for tick := 0; tick < 1000 && (a.state != StateFinished || b.state != StateFinished); tick++ {
		advanceBoth(t, a, b)
		clock.Advance(tickDuration)
		net.advance()
	}
	if a.state != StateFinished || b.state != StateFinished {
		t.Fatalf("Expected both finished, got %s/%s", a.state, b.state)
	}
	if a.overFrame != b.overFrame {
		t.Errorf("Peers ended on different frames: %d vs %d", a.overFrame, b.overFrame)
	}
	if wa.State().Result != wb.State().Result {
		t.Errorf("Results differ: %+v vs %+v", wa.State().Result, wb.State().Result)
	}
	if _, err := a.AdvanceFrame(); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("Expected ErrSessionFinished, got %v", err)
	}
}

// TestP2PLocalInputValidation verifies only the local handle accepts input
// and that a frame cannot advance without it.
func TestP2PLocalInputValidation(t *testing.T) {
	clock := newFakeClock()
	net := newFakeNet(0, 0)
	a, _, err := startPair(testConfig(clock), net, game.NewMatch(), game.NewMatch())
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	if err := a.AddLocalInput(1, 0); !errors.Is(err, ErrNotLocalHandle) {
		t.Errorf("Expected ErrNotLocalHandle, got %v", err)
	}
	a.setState(StateRunning)
	if _, err := a.AdvanceFrame(); !errors.Is(err, ErrMissingLocalInput) {
		t.Errorf("Expected ErrMissingLocalInput, got %v", err)
	}
}

// TestP2PIgnoresGarbage verifies malformed datagrams are counted and
// dropped.
func TestP2PIgnoresGarbage(t *testing.T) {
	clock := newFakeClock()
	net := newFakeNet(0, 0)
	a, _, err := startPair(testConfig(clock), net, game.NewMatch(), game.NewMatch())
	if err != nil {
		t.Fatalf("startPair: %v", err)
	}

	net.sockets["a"].inbox.Push(Datagram{From: "b", Payload: []byte{0xc1, 0x00, 0xff}})
	net.sockets["a"].inbox.Push(Datagram{From: "stranger", Payload: []byte{0x01}})
	a.Poll()

	if got := a.Status().BadDatagrams; got != 1 {
		t.Errorf("Expected 1 bad datagram, got %d", got)
	}
}
