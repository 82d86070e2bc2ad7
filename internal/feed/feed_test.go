package feed

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/match"
	"online-breakout/internal/session"
)

func sampleFrame(tick int) *match.Frame {
	return &match.Frame{
		Sequence:  uint64(tick),
		Timestamp: time.Unix(0, 1234),
		Tick:      tick,
		Entities: []match.EntityView{
			{ID: 1, Kind: game.KindCell, Team: game.Team0, Pos: game.Vec2{X: -225, Y: -25}, Half: game.Vec2{X: 25, Y: 25}},
			{ID: 7, Kind: game.KindBall, Team: game.Team1, Pos: game.Vec2{X: 3.5, Y: 100}, Radius: game.BallRadius},
		},
		TimerTicks:     600,
		SecondsLeft:    10,
		Events:         []game.Event{{Type: game.EventCellHit, Tick: tick, Entity: 1, Team: game.Team1}},
		SessionState:   session.StateRunning,
		ConfirmedFrame: tick - 2,
		Rollbacks:      3,
	}
}

// TestFrameMessageRoundTrip verifies a frame survives the wire form.
func TestFrameMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgTypeFrame, frameToMessage(sampleFrame(42))); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	msgType, body, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != MsgTypeFrame {
		t.Fatalf("Expected frame type, got %d", msgType)
	}
	msg, err := DecodeFrame(body)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	got, want := msg.ToFrame(), sampleFrame(42)
	if got.Tick != want.Tick || got.SessionState != want.SessionState || got.ConfirmedFrame != want.ConfirmedFrame {
		t.Errorf("Header fields differ: %+v", got)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp %v, want %v", got.Timestamp, want.Timestamp)
	}
	if len(got.Entities) != 2 || got.Entities[0] != want.Entities[0] || got.Entities[1] != want.Entities[1] {
		t.Errorf("Entities differ: %+v", got.Entities)
	}
	if len(got.Events) != 1 || got.Events[0] != want.Events[0] {
		t.Errorf("Events differ: %+v", got.Events)
	}
}

func TestReadMessageRejects(t *testing.T) {
	header := func(version uint16, length uint32) []byte {
		b := make([]byte, HeaderSize)
		binary.LittleEndian.PutUint16(b[0:2], version)
		b[2] = MsgTypeFrame
		binary.LittleEndian.PutUint32(b[4:8], length)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"version", header(ProtocolVersion+1, 0), ErrVersionMismatch},
		{"too large", header(ProtocolVersion, MaxMessageSize+1), ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadMessage(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, _, err := ReadMessage(bytes.NewReader(header(ProtocolVersion, 10))); err == nil {
		t.Error("Expected an error for a truncated body")
	}
}

// TestPublisherSubscriber verifies config and frames reach a subscriber
// over the local socket.
func TestPublisherSubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.sock")

	pub := NewPublisher(path)
	pub.SetConfig(ConfigMessage{TickRate: 60, FieldWidth: game.FieldWidth, FieldHeight: game.FieldHeight, Role: "host", Mirrored: true})
	if err := pub.Start(); err != nil {
		t.Fatalf("Publisher start: %v", err)
	}
	defer pub.Stop()

	sub := NewSubscriber(path)
	if err := sub.Start(); err != nil {
		t.Fatalf("Subscriber start: %v", err)
	}
	defer sub.Stop()

	cfg := sub.WaitForConfig(3 * time.Second)
	if cfg == nil {
		t.Fatal("No config received")
	}
	if cfg.Role != "host" || !cfg.Mirrored || cfg.TickRate != 60 {
		t.Errorf("Unexpected config %+v", cfg)
	}

	deadline := time.Now().Add(3 * time.Second)
	for tick := 1; time.Now().Before(deadline); tick++ {
		pub.PublishFrame(sampleFrame(tick))
		time.Sleep(5 * time.Millisecond)
		if f := sub.LatestFrame(); f != nil && f.Tick > 0 {
			if len(f.Entities) != 2 || f.SessionState != session.StateRunning {
				t.Errorf("Unexpected frame %+v", f)
			}
			clients, sent, _ := pub.Stats()
			if clients != 1 || sent == 0 {
				t.Errorf("Publisher stats: %d clients, %d sent", clients, sent)
			}
			return
		}
	}
	t.Fatal("No frame received")
}
