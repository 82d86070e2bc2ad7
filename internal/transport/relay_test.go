package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"online-breakout/internal/game"
	"online-breakout/internal/session"
)

// echoRelay announces a full room and then echoes every binary frame.
func echoRelay(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") || r.URL.Query().Get("role") == "" {
			http.Error(w, "bad join", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteJSON(ControlMessage{Type: ControlPeers, Peers: SeatPeers()})
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				conn.WriteMessage(websocket.BinaryMessage, data)
			}
		}
	}))
}

func TestRelayURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws/abc?role=host"},
		{"https://relay.example.com/", "wss://relay.example.com/ws/abc?role=host"},
		{"ws://10.0.0.1:9000/base", "ws://10.0.0.1:9000/base/ws/abc?role=host"},
	}
	for _, tt := range tests {
		got, err := RelayURL(tt.base, "abc", game.RoleHost)
		if err != nil {
			t.Fatalf("RelayURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("RelayURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}

	if _, err := RelayURL("ftp://x", "abc", game.RoleHost); err == nil {
		t.Error("Expected an error for an unsupported scheme")
	}
}

func TestRelayClient(t *testing.T) {
	srv := echoRelay(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := DialRelay(ctx, srv.URL, "room", game.RoleHost)
	if err != nil {
		t.Fatalf("DialRelay: %v", err)
	}
	defer c.Close()

	var roster session.Roster
	var ok bool
	for end := time.Now().Add(time.Second); !ok && time.Now().Before(end); {
		roster, ok = c.Roster()
		time.Sleep(time.Millisecond)
	}
	if !ok {
		t.Fatal("Expected a full roster")
	}
	if roster.LocalSeat != 1 || roster.Peers[0] != "client" || roster.Peers[1] != "host" {
		t.Errorf("Unexpected roster %+v", roster)
	}

	if err := c.SendTo("client", []byte{4, 2}); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	var got []session.Datagram
	for end := time.Now().Add(time.Second); len(got) == 0 && time.Now().Before(end); {
		got = c.Receive(got)
		time.Sleep(time.Millisecond)
	}
	if len(got) != 1 || got[0].From != "client" || got[0].Payload[1] != 2 {
		t.Errorf("Unexpected datagrams %+v", got)
	}

	if err := c.Close(); err != nil {
		t.Logf("Close: %v", err)
	}
	if err := c.SendTo("client", []byte{1}); err != ErrClosed {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestDialRelayRejected(t *testing.T) {
	srv := echoRelay(t)
	defer srv.Close()

	_, err := DialRelay(context.Background(), srv.URL+"/elsewhere", "room", game.RoleClient)
	if err == nil {
		t.Fatal("Expected the join to be refused")
	}
}

// TestRelayClientStalledRelay verifies SendTo stays non-blocking when the
// relay stops reading, and that the client gives up on the connection once a
// write times out instead of keeping a broken socket.
func TestRelayClientStalledRelay(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := DialRelay(ctx, srv.URL, "room", game.RoleClient)
	if err != nil {
		t.Fatalf("DialRelay: %v", err)
	}
	defer c.Close()

	payload := make([]byte, 32*1024)
	deadline := time.Now().Add(10 * time.Second)
	for lost := false; !lost; {
		if time.Now().After(deadline) {
			t.Fatal("Expected the client to drop the stalled connection")
		}
		start := time.Now()
		err := c.SendTo("host", payload)
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("SendTo blocked for %v", elapsed)
		}
		select {
		case <-c.Done():
			lost = true
			if err == nil {
				err = c.SendTo("host", payload)
			}
			if err != ErrClosed {
				t.Errorf("Expected ErrClosed once the connection is gone, got %v", err)
			}
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, _, dropped := c.Stats(); dropped == 0 {
		t.Error("Expected queued frames to be dropped while the relay stalled")
	}
}
