package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"online-breakout/internal/game"
	"online-breakout/internal/session"
)

// Control message types sent by the relay as websocket text frames.
const (
	ControlPeers    = "peers"
	ControlPeerLeft = "peer_left"
)

const (
	// relayWriteWait bounds one socket write. The connection is closed on
	// the first failed write.
	relayWriteWait = time.Second
	relaySendQueue = 256
	// MaxDatagramSize bounds one binary frame in either direction.
	MaxDatagramSize = 64 * 1024
)

// ControlMessage is the JSON body of a relay text frame. Peers lists one
// PeerID per seat once the room is full.
type ControlMessage struct {
	Type  string           `json:"type"`
	Peers []session.PeerID `json:"peers,omitempty"`
	Role  string           `json:"role,omitempty"`
}

// SeatPeers names the seats of a full room: the client plays seat 0 and the
// host seat 1.
func SeatPeers() []session.PeerID {
	return []session.PeerID{
		session.PeerID(game.RoleClient.String()),
		session.PeerID(game.RoleHost.String()),
	}
}

// RelayClient reaches the other player through the relay server's room
// websocket. It is both the session's Socket and its PeerSource.
type RelayClient struct {
	conn  *websocket.Conn
	role  game.Role
	self  session.PeerID
	other session.PeerID
	inbox *session.Inbox

	send        chan []byte
	stop        chan struct{}
	writerDone  chan struct{}
	sendDropped atomic.Uint64

	mu       sync.Mutex
	peers    []session.PeerID
	peerLeft bool

	closed atomic.Bool
	done   chan struct{}

	received atomic.Int64
	sent     atomic.Int64
}

// RelayURL builds the room websocket URL from the relay's base address,
// accepting http(s) or ws(s) schemes.
func RelayURL(base, room string, role game.Role) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay address: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("relay address %q: unsupported scheme %q", base, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + url.PathEscape(room)
	u.RawQuery = url.Values{"role": {role.String()}}.Encode()
	return u.String(), nil
}

// DialRelay joins room on the relay at base with the given role.
func DialRelay(ctx context.Context, base, room string, role game.Role) (*RelayClient, error) {
	addr, err := RelayURL(base, room, role)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("join room: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("join room: %w", err)
	}
	conn.SetReadLimit(MaxDatagramSize)

	other := game.RoleClient
	if role == game.RoleClient {
		other = game.RoleHost
	}
	c := &RelayClient{
		conn:  conn,
		role:  role,
		self:  session.PeerID(role.String()),
		other: session.PeerID(other.String()),
		inbox: session.NewInbox(1024),
		done:  make(chan struct{}),

		send:       make(chan []byte, relaySendQueue),
		stop:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()

	log.Printf("🛰️  Joined room %s as %s", shortRoom(room), role)
	return c, nil
}

// Roster reports both seats once the relay announced a full room.
func (c *RelayClient) Roster() (session.Roster, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.peers) != game.NumTeams {
		return session.Roster{}, false
	}
	return session.Roster{
		Peers:     append([]session.PeerID(nil), c.peers...),
		LocalSeat: int(c.role.Team()),
	}, true
}

// PeerLeft reports whether the relay announced that the other player left.
func (c *RelayClient) PeerLeft() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerLeft
}

// SendTo queues payload as one binary frame and never blocks. The relay
// forwards it to the other seat, so to only has to name a peer other than
// ourselves. When the queue is full the oldest frame is dropped.
func (c *RelayClient) SendTo(to session.PeerID, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if to == c.self {
		return nil
	}

	data := append([]byte(nil), payload...)
	select {
	case c.send <- data:
		return nil
	default:
	}
	select {
	case <-c.send:
		c.sendDropped.Add(1)
	default:
	}
	select {
	case c.send <- data:
	default:
		c.sendDropped.Add(1)
	}
	return nil
}

// writeLoop is the only writer of conn while the client is open.
func (c *RelayClient) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case <-c.stop:
			return
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Printf("🔌 Relay write failed, closing: %v", err)
				c.conn.Close()
				return
			}
			c.sent.Add(1)
		}
	}
}

func (c *RelayClient) Receive(dst []session.Datagram) []session.Datagram {
	return c.inbox.Drain(dst)
}

// Done is closed when the connection to the relay is gone.
func (c *RelayClient) Done() <-chan struct{} {
	return c.done
}

// Stats returns frames received and sent, and datagrams dropped in either
// direction because one side fell behind.
func (c *RelayClient) Stats() (received, sent int64, dropped uint64) {
	return c.received.Load(), c.sent.Load(), c.inbox.Dropped() + c.sendDropped.Load()
}

func (c *RelayClient) readLoop() {
	defer close(c.done)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Printf("🔌 Relay connection lost: %v", err)
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			c.received.Add(1)
			c.inbox.Push(session.Datagram{From: c.other, Payload: data})

		case websocket.TextMessage:
			var msg ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("⚠️ Bad relay control message: %v", err)
				continue
			}
			c.handleControl(msg)
		}
	}
}

func (c *RelayClient) handleControl(msg ControlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case ControlPeers:
		c.peers = msg.Peers
		c.peerLeft = false
		log.Printf("👥 Room is full: %v", msg.Peers)
	case ControlPeerLeft:
		c.peerLeft = true
		log.Printf("👋 Peer %s left the room", msg.Role)
	}
}

// Close leaves the room.
func (c *RelayClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.stop)
	<-c.writerDone
	c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	err := c.conn.Close()
	<-c.done
	return err
}

// shortRoom keeps room tokens out of logs.
func shortRoom(room string) string {
	if len(room) <= 8 {
		return room
	}
	return room[:8] + "…"
}
