package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"online-breakout/internal/game"
	"online-breakout/internal/transport"
)

const (
	// MaxWSConnectionsTotal is the maximum number of relay connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum relay connections per IP
	MaxWSConnectionsPerIP = 10

	// relayWriteWait bounds one socket write. A failed write closes the
	// connection; gorilla/websocket connections are unusable after one.
	relayWriteWait = time.Second

	// relaySendQueue is how many frames may wait for a slow reader before
	// the oldest is dropped.
	relaySendQueue = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Native game clients send no Origin header.
		if origin == "" || IsAllowedOrigin(origin) {
			return true
		}

		log.Printf("⚠️ Relay connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

type outbound struct {
	kind int
	data []byte
}

// relayConn is one seated player. Only writeLoop writes to conn.
type relayConn struct {
	conn *websocket.Conn
	role game.Role
	ip   string

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newRelayConn(conn *websocket.Conn, role game.Role, ip string) *relayConn {
	return &relayConn{
		conn: conn,
		role: role,
		ip:   ip,
		send: make(chan outbound, relaySendQueue),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. When the queue is full the oldest frame is dropped
// and false is returned.
func (c *relayConn) enqueue(kind int, data []byte) bool {
	msg := outbound{kind: kind, data: data}
	select {
	case c.send <- msg:
		return true
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
	return false
}

func (c *relayConn) enqueueControl(msg transport.ControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(websocket.TextMessage, data)
}

func (c *relayConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				log.Printf("⚠️ Relay write to %s failed, closing: %v", c.role, err)
				c.close()
				return
			}
		}
	}
}

// close stops the writer and the connection; serve then sees a read error
// and runs leave.
func (c *relayConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// relayRoom holds up to one connection per seat.
type relayRoom struct {
	seats [game.NumTeams]*relayConn
}

func (r *relayRoom) empty() bool {
	for _, c := range r.seats {
		if c != nil {
			return false
		}
	}
	return true
}

func (r *relayRoom) full() bool {
	for _, c := range r.seats {
		if c == nil {
			return false
		}
	}
	return true
}

// RelayHub pairs the two players of a room and forwards binary frames
// between them. It never looks inside the frames.
type RelayHub struct {
	store RoomStore

	mu    sync.RWMutex
	rooms map[string]*relayRoom
	conns int

	seats *SeatLimiter // per-IP cap

	forwarded atomic.Int64
	dropped   atomic.Int64
}

func NewRelayHub(store RoomStore) *RelayHub {
	return &RelayHub{
		store: store,
		rooms: make(map[string]*relayRoom),
		seats: NewSeatLimiter(MaxWSConnectionsPerIP),
	}
}

// HandleRoom upgrades GET /ws/{room}?role=host|client and seats the caller.
func (h *RelayHub) HandleRoom(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "room")
	if !ValidRoomToken(token) {
		writeError(w, ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}
	role, err := game.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, "role must be host or client", http.StatusBadRequest)
		return
	}

	if _, err := h.store.Get(r.Context(), token); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("❌ Room lookup failed: %v", err)
		writeError(w, "room lookup failed", http.StatusInternalServerError)
		return
	}

	ip := GetClientIP(r)

	h.mu.RLock()
	total := h.conns
	taken := h.seatTakenLocked(token, role)
	h.mu.RUnlock()

	if total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ Relay connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if taken {
		writeError(w, "seat already taken", http.StatusConflict)
		return
	}
	if !h.seats.Acquire(ip) {
		log.Printf("⚠️ Relay connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Relay upgrade error: %v", err)
		h.seats.Release(ip)
		return
	}
	conn.SetReadLimit(transport.MaxDatagramSize)

	c := newRelayConn(conn, role, ip)
	if !h.join(token, c) {
		// Lost a race for the seat after the check above.
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "seat already taken"),
			time.Now().Add(time.Second))
		conn.Close()
		h.seats.Release(ip)
		return
	}

	go c.writeLoop()
	go h.serve(token, c)
}

func (h *RelayHub) seatTakenLocked(token string, role game.Role) bool {
	room, ok := h.rooms[token]
	return ok && room.seats[role.Team()] != nil
}

func (h *RelayHub) join(token string, c *relayConn) bool {
	h.mu.Lock()
	room, ok := h.rooms[token]
	if !ok {
		room = &relayRoom{}
		h.rooms[token] = room
	}
	seat := c.role.Team()
	if room.seats[seat] != nil {
		h.mu.Unlock()
		return false
	}
	room.seats[seat] = c
	h.conns++
	conns, rooms := h.conns, len(h.rooms)
	var seated []*relayConn
	if room.full() {
		seated = append(seated, room.seats[:]...)
	}
	h.mu.Unlock()

	UpdateWSConnections(conns)
	UpdateRelayRooms(rooms)
	log.Printf("📱 %s joined room %s from %s (%d connections)", c.role, shortToken(token), c.ip, conns)

	if len(seated) > 0 {
		msg := transport.ControlMessage{Type: transport.ControlPeers, Peers: transport.SeatPeers()}
		for _, sc := range seated {
			sc.enqueueControl(msg)
		}
	}
	return true
}

// serve forwards the connection's binary frames to the other seat until
// it closes.
func (h *RelayHub) serve(token string, c *relayConn) {
	defer h.leave(token, c)

	other := c.role.Team().Opponent()
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		h.mu.RLock()
		var peer *relayConn
		if room, ok := h.rooms[token]; ok {
			peer = room.seats[other]
		}
		h.mu.RUnlock()

		if peer == nil {
			h.dropped.Add(1)
			continue
		}
		if !peer.enqueue(websocket.BinaryMessage, data) {
			h.dropped.Add(1)
		}
		h.forwarded.Add(1)
		IncrementRelayForwarded()
	}
}

func (h *RelayHub) leave(token string, c *relayConn) {
	h.mu.Lock()
	var peer *relayConn
	if room, ok := h.rooms[token]; ok {
		seat := c.role.Team()
		if room.seats[seat] == c {
			room.seats[seat] = nil
			h.conns--
		}
		peer = room.seats[seat.Opponent()]
		if room.empty() {
			delete(h.rooms, token)
		}
	}
	conns, rooms := h.conns, len(h.rooms)
	h.mu.Unlock()

	c.close()
	h.seats.Release(c.ip)
	UpdateWSConnections(conns)
	UpdateRelayRooms(rooms)
	log.Printf("📱 %s left room %s (%d connections)", c.role, shortToken(token), conns)

	if peer != nil {
		peer.enqueueControl(transport.ControlMessage{Type: transport.ControlPeerLeft, Role: c.role.String()})
	}
}

// Occupancy lists the roles seated in a room.
func (h *RelayHub) Occupancy(token string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seated := []string{}
	if room, ok := h.rooms[token]; ok {
		for _, c := range room.seats {
			if c != nil {
				seated = append(seated, c.role.String())
			}
		}
	}
	return seated
}

// Stats reports live rooms, connections and frame counters.
func (h *RelayHub) Stats() map[string]interface{} {
	h.mu.RLock()
	rooms, conns := len(h.rooms), h.conns
	h.mu.RUnlock()

	return map[string]interface{}{
		"activeRooms": rooms,
		"connections": conns,
		"forwarded":   h.forwarded.Load(),
		"dropped":     h.dropped.Load(),
		"seatLimits":  h.seats.Stats(),
	}
}

// Close disconnects everyone. serve goroutines clean up after themselves.
func (h *RelayHub) Close() {
	h.mu.RLock()
	var all []*relayConn
	for _, room := range h.rooms {
		for _, c := range room.seats {
			if c != nil {
				all = append(all, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

// shortToken keeps room tokens out of logs.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
