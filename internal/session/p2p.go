package session

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"online-breakout/internal/game"
)

type peerState uint8

const (
	peerSyncing peerState = iota
	peerRunning
	peerDisconnected
)

// peer is the session's view of one remote endpoint.
type peer struct {
	addr   PeerID
	handle int
	state  peerState

	syncLeft     int
	nonce        uint32
	lastSyncSent time.Time

	lastRecv    time.Time
	lastSend    time.Time
	interrupted bool

	// acked is the newest local frame the peer confirmed receiving.
	acked int
	// checksums reported by the peer that have no local counterpart yet.
	checksums map[int]uint64
}

// P2PSession runs one local player against remote players reached through
// a Socket.
type P2PSession struct {
	cfg     Config
	sim     Simulator
	sock    Socket
	players []Player
	local   int
	queues  []*inputQueue
	peers   []*peer
	ring    *snapshotRing

	state          State
	frame          int
	firstIncorrect int
	overFrame      int
	pending        game.Input
	hasPending     bool
	awaiting       bool

	nextChecksum   int
	localChecksums map[int]uint64

	// scratch buffers reused every frame
	inputs  []game.Input
	gameEvs []game.Event
	inbox   []Datagram
	wire    []byte
	msg     Message

	events []Event

	rollbacks      int
	rollbackFrames int
	lastRollback   int
	desyncs        int
	badDatagrams   int
	sendErrors     int
}

func newP2PSession(cfg Config, players []Player, local int, sock Socket, sim Simulator) *P2PSession {
	now := cfg.Clock()
	s := &P2PSession{
		cfg:            cfg,
		sim:            sim,
		sock:           sock,
		players:        players,
		local:          local,
		queues:         make([]*inputQueue, len(players)),
		ring:           newSnapshotRing(cfg.MaxPrediction + 2),
		state:          StateSynchronizing,
		firstIncorrect: -1,
		overFrame:      -1,
		nextChecksum:   cfg.DesyncInterval,
		localChecksums: make(map[int]uint64),
		inputs:         make([]game.Input, len(players)),
	}

	capacity := game.MatchDurationTick + cfg.InputDelay + cfg.MaxPrediction + 2
	for h, p := range players {
		q := newInputQueue(capacity)
		for f := 0; f < cfg.InputDelay; f++ {
			q.confirm(f, 0)
		}
		s.queues[h] = q

		if p.Type == PlayerRemote {
			s.peers = append(s.peers, &peer{
				addr:      p.Addr,
				handle:    h,
				state:     peerSyncing,
				syncLeft:  cfg.SyncRoundTrips,
				lastRecv:  now,
				acked:     -1,
				checksums: make(map[int]uint64),
			})
		}
	}

	log.Printf("🔗 Session created: %d players, local seat %d, input delay %d, prediction window %d",
		len(players), local, cfg.InputDelay, cfg.MaxPrediction)

	if len(s.peers) == 0 {
		s.setState(StateRunning)
	}
	return s
}

// LocalHandles returns the single local seat.
func (s *P2PSession) LocalHandles() []int {
	return []int{s.local}
}

// AddLocalInput queues the local player's input. Calling it again before
// AdvanceFrame replaces the queued input.
func (s *P2PSession) AddLocalInput(handle int, in game.Input) error {
	if handle != s.local {
		return fmt.Errorf("%w: %d", ErrNotLocalHandle, handle)
	}
	s.pending = in.Sanitize()
	s.hasPending = true
	return nil
}

// AdvanceFrame services the network, resimulates if a prediction turned
// out wrong, then simulates the current frame.
//
// ErrPredictionThreshold and ErrNotSynchronized are statuses: the caller
// keeps the queued input and retries next tick.
func (s *P2PSession) AdvanceFrame() ([]game.Event, error) {
	if s.state == StateFinished {
		return nil, ErrSessionFinished
	}

	s.Poll()
	if s.state == StateSynchronizing {
		return nil, ErrNotSynchronized
	}

	if s.firstIncorrect >= 0 {
		if err := s.rollback(); err != nil {
			return nil, err
		}
	}
	if s.checkFinished() {
		return nil, ErrSessionFinished
	}
	if !s.hasPending {
		return nil, ErrMissingLocalInput
	}
	if s.frame-s.confirmedFrame() > s.cfg.MaxPrediction {
		s.awaiting = true
		return nil, ErrPredictionThreshold
	}
	s.awaiting = false

	now := s.cfg.Clock()
	s.commitLocalInput(now)

	s.ring.save(s.frame, s.sim)
	evs := s.step(s.frame)
	s.gameEvs = append(s.gameEvs[:0], evs...)
	s.frame++

	s.reportChecksums(now)
	s.checkFinished()
	return s.gameEvs, nil
}

// Poll drains the inbox and keeps every peer's handshake, resends and
// timeouts going. It is safe to call any number of times per frame and
// keeps answering peers after the session finished.
func (s *P2PSession) Poll() {
	now := s.cfg.Clock()

	s.inbox = s.sock.Receive(s.inbox[:0])
	for i := range s.inbox {
		d := &s.inbox[i]
		p := s.peerByAddr(d.From)
		if p == nil || p.state == peerDisconnected {
			continue
		}
		if err := DecodeMessage(d.Payload, &s.msg); err != nil {
			s.badDatagrams++
			continue
		}
		s.touch(p, now)
		s.handleMessage(p, &s.msg, now)
	}
	clear(s.inbox)

	for _, p := range s.peers {
		s.servicePeer(p, now)
	}
}

// Events drains pending session notifications.
func (s *P2PSession) Events() []Event {
	evs := s.events
	s.events = nil
	return evs
}

func (s *P2PSession) Status() Status {
	return Status{
		State:          s.state,
		Frame:          s.frame,
		ConfirmedFrame: s.confirmedFrame(),
		AwaitingPeer:   s.awaiting,
		Rollbacks:      s.rollbacks,
		RollbackFrames: s.rollbackFrames,
		LastRollback:   s.lastRollback,
		Desyncs:        s.desyncs,
		BadDatagrams:   s.badDatagrams,
		SendErrors:     s.sendErrors,
	}
}

// confirmedFrame is the newest frame for which every player's input is
// known.
func (s *P2PSession) confirmedFrame() int {
	confirmed := s.queues[0].lastConfirmed()
	for _, q := range s.queues[1:] {
		confirmed = min(confirmed, q.lastConfirmed())
	}
	return confirmed
}

func (s *P2PSession) setState(state State) {
	prev := s.state
	if prev == state {
		return
	}
	s.state = state
	switch state {
	case StateRunning:
		if prev == StateRollingBack {
			return
		}
		s.emit(Event{Kind: EventRunning})
		log.Printf("▶️  Session running at frame %d", s.frame)
	case StateFinished:
		s.emit(Event{Kind: EventFinished, Frame: s.frame})
		log.Printf("🏁 Session finished at frame %d (%d rollbacks)", s.frame, s.rollbacks)
	}
}

func (s *P2PSession) emit(ev Event) {
	s.events = append(s.events, ev)
}

func (s *P2PSession) peerByAddr(addr PeerID) *peer {
	for _, p := range s.peers {
		if p.addr == addr {
			return p
		}
	}
	return nil
}

// step simulates frame with confirmed-or-predicted inputs and records what
// each player was assumed to press.
func (s *P2PSession) step(frame int) []game.Event {
	for h, q := range s.queues {
		in := q.input(frame)
		q.use(frame, in)
		s.inputs[h] = in
	}
	evs := s.sim.Step(s.inputs)
	if s.overFrame < 0 && s.sim.Over() {
		s.overFrame = frame + 1
	}
	return evs
}

// rollback restores the snapshot of the first mispredicted frame and
// resimulates up to the current frame. Events produced on the way are
// dropped.
func (s *P2PSession) rollback() error {
	from := s.firstIncorrect
	snap, ok := s.ring.get(from)
	if !ok {
		return fmt.Errorf("%w: frame %d at current frame %d", ErrSnapshotMissing, from, s.frame)
	}

	s.setState(StateRollingBack)
	s.sim.Load(&snap.state)
	if s.overFrame > from {
		s.overFrame = -1
	}
	for f := from; f < s.frame; f++ {
		if f > from {
			s.ring.save(f, s.sim)
		}
		s.step(f)
	}

	depth := s.frame - from
	s.rollbacks++
	s.rollbackFrames += depth
	s.lastRollback = depth
	s.firstIncorrect = -1
	s.setState(StateRunning)
	return nil
}

// checkFinished ends the session once the match is over on a frame whose
// inputs are all confirmed.
func (s *P2PSession) checkFinished() bool {
	if s.state == StateFinished {
		return true
	}
	if s.overFrame < 0 || s.firstIncorrect >= 0 || s.confirmedFrame() < s.overFrame-1 {
		return false
	}
	s.setState(StateFinished)
	return true
}

func (s *P2PSession) commitLocalInput(now time.Time) {
	s.queues[s.local].confirm(s.frame+s.cfg.InputDelay, s.pending)
	s.hasPending = false
	for _, p := range s.peers {
		if p.state == peerRunning {
			s.sendInputs(p, now)
		}
	}
}

func (s *P2PSession) touch(p *peer, now time.Time) {
	p.lastRecv = now
	if p.interrupted {
		p.interrupted = false
		s.emit(Event{Kind: EventNetworkResumed, Peer: p.addr})
		log.Printf("📶 Connection to %s resumed", p.addr)
	}
}

func (s *P2PSession) handleMessage(p *peer, m *Message, now time.Time) {
	switch m.Kind {
	case MsgSyncRequest:
		s.send(p, &Message{Kind: MsgSyncReply, Nonce: m.Nonce, Ack: -1}, now)

	case MsgSyncReply:
		if p.state != peerSyncing || p.nonce == 0 || m.Nonce != p.nonce {
			return
		}
		p.syncLeft--
		p.nonce = 0
		if p.syncLeft > 0 {
			s.emit(Event{
				Kind:  EventSynchronizing,
				Peer:  p.addr,
				Count: s.cfg.SyncRoundTrips - p.syncLeft,
				Total: s.cfg.SyncRoundTrips,
			})
			s.sendSyncRequest(p, now)
			return
		}
		p.state = peerRunning
		s.emit(Event{Kind: EventSynchronized, Peer: p.addr})
		log.Printf("🤝 Synchronized with %s", p.addr)
		s.checkRunning()

	case MsgInput:
		s.receiveInputs(p, m)
		p.acked = max(p.acked, int(m.Ack))

	case MsgKeepAlive:
		p.acked = max(p.acked, int(m.Ack))

	case MsgChecksum:
		s.receiveChecksum(p, int(m.Frame), m.Checksum)
	}
}

func (s *P2PSession) checkRunning() {
	if s.state != StateSynchronizing {
		return
	}
	for _, p := range s.peers {
		if p.state == peerSyncing {
			return
		}
	}
	s.setState(StateRunning)
}

// receiveInputs confirms a run of remote inputs and remembers the earliest
// frame that was simulated with a wrong guess.
func (s *P2PSession) receiveInputs(p *peer, m *Message) {
	q := s.queues[p.handle]
	for i, b := range m.Inputs {
		frame := int(m.Start) + i
		mispredicted, ok := q.confirm(frame, game.Input(b))
		if !ok {
			if frame > q.lastConfirmed() {
				break // gap; the sender will resend from our ack
			}
			continue
		}
		if mispredicted && (s.firstIncorrect < 0 || frame < s.firstIncorrect) {
			s.firstIncorrect = frame
		}
	}
}

func (s *P2PSession) servicePeer(p *peer, now time.Time) {
	switch p.state {
	case peerSyncing:
		if p.lastSyncSent.IsZero() || now.Sub(p.lastSyncSent) >= s.cfg.SyncRetryInterval {
			s.sendSyncRequest(p, now)
		}

	case peerRunning:
		if now.Sub(p.lastSend) >= s.cfg.ResendInterval {
			s.sendInputs(p, now)
		}

		silent := now.Sub(p.lastRecv)
		if silent >= s.cfg.DisconnectTimeout {
			p.state = peerDisconnected
			s.emit(Event{Kind: EventDisconnected, Peer: p.addr})
			log.Printf("🔌 Peer %s disconnected after %v of silence", p.addr, silent.Round(time.Millisecond))
			return
		}
		if !p.interrupted && s.cfg.DisconnectNotifyStart > 0 && silent >= s.cfg.DisconnectNotifyStart {
			p.interrupted = true
			s.emit(Event{Kind: EventNetworkInterrupted, Peer: p.addr, Timeout: s.cfg.DisconnectTimeout - silent})
			log.Printf("📵 No traffic from %s for %v", p.addr, silent.Round(time.Millisecond))
		}
	}
}

// sendSyncRequest sends the outstanding round trip's nonce. A new nonce is
// drawn only after the previous round trip completed; retries reuse it.
func (s *P2PSession) sendSyncRequest(p *peer, now time.Time) {
	if p.nonce == 0 {
		p.nonce = rand.Uint32() | 1 // never zero
	}
	p.lastSyncSent = now
	s.send(p, &Message{Kind: MsgSyncRequest, Nonce: p.nonce, Ack: -1}, now)
}

// sendInputs resends every local input the peer has not acknowledged.
func (s *P2PSession) sendInputs(p *peer, now time.Time) {
	start := p.acked + 1
	run := s.queues[s.local].run(start, maxInputsPerMessage)

	m := Message{Kind: MsgKeepAlive, Ack: int32(s.queues[p.handle].lastConfirmed())}
	if len(run) > 0 {
		s.wire = s.wire[:0]
		for _, in := range run {
			s.wire = append(s.wire, byte(in))
		}
		m.Kind = MsgInput
		m.Start = int32(start)
		m.Inputs = s.wire
	}
	s.send(p, &m, now)
}

func (s *P2PSession) send(p *peer, m *Message, now time.Time) {
	data, err := EncodeMessage(m)
	if err != nil {
		s.sendErrors++
		return
	}
	if err := s.sock.SendTo(p.addr, data); err != nil {
		s.sendErrors++
		return
	}
	p.lastSend = now
}

// reportChecksums sends the checksum of every DesyncInterval-th frame once
// all inputs leading to it are confirmed.
func (s *P2PSession) reportChecksums(now time.Time) {
	if s.cfg.DesyncInterval <= 0 {
		return
	}
	for s.nextChecksum <= s.confirmedFrame()+1 && s.nextChecksum <= s.frame {
		f := s.nextChecksum
		s.nextChecksum += s.cfg.DesyncInterval

		var sum uint64
		if f == s.frame {
			sum = s.sim.Checksum()
		} else if snap, ok := s.ring.get(f); ok {
			sum = snap.checksum
		} else {
			continue
		}
		s.localChecksums[f] = sum

		for _, p := range s.peers {
			if p.state == peerDisconnected {
				continue
			}
			s.send(p, &Message{Kind: MsgChecksum, Frame: int32(f), Checksum: sum, Ack: int32(s.queues[p.handle].lastConfirmed())}, now)
			if remote, ok := p.checksums[f]; ok {
				delete(p.checksums, f)
				s.compareChecksum(p, f, sum, remote)
			}
		}
		s.pruneChecksums(f)
	}
}

func (s *P2PSession) receiveChecksum(p *peer, frame int, remote uint64) {
	if local, ok := s.localChecksums[frame]; ok {
		s.compareChecksum(p, frame, local, remote)
		return
	}
	p.checksums[frame] = remote
}

func (s *P2PSession) compareChecksum(p *peer, frame int, local, remote uint64) {
	if local == remote {
		return
	}
	s.desyncs++
	s.emit(Event{Kind: EventDesyncDetected, Peer: p.addr, Frame: frame, Local: local, Remote: remote})
	log.Printf("⚠️  Desync with %s at frame %d: local %016x remote %016x", p.addr, frame, local, remote)
}

// pruneChecksums forgets reports far older than the newest one.
func (s *P2PSession) pruneChecksums(newest int) {
	horizon := newest - 16*s.cfg.DesyncInterval
	for f := range s.localChecksums {
		if f < horizon {
			delete(s.localChecksums, f)
		}
	}
	for _, p := range s.peers {
		for f := range p.checksums {
			if f < horizon {
				delete(p.checksums, f)
			}
		}
	}
}
