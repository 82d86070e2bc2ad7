package feed

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/match"
)

// Publisher fans frames out to every connected subscriber. It implements
// match.FrameSink.
type Publisher struct {
	socketPath string
	listener   net.Listener

	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Drop-oldest queue between the simulation and the broadcaster.
	frameCh chan *FrameMessage

	config   ConfigMessage
	configMu sync.RWMutex

	clientCount   int32 // atomic
	framesSent    int64 // atomic
	droppedFrames int64 // atomic
	pongs         int64 // atomic

	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewPublisher(socketPath string) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		frameCh:    make(chan *FrameMessage, 8),
		stopCh:     make(chan struct{}),
	}
}

// SetConfig sets what new subscribers are told on connect.
func (p *Publisher) SetConfig(cfg ConfigMessage) {
	p.configMu.Lock()
	p.config = cfg
	p.configMu.Unlock()
}

func (p *Publisher) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil
	}

	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		atomic.StoreInt32(&p.running, 0)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Printf("📡 Frame feed started on %s", PlatformAddress(p.socketPath))
	return nil
}

func (p *Publisher) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}

	close(p.stopCh)
	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("📡 Frame feed stopped")
}

// PublishFrame copies f and queues it for broadcast. It never blocks: when
// the queue is full the oldest frame is dropped.
func (p *Publisher) PublishFrame(f *match.Frame) {
	if atomic.LoadInt32(&p.running) == 0 {
		return
	}
	msg := frameToMessage(f)

	select {
	case p.frameCh <- msg:
	default:
		select {
		case <-p.frameCh:
			atomic.AddInt64(&p.droppedFrames, 1)
		default:
		}
		select {
		case p.frameCh <- msg:
		default:
		}
	}
}

// Stats returns publisher counters.
func (p *Publisher) Stats() (clients int, sent int64, dropped int64) {
	return int(atomic.LoadInt32(&p.clientCount)),
		atomic.LoadInt64(&p.framesSent),
		atomic.LoadInt64(&p.droppedFrames)
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for atomic.LoadInt32(&p.running) == 1 {
		conn, err := p.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&p.running) == 0 {
				return
			}
			log.Printf("⚠️ Feed accept error: %v", err)
			continue
		}
		p.addClient(conn)
	}
}

func (p *Publisher) addClient(conn net.Conn) {
	p.configMu.RLock()
	config := p.config
	p.configMu.RUnlock()

	// Config goes out before the client joins the broadcast set so it is
	// always the first message.
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeConfig, config); err != nil {
		log.Printf("⚠️ Failed to send config to subscriber: %v", err)
		conn.Close()
		return
	}

	p.clientsMu.Lock()
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := atomic.AddInt32(&p.clientCount, 1)
	log.Printf("✅ Feed subscriber connected (total: %d)", count)

	p.wg.Add(1)
	go p.readLoop(conn)
}

// readLoop consumes pongs and notices closed subscribers.
func (p *Publisher) readLoop(conn net.Conn) {
	defer p.wg.Done()
	defer p.removeClient(conn)

	for {
		msgType, _, err := ReadMessage(conn)
		if err != nil {
			return
		}
		if msgType == MsgTypePong {
			atomic.AddInt64(&p.pongs, 1)
		}
	}
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := atomic.AddInt32(&p.clientCount, -1)
		log.Printf("🔌 Feed subscriber disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	ping := time.NewTicker(PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case msg := <-p.frameCh:
			if p.broadcast(MsgTypeFrame, msg) {
				atomic.AddInt64(&p.framesSent, 1)
			}
		case <-ping.C:
			p.broadcast(MsgTypePing, nil)
		}
	}
}

// broadcast writes one message to every client and reports whether at least
// one received it.
func (p *Publisher) broadcast(msgType byte, msg interface{}) bool {
	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, msgType, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		p.removeClient(conn)
	}
	return len(failed) < len(clients)
}

func frameToMessage(f *match.Frame) *FrameMessage {
	msg := &FrameMessage{
		Sequence:       f.Sequence,
		Timestamp:      f.Timestamp.UnixNano(),
		Tick:           f.Tick,
		TimerTicks:     f.TimerTicks,
		SecondsLeft:    f.SecondsLeft,
		Over:           f.Over,
		Result:         f.Result,
		SessionState:   f.SessionState,
		AwaitingPeer:   f.AwaitingPeer,
		ConfirmedFrame: f.ConfirmedFrame,
		Rollbacks:      f.Rollbacks,
	}

	msg.Entities = make([]EntityData, len(f.Entities))
	for i, e := range f.Entities {
		msg.Entities[i] = EntityData{
			ID:     uint32(e.ID),
			Kind:   e.Kind,
			Team:   e.Team,
			Item:   e.Item,
			X:      e.Pos.X,
			Y:      e.Pos.Y,
			HX:     e.Half.X,
			HY:     e.Half.Y,
			Radius: e.Radius,
		}
	}
	if len(f.Events) > 0 {
		msg.Events = append([]game.Event(nil), f.Events...)
	}
	return msg
}
