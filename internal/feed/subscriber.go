package feed

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber receives frames from a Publisher and reconnects when the
// simulation process restarts.
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex

	latestFrame atomic.Value // *FrameMessage

	config   ConfigMessage
	configMu sync.RWMutex
	configCh chan ConfigMessage

	framesReceived int64 // atomic
	reconnects     int64 // atomic
	errors         int64 // atomic

	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup

	onFrame      func(*FrameMessage)
	onConfig     func(*ConfigMessage)
	onDisconnect func()
}

func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		configCh:   make(chan ConfigMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnFrame sets a callback run on the read goroutine for every frame.
func (s *Subscriber) OnFrame(fn func(*FrameMessage)) {
	s.onFrame = fn
}

func (s *Subscriber) OnConfig(fn func(*ConfigMessage)) {
	s.onConfig = fn
}

func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

func (s *Subscriber) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("📡 Feed subscriber connecting to %s", PlatformAddress(s.socketPath))
	return nil
}

func (s *Subscriber) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("📡 Feed subscriber stopped")
}

// LatestFrame returns the most recent frame, or nil.
func (s *Subscriber) LatestFrame() *FrameMessage {
	if val := s.latestFrame.Load(); val != nil {
		return val.(*FrameMessage)
	}
	return nil
}

func (s *Subscriber) Config() ConfigMessage {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// WaitForConfig blocks until the first config arrives or timeout.
func (s *Subscriber) WaitForConfig(timeout time.Duration) *ConfigMessage {
	select {
	case cfg := <-s.configCh:
		return &cfg
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

func (s *Subscriber) Stats() (received int64, reconnects int64, errors int64) {
	return atomic.LoadInt64(&s.framesReceived),
		atomic.LoadInt64(&s.reconnects),
		atomic.LoadInt64(&s.errors)
}

func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.running) == 1 {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}
		atomic.AddInt64(&s.reconnects, 1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	// Reads block without a deadline so framing is never lost mid-message.
	// Stop closes the connection to end the loop.
	for atomic.LoadInt32(&s.running) == 1 {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Println("🔌 Feed publisher closed connection")
				return
			}
			if atomic.LoadInt32(&s.running) == 1 {
				log.Printf("⚠️ Feed read error: %v", err)
				atomic.AddInt64(&s.errors, 1)
			}
			return
		}

		switch msgType {
		case MsgTypeFrame:
			s.handleFrame(data)
		case MsgTypeConfig:
			s.handleConfig(data)
		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (s *Subscriber) handleFrame(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode frame: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.latestFrame.Store(frame)
	atomic.AddInt64(&s.framesReceived, 1)

	if s.onFrame != nil {
		s.onFrame(frame)
	}
}

func (s *Subscriber) handleConfig(data []byte) {
	config, err := DecodeConfig(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode config: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.configMu.Lock()
	s.config = *config
	s.configMu.Unlock()

	log.Printf("📺 Feed config: %s, %.0fx%.0f @ %d TPS", config.Role, config.FieldWidth, config.FieldHeight, config.TickRate)

	select {
	case s.configCh <- *config:
	default:
	}
	if s.onConfig != nil {
		s.onConfig(config)
	}
}
