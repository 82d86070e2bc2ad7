// Package transport moves session datagrams between peers. Every transport
// reads on its own goroutine and hands datagrams to the simulation goroutine
// through a session.Inbox.
package transport

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"online-breakout/internal/session"
)

var ErrClosed = errors.New("transport: closed")

// LinkConfig shapes a loopback link.
type LinkConfig struct {
	Latency time.Duration // one-way delay
	Loss    float64       // probability in [0, 1) that a datagram is dropped
	Seed    int64         // loss RNG seed
	Buffer  int           // datagrams in flight per direction
}

// DefaultLinkConfig is a perfect link.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{Buffer: 256}
}

type packet struct {
	due time.Time
	d   session.Datagram
}

// Loopback is one end of an in-memory link between two sessions in the same
// process. SendTo is called from the sender's simulation goroutine only; a
// delivery goroutine per end pushes arrivals into the inbox once their delay
// has passed.
type Loopback struct {
	addr  session.PeerID
	cfg   LinkConfig
	rng   *rand.Rand
	inbox *session.Inbox
	in    chan packet
	peer  *Loopback

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewLoopbackPair connects two endpoints named a and b. Both run until
// Close.
func NewLoopbackPair(a, b session.PeerID, cfg LinkConfig) (*Loopback, *Loopback) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultLinkConfig().Buffer
	}
	la := newLoopback(a, cfg, cfg.Seed)
	lb := newLoopback(b, cfg, cfg.Seed+1)
	la.peer, lb.peer = lb, la
	la.start()
	lb.start()
	return la, lb
}

func newLoopback(addr session.PeerID, cfg LinkConfig, seed int64) *Loopback {
	return &Loopback{
		addr:   addr,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		inbox:  session.NewInbox(cfg.Buffer),
		in:     make(chan packet, cfg.Buffer),
		stopCh: make(chan struct{}),
	}
}

func (l *Loopback) start() {
	l.wg.Add(1)
	go l.deliverLoop()
}

// Addr is the name the other end sees datagrams from.
func (l *Loopback) Addr() session.PeerID {
	return l.addr
}

// SendTo queues payload for the other end. Lost datagrams and a full link
// are silent, as on a real network.
func (l *Loopback) SendTo(to session.PeerID, payload []byte) error {
	select {
	case <-l.stopCh:
		return ErrClosed
	default:
	}
	if to != l.peer.addr {
		return nil
	}

	l.sent.Add(1)
	if l.cfg.Loss > 0 && l.rng.Float64() < l.cfg.Loss {
		l.dropped.Add(1)
		return nil
	}

	p := packet{
		due: time.Now().Add(l.cfg.Latency),
		d:   session.Datagram{From: l.addr, Payload: append([]byte(nil), payload...)},
	}
	select {
	case l.peer.in <- p:
	default:
		l.dropped.Add(1)
	}
	return nil
}

// Receive drains datagrams that have arrived.
func (l *Loopback) Receive(dst []session.Datagram) []session.Datagram {
	return l.inbox.Drain(dst)
}

// deliverLoop is the only producer of the inbox. Packets are queued in send
// order with a fixed delay, so waiting on the head keeps them ordered.
func (l *Loopback) deliverLoop() {
	defer l.wg.Done()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case p := <-l.in:
			if wait := time.Until(p.due); wait > 0 {
				timer.Reset(wait)
				select {
				case <-l.stopCh:
					return
				case <-timer.C:
				}
			}
			if !l.inbox.Push(p.d) {
				l.dropped.Add(1)
			}
		}
	}
}

// Stats returns datagrams sent and dropped by this end.
func (l *Loopback) Stats() (sent, dropped int64) {
	return l.sent.Load(), l.dropped.Load()
}

// Close stops this end's delivery goroutine.
func (l *Loopback) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	l.wg.Wait()
	return nil
}
