package session

import (
	"sync/atomic"
)

// cacheLineSize is the typical CPU cache line size (64 bytes on x86-64)
const cacheLineSize = 64

// padding keeps the producer and consumer cursors on separate cache lines
type padding [cacheLineSize]byte

// Datagram is one message received from a peer.
type Datagram struct {
	From    PeerID
	Payload []byte
}

// Inbox carries datagrams from a transport's reader goroutine to the
// simulation goroutine.
//
// It is a single-producer single-consumer ring: exactly one goroutine may
// call Push and exactly one other goroutine may call Drain. No locks, no CAS,
// only atomic loads and stores of the two cursors.
//
// Memory Layout (prevents false sharing):
// [padding][head][padding][tail][padding][mask, data]
type Inbox struct {
	_pad0 padding
	head  uint64 // write position, producer only
	_pad1 padding
	tail  uint64 // read position, consumer only
	_pad2 padding
	mask  uint64
	data  []Datagram

	dropped atomic.Uint64
}

// NewInbox creates an inbox holding at least capacity datagrams, rounded up
// to a power of two.
func NewInbox(capacity int) *Inbox {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Inbox{
		mask: uint64(size - 1),
		data: make([]Datagram, size),
	}
}

// Push enqueues d (producer only). When the ring is full the datagram is
// dropped and counted; the session's resend logic recovers it.
func (q *Inbox) Push(d Datagram) bool {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)

	if head-tail > q.mask {
		q.dropped.Add(1)
		return false
	}

	q.data[head&q.mask] = d
	atomic.StoreUint64(&q.head, head+1)
	return true
}

// Drain appends every queued datagram to dst (consumer only).
func (q *Inbox) Drain(dst []Datagram) []Datagram {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)

	for ; tail < head; tail++ {
		slot := &q.data[tail&q.mask]
		dst = append(dst, *slot)
		*slot = Datagram{}
	}
	atomic.StoreUint64(&q.tail, tail)
	return dst
}

// Len returns approximate queue length
func (q *Inbox) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Dropped returns how many datagrams were refused because the ring was full.
func (q *Inbox) Dropped() uint64 {
	return q.dropped.Load()
}
