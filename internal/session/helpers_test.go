package session

import (
	"time"

	"online-breakout/internal/game"
)

// fakeClock is advanced by hand so timeouts are reproducible.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type flight struct {
	deliverAt int
	to        PeerID
	d         Datagram
}

// fakeNet delivers datagrams after a fixed number of ticks and drops every
// dropEvery-th one.
type fakeNet struct {
	tick      int
	latency   int
	dropEvery int
	dropAll   bool
	sent      int
	inflight  []flight
	sockets   map[PeerID]*fakeSocket
}

func newFakeNet(latency, dropEvery int) *fakeNet {
	return &fakeNet{latency: latency, dropEvery: dropEvery, sockets: make(map[PeerID]*fakeSocket)}
}

func (n *fakeNet) socket(addr PeerID) *fakeSocket {
	s := &fakeSocket{net: n, addr: addr, inbox: NewInbox(1024)}
	n.sockets[addr] = s
	return s
}

func (n *fakeNet) advance() {
	n.tick++
	keep := n.inflight[:0]
	for _, f := range n.inflight {
		if f.deliverAt > n.tick {
			keep = append(keep, f)
			continue
		}
		if dst, ok := n.sockets[f.to]; ok {
			dst.inbox.Push(f.d)
		}
	}
	n.inflight = keep
}

type fakeSocket struct {
	net   *fakeNet
	addr  PeerID
	inbox *Inbox
}

func (s *fakeSocket) SendTo(to PeerID, payload []byte) error {
	n := s.net
	n.sent++
	if n.dropAll || (n.dropEvery > 0 && n.sent%n.dropEvery == 0) {
		return nil
	}
	n.inflight = append(n.inflight, flight{
		deliverAt: n.tick + n.latency,
		to:        to,
		d:         Datagram{From: s.addr, Payload: append([]byte(nil), payload...)},
	})
	return nil
}

func (s *fakeSocket) Receive(dst []Datagram) []Datagram {
	return s.inbox.Drain(dst)
}

// script is a reproducible input pattern that changes often enough to
// force mispredictions.
func script(handle, frame int) game.Input {
	switch (frame/7 + handle*3 + frame/23) % 4 {
	case 0:
		return 0
	case 1:
		return game.InputLeft
	case 2:
		return game.InputRight
	default:
		return game.InputLeft | game.InputRight
	}
}

// scriptedInputs is what both peers eventually confirm for frame: each
// player's scripted input delayed by delay frames.
func scriptedInputs(frame, delay, players int) []game.Input {
	inputs := make([]game.Input, players)
	if frame < delay {
		return inputs
	}
	for h := range inputs {
		inputs[h] = script(h, frame-delay)
	}
	return inputs
}

func startPair(cfg Config, net *fakeNet, a, b Simulator) (*P2PSession, *P2PSession, error) {
	sa, sb := net.socket("a"), net.socket("b")

	ba := NewBuilderWithConfig(cfg)
	if err := ba.AddPlayer(LocalPlayer(), 0); err != nil {
		return nil, nil, err
	}
	if err := ba.AddPlayer(RemotePlayer("b"), 1); err != nil {
		return nil, nil, err
	}
	pa, err := ba.StartP2P(sa, a)
	if err != nil {
		return nil, nil, err
	}

	bb := NewBuilderWithConfig(cfg)
	if err := bb.AddPlayer(RemotePlayer("a"), 0); err != nil {
		return nil, nil, err
	}
	if err := bb.AddPlayer(LocalPlayer(), 1); err != nil {
		return nil, nil, err
	}
	pb, err := bb.StartP2P(sb, b)
	if err != nil {
		return nil, nil, err
	}
	return pa, pb, nil
}
