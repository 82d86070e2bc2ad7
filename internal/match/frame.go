package match

import (
	"sync/atomic"
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/session"
)

// EntityView is one drawable entity. Balls carry Radius, the rest Half.
type EntityView struct {
	ID     game.EntityID `json:"id"`
	Kind   game.Kind     `json:"kind"`
	Team   game.Team     `json:"team"`
	Item   game.ItemKind `json:"item,omitempty"`
	Pos    game.Vec2     `json:"pos"`
	Half   game.Vec2     `json:"half"`
	Radius float64       `json:"radius,omitempty"`
}

// Frame is what presentation sees after a tick. It is a value copy; nothing
// in it aliases the simulation.
type Frame struct {
	Sequence  uint64    // monotonic per pool
	Timestamp time.Time // when the frame was built

	Tick        int // simulation tick, equals the session frame
	Entities    []EntityView
	TimerTicks  int
	SecondsLeft int
	Over        bool
	Result      game.GameResult

	// Events produced by this tick. Resimulated frames never show up here.
	Events []game.Event

	SessionState   session.State
	AwaitingPeer   bool
	ConfirmedFrame int
	Rollbacks      int
}

// FramePool triple-buffers frames so the presentation side never waits for
// the simulation and never sees a half-written frame.
type FramePool struct {
	frames   [3]Frame
	writeIdx uint32 // atomic - producer index
	readIdx  uint32 // atomic - consumer index
	sequence uint64 // atomic
}

// NewFramePool pre-allocates entity storage for a full field.
func NewFramePool() *FramePool {
	pool := &FramePool{}
	capacity := 2*game.FieldCols*game.FieldRows + game.MaxBallCount + 8
	for i := range pool.frames {
		pool.frames[i] = Frame{
			Entities: make([]EntityView, 0, capacity),
			Events:   make([]game.Event, 0, 32),
		}
	}
	pool.readIdx = ^uint32(0)
	return pool
}

// AcquireWrite gets the next write slot (producer only).
func (p *FramePool) AcquireWrite() *Frame {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	f := &p.frames[idx]
	f.Entities = f.Entities[:0]
	f.Events = f.Events[:0]
	f.Sequence = atomic.AddUint64(&p.sequence, 1)
	f.Timestamp = time.Now()
	return f
}

// PublishWrite makes the slot returned by the last AcquireWrite readable.
func (p *FramePool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns the latest published frame, or nil before the first.
func (p *FramePool) AcquireRead() *Frame {
	idx := atomic.LoadUint32(&p.readIdx)
	if idx == ^uint32(0) {
		return nil
	}
	return &p.frames[idx%3]
}

// fill copies the store into f. Walls are static and left out.
func fill(f *Frame, s *game.State) {
	f.Tick = s.Tick
	f.TimerTicks = s.TimerTicks
	f.SecondsLeft = s.SecondsLeft()
	f.Over = s.Over
	f.Result = s.Result

	for i := range s.Cells {
		c := &s.Cells[i]
		f.Entities = append(f.Entities, EntityView{ID: c.ID, Kind: game.KindCell, Team: c.Team, Pos: c.Pos, Half: c.HalfSize})
	}
	for i := range s.Paddles {
		p := &s.Paddles[i]
		f.Entities = append(f.Entities, EntityView{ID: p.ID, Kind: game.KindPaddle, Team: p.Team, Pos: p.Pos, Half: p.HalfSize})
	}
	for i := range s.Items {
		it := &s.Items[i]
		half := game.Vec2{X: game.ItemHalfSize, Y: game.ItemHalfSize}
		f.Entities = append(f.Entities, EntityView{ID: it.ID, Kind: game.KindItem, Team: it.Team, Item: it.Kind, Pos: it.Pos, Half: half})
	}
	for i := range s.Balls {
		b := &s.Balls[i]
		f.Entities = append(f.Entities, EntityView{ID: b.ID, Kind: game.KindBall, Team: b.Team, Pos: b.Pos, Radius: b.Radius})
	}
}
