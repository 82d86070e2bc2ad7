// Package match runs one match: it ticks the session at a fixed rate, feeds
// it local inputs and publishes frames for presentation.
package match

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/session"
)

// Metrics receives match health. api.PromMetrics implements it.
type Metrics interface {
	RecordTick(d time.Duration)
	RecordRollback(frames int)
	SetAwaitingPeer(awaiting bool)
	RecordDesync()
	RecordSessionEvent(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordTick(time.Duration) {}
func (NopMetrics) RecordRollback(int) {}
func (NopMetrics) SetAwaitingPeer(bool) {}
func (NopMetrics) RecordDesync() {}
func (NopMetrics) RecordSessionEvent(string) {}

// Recorder keeps a durable trail of the match. journal.Journal implements
// it. Record must not block.
type Recorder interface {
	Record(frame int, kind string, payload any) bool
}

// FrameSink receives every published frame on the simulation goroutine and
// must copy what it keeps.
type FrameSink interface {
	PublishFrame(f *Frame)
}

// Options wires a Runner to its collaborators. Nil fields are replaced with
// no-op implementations.
type Options struct {
	TickRate int
	Input    InputSource
	Metrics  Metrics
	Recorder Recorder
	Sink     FrameSink
}

// Runner owns the world and the session and is the only goroutine that
// touches them once started.
type Runner struct {
	opts   Options
	world  *game.World
	lobby  *session.Lobby
	sess   session.Session
	frames *FramePool

	lastRollbacks int
	awaiting      bool
	finished      bool

	mu       sync.Mutex
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	err      error
}

// NewRunner runs a match that starts once lobby has a full roster.
func NewRunner(world *game.World, lobby *session.Lobby, opts Options) *Runner {
	r := newRunner(world, opts)
	r.lobby = lobby
	return r
}

// NewSessionRunner runs an already started session, such as a sync test.
func NewSessionRunner(world *game.World, sess session.Session, opts Options) *Runner {
	r := newRunner(world, opts)
	r.sess = sess
	return r
}

func newRunner(world *game.World, opts Options) *Runner {
	if opts.TickRate <= 0 {
		opts.TickRate = game.TickRate
	}
	if opts.Input == nil {
		opts.Input = Idle{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	return &Runner{
		opts:     opts,
		world:    world,
		frames:   NewFramePool(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the tick loop.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.ticker = time.NewTicker(time.Second / time.Duration(r.opts.TickRate))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.ticker.C:
				if err := r.Tick(); err != nil {
					r.fail(err)
					return
				}
			case <-r.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Match runner started at %d TPS", r.opts.TickRate)
}

// Stop abandons the match. The session and its snapshots are discarded.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.ticker.Stop()
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.sess = nil
	log.Println("🛑 Match runner stopped")
}

// Done is closed when the match finished or failed. A finished runner keeps
// servicing the peer until Stop so it can confirm the last frames too.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err returns the error that ended the match, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Latest returns the most recently published frame, or nil.
func (r *Runner) Latest() *Frame {
	return r.frames.AcquireRead()
}

func (r *Runner) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	log.Printf("❌ Match aborted: %v", err)
	close(r.done)
}

// Tick runs one iteration: poll the lobby until a session exists, add local
// inputs, advance, then report. Non-fatal session statuses are absorbed;
// anything else is returned.
func (r *Runner) Tick() error {
	start := time.Now()

	if r.sess == nil {
		sess, _ := r.lobby.Poll()
		if sess == nil {
			r.publish(nil, session.Status{State: r.lobby.State()})
			return nil
		}
		r.sess = sess
	}
	if r.finished {
		r.sess.Poll()
		return nil
	}

	s := r.world.State()
	for _, h := range r.sess.LocalHandles() {
		if err := r.sess.AddLocalInput(h, r.opts.Input.Input(s, game.Team(h))); err != nil {
			return fmt.Errorf("add local input: %w", err)
		}
	}

	evs, err := r.sess.AdvanceFrame()
	switch {
	case err == nil:
		if r.awaiting {
			r.awaiting = false
			r.opts.Metrics.SetAwaitingPeer(false)
			log.Printf("▶️  Peer caught up at frame %d", r.sess.Status().Frame)
		}
	case errors.Is(err, session.ErrPredictionThreshold):
		if !r.awaiting {
			r.awaiting = true
			r.opts.Metrics.SetAwaitingPeer(true)
			log.Printf("⏳ Waiting for peer at frame %d", r.sess.Status().Frame)
		}
	case errors.Is(err, session.ErrNotSynchronized), errors.Is(err, session.ErrSessionFinished):
	default:
		return err
	}

	r.handleSessionEvents()
	r.recordGameEvents(evs)

	st := r.sess.Status()
	if st.Rollbacks > r.lastRollbacks {
		r.opts.Metrics.RecordRollback(st.LastRollback)
		r.lastRollbacks = st.Rollbacks
	}
	r.publish(evs, st)
	r.opts.Metrics.RecordTick(time.Since(start))

	if st.State == session.StateFinished && !r.finished {
		r.finish()
	}
	return nil
}

func (r *Runner) handleSessionEvents() {
	for _, ev := range r.sess.Events() {
		r.opts.Metrics.RecordSessionEvent(ev.Kind.String())
		switch ev.Kind {
		case session.EventSynchronizing:
			log.Printf("🔄 Synchronizing with %s (%d/%d)", ev.Peer, ev.Count, ev.Total)
		case session.EventDesyncDetected:
			r.opts.Metrics.RecordDesync()
		}
		if r.opts.Recorder != nil {
			r.opts.Recorder.Record(r.world.State().Tick, "session_"+ev.Kind.String(), ev)
		}
	}
}

func (r *Runner) recordGameEvents(evs []game.Event) {
	if r.opts.Recorder == nil {
		return
	}
	for _, ev := range evs {
		r.opts.Recorder.Record(ev.Tick, ev.Type.String(), ev)
	}
}

func (r *Runner) publish(evs []game.Event, st session.Status) {
	f := r.frames.AcquireWrite()
	fill(f, r.world.State())
	f.Events = append(f.Events, evs...)
	f.SessionState = st.State
	f.AwaitingPeer = st.AwaitingPeer
	f.ConfirmedFrame = st.ConfirmedFrame
	f.Rollbacks = st.Rollbacks
	r.frames.PublishWrite()

	if r.opts.Sink != nil {
		r.opts.Sink.PublishFrame(f)
	}
}

func (r *Runner) finish() {
	r.finished = true
	res := r.world.State().Result
	if res.Draw() {
		log.Printf("🏁 Match over: draw, %d to %d cells", res.Team0Cells, res.Team1Cells)
	} else {
		log.Printf("🏆 Match over: %s wins, %d to %d cells", res.Winner, res.Team0Cells, res.Team1Cells)
	}
	if r.opts.Recorder != nil {
		r.opts.Recorder.Record(r.world.State().Tick, "result", res)
	}
	close(r.done)
}
