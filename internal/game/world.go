package game

// World is the simulation context for one match. It owns the entity store
// and the per-tick event queue, and every phase of a tick goes through it.
//
// A World is not safe for concurrent use; exactly one goroutine steps it.
type World struct {
	state  *State
	events []Event
}

// NewWorld wraps an existing store. Tests use it to build scenarios.
func NewWorld(s *State) *World {
	return &World{state: s, events: make([]Event, 0, 32)}
}

// NewMatch returns a world set up for kickoff: walls, both halves of the
// grid, both paddles and one ball per team.
func NewMatch() *World {
	s := NewEmptyState()
	setupField(s)

	s.SpawnPaddle(Team0, Vec2{X: 0, Y: -PaddleY})
	s.SpawnPaddle(Team1, Vec2{X: 0, Y: PaddleY})

	diag := FirstBallSpeed / 1.4142135623730951
	s.SpawnBall(Team0, Vec2{X: 0, Y: -300}, Vec2{X: diag, Y: diag})
	s.SpawnBall(Team1, Vec2{X: 0, Y: 300}, Vec2{X: -diag, Y: -diag})

	return NewWorld(s)
}

// State exposes the store for read access. Callers must not keep it across
// a Step.
func (w *World) State() *State {
	return w.state
}

// Step advances the match by one tick using one input per team, indexed by
// team number. Missing inputs count as no buttons held.
//
// The returned events are valid until the next call.
func (w *World) Step(inputs []Input) []Event {
	s := w.state
	w.events = w.events[:0]

	if s.Over {
		s.Tick++
		return w.events
	}

	movePaddles(s, inputs)
	moveBalls(s)
	w.resolveCollisions()

	w.spawnItems()
	moveItems(s)
	w.collectItems()
	w.applyItemEffects()

	w.captureCells()
	w.respawnBalls()
	w.runTimer()

	s.Tick++
	return w.events
}

// Save deep-copies the store into dst.
func (w *World) Save(dst *State) {
	w.state.CopyTo(dst)
}

// Load replaces the store with a deep copy of src.
func (w *World) Load(src *State) {
	src.CopyTo(w.state)
}

// Over reports whether the result has been written.
func (w *World) Over() bool {
	return w.state.Over
}

// Checksum digests the current store.
func (w *World) Checksum() uint64 {
	return Checksum(w.state)
}

func (w *World) emit(ev Event) {
	ev.Tick = w.state.Tick
	w.events = append(w.events, ev)
}

func inputFor(inputs []Input, team Team) Input {
	if int(team) < len(inputs) {
		return inputs[team]
	}
	return 0
}
