package session

import "online-breakout/internal/game"

// inputQueue is one player's input history for the whole match, indexed by
// frame. A match lasts a bounded number of frames, so the history is kept in
// full; it doubles as the resend buffer for local players.
type inputQueue struct {
	// confirmed[f] is the real input for frame f. Frames arrive in order.
	confirmed []game.Input
	// used[f] is what the simulation was fed for frame f, confirmed or
	// predicted.
	used []game.Input
}

func newInputQueue(capacity int) *inputQueue {
	return &inputQueue{
		confirmed: make([]game.Input, 0, capacity),
		used:      make([]game.Input, 0, capacity),
	}
}

// lastConfirmed returns the newest confirmed frame, -1 when none.
func (q *inputQueue) lastConfirmed() int {
	return len(q.confirmed) - 1
}

// confirm records the real input for frame. Only the next frame in sequence
// is accepted; duplicates and gaps report ok=false. mispredicted is set when
// the frame was already simulated with a different input.
func (q *inputQueue) confirm(frame int, in game.Input) (mispredicted, ok bool) {
	if frame != len(q.confirmed) {
		return false, false
	}
	q.confirmed = append(q.confirmed, in)
	if frame < len(q.used) && q.used[frame] != in {
		return true, true
	}
	return false, true
}

// input returns the input to simulate frame with: the confirmed one if
// known, otherwise the last confirmed input as a prediction.
func (q *inputQueue) input(frame int) game.Input {
	if frame < len(q.confirmed) {
		return q.confirmed[frame]
	}
	if len(q.confirmed) == 0 {
		return 0
	}
	return q.confirmed[len(q.confirmed)-1]
}

// use records what frame was simulated with. Frames are simulated in order,
// and rollback rewrites earlier entries.
func (q *inputQueue) use(frame int, in game.Input) {
	if frame == len(q.used) {
		q.used = append(q.used, in)
		return
	}
	q.used[frame] = in
}

// run returns the confirmed inputs from start on, at most limit of them.
func (q *inputQueue) run(start, limit int) []game.Input {
	if start < 0 {
		start = 0
	}
	if start >= len(q.confirmed) {
		return nil
	}
	end := min(len(q.confirmed), start+limit)
	return q.confirmed[start:end]
}
