package game

// runTimer counts the match clock down and writes the result at zero.
func (w *World) runTimer() {
	s := w.state
	if s.TimerTicks > 0 {
		s.TimerTicks--
	}
	if s.TimerTicks > 0 || s.Over {
		return
	}
	s.Result = Tally(s.Cells)
	s.Over = true
	w.emit(Event{Type: EventGameOver, Team: s.Result.Winner})
}

// Tally counts owned cells per team. Item-eligible cells belong to nobody.
// A strict majority wins; anything else is a draw.
func Tally(cells []Cell) GameResult {
	var r GameResult
	for i := range cells {
		switch cells[i].Team {
		case Team0:
			r.Team0Cells++
		case Team1:
			r.Team1Cells++
		}
	}
	switch {
	case r.Team0Cells > r.Team1Cells:
		r.Winner = Team0
	case r.Team1Cells > r.Team0Cells:
		r.Winner = Team1
	default:
		r.Winner = TeamNone
	}
	return r
}

// Seconds left on the match clock, rounded up.
func (s *State) SecondsLeft() int {
	return (s.TimerTicks + TickRate - 1) / TickRate
}
