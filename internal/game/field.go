package game

// setupField lays out the four walls and the two cell grids.
//
// Team 0 plays from the bottom, so its cells fill the top half and the
// bottom wall is its scoring boundary. Team 1 mirrors that.
func setupField(s *State) {
	halfW := FieldWidth / 2
	halfH := FieldHeight / 2
	halfT := WallThickness / 2

	s.SpawnWall(Team1, Vec2{X: 0, Y: halfH + halfT}, Vec2{X: halfW, Y: halfT})
	s.SpawnWall(Team0, Vec2{X: 0, Y: -(halfH + halfT)}, Vec2{X: halfW, Y: halfT})
	s.SpawnWall(TeamNone, Vec2{X: -(halfW + halfT), Y: 0}, Vec2{X: halfT, Y: halfH + WallThickness})
	s.SpawnWall(TeamNone, Vec2{X: halfW + halfT, Y: 0}, Vec2{X: halfT, Y: halfH + WallThickness})

	for team := Team0; team <= Team1; team++ {
		side := team.Facing()
		for x := -FieldCols / 2; x < FieldCols/2; x++ {
			for y := 0; y < FieldRows; y++ {
				s.SpawnCell(team, Vec2{
					X: float64(float64(x)+0.5) * CellSize,
					Y: side * float64(float64(y)+0.5) * CellSize,
				})
			}
		}
	}
}

// captureCells consumes the tick's CellHit events.
//
// A hit on an owned cell hands it to the other team. Every
// CapturesPerItem-th capture makes the cell item-eligible instead. A hit on
// an item-eligible cell already produced an item in spawnItems; the cell
// then goes to the team a normal capture would have given it.
func (w *World) captureCells() {
	s := w.state
	n := len(w.events)
	for i := 0; i < n; i++ {
		ev := w.events[i]
		if ev.Type != EventCellHit {
			continue
		}
		c := s.Cell(ev.Entity)
		if c == nil {
			continue
		}

		owner := ev.Team.Opponent()
		if c.Team != TeamItem {
			s.Captures++
			if s.Captures%CapturesPerItem == 0 {
				owner = TeamItem
			}
		}
		c.Team = owner
		w.emit(Event{Type: EventCellCaptured, Entity: c.ID, Team: owner})
	}
}
