package game

// spawnItems drops an item from every item-eligible cell hit this tick. The
// kind cycles through enlarge, speed-up, multi-ball regardless of team.
func (w *World) spawnItems() {
	s := w.state
	n := len(w.events)
	for i := 0; i < n; i++ {
		ev := w.events[i]
		if ev.Type != EventCellHit {
			continue
		}
		c := s.Cell(ev.Entity)
		if c == nil || c.Team != TeamItem {
			continue
		}
		kind := ItemKind(s.ItemSpawns % uint32(itemKindCount))
		s.ItemSpawns++
		id := s.SpawnItem(ev.Team, kind, c.Pos)
		w.emit(Event{Type: EventItemSpawned, Entity: id, Team: ev.Team, Item: kind})
	}
}

// moveItems drifts items toward their team's paddle and drops the ones that
// left the playfield.
func moveItems(s *State) {
	limit := FieldHeight/2 + ItemHalfSize
	n := 0
	for i := range s.Items {
		it := s.Items[i]
		it.Pos.Y -= float64(it.Team.Facing() * ItemFallSpeed * TickDelta)
		if it.Pos.Y > limit || it.Pos.Y < -limit {
			continue
		}
		s.Items[n] = it
		n++
	}
	s.Items = s.Items[:n]
}

// collectItems removes items touching their own team's paddle.
func (w *World) collectItems() {
	s := w.state
	n := 0
	for i := range s.Items {
		it := s.Items[i]
		if p := s.Paddle(it.Team); p != nil && it.Box().Intersects(p.Box()) {
			w.emit(Event{Type: EventItemCollected, Entity: it.ID, Team: it.Team, Item: it.Kind})
			continue
		}
		s.Items[n] = it
		n++
	}
	s.Items = s.Items[:n]
}

// applyItemEffects grants the power-up of every item collected this tick.
func (w *World) applyItemEffects() {
	n := len(w.events)
	for i := 0; i < n; i++ {
		ev := w.events[i]
		if ev.Type != EventItemCollected {
			continue
		}
		switch ev.Item {
		case ItemEnlargePaddle:
			enlargePaddle(w.state, ev.Team)
		case ItemSpeedUp:
			speedUp(w.state, ev.Team)
		case ItemMultiBall:
			w.multiBall(ev.Team)
		}
	}
}

func enlargePaddle(s *State, team Team) {
	p := s.Paddle(team)
	if p == nil {
		return
	}
	p.HalfSize.X = min(float64(p.HalfSize.X*EnlargeFactor), MaxPaddleHalfWidth)
}

func speedUp(s *State, team Team) {
	for i := range s.Balls {
		b := &s.Balls[i]
		if b.Team != team {
			continue
		}
		b.Vel = b.Vel.Scale(SpeedUpFactor).ClampLength(MaxBallSpeed)
	}
}

// multiBall splits every ball of team into three: the original and two
// copies turned by MultiBallSpread either way. Only the count before the
// split is checked against the cap. Copies of a held ball have no velocity
// and are removed as stopped by the next respawn pass.
func (w *World) multiBall(team Team) {
	s := w.state
	if len(s.Balls) >= MaxBallCount {
		return
	}
	n := len(s.Balls)
	for i := 0; i < n; i++ {
		b := s.Balls[i]
		if b.Team != team {
			continue
		}
		for _, angle := range [2]float64{-MultiBallSpread, MultiBallSpread} {
			id := s.SpawnBall(team, b.Pos, b.Vel.Rotate(angle))
			w.emit(Event{Type: EventBallSpawned, Entity: id, Team: team})
		}
	}
}
