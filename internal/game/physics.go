package game

import "math"

// movePaddles slides each paddle along x by its team's input and stops it
// flush against any wall it would run into.
func movePaddles(s *State, inputs []Input) {
	for i := range s.Paddles {
		p := &s.Paddles[i]
		dir := inputFor(inputs, p.Team).Direction()
		if dir == 0 {
			continue
		}

		x := p.Pos.X + float64(dir*PaddleSpeed*TickDelta)
		for j := range s.Walls {
			wall := &s.Walls[j]
			wb := wall.Box()
			if !NewBox(Vec2{X: x, Y: p.Pos.Y}, p.HalfSize).Intersects(wb) {
				continue
			}
			if p.Pos.X < wall.Pos.X {
				x = wb.Min.X - p.HalfSize.X
			} else {
				x = wb.Max.X + p.HalfSize.X
			}
		}
		p.Pos.X = x
	}
}

// moveBalls integrates every ball. Collisions are corrected afterwards.
func moveBalls(s *State) {
	for i := range s.Balls {
		b := &s.Balls[i]
		b.Pos = b.Pos.Add(b.Vel.Scale(TickDelta))
	}
}

// resolveCollisions runs the ordered wall, paddle, cell checks for each ball
// and drops the balls that were destroyed.
func (w *World) resolveCollisions() {
	s := w.state
	n := 0
	for i := range s.Balls {
		b := s.Balls[i]
		if !b.Held() && !w.resolveBall(&b) {
			continue
		}
		s.Balls[n] = b
		n++
	}
	s.Balls = s.Balls[:n]
}

// resolveBall applies the first collision category that touches b and
// reports whether the ball survives.
func (w *World) resolveBall(b *Ball) bool {
	s := w.state
	rr := float64(b.Radius * b.Radius)

	for i := range s.Walls {
		wall := &s.Walls[i]
		closest := wall.Box().ClosestPoint(b.Pos)
		if closest == b.Pos {
			// Center already inside the wall: the bounce was missed.
			w.emit(Event{Type: EventBallOut, Entity: b.ID, Team: b.Team})
			return false
		}
		diff := b.Pos.Sub(closest)
		if diff.LengthSquared() >= rr {
			continue
		}
		if wall.Team.Playing() && wall.Team != b.Team {
			w.emit(Event{Type: EventBallOut, Entity: b.ID, Team: b.Team})
			return false
		}
		bounce(b, diff)
		return true
	}

	for i := range s.Paddles {
		p := &s.Paddles[i]
		closest := p.Box().ClosestPoint(b.Pos)
		diff := b.Pos.Sub(closest)
		if diff.LengthSquared() >= rr {
			continue
		}
		deflect(b, p, diff)
		return true
	}

	for i := range s.Cells {
		c := &s.Cells[i]
		if c.Team != b.Team && c.Team != TeamItem {
			continue
		}
		closest := c.Box().ClosestPoint(b.Pos)
		if closest == b.Pos {
			w.emit(Event{Type: EventBallOut, Entity: b.ID, Team: b.Team})
			return false
		}
		diff := b.Pos.Sub(closest)
		if diff.LengthSquared() >= rr {
			continue
		}
		bounce(b, diff)
		w.emit(Event{Type: EventCellHit, Entity: c.ID, Team: b.Team})
		return true
	}

	return true
}

// bounce reflects the velocity about the contact normal and pushes the ball
// out of the box along it. diff points from the contact to the center and is
// never zero here.
func bounce(b *Ball, diff Vec2) {
	dist := diff.Length()
	normal := Vec2{X: diff.X / dist, Y: diff.Y / dist}
	b.Vel = b.Vel.Reflect(normal).ClampLength(MaxBallSpeed)
	b.Pos = b.Pos.Add(normal.Scale(b.Radius - dist))
}

// deflect sends the ball away from the paddle's owning side at an angle
// proportional to where it struck: straight at the center, 60 degrees off
// at either edge. Speed is preserved.
func deflect(b *Ball, p *Paddle, diff Vec2) {
	facing := p.Team.Facing()
	speed := b.Vel.Length()

	t := clamp((b.Pos.X-p.Pos.X)/p.HalfSize.X, -1, 1)
	sin, cos := math.Sincos(float64(t * MaxPaddleAngle))
	b.Vel = Vec2{X: float64(speed * sin), Y: float64(facing * speed) * cos}.ClampLength(MaxBallSpeed)

	if diff.IsZero() {
		// Center inside the paddle: lift it clear of the playing face.
		b.Pos.Y = p.Pos.Y + float64(facing*(p.HalfSize.Y+b.Radius))
		return
	}
	dist := diff.Length()
	b.Pos = b.Pos.Add(diff.Scale((b.Radius - dist) / dist))
}
