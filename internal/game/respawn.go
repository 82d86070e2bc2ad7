package game

// respawnBalls keeps every team in play.
//
// Stopped and escaped balls are removed first. A team left without balls
// gets a held ball above its paddle; held balls follow the paddle until
// their countdown runs out and then launch straight away from it.
func (w *World) respawnBalls() {
	s := w.state

	n := 0
	for i := range s.Balls {
		b := s.Balls[i]
		if !b.Held() && (b.Vel.LengthSquared() < StopSpeedSquared || outOfRange(b.Pos)) {
			w.emit(Event{Type: EventBallOut, Entity: b.ID, Team: b.Team})
			continue
		}
		s.Balls[n] = b
		n++
	}
	s.Balls = s.Balls[:n]

	for team := Team0; team <= Team1; team++ {
		p := s.Paddle(team)
		if p == nil || s.BallCount(team) > 0 {
			continue
		}
		id := s.SpawnBall(team, holdPosition(p), Vec2{})
		s.Balls[len(s.Balls)-1].RespawnTicks = RespawnDelayTicks
		w.emit(Event{Type: EventBallSpawned, Entity: id, Team: team})
	}

	for i := range s.Balls {
		b := &s.Balls[i]
		if !b.Held() {
			continue
		}
		p := s.Paddle(b.Team)
		if p == nil {
			continue
		}
		b.Pos = holdPosition(p)
		b.RespawnTicks--
		if b.RespawnTicks == 0 {
			b.Vel = Vec2{X: 0, Y: b.Team.Facing() * FirstBallSpeed}
		}
	}
}

func holdPosition(p *Paddle) Vec2 {
	return Vec2{X: p.Pos.X, Y: p.Pos.Y + float64(p.Team.Facing()*5*BallRadius)}
}

func outOfRange(p Vec2) bool {
	return p.X > OutOfRangeLimit || p.X < -OutOfRangeLimit ||
		p.Y > OutOfRangeLimit || p.Y < -OutOfRangeLimit
}
