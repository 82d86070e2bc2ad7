package match

import (
	"math"

	"online-breakout/internal/game"
)

// InputSource decides a local player's buttons for the next frame. It may
// read the current (possibly predicted) store but must not keep it.
type InputSource interface {
	Input(s *game.State, team game.Team) game.Input
}

// Idle never presses anything.
type Idle struct{}

func (Idle) Input(*game.State, game.Team) game.Input { return 0 }

// Scripted replays a fixed sequence, one entry per call, then repeats it.
type Scripted struct {
	Inputs []game.Input
	next   int
}

func (s *Scripted) Input(*game.State, game.Team) game.Input {
	if len(s.Inputs) == 0 {
		return 0
	}
	in := s.Inputs[s.next%len(s.Inputs)]
	s.next++
	return in
}

// AutoPilot steers the paddle under the most urgent ball: the nearest ball
// heading toward the paddle, else the nearest own ball, else the centre.
// It presses buttons as a player of Role would see them, and the codec turns
// that into the wire input.
type AutoPilot struct {
	Codec game.Codec
	// DeadZone is how far off-centre the target may be before moving.
	DeadZone float64
}

func NewAutoPilot(role game.Role) *AutoPilot {
	return &AutoPilot{Codec: game.Codec{Role: role}, DeadZone: game.PaddleHalfWidth / 4}
}

func (a *AutoPilot) Input(s *game.State, team game.Team) game.Input {
	paddle := s.Paddle(team)
	if paddle == nil {
		return 0
	}

	target := a.target(s, paddle)
	var dir float64
	switch dx := target - paddle.Pos.X; {
	case dx > a.DeadZone:
		dir = 1
	case dx < -a.DeadZone:
		dir = -1
	}

	// A mirrored player sees world +x on their left.
	if a.Codec.Role.Mirrored() {
		dir = -dir
	}
	return a.Codec.Encode(dir < 0, dir > 0)
}

func (a *AutoPilot) target(s *game.State, paddle *game.Paddle) float64 {
	facing := paddle.Team.Facing()

	best, bestDist := 0.0, math.Inf(1)
	found := false
	for i := range s.Balls {
		b := &s.Balls[i]
		if b.Held() || b.Vel.Y*facing >= 0 {
			continue
		}
		if d := math.Abs(b.Pos.Y - paddle.Pos.Y); d < bestDist {
			best, bestDist, found = b.Pos.X, d, true
		}
	}
	if found {
		return best
	}

	for i := range s.Balls {
		b := &s.Balls[i]
		if b.Team != paddle.Team {
			continue
		}
		if d := b.Pos.Sub(paddle.Pos).LengthSquared(); d < bestDist {
			best, bestDist = b.Pos.X, d
		}
	}
	return best
}

// PerTeam routes each team to its own source. Used when one process drives
// both seats, as in a sync test.
type PerTeam [2]InputSource

func (p PerTeam) Input(s *game.State, team game.Team) game.Input {
	if int(team) >= len(p) || p[team] == nil {
		return 0
	}
	return p[team].Input(s, team)
}
