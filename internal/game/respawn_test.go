package game

import "testing"

// TestRespawnHeldBall verifies a team without balls gets one that rides its
// paddle for the grace period and then launches straight away from it.
func TestRespawnHeldBall(t *testing.T) {
	s := NewEmptyState()
	s.SpawnPaddle(Team0, Vec2{X: 0, Y: -PaddleY})
	s.SpawnPaddle(Team1, Vec2{X: 0, Y: PaddleY})
	w := NewWorld(s)

	events := w.Step(nil)
	if len(s.Balls) != 2 {
		t.Fatalf("Expected 2 held balls, got %d", len(s.Balls))
	}
	spawned := 0
	for _, ev := range events {
		if ev.Type == EventBallSpawned {
			spawned++
		}
	}
	if spawned != 2 {
		t.Errorf("Expected 2 BallSpawned events, got %d", spawned)
	}

	// The held ball follows its paddle.
	for i := 0; i < 30; i++ {
		w.Step([]Input{InputRight, 0})
	}
	b := s.Balls[0]
	p := s.Paddle(Team0)
	if !b.Held() || b.Pos.X != p.Pos.X || b.Pos.Y != -PaddleY+5*BallRadius {
		t.Errorf("Held ball not riding paddle: ball %+v paddle %+v", b.Pos, p.Pos)
	}

	for s.Balls[0].Held() {
		w.Step(nil)
		if s.Tick > RespawnDelayTicks+1 {
			t.Fatal("Ball never launched")
		}
	}
	if s.Tick != RespawnDelayTicks {
		t.Errorf("Expected launch on tick %d, got %d", RespawnDelayTicks, s.Tick)
	}
	if v := s.Balls[0].Vel; v != (Vec2{X: 0, Y: FirstBallSpeed}) {
		t.Errorf("Expected team0 launch (0, %f), got %+v", FirstBallSpeed, v)
	}
	if v := s.Balls[1].Vel; v != (Vec2{X: 0, Y: -FirstBallSpeed}) {
		t.Errorf("Expected team1 launch (0, %f), got %+v", -FirstBallSpeed, v)
	}
}

// TestStoppedAndEscapedBallsRemoved verifies the safety net.
func TestStoppedAndEscapedBallsRemoved(t *testing.T) {
	tests := []struct {
		name string
		pos  Vec2
		vel  Vec2
		keep bool
	}{
		{"moving", Vec2{}, Vec2{X: 0, Y: 300}, true},
		{"stopped", Vec2{}, Vec2{X: 0.05, Y: 0}, false},
		{"far right", Vec2{X: OutOfRangeLimit + 1}, Vec2{X: 300}, false},
		{"far below", Vec2{Y: -OutOfRangeLimit - 50}, Vec2{Y: -300}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEmptyState()
			s.SpawnBall(Team0, tt.pos, tt.vel)
			NewWorld(s).Step(nil)
			if got := len(s.Balls) == 1; got != tt.keep {
				t.Errorf("Expected keep=%v, got %d balls", tt.keep, len(s.Balls))
			}
		})
	}
}
