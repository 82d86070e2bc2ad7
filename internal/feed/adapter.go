package feed

import (
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/match"
)

// ToFrame converts a received message back to a match.Frame so
// presentation code can consume the feed and the in-process pool alike.
func (msg *FrameMessage) ToFrame() *match.Frame {
	f := &match.Frame{
		Sequence:       msg.Sequence,
		Timestamp:      time.Unix(0, msg.Timestamp),
		Tick:           msg.Tick,
		TimerTicks:     msg.TimerTicks,
		SecondsLeft:    msg.SecondsLeft,
		Over:           msg.Over,
		Result:         msg.Result,
		Events:         msg.Events,
		SessionState:   msg.SessionState,
		AwaitingPeer:   msg.AwaitingPeer,
		ConfirmedFrame: msg.ConfirmedFrame,
		Rollbacks:      msg.Rollbacks,
	}

	f.Entities = make([]match.EntityView, len(msg.Entities))
	for i, e := range msg.Entities {
		f.Entities[i] = match.EntityView{
			ID:     game.EntityID(e.ID),
			Kind:   e.Kind,
			Team:   e.Team,
			Item:   e.Item,
			Pos:    game.Vec2{X: e.X, Y: e.Y},
			Half:   game.Vec2{X: e.HX, Y: e.HY},
			Radius: e.Radius,
		}
	}
	return f
}
