package game

// EventType identifies what happened during a tick.
type EventType uint8

const (
	EventCellHit EventType = iota
	EventCellCaptured
	EventItemSpawned
	EventItemCollected
	EventBallOut
	EventBallSpawned
	EventGameOver
)

func (t EventType) String() string {
	switch t {
	case EventCellHit:
		return "cell_hit"
	case EventCellCaptured:
		return "cell_captured"
	case EventItemSpawned:
		return "item_spawned"
	case EventItemCollected:
		return "item_collected"
	case EventBallOut:
		return "ball_out"
	case EventBallSpawned:
		return "ball_spawned"
	case EventGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Event is a transient record produced by one phase of a tick and consumed
// by a later phase of the same tick. Step hands the tick's events to the
// caller afterwards; nothing carries over to the next tick.
//
// Field meaning per type:
//
//	CellHit        Entity=cell, Team=hitting ball's team
//	CellCaptured   Entity=cell, Team=new owner
//	ItemSpawned    Entity=item, Team=owner, Item=kind
//	ItemCollected  Entity=item, Team=collector, Item=kind
//	BallOut        Entity=ball, Team=ball's team
//	BallSpawned    Entity=ball, Team=ball's team
//	GameOver       Team=winner (TeamNone on draw)
type Event struct {
	Type   EventType `json:"type"`
	Tick   int       `json:"tick"`
	Entity EntityID  `json:"entity,omitempty"`
	Team   Team      `json:"team"`
	Item   ItemKind  `json:"item,omitempty"`
}
