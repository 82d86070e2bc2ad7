package game

// EntityID identifies an entity for the lifetime of a match. IDs are handed
// out by State.NextID and never reused.
type EntityID uint32

// Team owns paddles, balls, cells and items.
type Team uint8

const (
	Team0 Team = 0
	Team1 Team = 1
	// TeamItem marks a neutral cell that spawns an item when hit.
	TeamItem Team = 0xFE
	// TeamNone marks unowned walls and a drawn result.
	TeamNone Team = 0xFF
)

func (t Team) String() string {
	switch t {
	case Team0:
		return "team0"
	case Team1:
		return "team1"
	case TeamItem:
		return "item"
	case TeamNone:
		return "none"
	default:
		return "unknown"
	}
}

// Playing reports whether t is one of the two player teams.
func (t Team) Playing() bool {
	return t == Team0 || t == Team1
}

// Opponent returns the other player team.
func (t Team) Opponent() Team {
	return 1 - t
}

// Facing is +1 for team 0, whose paddle sits at the bottom and plays
// upward, and -1 for team 1.
func (t Team) Facing() float64 {
	if t == Team0 {
		return 1
	}
	return -1
}

// Kind discriminates entity records for consumers that see them mixed.
type Kind uint8

const (
	KindBall Kind = iota
	KindPaddle
	KindCell
	KindWall
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindBall:
		return "ball"
	case KindPaddle:
		return "paddle"
	case KindCell:
		return "cell"
	case KindWall:
		return "wall"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

// ItemKind is the power-up an item grants. Spawn order cycles through the
// kinds in declaration order.
type ItemKind uint8

const (
	ItemEnlargePaddle ItemKind = iota
	ItemSpeedUp
	ItemMultiBall
	itemKindCount
)

func (k ItemKind) String() string {
	switch k {
	case ItemEnlargePaddle:
		return "enlarge_paddle"
	case ItemSpeedUp:
		return "speed_up"
	case ItemMultiBall:
		return "multi_ball"
	default:
		return "unknown"
	}
}

type Ball struct {
	ID     EntityID
	Team   Team
	Pos    Vec2
	Vel    Vec2
	Radius float64
	// RespawnTicks counts down while the ball is held above its paddle.
	RespawnTicks int
}

// Held reports whether the ball is waiting to be launched.
func (b *Ball) Held() bool {
	return b.RespawnTicks > 0
}

type Paddle struct {
	ID       EntityID
	Team     Team
	Pos      Vec2
	HalfSize Vec2
}

func (p *Paddle) Box() Box {
	return NewBox(p.Pos, p.HalfSize)
}

type Cell struct {
	ID       EntityID
	Team     Team
	Pos      Vec2
	HalfSize Vec2
}

func (c *Cell) Box() Box {
	return NewBox(c.Pos, c.HalfSize)
}

type Wall struct {
	ID       EntityID
	Team     Team
	Pos      Vec2
	HalfSize Vec2
}

func (w *Wall) Box() Box {
	return NewBox(w.Pos, w.HalfSize)
}

type Item struct {
	ID   EntityID
	Team Team
	Kind ItemKind
	Pos  Vec2
}

func (it *Item) Box() Box {
	return NewBox(it.Pos, Vec2{X: ItemHalfSize, Y: ItemHalfSize})
}

// GameResult is written once when the match timer expires.
type GameResult struct {
	// Winner is TeamNone on a draw.
	Winner     Team `json:"winner"`
	Team0Cells int  `json:"team0Cells"`
	Team1Cells int  `json:"team1Cells"`
}

func (r GameResult) Draw() bool {
	return r.Winner == TeamNone
}

// State is the entity store: every simulated record of one match.
//
// Each kind lives in its own slice in ascending ID order. New entities get
// fresh, larger IDs and are appended; removal filters in place. Iteration
// order is therefore identical on both peers.
type State struct {
	Tick   int
	NextID EntityID

	Balls   []Ball
	Paddles []Paddle
	Cells   []Cell
	Walls   []Wall
	Items   []Item

	ItemSpawns uint32 // round-robin counter for item kinds
	Captures   uint32 // cell captures, drives item-eligible promotion

	TimerTicks int
	Over       bool
	Result     GameResult
}

// NewEmptyState returns a store with no entities and a full timer.
func NewEmptyState() *State {
	return &State{NextID: 1, TimerTicks: MatchDurationTick}
}

// CopyTo deep-copies s into dst, reusing dst's slice capacity.
func (s *State) CopyTo(dst *State) {
	balls, paddles, cells, walls, items := dst.Balls, dst.Paddles, dst.Cells, dst.Walls, dst.Items
	*dst = *s
	dst.Balls = append(balls[:0], s.Balls...)
	dst.Paddles = append(paddles[:0], s.Paddles...)
	dst.Cells = append(cells[:0], s.Cells...)
	dst.Walls = append(walls[:0], s.Walls...)
	dst.Items = append(items[:0], s.Items...)
}

// Clone returns an independent deep copy.
func (s *State) Clone() *State {
	c := &State{}
	s.CopyTo(c)
	return c
}

func (s *State) allocID() EntityID {
	id := s.NextID
	s.NextID++
	return id
}

func (s *State) SpawnBall(team Team, pos, vel Vec2) EntityID {
	id := s.allocID()
	s.Balls = append(s.Balls, Ball{ID: id, Team: team, Pos: pos, Vel: vel, Radius: BallRadius})
	return id
}

func (s *State) SpawnPaddle(team Team, pos Vec2) EntityID {
	id := s.allocID()
	s.Paddles = append(s.Paddles, Paddle{
		ID:       id,
		Team:     team,
		Pos:      pos,
		HalfSize: Vec2{X: PaddleHalfWidth, Y: PaddleHalfHeight},
	})
	return id
}

func (s *State) SpawnCell(team Team, pos Vec2) EntityID {
	id := s.allocID()
	s.Cells = append(s.Cells, Cell{
		ID:       id,
		Team:     team,
		Pos:      pos,
		HalfSize: Vec2{X: CellSize / 2, Y: CellSize / 2},
	})
	return id
}

func (s *State) SpawnWall(team Team, pos, half Vec2) EntityID {
	id := s.allocID()
	s.Walls = append(s.Walls, Wall{ID: id, Team: team, Pos: pos, HalfSize: half})
	return id
}

func (s *State) SpawnItem(team Team, kind ItemKind, pos Vec2) EntityID {
	id := s.allocID()
	s.Items = append(s.Items, Item{ID: id, Team: team, Kind: kind, Pos: pos})
	return id
}

// Paddle returns the paddle owned by team, or nil.
func (s *State) Paddle(team Team) *Paddle {
	for i := range s.Paddles {
		if s.Paddles[i].Team == team {
			return &s.Paddles[i]
		}
	}
	return nil
}

// Cell returns the cell with the given ID, or nil. Cells are never removed
// so the slice stays sorted and a binary search applies.
func (s *State) Cell(id EntityID) *Cell {
	lo, hi := 0, len(s.Cells)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.Cells[mid].ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.Cells) && s.Cells[lo].ID == id {
		return &s.Cells[lo]
	}
	return nil
}

// BallCount returns the number of balls owned by team.
func (s *State) BallCount(team Team) int {
	n := 0
	for i := range s.Balls {
		if s.Balls[i].Team == team {
			n++
		}
	}
	return n
}

// CellCount returns the number of cells currently owned by team.
func (s *State) CellCount(team Team) int {
	n := 0
	for i := range s.Cells {
		if s.Cells[i].Team == team {
			n++
		}
	}
	return n
}
