package game

import "math"

// Simulation constants. Both peers must agree on every value here, so none
// of them are configurable at runtime.
const (
	TickRate  = 60
	TickDelta = 1.0 / TickRate

	NumTeams = 2

	// Playfield: a 10x10 grid of cells per team, one half each.
	CellSize    = 50.0
	FieldCols   = 10
	FieldRows   = 10
	FieldWidth  = FieldCols * CellSize
	FieldHeight = FieldRows * CellSize * 2

	WallThickness = 1000.0

	PaddleHalfWidth    = 50.0
	PaddleHalfHeight   = 5.0
	PaddleY            = 450.0
	PaddleSpeed        = 300.0
	MaxPaddleHalfWidth = FieldWidth / 3
	MaxPaddleAngle     = math.Pi / 3 // 60 degrees from straight

	BallRadius     = 10.0
	FirstBallSpeed = 300.0
	MaxBallSpeed   = 900.0
	MaxBallCount   = 20

	// Balls slower than this (squared) are considered stopped.
	StopSpeedSquared = 0.01

	// Anything beyond this distance from the origin on either axis has
	// escaped every wall and is removed.
	OutOfRangeLimit = 2000.0

	RespawnDelayTicks = 3 * TickRate

	ItemHalfSize      = 20.0
	ItemFallSpeed     = 150.0
	SpeedUpFactor     = 1.2
	EnlargeFactor     = 1.5
	MultiBallSpread   = math.Pi / 12 // 15 degrees either side
	CapturesPerItem   = 10
	MatchDurationTick = 120 * TickRate
)
