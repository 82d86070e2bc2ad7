package game

import "math"

// Vec2 is a 2D vector in playfield units.
//
// Every product that feeds an addition is wrapped in an explicit float64()
// conversion. Go forbids fusing an explicitly rounded product into
// an FMA, so both peers round identically on amd64 and arm64.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: float64(v.X * s), Y: float64(v.Y * s)}
}

func (v Vec2) Dot(o Vec2) float64 {
	return float64(v.X*o.X) + float64(v.Y*o.Y)
}

func (v Vec2) LengthSquared() float64 {
	return v.Dot(v)
}

func (v Vec2) Length() float64 {
	return math.Sqrt(v.LengthSquared())
}

// Reflect mirrors v about the unit normal n.
func (v Vec2) Reflect(n Vec2) Vec2 {
	d := float64(2 * v.Dot(n))
	return v.Sub(n.Scale(d))
}

// Rotate turns v counter-clockwise by rad radians.
func (v Vec2) Rotate(rad float64) Vec2 {
	sin, cos := math.Sincos(rad)
	return Vec2{
		X: float64(v.X*cos) - float64(v.Y*sin),
		Y: float64(v.X*sin) + float64(v.Y*cos),
	}
}

// ClampLength caps the magnitude of v at max, keeping its direction.
func (v Vec2) ClampLength(max float64) Vec2 {
	lenSq := v.LengthSquared()
	if lenSq <= float64(max*max) {
		return v
	}
	return v.Scale(max / math.Sqrt(lenSq))
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Vec2
	Max Vec2
}

// NewBox builds a box from its center and half extents.
func NewBox(center, half Vec2) Box {
	return Box{Min: center.Sub(half), Max: center.Add(half)}
}

// ClosestPoint returns the point of b nearest to p. A point inside the box
// is its own closest point.
func (b Box) ClosestPoint(p Vec2) Vec2 {
	return Vec2{
		X: clamp(p.X, b.Min.X, b.Max.X),
		Y: clamp(p.Y, b.Min.Y, b.Max.Y),
	}
}

// Intersects reports whether two boxes overlap. Touching edges count.
func (b Box) Intersects(o Box) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
