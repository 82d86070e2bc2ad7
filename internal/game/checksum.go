package game

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Checksum digests every field of the store that affects future ticks.
// Peers exchange it to detect desyncs; equal states always hash equally
// because slices are walked in ID order.
func Checksum(s *State) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 64)

	flush := func() {
		d.Write(buf)
		buf = buf[:0]
	}
	u32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	f64 := func(v float64) { buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v)) }
	vec := func(v Vec2) {
		f64(v.X)
		f64(v.Y)
	}

	u32(uint32(s.Tick))
	u32(uint32(s.NextID))
	u32(s.ItemSpawns)
	u32(s.Captures)
	u32(uint32(s.TimerTicks))
	if s.Over {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	flush()

	u32(uint32(len(s.Balls)))
	for i := range s.Balls {
		b := &s.Balls[i]
		u32(uint32(b.ID))
		buf = append(buf, byte(b.Team))
		vec(b.Pos)
		vec(b.Vel)
		f64(b.Radius)
		u32(uint32(b.RespawnTicks))
		flush()
	}

	u32(uint32(len(s.Paddles)))
	for i := range s.Paddles {
		p := &s.Paddles[i]
		u32(uint32(p.ID))
		buf = append(buf, byte(p.Team))
		vec(p.Pos)
		vec(p.HalfSize)
		flush()
	}

	u32(uint32(len(s.Cells)))
	for i := range s.Cells {
		c := &s.Cells[i]
		u32(uint32(c.ID))
		buf = append(buf, byte(c.Team))
		flush()
	}

	u32(uint32(len(s.Items)))
	for i := range s.Items {
		it := &s.Items[i]
		u32(uint32(it.ID))
		buf = append(buf, byte(it.Team), byte(it.Kind))
		vec(it.Pos)
		flush()
	}

	return d.Sum64()
}
