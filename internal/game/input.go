package game

import (
	"errors"
	"strings"
)

// Input is one player's controls for one tick, as sent on the wire.
// Bit 0 is move-left, bit 1 is move-right, the rest are reserved.
type Input uint8

const (
	InputLeft  Input = 1 << 0
	InputRight Input = 1 << 1

	inputMask = InputLeft | InputRight
)

// Encode packs the two movement buttons into an Input.
func Encode(left, right bool) Input {
	var in Input
	if left {
		in |= InputLeft
	}
	if right {
		in |= InputRight
	}
	return in
}

// Decode is the exact inverse of Encode.
func Decode(in Input) (left, right bool) {
	return in&InputLeft != 0, in&InputRight != 0
}

// Sanitize clears reserved bits, for inputs received from a peer.
func (in Input) Sanitize() Input {
	return in & inputMask
}

// Mirror swaps the left and right bits.
func (in Input) Mirror() Input {
	left, right := Decode(in)
	return Encode(right, left) | in&^inputMask
}

// Direction maps the buttons to -1, 0 or +1 along the x axis.
// Holding both cancels out.
func (in Input) Direction() float64 {
	var dir float64
	if in&InputLeft != 0 {
		dir--
	}
	if in&InputRight != 0 {
		dir++
	}
	return dir
}

// Role is chosen before matchmaking by each participant.
type Role uint8

const (
	RoleClient Role = iota
	RoleHost
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts "host" or "client", case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host":
		return RoleHost, nil
	case "client":
		return RoleClient, nil
	default:
		return 0, ErrUnknownRole
	}
}

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "client"
}

// Team is the seat the role plays: the client takes team 0, the host
// takes team 1.
func (r Role) Team() Team {
	if r == RoleHost {
		return Team1
	}
	return Team0
}

// Mirrored reports whether the role sees the board rotated half a turn and
// therefore has left and right swapped.
func (r Role) Mirrored() bool {
	return r == RoleHost
}

// Codec converts local button state to wire inputs for one role.
type Codec struct {
	Role Role
}

func (c Codec) Encode(left, right bool) Input {
	in := Encode(left, right)
	if c.Role.Mirrored() {
		in = in.Mirror()
	}
	return in
}

func (c Codec) Decode(in Input) (left, right bool) {
	if c.Role.Mirrored() {
		in = in.Mirror()
	}
	return Decode(in)
}
