package game

import (
	"errors"
	"testing"
)

// TestInputRoundTrip verifies decode(encode(l, r)) == (l, r) for every
// button combination, raw and through both role codecs.
func TestInputRoundTrip(t *testing.T) {
	codecs := []struct {
		name string
		enc  func(l, r bool) Input
		dec  func(Input) (bool, bool)
	}{
		{"raw", Encode, Decode},
		{"client", Codec{Role: RoleClient}.Encode, Codec{Role: RoleClient}.Decode},
		{"host", Codec{Role: RoleHost}.Encode, Codec{Role: RoleHost}.Decode},
	}

	for _, c := range codecs {
		for _, l := range []bool{false, true} {
			for _, r := range []bool{false, true} {
				gotL, gotR := c.dec(c.enc(l, r))
				if gotL != l || gotR != r {
					t.Errorf("%s: (%v,%v) round-tripped to (%v,%v)", c.name, l, r, gotL, gotR)
				}
			}
		}
	}
}

// TestInputBits verifies the wire layout.
func TestInputBits(t *testing.T) {
	tests := []struct {
		left, right bool
		want        Input
	}{
		{false, false, 0},
		{true, false, 1},
		{false, true, 2},
		{true, true, 3},
	}

	for _, tt := range tests {
		if got := Encode(tt.left, tt.right); got != tt.want {
			t.Errorf("Encode(%v,%v) = %d, want %d", tt.left, tt.right, got, tt.want)
		}
	}
}

// TestHostMirrors verifies the host's left arrives on the wire as right.
func TestHostMirrors(t *testing.T) {
	host := Codec{Role: RoleHost}
	client := Codec{Role: RoleClient}

	if got := host.Encode(true, false); got != InputRight {
		t.Errorf("Host left should encode as right, got %d", got)
	}
	if got := client.Encode(true, false); got != InputLeft {
		t.Errorf("Client left should encode as left, got %d", got)
	}
	for in := Input(0); in < 4; in++ {
		if in.Mirror().Mirror() != in {
			t.Errorf("Mirror is not an involution for %d", in)
		}
	}
}

// TestInputDirection verifies button to axis mapping.
func TestInputDirection(t *testing.T) {
	tests := map[Input]float64{
		0:                      0,
		InputLeft:              -1,
		InputRight:             1,
		InputLeft | InputRight: 0,
	}
	for in, want := range tests {
		if got := in.Direction(); got != want {
			t.Errorf("Direction(%d) = %f, want %f", in, got, want)
		}
	}
}

// TestInputSanitize verifies reserved bits are cleared.
func TestInputSanitize(t *testing.T) {
	if got := Input(0xFD).Sanitize(); got != InputLeft {
		t.Errorf("Expected %d, got %d", InputLeft, got)
	}
}

// TestParseRole verifies role parsing and seat assignment.
func TestParseRole(t *testing.T) {
	tests := []struct {
		in       string
		want     Role
		wantTeam Team
		wantErr  bool
	}{
		{"host", RoleHost, Team1, false},
		{"Client", RoleClient, Team0, false},
		{" HOST ", RoleHost, Team1, false},
		{"spectator", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownRole) {
					t.Errorf("Expected ErrUnknownRole, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want || got.Team() != tt.wantTeam {
				t.Errorf("Expected %s/%s, got %s/%s", tt.want, tt.wantTeam, got, got.Team())
			}
		})
	}
}
