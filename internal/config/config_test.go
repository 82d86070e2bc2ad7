package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "breakout.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	s := cfg.Sim.Session()
	if s.InputDelay != 2 || s.MaxPrediction != 8 || s.DisconnectTimeout != 2*time.Second || s.DesyncInterval != 60 {
		t.Errorf("Unexpected session defaults %+v", s)
	}
}

// TestLoadPrecedence verifies file values override defaults and
// environment variables override the file.
func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, `
[sim]
input_delay = 3
disconnect_timeout = "5s"

[relay]
port = 4000
room_ttl = "10m"

[redis]
addr = "redis:6379"
`)
	t.Setenv("PORT", "5000")
	t.Setenv("JOURNAL_PATH", "/tmp/match.jsonl")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sim.InputDelay != 3 || cfg.Sim.DisconnectTimeout != 5*time.Second {
		t.Errorf("File values not applied: %+v", cfg.Sim)
	}
	if cfg.Sim.MaxPrediction != 8 {
		t.Errorf("Missing key must keep its default, got %d", cfg.Sim.MaxPrediction)
	}
	if cfg.Relay.Port != 5000 {
		t.Errorf("Expected env PORT to win, got %d", cfg.Relay.Port)
	}
	if cfg.Relay.RoomTTL != 10*time.Minute || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Unexpected relay/redis %+v %+v", cfg.Relay, cfg.Redis)
	}
	if cfg.Journal.Path != "/tmp/match.jsonl" {
		t.Errorf("Expected journal path from env, got %q", cfg.Journal.Path)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[sim]\ninput_dleay = 3\n", "unknown keys"},
		{"syntax", "[sim\n", "config file"},
		{"negative delay", "[sim]\ninput_delay = -1\n", "input_delay"},
		{"zero prediction", "[sim]\nmax_prediction = 0\n", "max_prediction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example, ,https://b.example ")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("Unexpected list %q", got)
	}
}
