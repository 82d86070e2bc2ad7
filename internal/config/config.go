// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation, relay and tooling
// settings.
//
// Values come from the defaults below, then an optional TOML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"online-breakout/internal/session"
)

// =============================================================================
// SIMULATION & SESSION CONFIGURATION
// =============================================================================

// SimConfig holds the rollback session settings. Both peers must use the
// same InputDelay.
type SimConfig struct {
	TickRate          int           `toml:"tick_rate"`
	InputDelay        int           `toml:"input_delay"`    // frames
	MaxPrediction     int           `toml:"max_prediction"` // frames
	DisconnectTimeout time.Duration `toml:"disconnect_timeout"`
	DesyncInterval    int           `toml:"desync_interval"` // frames between checksum reports
	CheckDistance     int           `toml:"check_distance"`  // sync-test rollback depth
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	d := session.DefaultConfig()
	return SimConfig{
		TickRate:          60,
		InputDelay:        d.InputDelay,
		MaxPrediction:     d.MaxPrediction,
		DisconnectTimeout: d.DisconnectTimeout,
		DesyncInterval:    d.DesyncInterval,
		CheckDistance:     7,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()
	cfg.applyEnv()
	return cfg
}

func (c *SimConfig) applyEnv() {
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		c.TickRate = v
	}
	if v := getEnvInt("INPUT_DELAY", -1); v >= 0 {
		c.InputDelay = v
	}
	if v := getEnvInt("MAX_PREDICTION", 0); v > 0 {
		c.MaxPrediction = v
	}
	if v := getEnvDuration("DISCONNECT_TIMEOUT", 0); v > 0 {
		c.DisconnectTimeout = v
	}
	if v := getEnvInt("DESYNC_INTERVAL", -1); v >= 0 {
		c.DesyncInterval = v
	}
	if v := getEnvInt("CHECK_DISTANCE", -1); v >= 0 {
		c.CheckDistance = v
	}
}

// Session converts to the session package's settings.
func (c SimConfig) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.InputDelay = c.InputDelay
	cfg.MaxPrediction = c.MaxPrediction
	cfg.DisconnectTimeout = c.DisconnectTimeout
	cfg.DesyncInterval = c.DesyncInterval
	return cfg
}

// =============================================================================
// RELAY CONFIGURATION
// =============================================================================

// RelayConfig holds relay HTTP server settings.
type RelayConfig struct {
	Port           int           `toml:"port"`
	MaxRooms       int           `toml:"max_rooms"`
	RoomTTL        time.Duration `toml:"room_ttl"`
	AllowedOrigins []string      `toml:"allowed_origins"` // extra browser origins
}

// DefaultRelay returns the default relay configuration.
func DefaultRelay() RelayConfig {
	return RelayConfig{
		Port:     3000,
		MaxRooms: 1000,
		RoomTTL:  30 * time.Minute,
	}
}

// RelayFromEnv returns relay configuration with environment variable overrides.
func RelayFromEnv() RelayConfig {
	cfg := DefaultRelay()
	cfg.applyEnv()
	return cfg
}

func (c *RelayConfig) applyEnv() {
	if p := getEnvInt("PORT", 0); p > 0 {
		c.Port = p
	}
	if v := getEnvInt("RELAY_MAX_ROOMS", 0); v > 0 {
		c.MaxRooms = v
	}
	if v := getEnvDuration("RELAY_ROOM_TTL", 0); v > 0 {
		c.RoomTTL = v
	}
	if v := os.Getenv("RELAY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
}

// =============================================================================
// REDIS CONFIGURATION
// =============================================================================

// RedisConfig selects the shared room store. An empty Addr keeps rooms in
// memory.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

func (c *RedisConfig) applyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := getEnvInt("REDIS_DB", -1); v >= 0 {
		c.DB = v
	}
}

// =============================================================================
// PRESENTATION FEED & JOURNAL
// =============================================================================

// FeedConfig controls the local frame feed for out-of-process renderers.
type FeedConfig struct {
	Enabled    bool   `toml:"enabled"`
	SocketPath string `toml:"socket_path"`
}

// DefaultFeed returns the default feed configuration.
func DefaultFeed() FeedConfig {
	return FeedConfig{
		Enabled:    false,
		SocketPath: "/tmp/online-breakout.sock",
	}
}

func (c *FeedConfig) applyEnv() {
	if v := os.Getenv("FEED_ENABLED"); v != "" {
		c.Enabled = v == "true"
	}
	if v := os.Getenv("FEED_SOCKET"); v != "" {
		c.SocketPath = v
	}
}

// JournalConfig controls the match journal. An empty Path disables it.
type JournalConfig struct {
	Path string `toml:"path"`
}

func (c *JournalConfig) applyEnv() {
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		c.Path = v
	}
}

// =============================================================================
// DEBUG SERVER
// =============================================================================

// DebugConfig controls the pprof/metrics server.
type DebugConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"` // localhost only unless ALLOW_DEBUG_EXTERNAL=true
	User       string `toml:"user"`
	Pass       string `toml:"pass"`
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

func (c *DebugConfig) applyEnv() {
	if v := os.Getenv("DEBUG_ENABLED"); v != "" {
		c.Enabled = v == "true"
	}
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DEBUG_USER"); v != "" {
		c.User = v
		c.Pass = os.Getenv("DEBUG_PASS")
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim     SimConfig     `toml:"sim"`
	Relay   RelayConfig   `toml:"relay"`
	Redis   RedisConfig   `toml:"redis"`
	Feed    FeedConfig    `toml:"feed"`
	Journal JournalConfig `toml:"journal"`
	Debug   DebugConfig   `toml:"debug"`
}

// Default returns every section at its default.
func Default() AppConfig {
	return AppConfig{
		Sim:   DefaultSim(),
		Relay: DefaultRelay(),
		Feed:  DefaultFeed(),
		Debug: DefaultDebug(),
	}
}

// Load returns the defaults, overlaid with the TOML file at path (if
// non-empty), then with environment variables.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile overlays the TOML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *AppConfig) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	c.Sim.applyEnv()
	c.Relay.applyEnv()
	c.Redis.applyEnv()
	c.Feed.applyEnv()
	c.Journal.applyEnv()
	c.Debug.applyEnv()
}

// Validate rejects settings the session or relay cannot run with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Sim.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.tick_rate must be positive, got %d", c.Sim.TickRate))
	}
	if c.Sim.InputDelay < 0 {
		errs = append(errs, fmt.Errorf("sim.input_delay must not be negative, got %d", c.Sim.InputDelay))
	}
	if c.Sim.MaxPrediction <= 0 {
		errs = append(errs, fmt.Errorf("sim.max_prediction must be positive, got %d", c.Sim.MaxPrediction))
	}
	if c.Sim.DisconnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sim.disconnect_timeout must be positive, got %s", c.Sim.DisconnectTimeout))
	}
	if c.Sim.CheckDistance < 0 || c.Sim.CheckDistance > c.Sim.MaxPrediction {
		errs = append(errs, fmt.Errorf("sim.check_distance must be in [0, %d], got %d", c.Sim.MaxPrediction, c.Sim.CheckDistance))
	}
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		errs = append(errs, fmt.Errorf("relay.port out of range: %d", c.Relay.Port))
	}
	return errors.Join(errs...)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
