package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig budgets requests per client IP. Room creation has its own,
// much smaller budget on top of the general one: rooms hold server state
// until they expire, reads do not.
type RateLimitConfig struct {
	RequestsPerSecond float64 // all routes
	Burst             int
	CreatesPerMinute  float64 // POST /api/rooms
	CreateBurst       int
	CleanupInterval   time.Duration // how often idle IPs are forgotten
}

// DefaultRateLimitConfig returns production-safe defaults
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CreatesPerMinute:  6,
	CreateBurst:       3,
	CleanupInterval:   5 * time.Minute,
}

// clientBudget is one IP's pair of token buckets.
type clientBudget struct {
	requests *rate.Limiter
	creates  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// RateLimitStats is reported under /api/stats.
type RateLimitStats struct {
	Allowed         uint64 `json:"allowed"`
	Rejected        uint64 `json:"rejected"`
	CreatesRejected uint64 `json:"createsRejected"`
	TrackedIPs      int    `json:"trackedIps"`
}

// IPRateLimiter applies RateLimitConfig per client IP.
type IPRateLimiter struct {
	config  RateLimitConfig
	clients sync.Map // ip -> *clientBudget
	tracked atomic.Int64

	allowed         atomic.Uint64
	rejected        atomic.Uint64
	createsRejected atomic.Uint64

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter starts the idle-IP cleanup goroutine; call Stop to end it.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CreatesPerMinute <= 0 {
		cfg.CreatesPerMinute = DefaultRateLimitConfig.CreatesPerMinute
	}
	if cfg.CreateBurst <= 0 {
		cfg.CreateBurst = DefaultRateLimitConfig.CreateBurst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) budget(ip string) *clientBudget {
	now := time.Now().UnixNano()
	if v, ok := rl.clients.Load(ip); ok {
		b := v.(*clientBudget)
		b.lastSeen.Store(now)
		return b
	}

	b := &clientBudget{
		requests: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		creates:  rate.NewLimiter(rate.Limit(rl.config.CreatesPerMinute/60), rl.config.CreateBurst),
	}
	b.lastSeen.Store(now)
	v, loaded := rl.clients.LoadOrStore(ip, b)
	if !loaded {
		rl.tracked.Add(1)
	}
	return v.(*clientBudget)
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.forgetIdle(time.Now().Add(-2 * rl.config.CleanupInterval))
		}
	}
}

// forgetIdle drops the budgets of IPs not seen since cutoff.
func (rl *IPRateLimiter) forgetIdle(cutoff time.Time) {
	rl.clients.Range(func(key, value interface{}) bool {
		if value.(*clientBudget).lastSeen.Load() < cutoff.UnixNano() {
			if rl.clients.CompareAndDelete(key, value) {
				rl.tracked.Add(-1)
			}
		}
		return true
	})
}

// Allow spends one request from ip's general budget.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.budget(ip).requests.Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// AllowCreate spends one room creation from ip's creation budget.
func (rl *IPRateLimiter) AllowCreate(ip string) bool {
	if rl.budget(ip).creates.Allow() {
		return true
	}
	rl.createsRejected.Add(1)
	return false
}

// Middleware enforces the general budget on every route.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.limit(rl.Allow, "rate_limit", next)
}

// CreateMiddleware enforces the room creation budget.
func (rl *IPRateLimiter) CreateMiddleware(next http.Handler) http.Handler {
	return rl.limit(rl.AllowCreate, "create_limit", next)
}

func (rl *IPRateLimiter) limit(allow func(string) bool, reason string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(GetClientIP(r)) {
			RecordConnectionRejected(reason)
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) Stats() RateLimitStats {
	return RateLimitStats{
		Allowed:         rl.allowed.Load(),
		Rejected:        rl.rejected.Load(),
		CreatesRejected: rl.createsRejected.Load(),
		TrackedIPs:      int(rl.tracked.Load()),
	}
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer. The headers can be spoofed unless a trusted proxy sets
// them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SeatLimiter caps how many relay seats one IP may hold at once.
type SeatLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
	rejected uint64
}

func NewSeatLimiter(maxPerIP int) *SeatLimiter {
	return &SeatLimiter{open: make(map[string]int), maxPerIP: maxPerIP}
}

// Acquire takes a seat slot for ip, or reports false at the cap.
func (l *SeatLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[ip] >= l.maxPerIP {
		l.rejected++
		return false
	}
	l.open[ip]++
	return true
}

// Release returns a slot. IPs with no open seats are forgotten.
func (l *SeatLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.open[ip]; n > 1 {
		l.open[ip] = n - 1
	} else {
		delete(l.open, ip)
	}
}

// SeatLimitStats is reported under /api/stats.
type SeatLimitStats struct {
	IPs      int    `json:"ips"`
	Seats    int    `json:"seats"`
	Rejected uint64 `json:"rejected"`
	MaxPerIP int    `json:"maxPerIp"`
}

func (l *SeatLimiter) Stats() SeatLimitStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := SeatLimitStats{IPs: len(l.open), Rejected: l.rejected, MaxPerIP: l.maxPerIP}
	for _, n := range l.open {
		st.Seats += n
	}
	return st
}

// AllowedOrigins lists extra browser origins accepted by CORS and the
// relay, on top of any localhost origin.
var AllowedOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
}

// IsAllowedOrigin accepts localhost origins on any port and exact matches
// from AllowedOrigins.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
