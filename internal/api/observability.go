package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-room labels)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakout_tick_duration_seconds",
		Help:    "Time spent in one runner tick, resimulation included",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016},
	})

	rollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakout_rollbacks_total",
		Help: "Rollbacks performed after a misprediction",
	})

	rollbackDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakout_rollback_depth_frames",
		Help:    "Frames resimulated per rollback",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
	})

	awaitingPeer = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breakout_awaiting_peer",
		Help: "1 while the session is stalled at the prediction window",
	})

	desyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakout_desyncs_total",
		Help: "Checksum mismatches reported by the peer",
	})

	sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakout_session_events_total",
		Help: "Session events by kind",
	}, []string{"kind"}) // Bounded: session.EventKind names

	droppedDatagrams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breakout_dropped_datagrams",
		Help: "Datagrams dropped because the inbox was full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// Relay metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Currently seated relay connections",
	})

	relayRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms with at least one seated player",
	})

	relayForwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_frames_forwarded_total",
		Help: "Binary frames forwarded between seats",
	})
)

// PromMetrics reports match health to Prometheus. It implements
// match.Metrics.
type PromMetrics struct{}

func (PromMetrics) RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func (PromMetrics) RecordRollback(frames int) {
	rollbacksTotal.Inc()
	rollbackDepth.Observe(float64(frames))
}

func (PromMetrics) SetAwaitingPeer(awaiting bool) {
	if awaiting {
		awaitingPeer.Set(1)
	} else {
		awaitingPeer.Set(0)
	}
}

func (PromMetrics) RecordDesync() {
	desyncsTotal.Inc()
}

func (PromMetrics) RecordSessionEvent(kind string) {
	sessionEvents.WithLabelValues(kind).Inc()
}

// SetDroppedDatagrams publishes the transport's running drop count.
func (PromMetrics) SetDroppedDatagrams(n uint64) {
	droppedDatagrams.Set(float64(n))
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, /metrics and /health.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server.
// It binds to localhost unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopbackAddr(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	handler := DebugHandler(cfg)
	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func isLoopbackAddr(addr string) bool {
	for _, prefix := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		RecordRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates the seated connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

func UpdateRelayRooms(count int) {
	relayRoomsActive.Set(float64(count))
}

func IncrementRelayForwarded() {
	relayForwardedTotal.Inc()
}
