package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig wires the relay server.
type ServerConfig struct {
	Rooms           RoomStore
	RateLimitConfig *RateLimitConfig
	CORSOrigins     []string
	DisableLogging  bool
}

// Server is the relay: room REST API plus the websocket relay hub.
type Server struct {
	router      *chi.Mux
	relay       *RelayHub
	rooms       RoomStore
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer builds the server. Nothing listens until Start.
func NewServer(cfg ServerConfig) *Server {
	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}

	s := &Server{
		relay:       NewRelayHub(cfg.Rooms),
		rooms:       cfg.Rooms,
		rateLimiter: NewIPRateLimiter(rateLimitCfg),
	}
	s.router = NewRouter(RouterConfig{
		Rooms:          cfg.Rooms,
		Relay:          s.relay,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    cfg.CORSOrigins,
		DisableLogging: cfg.DisableLogging,
	})
	return s
}

// Start serves on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 Relay server starting on %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Relay() *RelayHub {
	return s.relay
}

// Shutdown stops accepting requests, drops every seated player and stops
// background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.relay.Close()
	s.rateLimiter.Stop()
	return err
}
