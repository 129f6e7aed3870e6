// pkg/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/learning"
	"github.com/lumix-ai/hopfield/internal/monitoring"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	Remote       string        `yaml:"remote"` // base URL for the client commands
}

// Deps - collaborators the HTTP layer drives
type Deps struct {
	Trainer *learning.Trainer
	Metrics *monitoring.Metrics
	// Noise.Level is used as given; zero makes session noise a no-op.
	Noise         patterns.Config
	MaxIterations int
}

// Server - HTTP/WebSocket front end of the associative memory
type Server struct {
	config     Config
	deps       Deps
	sessions   *cache.Cache
	mux        *http.ServeMux
	httpServer *http.Server

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Trainer == nil || deps.Metrics == nil {
		return nil, errors.New("api: trainer and metrics are required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 15 * time.Second
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = core.DefaultMaxIterations
	}
	seed := deps.Noise.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		config:   config,
		deps:     deps,
		sessions: cache.New(config.SessionTTL, 2*config.SessionTTL),
		mux:      http.NewServeMux(),
		rng:      rand.New(rand.NewSource(seed)),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /v1/patterns", s.handleListPatterns)
	s.mux.HandleFunc("POST /v1/patterns", s.handleAddPattern)
	s.mux.HandleFunc("DELETE /v1/patterns/{name}", s.handleDeletePattern)
	s.mux.HandleFunc("POST /v1/train", s.handleTrain)
	s.mux.HandleFunc("POST /v1/recall", s.handleRecall)
	s.mux.HandleFunc("POST /v1/energy", s.handleEnergy)

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /v1/sessions/{id}/clear", s.handleClear)
	s.mux.HandleFunc("POST /v1/sessions/{id}/noise", s.handleNoise)
	s.mux.HandleFunc("POST /v1/sessions/{id}/load", s.handleLoad)
	s.mux.HandleFunc("POST /v1/sessions/{id}/store", s.handleStore)
	s.mux.HandleFunc("POST /v1/sessions/{id}/recall", s.handleSessionRecall)

	s.mux.HandleFunc("GET /v1/ws/recall", s.handleRecallStream)
}

// Handler - routes wrapped in recovery and request logging
func (s *Server) Handler() http.Handler {
	return recoveryMiddleware(loggingMiddleware(s.mux))
}

// ListenAndServe blocks until the server stops; a clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.config.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"size":       s.deps.Trainer.Network().Size(),
		"generation": s.deps.Trainer.Generation(),
	})
}

func (s *Server) noisy(p core.Pattern, level float64) (core.Pattern, int, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return patterns.AddNoise(s.rng, p, level)
}
