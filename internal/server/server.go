// Package server implements the HTTP coordination service: field
// claiming under a lease model, submission validation and consensus,
// and read endpoints for aggregated base/chunk stats.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/wasabipesto/nice/internal/config"
	"github.com/wasabipesto/nice/internal/kernel"
	"github.com/wasabipesto/nice/internal/store"
)

// Server wires the coordination service's dependencies and builds the
// chi router handlers close over.
type Server struct {
	store   store.Store
	queue   *NiceonlyQueue
	scanner kernel.DigitScanner
	redis   *redis.Client
	cfg     config.ServerConfig
}

// New constructs a Server. redisClient may be nil, in which case
// /ws/stats reports itself unavailable rather than failing to start.
func New(s store.Store, queue *NiceonlyQueue, redisClient *redis.Client, cfg config.ServerConfig) *Server {
	return &Server{
		store:   s,
		queue:   queue,
		scanner: kernel.NewCPUScanner(),
		redis:   redisClient,
		cfg:     cfg,
	}
}

// Router builds the chi.Mux serving every route in the coordination
// service's HTTP API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestTiming)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	perSec := float64(s.cfg.RateLimitPerSec)
	if perSec <= 0 {
		perSec = 20
	}
	burst := s.cfg.RateLimitBurst
	if burst <= 0 {
		burst = 40
	}
	limiter := newIPRateLimiter(perSec, burst)
	r.Use(limiter.middleware)

	r.Get("/", s.handleIndex)
	r.Get("/status", s.handleStatus)
	r.Get("/claim/validate", s.handleClaimValidate)
	r.Post("/claim/{mode}", s.handleClaim)
	r.Post("/submit", s.handleSubmit)
	r.Get("/bases", s.handleListBases)
	r.Get("/chunks", s.handleListChunks)
	r.Get("/submission", s.handleGetSubmission)
	r.Get("/ws/stats", s.handleWSStats)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		notFoundError(w, notFoundMessage)
	})

	return r
}

const notFoundMessage = "The requested resource could not be found. Available resources include /claim/detailed, /claim/niceonly, /claim/validate, /submit, /bases, /chunks, and /submission."

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	notFoundError(w, notFoundMessage)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":              "ok",
		"niceonly_queue_size": s.queue.Size(),
	})
}

// StartSweeper launches the background stale-claim expiry loop, run
// once per server lifetime alongside the router.
func (s *Server) StartSweeper(ctx context.Context, interval time.Duration) {
	go StaleClaimSweeper(ctx, s.store, interval)
}
