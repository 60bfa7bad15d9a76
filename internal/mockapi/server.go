// Package mockapi is an in-memory stand-in for the ranking REST API, used
// for local development and end-to-end tests of the client engine.
package mockapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Namespaces []string
	Accounts   []Account
	JWTSecret  []byte
	AccessTTL  time.Duration
	// Seed fills every ranking with sample items.
	Seed bool
}

type Server struct {
	store     *memoryStore
	accounts  map[string]account
	jwtSecret []byte
	accessTTL time.Duration
	rdb       *redis.Client
	events    string
	log       *zap.Logger
	now       func() time.Time
}

// NewServer builds a server. rdb may be nil, in which case change events
// are not published.
func NewServer(cfg Config, rdb *redis.Client, log *zap.Logger) (*Server, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("mockapi: JWT secret is empty")
	}
	if len(cfg.Namespaces) == 0 {
		return nil, errors.New("mockapi: at least one ranking namespace is required")
	}
	accounts, err := hashAccounts(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		store:     newMemoryStore(cfg.Namespaces),
		accounts:  accounts,
		jwtSecret: cfg.JWTSecret,
		accessTTL: cfg.AccessTTL,
		rdb:       rdb,
		events:    "broadcast",
		log:       log,
		now:       defaultNow,
	}
	if cfg.Seed {
		for _, ns := range cfg.Namespaces {
			for _, it := range sampleItems() {
				it.ID = newID()
				if _, err := s.store.insert(ns, it); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Post("/api/login", s.handleLogin)

	r.Get("/api/{ns}", s.handleList)
	r.Post("/api/{ns}", s.handleCreate)
	r.Put("/api/{ns}/{id}/vote", s.handleVote)

	r.Group(func(r chi.Router) {
		r.Use(s.requireEditor)
		r.Put("/api/{ns}/{id}", s.handleUpdate)
		r.Delete("/api/{ns}/{id}", s.handleDelete)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "ranking-mock-api",
	})
}
