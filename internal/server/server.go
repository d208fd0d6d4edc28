package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/edaq/internal/hub"
	"github.com/me/edaq/internal/runner"
	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/internal/store"
	"github.com/me/edaq/pkg/model"
)

// Producer is the part of the producer scheduler the API drives.
type Producer interface {
	scheduler.Registrar
	Pause()
	Resume()
	Status() scheduler.Status
	Values(a model.Axis) []any
	Peek() (model.Event, bool)
}

// Runner is the part of the consumer scheduler the API drives.
type Runner interface {
	Pause()
	Resume()
	Cancel()
	Status() runner.Status
}

// Server is the edaq control API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	producer  Producer
	runner    Runner        // optional; nil when only the producer runs here
	journal   store.Journal // optional; nil when journaling is disabled
	hub       *hub.Hub      // optional; enables the frame stream

	anonOnce sync.Once
	anon     scheduler.Registration
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithRunner lets the API pause, resume and cancel the consumer.
func WithRunner(r Runner) Option {
	return func(s *Server) {
		s.runner = r
	}
}

// WithJournal serves run history from j.
func WithJournal(j store.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// WithHub streams frames published on h over SSE.
func WithHub(h *hub.Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// New creates a new Server with all routes registered.
func New(producer Producer, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
		producer:  producer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Post("/actuators", s.handleRegisterActuator)
		r.Post("/events", s.handleRegisterEvents)
		r.Get("/events/next", s.handlePeekEvent)

		r.Route("/control", func(r chi.Router) {
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/stop", s.handleStop)
			r.Post("/cancel", s.handleCancel)
		})

		r.Route("/axes", func(r chi.Router) {
			r.Get("/", s.handleListAxes)
			r.Get("/{axis}", s.handleGetAxis)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/executions", s.handleListExecutions)
			})
		})

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/frames", s.handleSSEFrames)
		})
	})
}

// anonymous returns the actuator used for registrations that name none. It
// is registered lazily, so it only holds reset permission if it is the first
// actuator of the run.
func (s *Server) anonymous() scheduler.Registration {
	s.anonOnce.Do(func() {
		s.anon = s.producer.RegisterActuator(0)
		s.logger.Info("anonymous actuator registered", "actuator_id", s.anon.ID)
	})
	return s.anon
}
