package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/logging"
	"snsnotify/internal/notifier"
	"snsnotify/internal/settings"
)

// EventHandler processes inbound build events.
type EventHandler interface {
	Handle(ctx context.Context, ev build.Event, sink notifier.Sink) (notifier.Outcome, error)
}

// JobStore is the persistence behind the job and history routes.
type JobStore interface {
	GetJob(ctx context.Context, job string) (build.JobConfig, error)
	PutJob(ctx context.Context, cfg build.JobConfig) error
	DeleteJob(ctx context.Context, job string) error
	ListJobs(ctx context.Context) ([]build.JobConfig, error)
	ListBuilds(ctx context.Context, job string, limit int) ([]build.Record, error)
	Ping(ctx context.Context) error
}

// SettingsStore reads and updates the global settings.
type SettingsStore interface {
	Snapshot() settings.Global
	Apply(p settings.Patch) (settings.Global, error)
}

// Options configures the router.
type Options struct {
	Events         EventHandler
	Jobs           JobStore
	Settings       SettingsStore
	Token          config.Secret
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

type server struct {
	events   EventHandler
	jobs     JobStore
	settings SettingsStore
	logger   *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{
		events:   opts.Events,
		jobs:     opts.Jobs,
		settings: opts.Settings,
		logger:   logging.NewComponentLogger(opts.Logger, "api"),
	}

	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(tracing("snsnotify-api", otelOpts...))
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(opts.Token.Reveal()))

		r.Post("/builds/started", s.handleBuildEvent(build.PhaseStarted))
		r.Post("/builds/completed", s.handleBuildEvent(build.PhaseCompleted))

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{job}", s.handleGetJob)
		r.Put("/jobs/{job}", s.handlePutJob)
		r.Delete("/jobs/{job}", s.handleDeleteJob)
		r.Get("/jobs/{job}/builds", s.handleListBuilds)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePatchSettings)
	})
	return r
}

// NewServer wraps handler in an http.Server with the daemon's timeouts.
func NewServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
