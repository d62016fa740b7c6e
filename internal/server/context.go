package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/calendarlink/internal/instrumentation"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/store"
)

// Services groups the operations exposed over HTTP and MCP.
type Services struct {
	Events    *service.Events
	Reminders *service.Reminders
	Linking   *service.Linking
}

// ServerContext holds the shared state of a running calendarlink process.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	services Services
	database store.Pinger
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	baseURL  string
	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithDatabase sets the database reported by the /health endpoint.
func WithDatabase(db store.Pinger) Option {
	return func(sc *ServerContext) {
		sc.database = db
	}
}

// WithMetrics sets the metrics recorder used by request middleware.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithPublicBaseURL sets the public origin used in connect links.
func WithPublicBaseURL(u string) Option {
	return func(sc *ServerContext) {
		sc.baseURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// NewServerContext creates a server context derived from ctx.
func NewServerContext(ctx context.Context, services Services, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		services: services,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Events returns the calendar event operations.
func (sc *ServerContext) Events() *service.Events {
	return sc.services.Events
}

// Reminders returns the reminder operations.
func (sc *ServerContext) Reminders() *service.Reminders {
	return sc.services.Reminders
}

// Linking returns the account linking flow.
func (sc *ServerContext) Linking() *service.Linking {
	return sc.services.Linking
}

// Database returns the database handle, or nil when none was configured.
func (sc *ServerContext) Database() store.Pinger {
	return sc.database
}

// Metrics returns the metrics recorder. It may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// PublicBaseURL returns the public origin, or "" when it is not configured.
func (sc *ServerContext) PublicBaseURL() string {
	return sc.baseURL
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
