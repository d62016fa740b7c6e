package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/pages"
	"github.com/teemow/calendarlink/internal/server"
)

// Config holds the public facing settings of the API.
type Config struct {
	// PublicBaseURL is the origin used in connect links. When empty the
	// request's own scheme and host are used.
	PublicBaseURL string

	// WhatsAppNumber is the assistant's number, linked from the success page.
	WhatsAppNumber string

	// Tracing wraps the handler with OpenTelemetry spans.
	Tracing bool
}

// Server routes HTTP requests to the service layer.
type Server struct {
	sc      *server.ServerContext
	pages   *pages.Renderer
	health  *server.HealthChecker
	cfg     Config
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New builds the API router.
func New(sc *server.ServerContext, renderer *pages.Renderer, health *server.HealthChecker, cfg Config) *Server {
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = sc.PublicBaseURL()
	}
	s := &Server{
		sc:     sc,
		pages:  renderer,
		health: health,
		cfg:    cfg,
		logger: sc.Logger(),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /politica-privacidade", s.handlePrivacy)
	health.RegisterHealthEndpoints(s.mux)

	s.mux.HandleFunc("POST /calendar/link/start", s.handleLinkStart)
	s.mux.HandleFunc("GET /calendar/link/{code}", s.handleLinkBounce)
	s.mux.HandleFunc("GET /calendar/link/{code}/go", s.handleLinkGo)
	s.mux.HandleFunc("GET /calendar/callback", s.handleCallback)

	s.mux.HandleFunc("POST /google-events/list", s.handleEventsList)
	s.mux.HandleFunc("POST /google-events/patch", s.handleEventsPatch)
	s.mux.HandleFunc("POST /google-events/delete", s.handleEventsDelete)

	s.mux.HandleFunc("POST /google-reminders/create", s.handleReminderCreate)
	s.mux.HandleFunc("POST /google-reminders/update", s.handleReminderUpdate)
	s.mux.HandleFunc("POST /google-reminders/delete", s.handleReminderDelete)

	s.handler = withMiddleware(s.mux, s.logger, sc.Metrics(), cfg.Tracing)
	return s
}

// Handler returns the router wrapped with request middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// baseURL returns the configured public origin or one derived from r.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	htmlHeaders(w)
	if err := s.pages.Index(w); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", slog.String("page", "index"), logging.Err(err))
	}
}

func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	htmlHeaders(w)
	if err := s.pages.Privacy(w); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", slog.String("page", "privacy"), logging.Err(err))
	}
}
