// Package webhook notifies the automation backend when a calendar is linked.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calendarlink/internal/logging"
)

const (
	// DefaultTimeout bounds one notification request.
	DefaultTimeout = 4500 * time.Millisecond

	// SecretHeader carries the shared secret, when configured.
	SecretHeader = "x-bia-webhook-secret"

	// maxLoggedBody caps how much of an error response is logged.
	maxLoggedBody = 512
)

// ConnectedEvent describes a newly linked calendar account.
type ConnectedEvent struct {
	Phone             string
	CalendarAccountID string
	CalendarID        string
	Email             string
	ConnectedAt       time.Time
}

type connectedPayload struct {
	Event             string  `json:"event"`
	Provider          string  `json:"provider"`
	Phone             string  `json:"phone"`
	CalendarAccountID string  `json:"calendar_account_id"`
	CalendarID        string  `json:"calendar_id"`
	Email             *string `json:"email"`
	ConnectedAt       string  `json:"connected_at"`
}

// Notifier posts account events to a webhook URL. A Notifier with no URL
// does nothing. Delivery failures are logged and never returned.
type Notifier struct {
	url     string
	secret  string
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNotifier creates a notifier for url, signing requests with secret when set.
func NewNotifier(url, secret string, opts ...Option) *Notifier {
	n := &Notifier{
		url:     url,
		secret:  secret,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether a URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// CalendarConnected posts a calendar_connected event.
func (n *Notifier) CalendarConnected(ctx context.Context, ev ConnectedEvent) {
	if !n.Enabled() {
		return
	}

	connectedAt := ev.ConnectedAt
	if connectedAt.IsZero() {
		connectedAt = time.Now()
	}

	p := connectedPayload{
		Event:             "calendar_connected",
		Provider:          "google",
		Phone:             ev.Phone,
		CalendarAccountID: ev.CalendarAccountID,
		CalendarID:        ev.CalendarID,
		ConnectedAt:       connectedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if ev.Email != "" {
		p.Email = &ev.Email
	}

	if err := n.post(ctx, p); err != nil {
		n.logger.ErrorContext(ctx, "webhook delivery failed",
			logging.Operation("calendar_connected"),
			logging.PhoneHash(ev.Phone),
			logging.Err(err))
	}
}

func (n *Notifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SecretHeader, n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
