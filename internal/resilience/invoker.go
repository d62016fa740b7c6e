package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/instrumentation"
	"github.com/teemow/calendarlink/internal/logging"
)

const (
	// DefaultMaxAttempts is the total number of calls made before giving up.
	DefaultMaxAttempts = 6

	// DefaultBaseDelay is the delay before the second attempt.
	DefaultBaseDelay = 800 * time.Millisecond

	// MaxDelay caps the un-jittered backoff delay.
	MaxDelay = 30 * time.Second

	jitterFactor = 0.3
)

// ErrInvalidOption is returned when Call is given an unusable option.
var ErrInvalidOption = errors.New("resilience: invalid option")

// CredentialWatcher reports an OAuth token refreshed during a call.
// Refreshed returns nil when nothing was refreshed.
type CredentialWatcher interface {
	Refreshed() *oauth2.Token
}

// Result is the outcome of a successful Call.
type Result[T any] struct {
	Value T

	// Refreshed holds credentials renewed while the call ran, or nil.
	// The caller is responsible for persisting them.
	Refreshed *oauth2.Token

	// Attempts is the number of times the function was invoked.
	Attempts int
}

// Invoker holds the defaults and telemetry shared by calls. It keeps no
// per-call state and is safe for concurrent use.
type Invoker struct {
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	maxAttempts int
	baseDelay   time.Duration
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithLogger sets the logger used to report scheduled retries.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for retries.
func WithMetrics(m *instrumentation.Metrics) InvokerOption {
	return func(inv *Invoker) { inv.metrics = m }
}

// WithDefaults overrides the default attempt budget and base delay.
func WithDefaults(maxAttempts int, baseDelay time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if maxAttempts > 0 {
			inv.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			inv.baseDelay = baseDelay
		}
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

type callConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	operation   string
	credentials CredentialWatcher
}

// CallOption overrides settings for one Call.
type CallOption func(*callConfig)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) CallOption {
	return func(c *callConfig) { c.maxAttempts = n }
}

// WithBaseDelay sets the delay before the second attempt.
func WithBaseDelay(d time.Duration) CallOption {
	return func(c *callConfig) { c.baseDelay = d }
}

// WithOperation names the call in logs and metrics.
func WithOperation(name string) CallOption {
	return func(c *callConfig) { c.operation = name }
}

// WithCredentials reports tokens refreshed by w in Result.Refreshed.
func WithCredentials(w CredentialWatcher) CallOption {
	return func(c *callConfig) { c.credentials = w }
}

// newBackOff returns a fresh schedule yielding
// min(MaxDelay, base*2^(n-1)) scaled by a factor in [0.7, 1.3].
func newBackOff(base time.Duration) *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: jitterFactor,
		Multiplier:          2,
		MaxInterval:         MaxDelay,
	}
}

// Call invokes fn until it succeeds, fails permanently, or the attempt
// budget is exhausted. On failure the last error from fn is returned
// unwrapped. A nil inv uses package defaults.
func Call[T any](ctx context.Context, inv *Invoker, fn func(context.Context) (T, error), opts ...CallOption) (Result[T], error) {
	if inv == nil {
		inv = NewInvoker()
	}

	cfg := callConfig{
		maxAttempts: inv.maxAttempts,
		baseDelay:   inv.baseDelay,
		operation:   "remote_call",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var result Result[T]
	if cfg.maxAttempts < 1 {
		return result, fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidOption, cfg.maxAttempts)
	}
	if cfg.baseDelay < 0 {
		return result, fmt.Errorf("%w: base delay must not be negative, got %s", ErrInvalidOption, cfg.baseDelay)
	}

	logger := logging.WithOperation(inv.logger, cfg.operation)

	op := func() (T, error) {
		result.Attempts++
		v, err := fn(ctx)
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, next time.Duration) {
		inv.metrics.RecordRetry(ctx, cfg.operation)
		instrumentation.AddSpanEvent(trace.SpanFromContext(ctx), "retry",
			instrumentation.NewSpanAttributeBuilder().
				WithOperation(cfg.operation).
				WithAttempts(result.Attempts).
				Build()...)
		logger.InfoContext(ctx, "transient failure, retrying",
			logging.Attempt(result.Attempts),
			slog.Duration("backoff", next),
			logging.Err(err))
	}

	value, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newBackOff(cfg.baseDelay)),
		backoff.WithMaxTries(uint(cfg.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	if cfg.credentials != nil {
		result.Refreshed = cfg.credentials.Refreshed()
	}

	if err != nil {
		// Retry leaves the wrapper in place when the budget runs out on a permanent error.
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return result, err
	}

	result.Value = value
	return result, nil
}

// Do is Call for functions that return only an error.
func Do(ctx context.Context, inv *Invoker, fn func(context.Context) error, opts ...CallOption) (Result[struct{}], error) {
	return Call(ctx, inv, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
}
