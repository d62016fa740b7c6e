package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendarlink/internal/clock"
	"github.com/teemow/calendarlink/internal/instrumentation"
	"github.com/teemow/calendarlink/internal/logging"
)

const (
	// DefaultLockTTL is how long a lock record lives if its holder never releases it.
	DefaultLockTTL = 60 * time.Second

	// DefaultMaxWait bounds the total time spent trying to acquire a lock.
	DefaultMaxWait = 240 * time.Second

	// DefaultRetention is how long a pace marker is kept after the last successful run.
	DefaultRetention = 24 * time.Hour

	// DefaultPollInterval is the base delay between acquisition attempts.
	DefaultPollInterval = 120 * time.Millisecond

	minLockTTL   = time.Second
	minMaxWait   = time.Second
	minRetention = time.Minute

	pollJitter     = 0.5
	releaseTimeout = 5 * time.Second
)

// Options tune a single Run. Zero fields fall back to the Sequencer defaults.
type Options struct {
	LockTTL   time.Duration
	MaxWait   time.Duration
	Retention time.Duration
}

// RunOption overrides Options for one Run.
type RunOption func(*Options)

// WithLockTTL overrides the lock record TTL. Values below one second are raised to one second.
func WithLockTTL(d time.Duration) RunOption {
	return func(o *Options) { o.LockTTL = d }
}

// WithMaxWait overrides the maximum acquisition wait. Values below one second are raised to one second.
func WithMaxWait(d time.Duration) RunOption {
	return func(o *Options) { o.MaxWait = d }
}

// WithRetention overrides the pace marker retention. Values below one minute are raised to one minute.
func WithRetention(d time.Duration) RunOption {
	return func(o *Options) { o.Retention = d }
}

// Sequencer runs tasks one at a time per key, spaced by a minimum interval.
type Sequencer struct {
	store    LockStore
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	clock    clock.Clock
	poll     time.Duration
	defaults Options
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger used for degraded-mode and release warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for lock wait outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPollInterval sets the base delay between acquisition attempts.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithDefaults sets the Options applied when a Run does not override them.
func WithDefaults(o Options) Option {
	return func(s *Sequencer) {
		if o.LockTTL > 0 {
			s.defaults.LockTTL = o.LockTTL
		}
		if o.MaxWait > 0 {
			s.defaults.MaxWait = o.MaxWait
		}
		if o.Retention > 0 {
			s.defaults.Retention = o.Retention
		}
	}
}

// New returns a Sequencer backed by store. A nil store yields a Sequencer
// that runs every task immediately without coordination.
func New(store LockStore, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:  store,
		logger: slog.Default(),
		clock:  clock.Real{},
		poll:   DefaultPollInterval,
		defaults: Options{
			LockTTL:   DefaultLockTTL,
			MaxWait:   DefaultMaxWait,
			Retention: DefaultRetention,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Coordinated reports whether the Sequencer has a shared store.
func (s *Sequencer) Coordinated() bool {
	return s.store != nil
}

// Do is Run for tasks that return only an error.
func (s *Sequencer) Do(ctx context.Context, key string, minInterval time.Duration, task func(context.Context) error, opts ...RunOption) error {
	_, err := Run(ctx, s, key, minInterval, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	}, opts...)
	return err
}

// Run executes task while holding the lock for key, after waiting until
// minInterval has passed since the last successful run on key.
//
// The task's result and error are returned unchanged. Run itself fails only
// with a *LockTimeoutError, ErrEmptyKey, or the context error if ctx ends
// while waiting.
func Run[T any](ctx context.Context, s *Sequencer, key string, minInterval time.Duration, task func(context.Context) (T, error), opts ...RunOption) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}
	if minInterval < 0 {
		minInterval = 0
	}

	ctx, span := instrumentation.StartSpan(ctx, "sequencer.run",
		instrumentation.NewSpanAttributeBuilder().WithLockKey(key).Build()...)
	defer span.End()

	if s.store == nil {
		s.metrics.RecordLockWait(ctx, instrumentation.LockDegraded, 0)
		return task(ctx)
	}

	o := s.resolve(opts)
	owner := newOwnerToken()

	held, err := s.acquire(ctx, key, owner, o)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return zero, err
	}
	if !held {
		return task(ctx)
	}
	defer s.release(ctx, key, owner)

	last := s.lastSuccess(ctx, key)
	if !last.IsZero() {
		if wait := last.Add(minInterval).Sub(s.clock.Now()); wait > 0 {
			if err := clock.Sleep(ctx, s.clock, wait); err != nil {
				return zero, err
			}
		}
	}

	result, err := task(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return result, err
	}

	s.markSuccess(ctx, key, last, o.Retention)
	return result, nil
}

func (s *Sequencer) resolve(opts []RunOption) Options {
	o := s.defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.LockTTL <= 0 {
		o.LockTTL = s.defaults.LockTTL
	}
	if o.MaxWait <= 0 {
		o.MaxWait = s.defaults.MaxWait
	}
	if o.Retention <= 0 {
		o.Retention = s.defaults.Retention
	}
	o.LockTTL = max(o.LockTTL, minLockTTL)
	o.MaxWait = max(o.MaxWait, minMaxWait)
	o.Retention = max(o.Retention, minRetention)
	return o
}

// acquire polls SetNX until the lock is held or MaxWait elapses. It returns
// held=false with a nil error when the store is unreachable.
func (s *Sequencer) acquire(ctx context.Context, key, owner string, o Options) (bool, error) {
	lockKey := LockKey(key)
	start := s.clock.Now()

	for {
		ok, err := s.store.SetNX(ctx, lockKey, owner, o.LockTTL)
		waited := s.clock.Now().Sub(start)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			s.logger.WarnContext(ctx, "lock store unavailable, running without coordination",
				logging.Key(key), logging.Err(err))
			s.metrics.RecordLockWait(ctx, instrumentation.LockDegraded, waited)
			return false, nil
		}
		if ok {
			s.metrics.RecordLockWait(ctx, instrumentation.LockAcquired, waited)
			return true, nil
		}
		if waited < o.MaxWait {
			if err := clock.Sleep(ctx, s.clock, s.pollDelay()); err != nil {
				return false, err
			}
			waited = s.clock.Now().Sub(start)
		}
		if waited >= o.MaxWait {
			s.metrics.RecordLockWait(ctx, instrumentation.LockTimeout, waited)
			return false, &LockTimeoutError{Key: key, Waited: waited}
		}
	}
}

func (s *Sequencer) pollDelay() time.Duration {
	factor := 1 - pollJitter + rand.Float64()*2*pollJitter
	return time.Duration(float64(s.poll) * factor)
}

// release deletes the lock only if this run still owns it. It runs even if
// ctx was cancelled so an abandoned run does not hold the key until TTL.
func (s *Sequencer) release(ctx context.Context, key, owner string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	deleted, err := s.store.CompareAndDelete(ctx, LockKey(key), owner)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to release lock", logging.Key(key), logging.Err(err))
		return
	}
	if !deleted {
		s.logger.WarnContext(ctx, "lock expired before release", logging.Key(key))
	}
}

func (s *Sequencer) lastSuccess(ctx context.Context, key string) time.Time {
	raw, ok, err := s.store.Get(ctx, PaceKey(key))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read pace marker", logging.Key(key), logging.Err(err))
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		s.logger.WarnContext(ctx, "ignoring invalid pace marker", logging.Key(key), slog.String("value", raw))
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Sequencer) markSuccess(ctx context.Context, key string, last time.Time, retention time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	now := s.clock.Now()
	if last.After(now) {
		now = last
	}
	value := strconv.FormatInt(now.UnixMilli(), 10)
	if err := s.store.Set(ctx, PaceKey(key), value, retention); err != nil {
		s.logger.WarnContext(ctx, "failed to write pace marker", logging.Key(key), logging.Err(err))
	}
}

func newOwnerToken() string {
	return fmt.Sprintf("%d:%s", os.Getpid(), uuid.NewString())
}
