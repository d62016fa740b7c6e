package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/calendar"
	"github.com/teemow/calendarlink/internal/google"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/store"
)

const (
	// DefaultTimeZone applies when neither the caller nor the stored
	// reminder names one.
	DefaultTimeZone = "America/Sao_Paulo"

	// ListInterval is the minimum spacing between reads on one account.
	ListInterval = 700 * time.Millisecond
	// WriteInterval is the minimum spacing between writes on one account.
	WriteInterval = 800 * time.Millisecond

	// ReminderDuration is the length of the event created for a reminder.
	ReminderDuration = 30
)

// Session is a calendar client bound to one account.
type Session struct {
	API calendar.API
	// Credentials reports tokens the client refreshed. It may be nil.
	Credentials resilience.CredentialWatcher
}

// CalendarFactory opens a calendar session for an account.
type CalendarFactory func(ctx context.Context, acc *store.Account) (*Session, error)

// GoogleCalendars opens sessions against Google Calendar with the account's
// stored credentials, refreshing them through oauth as needed.
func GoogleCalendars(oauth *google.OAuth, opts ...calendar.Option) CalendarFactory {
	return func(ctx context.Context, acc *store.Account) (*Session, error) {
		tok := &oauth2.Token{
			AccessToken:  acc.AccessToken,
			RefreshToken: acc.RefreshToken,
			TokenType:    "Bearer",
		}
		if acc.TokenExpiresAt != nil {
			tok.Expiry = *acc.TokenExpiresAt
		}

		ts := oauth.TokenSource(ctx, tok)
		client, err := calendar.NewClient(ctx, google.HTTPClient(ctx, ts), opts...)
		if err != nil {
			return nil, err
		}
		return &Session{API: client, Credentials: ts}, nil
	}
}

// Config wires the dependencies shared by Events and Reminders.
type Config struct {
	Accounts  store.AccountStore
	Reminders store.ReminderStore
	Calendars CalendarFactory
	Sequencer *sequencer.Sequencer
	Invoker   *resilience.Invoker
	Logger    *slog.Logger
}

type core struct {
	accounts  store.AccountStore
	reminders store.ReminderStore
	calendars CalendarFactory
	seq       *sequencer.Sequencer
	inv       *resilience.Invoker
	logger    *slog.Logger
}

func newCore(cfg Config) core {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seq := cfg.Sequencer
	if seq == nil {
		seq = sequencer.New(nil, sequencer.WithLogger(logger))
	}
	inv := cfg.Invoker
	if inv == nil {
		inv = resilience.NewInvoker(resilience.WithLogger(logger))
	}
	return core{
		accounts:  cfg.Accounts,
		reminders: cfg.Reminders,
		calendars: cfg.Calendars,
		seq:       seq,
		inv:       inv,
		logger:    logger,
	}
}

// accountSession is an open calendar session and the account it belongs to.
type accountSession struct {
	account   *store.Account
	session   *Session
	persisted string
}

func (s *accountSession) calendarID() string {
	if s.account.CalendarID == "" {
		return calendar.DefaultCalendarID
	}
	return s.account.CalendarID
}

func (s *accountSession) key() string {
	return "calendar:" + s.account.ID
}

// activeSession loads the caller's active account and opens its calendar.
func (c *core) activeSession(ctx context.Context, phone string) (*accountSession, error) {
	acc, err := c.accounts.FindActiveAccount(ctx, phone)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNoCalendarAccount
	}
	return c.open(ctx, acc)
}

func (c *core) open(ctx context.Context, acc *store.Account) (*accountSession, error) {
	if !acc.HasCredentials() {
		return nil, ErrInvalidTokens
	}
	sess, err := c.calendars(ctx, acc)
	if err != nil {
		return nil, fmt.Errorf("failed to open calendar: %w", err)
	}
	return &accountSession{account: acc, session: sess}, nil
}

// persist stores credentials refreshed during a call. Failures are logged;
// the refresh token stays valid, so the next call can refresh again.
func (c *core) persist(ctx context.Context, s *accountSession, tok *oauth2.Token) {
	if tok == nil || tok.AccessToken == "" || tok.AccessToken == s.persisted {
		return
	}
	s.persisted = tok.AccessToken

	err := c.accounts.UpdateTokens(context.WithoutCancel(ctx), s.account.ID, store.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to persist refreshed credentials",
			logging.Account(s.account.ID),
			logging.Err(err))
		return
	}
	c.logger.DebugContext(ctx, "persisted refreshed credentials", logging.Account(s.account.ID))
}

// invoke runs one remote call on s through the resilience invoker.
func invoke[T any](ctx context.Context, c *core, s *accountSession, operation string, fn func(ctx context.Context, api calendar.API) (T, error)) (T, error) {
	opts := []resilience.CallOption{resilience.WithOperation(operation)}
	if s.session.Credentials != nil {
		opts = append(opts, resilience.WithCredentials(s.session.Credentials))
	}

	res, err := resilience.Call(ctx, c.inv, func(ctx context.Context) (T, error) {
		return fn(ctx, s.session.API)
	}, opts...)
	c.persist(ctx, s, res.Refreshed)
	return res.Value, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
