package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/google"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/state"
	"github.com/teemow/calendarlink/internal/store"
	"github.com/teemow/calendarlink/internal/webhook"
)

// LinkCodeTTL is how long a connect link can be redeemed.
const LinkCodeTTL = 15 * time.Minute

// OAuthProvider is the consent flow of the calendar provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, tok *oauth2.Token) (google.UserInfo, error)
}

// LinkCodeStore keeps one-shot link codes.
type LinkCodeStore interface {
	Put(ctx context.Context, code, phone string, ttl time.Duration) error
	Take(ctx context.Context, code string) (string, bool, error)
}

// Notifier is told about newly linked accounts.
type Notifier interface {
	CalendarConnected(ctx context.Context, ev webhook.ConnectedEvent)
}

// LinkingConfig wires Linking.
type LinkingConfig struct {
	Codec    *state.Codec
	OAuth    OAuthProvider
	Accounts store.AccountStore
	// LinkCodes is optional. Without it Start returns the consent URL directly.
	LinkCodes LinkCodeStore
	// Notifier is optional.
	Notifier Notifier
	Invoker  *resilience.Invoker
	Logger   *slog.Logger
	Now      func() time.Time
}

// Linking runs the account linking handshake.
type Linking struct {
	codec     *state.Codec
	oauth     OAuthProvider
	accounts  store.AccountStore
	linkCodes LinkCodeStore
	notifier  Notifier
	inv       *resilience.Invoker
	logger    *slog.Logger
	now       func() time.Time
}

// NewLinking creates the linking flow.
func NewLinking(cfg LinkingConfig) *Linking {
	l := &Linking{
		codec:     cfg.Codec,
		oauth:     cfg.OAuth,
		accounts:  cfg.Accounts,
		linkCodes: cfg.LinkCodes,
		notifier:  cfg.Notifier,
		inv:       cfg.Invoker,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.inv == nil {
		l.inv = resilience.NewInvoker(resilience.WithLogger(l.logger))
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// ShortLinks reports whether Start hands out short link codes.
func (l *Linking) ShortLinks() bool {
	return l.linkCodes != nil
}

// StartResult is either a short connect link or the consent URL itself.
type StartResult struct {
	ConnectURL       string `json:"connect_url,omitempty"`
	TTLSeconds       int    `json:"ttl_seconds,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
}

// Start begins linking a calendar to phone. baseURL is the public origin
// used to build the short connect link.
func (l *Linking) Start(ctx context.Context, phone, baseURL string) (StartResult, error) {
	digits := NormalizePhone(phone)
	if digits == "" {
		return StartResult{}, ErrPhoneRequired
	}

	if l.linkCodes != nil {
		code, err := newLinkCode()
		if err != nil {
			return StartResult{}, err
		}
		if err := l.linkCodes.Put(ctx, code, digits, LinkCodeTTL); err != nil {
			return StartResult{}, err
		}

		l.logger.InfoContext(ctx, "issued calendar link", logging.PhoneHash(digits))
		return StartResult{
			ConnectURL: strings.TrimRight(baseURL, "/") + "/calendar/link/" + code,
			TTLSeconds: int(LinkCodeTTL / time.Second),
		}, nil
	}

	authURL, err := l.consentURL(digits)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{AuthorizationURL: authURL}, nil
}

// Redeem consumes a link code and returns the consent URL for its phone.
func (l *Linking) Redeem(ctx context.Context, code string) (string, error) {
	if l.linkCodes == nil {
		return "", ErrLinkUnavailable
	}

	phone, ok, err := l.linkCodes.Take(ctx, code)
	if err != nil {
		return "", err
	}
	if !ok || phone == "" {
		return "", ErrLinkExpired
	}
	return l.consentURL(phone)
}

func (l *Linking) consentURL(phone string) (string, error) {
	token, err := l.codec.Issue(phone)
	if err != nil {
		return "", fmt.Errorf("failed to issue state: %w", err)
	}
	return l.oauth.AuthCodeURL(token), nil
}

// Linked describes an account after a completed handshake.
type Linked struct {
	Phone      string
	Email      string
	AccountID  string
	CalendarID string
}

// Complete finishes the handshake: it checks the signed state, exchanges
// the authorization code and records the account.
func (l *Linking) Complete(ctx context.Context, stateToken, code string) (Linked, error) {
	claims, err := l.codec.Verify(stateToken)
	if err != nil {
		l.logger.WarnContext(ctx, "rejected oauth state", logging.Err(err))
		return Linked{}, wrap(CodeInvalidState, err)
	}
	if code == "" {
		return Linked{}, ErrMissingCode
	}
	phone := claims.Subject

	exchanged, err := resilience.Call(ctx, l.inv, func(ctx context.Context) (*oauth2.Token, error) {
		return l.oauth.Exchange(ctx, code)
	}, resilience.WithOperation("oauth.exchange"), resilience.WithMaxAttempts(3))
	if err != nil {
		return Linked{}, wrap(CodeOAuthFailed, err)
	}
	tok := exchanged.Value

	info, err := resilience.Call(ctx, l.inv, func(ctx context.Context) (google.UserInfo, error) {
		return l.oauth.UserInfo(ctx, tok)
	}, resilience.WithOperation("oauth.userinfo"), resilience.WithMaxAttempts(3))
	if err != nil {
		return Linked{}, wrap(CodeOAuthFailed, err)
	}

	acc, err := l.accounts.UpsertAccount(ctx, store.AccountUpsert{
		Phone:             phone,
		ProviderAccountID: info.Value.ID,
		Email:             info.Value.Email,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		ExpiresAt:         tok.Expiry,
	})
	if err != nil {
		return Linked{}, err
	}

	l.logger.InfoContext(ctx, "calendar linked",
		logging.Account(acc.ID),
		logging.PhoneHash(phone),
		logging.UserHash(acc.Email))

	if l.notifier != nil {
		l.notifier.CalendarConnected(ctx, webhook.ConnectedEvent{
			Phone:             phone,
			CalendarAccountID: acc.ID,
			CalendarID:        acc.CalendarID,
			Email:             acc.Email,
			ConnectedAt:       l.now(),
		})
	}

	return Linked{Phone: phone, Email: acc.Email, AccountID: acc.ID, CalendarID: acc.CalendarID}, nil
}

// NormalizePhone keeps only the digits of phone.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

func newLinkCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate link code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
