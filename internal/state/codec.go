// Package state issues and verifies signed, expiring tokens that carry a
// subject through an OAuth redirect without server-side session storage.
//
// Wire format: base64url(JSON payload) "." base64url(HMAC-SHA256(encoded payload)).
// Tokens are not single use; a captured token stays valid until it expires.
package state

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calendarlink/internal/clock"
	"github.com/teemow/calendarlink/internal/instrumentation"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 15 * time.Minute

const (
	separator  = "."
	nonceBytes = 8
)

var (
	// ErrMalformed means the token is not two base64url components around a
	// separator, or its payload is not valid JSON.
	ErrMalformed = errors.New("state_invalid_format")

	// ErrBadSignature means the signature does not match the payload.
	ErrBadSignature = errors.New("state_invalid_signature")

	// ErrExpired means the token is past issued-at plus ttl, or lacks either.
	ErrExpired = errors.New("state_expired")

	// ErrEmptySecret is returned by NewCodec without a signing secret.
	ErrEmptySecret = errors.New("state: signing secret must not be empty")
)

// IsInvalid reports whether err is any of the three verification failures.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrBadSignature) || errors.Is(err, ErrExpired)
}

type payload struct {
	Phone   string `json:"phone"`
	Subject string `json:"subject,omitempty"`
	Nonce   string `json:"nonce"`
	IAT     int64  `json:"iat"`
	TTLMS   int64  `json:"ttl_ms"`
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a shared secret. It is safe for
// concurrent use.
type Codec struct {
	secret  []byte
	ttl     time.Duration
	clock   clock.Clock
	metrics *instrumentation.Metrics
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(cl clock.Clock) Option {
	return func(c *Codec) {
		if cl != nil {
			c.clock = cl
		}
	}
}

// WithMetrics records verification outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Codec) { c.metrics = m }
}

// NewCodec returns a Codec signing with secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue returns a token for subject that expires after the codec TTL.
func (c *Codec) Issue(subject string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(payload{
		Phone: subject,
		Nonce: hex.EncodeToString(nonce),
		IAT:   c.clock.Now().UnixMilli(),
		TTLMS: c.ttl.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + separator + c.sign(encoded), nil
}

// Verify checks the token signature and freshness and returns its claims.
// It fails with ErrMalformed, ErrBadSignature or ErrExpired.
func (c *Codec) Verify(token string) (Claims, error) {
	claims, err := c.verify(token)
	c.metrics.RecordStateVerification(context.Background(), verificationResult(err))
	return claims, err
}

func (c *Codec) verify(token string) (Claims, error) {
	parts := strings.Split(token, separator)
	if len(parts) != 2 {
		return Claims{}, ErrMalformed
	}
	encoded, sig := parts[0], parts[1]

	// Compare the encoded forms so every character of the signature counts.
	expected := c.sign(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return Claims{}, ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Claims{}, ErrMalformed
	}

	if p.IAT <= 0 || p.TTLMS <= 0 {
		return Claims{}, ErrExpired
	}
	issued := time.UnixMilli(p.IAT)
	expires := issued.Add(time.Duration(p.TTLMS) * time.Millisecond)
	if c.clock.Now().After(expires) {
		return Claims{}, ErrExpired
	}

	subject := p.Phone
	if subject == "" {
		subject = p.Subject
	}
	return Claims{
		Subject:   subject,
		Nonce:     p.Nonce,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return instrumentation.StateValid
	case errors.Is(err, ErrBadSignature):
		return instrumentation.StateBadSignature
	case errors.Is(err, ErrExpired):
		return instrumentation.StateExpired
	default:
		return instrumentation.StateMalformed
	}
}
