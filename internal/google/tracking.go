package google

import (
	"sync"

	"golang.org/x/oauth2"
)

// TrackingTokenSource wraps a refreshing token source and records the
// token it returns once that differs from the stored one.
type TrackingTokenSource struct {
	src           oauth2.TokenSource
	initialAccess string

	mu        sync.Mutex
	refreshed *oauth2.Token
}

// NewTrackingTokenSource wraps src. initial is the token currently persisted.
func NewTrackingTokenSource(src oauth2.TokenSource, initial *oauth2.Token) *TrackingTokenSource {
	t := &TrackingTokenSource{src: src}
	if initial != nil {
		t.initialAccess = initial.AccessToken
	}
	return t
}

// Token implements oauth2.TokenSource.
func (t *TrackingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != t.initialAccess {
		t.mu.Lock()
		t.refreshed = tok
		t.mu.Unlock()
	}
	return tok, nil
}

// Refreshed returns the newest refreshed token, or nil if the stored token
// was used as is.
func (t *TrackingTokenSource) Refreshed() *oauth2.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshed
}
