package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		case "refresh_token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1234","email":"jane@example.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuth(t *testing.T, srv *httptest.Server) *OAuth {
	t.Helper()
	o, err := NewOAuth(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://example.com/calendar/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		APIEndpoint: srv.URL + "/",
	})
	require.NoError(t, err)
	return o
}

func TestNewOAuth_RequiresCredentials(t *testing.T) {
	_, err := NewOAuth(Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	o, err := NewOAuth(Config{ClientID: "client-id", ClientSecret: "s", RedirectURL: "https://example.com/calendar/callback"})
	require.NoError(t, err)

	raw := o.AuthCodeURL("signed.state")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)

	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "signed.state", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://example.com/calendar/callback", q.Get("redirect_uri"))
	assert.Equal(t, strings.Join(DefaultOAuthScopes, " "), q.Get("scope"))
}

func TestExchangeAndUserInfo(t *testing.T) {
	srv := newFakeGoogle(t)
	o := newTestOAuth(t, srv)
	ctx := context.Background()

	tok, err := o.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)

	info, err := o.UserInfo(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, UserInfo{ID: "1234", Email: "jane@example.com"}, info)

	_, err = o.Exchange(ctx, "bad-code")
	require.Error(t, err)
	var retrieveErr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &retrieveErr))
}

func TestTokenSource_ReportsRefresh(t *testing.T) {
	srv := newFakeGoogle(t)
	o := newTestOAuth(t, srv)
	ctx := context.Background()

	fresh := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour)}
	ts := o.TokenSource(ctx, fresh)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Nil(t, ts.Refreshed(), "a valid stored token must not count as refreshed")

	expired := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}
	ts = o.TokenSource(ctx, expired)
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)

	refreshed := ts.Refreshed()
	require.NotNil(t, refreshed)
	assert.Equal(t, "access-2", refreshed.AccessToken)
	assert.Equal(t, "refresh-1", refreshed.RefreshToken, "refresh token is kept when Google omits it")
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("invalid_grant") }

func TestTrackingTokenSource_Error(t *testing.T) {
	ts := NewTrackingTokenSource(failingSource{}, nil)
	_, err := ts.Token()
	assert.Error(t, err)
	assert.Nil(t, ts.Refreshed())
}

func TestHTTPClient_UsesTokenSource(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := HTTPClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}))
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer abc", gotAuth)
}
