package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Config holds the OAuth client registration used to link calendars.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides Google's OAuth endpoints, for tests.
	Endpoint oauth2.Endpoint

	// APIEndpoint overrides the userinfo API base URL, for tests.
	APIEndpoint string
}

// UserInfo identifies the Google account that granted access.
type UserInfo struct {
	ID    string
	Email string
}

// OAuth performs the authorization code flow against Google.
type OAuth struct {
	conf        *oauth2.Config
	apiEndpoint string
}

// NewOAuth returns an OAuth client for cfg.
func NewOAuth(cfg Config) (*OAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client id and secret are required")
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       DefaultOAuthScopes,
		},
		apiEndpoint: cfg.APIEndpoint,
	}, nil
}

// AuthCodeURL returns the consent URL carrying state. Offline access and a
// forced consent prompt make Google return a refresh token on every link.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

// TokenSource returns a refreshing token source for tok that remembers
// whether it had to refresh.
func (o *OAuth) TokenSource(ctx context.Context, tok *oauth2.Token) *TrackingTokenSource {
	return NewTrackingTokenSource(o.conf.TokenSource(ctx, tok), tok)
}

// HTTPClient returns an HTTP client authenticating with ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	return client
}

// UserInfo fetches the email and id of the account that owns tok.
func (o *OAuth) UserInfo(ctx context.Context, tok *oauth2.Token) (UserInfo, error) {
	opts := []option.ClientOption{option.WithHTTPClient(HTTPClient(ctx, o.conf.TokenSource(ctx, tok)))}
	if o.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(o.apiEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to create OAuth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}

	return UserInfo{ID: info.Id, Email: info.Email}, nil
}
