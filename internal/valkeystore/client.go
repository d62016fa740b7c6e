package valkeystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrNoURL is returned by NewClient when no server URL is configured.
var ErrNoURL = errors.New("valkey URL is not configured")

// Config holds the connection settings.
type Config struct {
	// URL is a redis:// or rediss:// URL, as accepted by valkey.ParseURL.
	URL string
	// DialTimeout bounds connection establishment. Zero uses the default.
	DialTimeout time.Duration
}

// NewClient connects to the server in cfg.URL.
func NewClient(cfg Config) (valkey.Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	opt, err := valkey.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse valkey URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}
	// Client-side caching is not needed and is unsupported by some managed
	// Redis offerings.
	opt.DisableCache = true

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return client, nil
}

// Ping checks that the server answers.
func Ping(ctx context.Context, client valkey.Client) error {
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("failed to ping valkey: %w", err)
	}
	return nil
}

// millis converts a TTL to whole milliseconds, never below one.
func millis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

// seconds converts a TTL to whole seconds, never below one.
func seconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
