package sequencer

import (
	"context"
	"time"
)

// LockStore is the shared key-value store backing locks and pace markers.
// Implementations must make SetNX and CompareAndDelete atomic on the server.
type LockStore interface {
	// SetNX stores value under key with the given TTL only if key is absent.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value under key. The boolean is false if key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set unconditionally stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// CompareAndDelete deletes key only if its current value equals expected.
	// It reports whether the key was deleted.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// LockKey returns the store key holding the lock record for a coordination key.
func LockKey(key string) string {
	return "throttle:lock:" + key
}

// PaceKey returns the store key holding the pace marker for a coordination key.
func PaceKey(key string) string {
	return "throttle:last:" + key
}
