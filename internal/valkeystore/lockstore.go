package valkeystore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/teemow/calendarlink/internal/sequencer"
)

// compareAndDelete deletes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore implements sequencer.LockStore on a Valkey client.
type LockStore struct {
	client valkey.Client
}

var _ sequencer.LockStore = (*LockStore)(nil)

// NewLockStore wraps client.
func NewLockStore(client valkey.Client) *LockStore {
	return &LockStore{client: client}
}

// SetNX runs SET key value NX PX ttl.
func (s *LockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	cmd := s.client.B().Set().Key(key).Value(value).Nx().PxMilliseconds(millis(ttl)).Build()
	err := s.client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set lock %s: %w", key, err)
	}
	return true, nil
}

// Get runs GET key.
func (s *LockStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

// Set runs SET key value PX ttl.
func (s *LockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(value).PxMilliseconds(millis(ttl)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// CompareAndDelete deletes key in a server-side script when it still holds expected.
func (s *LockStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDelete.Exec(ctx, s.client, []string{key}, []string{expected}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return n == 1, nil
}
