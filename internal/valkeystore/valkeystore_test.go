package valkeystore

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoURL)

	_, err = NewClient(Config{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestTTLConversions(t *testing.T) {
	assert.Equal(t, int64(1), millis(0))
	assert.Equal(t, int64(1), millis(500*time.Microsecond))
	assert.Equal(t, int64(1500), millis(1500*time.Millisecond))

	assert.Equal(t, int64(1), seconds(10*time.Millisecond))
	assert.Equal(t, int64(900), seconds(LinkCodeTTL))
}

func TestLinkCodeKey(t *testing.T) {
	assert.Equal(t, "calendar:link:abc", LinkCodeKey("abc"))
}

func TestValkey_Integration(t *testing.T) {
	url := os.Getenv("CALENDARLINK_TEST_VALKEY_URL")
	if url == "" {
		t.Skip("CALENDARLINK_TEST_VALKEY_URL not set (integration test)")
	}

	client, err := NewClient(Config{URL: url})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	locks := NewLockStore(client)
	key := "calendarlink-test:" + strconv.FormatInt(time.Now().UnixNano(), 10)

	ok, err := locks.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX must fail while the lock is held")

	deleted, err := locks.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted, "a foreign owner must not delete the lock")

	val, found, err := locks.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "owner-a", val)

	deleted, err = locks.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err = locks.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	codes := NewLinkCodes(client)
	require.NoError(t, codes.Put(ctx, key, "5511999999999", LinkCodeTTL))

	phone, found, err := codes.Take(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "5511999999999", phone)

	_, found, err = codes.Take(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "link codes are single use")
}
