package valkeystore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// LinkCodeTTL is how long a connect link stays redeemable.
const LinkCodeTTL = 15 * time.Minute

// LinkCodeKey returns the key holding the phone for a link code.
func LinkCodeKey(code string) string {
	return "calendar:link:" + code
}

// LinkCodes stores one-shot link codes mapping to a phone number.
type LinkCodes struct {
	client valkey.Client
}

// NewLinkCodes wraps client.
func NewLinkCodes(client valkey.Client) *LinkCodes {
	return &LinkCodes{client: client}
}

// Put stores phone under code for ttl.
func (l *LinkCodes) Put(ctx context.Context, code, phone string, ttl time.Duration) error {
	cmd := l.client.B().Set().Key(LinkCodeKey(code)).Value(phone).ExSeconds(seconds(ttl)).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store link code: %w", err)
	}
	return nil
}

// Take returns and deletes the phone stored under code. The boolean is
// false when the code is unknown or expired.
func (l *LinkCodes) Take(ctx context.Context, code string) (string, bool, error) {
	phone, err := l.client.Do(ctx, l.client.B().Getdel().Key(LinkCodeKey(code)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to redeem link code: %w", err)
	}
	return phone, true, nil
}
