package sequencer

import (
	"errors"
	"fmt"
	"time"
)

// ErrLockTimeout is matched by every *LockTimeoutError via errors.Is.
var ErrLockTimeout = errors.New("throttle_lock_timeout")

// ErrEmptyKey is returned when Run is called without a coordination key.
var ErrEmptyKey = errors.New("sequencer: coordination key must not be empty")

// LockTimeoutError reports that exclusivity on Key could not be obtained
// within the maximum wait.
type LockTimeoutError struct {
	Key    string
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("%s:%s", ErrLockTimeout.Error(), e.Key)
}

// Is reports whether target is ErrLockTimeout.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// IsLockTimeout reports whether err is or wraps a lock acquisition timeout.
func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
