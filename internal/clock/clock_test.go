package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarlink/internal/clock"
)

func TestRealNowUsesUTC(t *testing.T) {
	t.Parallel()

	now := clock.Real{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestManualAdvanceFiresDueTimers(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := clock.NewManual(start)

	early := m.After(time.Second)
	late := m.After(time.Minute)
	require.Equal(t, 2, m.Pending())

	m.Advance(2 * time.Second)
	select {
	case got := <-early:
		assert.Equal(t, start.Add(2*time.Second), got)
	default:
		t.Fatal("expected early timer to fire")
	}
	select {
	case <-late:
		t.Fatal("late timer fired too soon")
	default:
	}
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, start.Add(2*time.Second), m.Now())
}

func TestManualAfterNonPositiveFiresImmediately(t *testing.T) {
	t.Parallel()

	m := clock.NewManual(time.Unix(0, 0))
	select {
	case <-m.After(0):
	default:
		t.Fatal("expected immediate delivery")
	}
}

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()

	m := clock.NewManual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- clock.Sleep(ctx, m, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after cancel")
	}
}

func TestSleepReal(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, clock.Sleep(context.Background(), clock.Real{}, 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.NoError(t, clock.Sleep(context.Background(), clock.Real{}, 0))
}
