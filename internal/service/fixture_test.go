package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/calendar/calendartest"
	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/store"
	"github.com/teemow/calendarlink/internal/store/storetest"
)

const testPhone = "5511999999999"

type staticWatcher struct {
	tok *oauth2.Token
}

func (w *staticWatcher) Refreshed() *oauth2.Token { return w.tok }

type fixture struct {
	store     *storetest.Memory
	cal       *calendartest.Fake
	watcher   *staticWatcher
	opened    []string
	accountID string
	events    *Events
	reminders *Reminders
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, seq *sequencer.Sequencer) *fixture {
	t.Helper()

	f := &fixture{
		store:   storetest.New(),
		cal:     calendartest.New(),
		watcher: &staticWatcher{},
	}
	f.accountID = f.store.AddAccount(store.Account{
		Phone:        testPhone,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})

	cfg := Config{
		Accounts:  f.store,
		Reminders: f.store,
		Calendars: func(_ context.Context, acc *store.Account) (*Session, error) {
			f.opened = append(f.opened, acc.ID)
			return &Session{API: f.cal, Credentials: f.watcher}, nil
		},
		Sequencer: seq,
		Invoker:   resilience.NewInvoker(resilience.WithLogger(discardLogger()), resilience.WithDefaults(3, time.Millisecond)),
		Logger:    discardLogger(),
	}
	f.events = NewEvents(cfg)
	f.reminders = NewReminders(cfg)
	return f
}
