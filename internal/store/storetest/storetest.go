// Package storetest provides in-memory account and reminder stores for tests.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/teemow/calendarlink/internal/store"
)

// Memory implements store.AccountStore, store.ReminderStore and store.Pinger.
type Memory struct {
	mu        sync.Mutex
	seq       int
	accounts  []*store.Account
	reminders []*store.Reminder

	// Err, when set, is returned from every method.
	Err error
	// UpdatedTokens counts UpdateTokens calls per account.
	UpdatedTokens map[string]int
}

var (
	_ store.AccountStore  = (*Memory)(nil)
	_ store.ReminderStore = (*Memory)(nil)
	_ store.Pinger        = (*Memory)(nil)
)

// New returns an empty store.
func New() *Memory {
	return &Memory{UpdatedTokens: make(map[string]int)}
}

func (m *Memory) nextID() string {
	m.seq++
	return strconv.Itoa(m.seq)
}

// AddAccount stores acc as active and returns its id.
func (m *Memory) AddAccount(acc store.Account) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.ID == "" {
		acc.ID = m.nextID()
	}
	if acc.Provider == "" {
		acc.Provider = store.ProviderGoogle
	}
	if acc.CalendarID == "" {
		acc.CalendarID = "primary"
	}
	stored := acc
	m.accounts = append(m.accounts, &stored)
	return acc.ID
}

// Account returns a copy of the stored account with id.
func (m *Memory) Account(id string) (store.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			return *a, true
		}
	}
	return store.Account{}, false
}

// Reminders returns copies of all stored reminders.
func (m *Memory) Reminders() []store.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Reminder, 0, len(m.reminders))
	for _, r := range m.reminders {
		out = append(out, *r)
	}
	return out
}

func (m *Memory) Now(context.Context) (time.Time, error) {
	if m.Err != nil {
		return time.Time{}, m.Err
	}
	return time.Now().UTC(), nil
}

func (m *Memory) UpsertAccount(_ context.Context, in store.AccountUpsert) (store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return store.Account{}, m.Err
	}

	calendarID := in.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	var exp *time.Time
	if !in.ExpiresAt.IsZero() {
		e := in.ExpiresAt
		exp = &e
	}

	for _, a := range m.accounts {
		if a.Phone == in.Phone && a.CalendarID == calendarID {
			a.ProviderAccountID = in.ProviderAccountID
			a.Email = in.Email
			a.AccessToken = in.AccessToken
			if in.RefreshToken != "" {
				a.RefreshToken = in.RefreshToken
			}
			a.TokenExpiresAt = exp
			return *a, nil
		}
	}

	acc := &store.Account{
		ID:                m.nextID(),
		Phone:             in.Phone,
		Provider:          store.ProviderGoogle,
		ProviderAccountID: in.ProviderAccountID,
		Email:             in.Email,
		AccessToken:       in.AccessToken,
		RefreshToken:      in.RefreshToken,
		TokenExpiresAt:    exp,
		CalendarID:        calendarID,
	}
	m.accounts = append(m.accounts, acc)
	return *acc, nil
}

func (m *Memory) FindActiveAccount(_ context.Context, phone string) (*store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := len(m.accounts) - 1; i >= 0; i-- {
		if m.accounts[i].Phone == phone {
			acc := *m.accounts[i]
			return &acc, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateTokens(_ context.Context, accountID string, tok store.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, a := range m.accounts {
		if a.ID == accountID {
			a.AccessToken = tok.AccessToken
			if tok.RefreshToken != "" {
				a.RefreshToken = tok.RefreshToken
			}
			if !tok.Expiry.IsZero() {
				e := tok.Expiry
				a.TokenExpiresAt = &e
			}
			m.UpdatedTokens[accountID]++
			return nil
		}
	}
	return errors.New("account not found")
}

func (m *Memory) InsertReminderLink(_ context.Context, link store.ReminderLink) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}

	var acc store.Account
	for _, a := range m.accounts {
		if a.ID == link.CalendarAccountID {
			acc = *a
		}
	}

	due, err := time.Parse(time.RFC3339, link.DueAt)
	if err != nil {
		due, err = time.Parse("2006-01-02T15:04:05", link.DueAt)
		if err != nil {
			return "", err
		}
	}

	r := &store.Reminder{
		ID:            m.nextID(),
		Phone:         link.Phone,
		ReminderID:    link.ReminderID,
		Content:       link.Content,
		DueAt:         due,
		TimeZone:      link.TimeZone,
		GoogleEventID: link.GoogleEventID,
		Account:       acc,
	}
	m.reminders = append(m.reminders, r)
	return r.ID, nil
}

// AddReminder stores r directly and returns its id.
func (m *Memory) AddReminder(r store.Reminder) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = m.nextID()
	}
	stored := r
	m.reminders = append(m.reminders, &stored)
	return r.ID
}

func (m *Memory) FindReminder(_ context.Context, phone, reminderID string) (*store.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := len(m.reminders) - 1; i >= 0; i-- {
		r := m.reminders[i]
		if r.Phone == phone && r.ReminderID == reminderID {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateReminder(_ context.Context, u store.ReminderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, r := range m.reminders {
		if r.ID == u.ID && r.Phone == u.Phone {
			r.Content = u.Content
			r.TimeZone = u.TimeZone
			if due, err := time.Parse(time.RFC3339, u.DueAt); err == nil {
				r.DueAt = due
			} else if due, err := time.Parse("2006-01-02T15:04:05", u.DueAt); err == nil {
				r.DueAt = due
			}
		}
	}
	return nil
}

func (m *Memory) DeleteReminder(_ context.Context, id, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	kept := m.reminders[:0]
	for _, r := range m.reminders {
		if r.ID == id && r.Phone == phone {
			continue
		}
		kept = append(kept, r)
	}
	m.reminders = kept
	return nil
}
