package store

import (
	"context"
	"time"
)

// ProviderGoogle is the only provider currently linked.
const ProviderGoogle = "google"

// Account is a linked calendar account.
type Account struct {
	ID                string
	Phone             string
	Provider          string
	ProviderAccountID string
	Email             string
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    *time.Time
	CalendarID        string
}

// HasCredentials reports whether the account can still refresh its access token.
func (a *Account) HasCredentials() bool {
	return a != nil && a.RefreshToken != ""
}

// AccountUpsert carries the data recorded when an account is (re)linked.
type AccountUpsert struct {
	Phone             string
	ProviderAccountID string
	Email             string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	CalendarID        string
}

// Tokens are refreshed OAuth credentials to persist for an account.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ReminderLink ties a reminder to the calendar event created for it.
type ReminderLink struct {
	Phone             string
	CalendarAccountID string
	ReminderID        string
	Content           string
	DueAt             string
	TimeZone          string
	GoogleEventID     string
}

// Reminder is a stored reminder joined with the account that owns its event.
type Reminder struct {
	ID            string
	Phone         string
	ReminderID    string
	Content       string
	DueAt         time.Time
	TimeZone      string
	GoogleEventID string
	Account       Account
}

// ReminderUpdate holds the final values written back to a reminder row.
type ReminderUpdate struct {
	ID       string
	Phone    string
	Content  string
	DueAt    string
	TimeZone string
}

// AccountStore persists linked accounts.
type AccountStore interface {
	// UpsertAccount inserts or updates the account for (phone, provider,
	// calendar). An empty refresh token keeps the stored one.
	UpsertAccount(ctx context.Context, in AccountUpsert) (Account, error)
	// FindActiveAccount returns the most recently updated active account
	// for phone, or nil when there is none.
	FindActiveAccount(ctx context.Context, phone string) (*Account, error)
	// UpdateTokens records refreshed credentials for an account.
	UpdateTokens(ctx context.Context, accountID string, tok Tokens) error
}

// ReminderStore persists reminder links.
type ReminderStore interface {
	InsertReminderLink(ctx context.Context, link ReminderLink) (string, error)
	// FindReminder returns the newest reminder with reminderID for phone
	// whose account is still active, or nil.
	FindReminder(ctx context.Context, phone, reminderID string) (*Reminder, error)
	UpdateReminder(ctx context.Context, u ReminderUpdate) error
	DeleteReminder(ctx context.Context, id, phone string) error
}

// Pinger reports database reachability and server time.
type Pinger interface {
	Now(ctx context.Context) (time.Time, error)
}
