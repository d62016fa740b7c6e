// Package postgres implements the account and reminder stores on a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teemow/calendarlink/internal/store"
)

// Querier is the subset of pgxpool.Pool used by Store.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.AccountStore, store.ReminderStore and store.Pinger.
type Store struct {
	db   Querier
	pool *pgxpool.Pool
}

var (
	_ store.AccountStore  = (*Store)(nil)
	_ store.ReminderStore = (*Store)(nil)
	_ store.Pinger        = (*Store)(nil)
)

// Open connects a pool to databaseURL and checks it with a ping.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: pool, pool: pool}, nil
}

// New wraps an existing querier, such as a pool or a transaction.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Close releases the pool when the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Now returns the database server time.
func (s *Store) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.QueryRow(ctx, `select now()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to query database time: %w", err)
	}
	return now, nil
}

const upsertAccountSQL = `
insert into public.calendar_accounts (
  phone, provider, provider_account_id, email,
  access_token, refresh_token, token_expires_at, calendar_id, active
) values ($1, 'google', $2, nullif($3, ''), $4, $5, $6, $7, true)
on conflict (phone, provider, calendar_id)
do update set
  provider_account_id = excluded.provider_account_id,
  email               = excluded.email,
  access_token        = excluded.access_token,
  refresh_token       = case
                          when excluded.refresh_token is not null and excluded.refresh_token <> ''
                            then excluded.refresh_token
                          else public.calendar_accounts.refresh_token
                        end,
  token_expires_at    = excluded.token_expires_at,
  active              = true,
  updated_at          = now()
returning id::text, coalesce(calendar_id, ''), coalesce(email, '')`

// UpsertAccount links or relinks an account.
func (s *Store) UpsertAccount(ctx context.Context, in store.AccountUpsert) (store.Account, error) {
	calendarID := in.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	acc := store.Account{
		Phone:             in.Phone,
		Provider:          store.ProviderGoogle,
		ProviderAccountID: in.ProviderAccountID,
		AccessToken:       in.AccessToken,
		RefreshToken:      in.RefreshToken,
	}
	if !in.ExpiresAt.IsZero() {
		exp := in.ExpiresAt
		acc.TokenExpiresAt = &exp
	}

	err := s.db.QueryRow(ctx, upsertAccountSQL,
		in.Phone, in.ProviderAccountID, in.Email,
		in.AccessToken, in.RefreshToken, acc.TokenExpiresAt, calendarID,
	).Scan(&acc.ID, &acc.CalendarID, &acc.Email)
	if err != nil {
		return store.Account{}, fmt.Errorf("failed to upsert calendar account: %w", err)
	}

	if acc.CalendarID == "" {
		acc.CalendarID = calendarID
	}
	if acc.Email == "" {
		acc.Email = in.Email
	}
	return acc, nil
}

const findActiveAccountSQL = `
select id::text, phone, provider, coalesce(provider_account_id, ''), coalesce(email, ''),
       coalesce(access_token, ''), coalesce(refresh_token, ''), token_expires_at,
       coalesce(calendar_id, '')
from public.calendar_accounts
where phone = $1
  and provider = 'google'
  and active = true
order by updated_at desc
limit 1`

// FindActiveAccount returns the newest active account for phone, or nil.
func (s *Store) FindActiveAccount(ctx context.Context, phone string) (*store.Account, error) {
	var acc store.Account
	err := s.db.QueryRow(ctx, findActiveAccountSQL, phone).Scan(
		&acc.ID, &acc.Phone, &acc.Provider, &acc.ProviderAccountID, &acc.Email,
		&acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiresAt, &acc.CalendarID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar account: %w", err)
	}

	if acc.CalendarID == "" {
		acc.CalendarID = "primary"
	}
	return &acc, nil
}

const updateTokensSQL = `
update public.calendar_accounts
set access_token     = $2,
    refresh_token    = case when $3 <> '' then $3 else refresh_token end,
    token_expires_at = $4,
    updated_at       = now()
where id = $1`

// UpdateTokens stores refreshed credentials. An empty refresh token keeps
// the stored one.
func (s *Store) UpdateTokens(ctx context.Context, accountID string, tok store.Tokens) error {
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		expiry = &tok.Expiry
	}

	if _, err := s.db.Exec(ctx, updateTokensSQL, accountID, tok.AccessToken, tok.RefreshToken, expiry); err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}
	return nil
}

const insertReminderSQL = `
insert into public.google_reminders (
  phone, calendar_account_id, reminder_id, content, due_at, sent_at, tz, google_event_id
) values ($1, $2, $3, $4, $5, now(), $6, $7)
returning id::text`

// InsertReminderLink records a reminder and its calendar event.
func (s *Store) InsertReminderLink(ctx context.Context, link store.ReminderLink) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, insertReminderSQL,
		link.Phone, link.CalendarAccountID, link.ReminderID, link.Content,
		link.DueAt, link.TimeZone, link.GoogleEventID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert reminder link: %w", err)
	}
	return id, nil
}

const findReminderSQL = `
select gr.id::text, gr.phone, coalesce(gr.reminder_id, ''), gr.content, gr.due_at,
       coalesce(gr.tz, ''), coalesce(gr.google_event_id, ''),
       gr.calendar_account_id::text, coalesce(ca.calendar_id, ''),
       coalesce(ca.access_token, ''), coalesce(ca.refresh_token, ''), ca.token_expires_at
from public.google_reminders gr
join public.calendar_accounts ca
  on ca.id = gr.calendar_account_id
where gr.reminder_id = $1
  and gr.phone = $2
  and ca.active = true
order by gr.created_at desc
limit 1`

// FindReminder returns the newest reminder for phone, or nil.
func (s *Store) FindReminder(ctx context.Context, phone, reminderID string) (*store.Reminder, error) {
	var r store.Reminder
	err := s.db.QueryRow(ctx, findReminderSQL, reminderID, phone).Scan(
		&r.ID, &r.Phone, &r.ReminderID, &r.Content, &r.DueAt,
		&r.TimeZone, &r.GoogleEventID,
		&r.Account.ID, &r.Account.CalendarID,
		&r.Account.AccessToken, &r.Account.RefreshToken, &r.Account.TokenExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}

	r.Account.Phone = r.Phone
	r.Account.Provider = store.ProviderGoogle
	if r.Account.CalendarID == "" {
		r.Account.CalendarID = "primary"
	}
	return &r, nil
}

const updateReminderSQL = `
update public.google_reminders
set content = $3,
    due_at  = $4,
    tz      = $5
where id = $1
  and phone = $2`

// UpdateReminder writes the final content, due time and zone of a reminder.
func (s *Store) UpdateReminder(ctx context.Context, u store.ReminderUpdate) error {
	if _, err := s.db.Exec(ctx, updateReminderSQL, u.ID, u.Phone, u.Content, u.DueAt, u.TimeZone); err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// DeleteReminder removes a reminder row.
func (s *Store) DeleteReminder(ctx context.Context, id, phone string) error {
	if _, err := s.db.Exec(ctx, `delete from public.google_reminders where id = $1 and phone = $2`, id, phone); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}
