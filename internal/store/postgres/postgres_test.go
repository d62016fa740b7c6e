package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarlink/internal/store"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeQuerier struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.lastSQL, q.lastArgs = sql, args
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL, q.lastArgs = sql, args
	return q.row
}

func TestFindActiveAccount_NoRows(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}

	acc, err := New(q).FindActiveAccount(context.Background(), "5511999999999")
	require.NoError(t, err)
	assert.Nil(t, acc)
	assert.Equal(t, []any{"5511999999999"}, q.lastArgs)
}

func TestFindActiveAccount_DefaultsCalendar(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "acc-1"
		*dest[1].(*string) = "5511999999999"
		*dest[2].(*string) = "google"
		*dest[6].(*string) = "refresh"
		return nil
	}}}

	acc, err := New(q).FindActiveAccount(context.Background(), "5511999999999")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "primary", acc.CalendarID)
	assert.True(t, acc.HasCredentials())
}

func TestUpsertAccount_PassesDefaults(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "acc-9"
		return nil
	}}}

	exp := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	acc, err := New(q).UpsertAccount(context.Background(), store.AccountUpsert{
		Phone:             "5511999999999",
		ProviderAccountID: "g-1",
		Email:             "jane@example.com",
		AccessToken:       "access",
		ExpiresAt:         exp,
	})
	require.NoError(t, err)

	assert.Equal(t, "acc-9", acc.ID)
	assert.Equal(t, "primary", acc.CalendarID)
	assert.Equal(t, "jane@example.com", acc.Email)
	require.Len(t, q.lastArgs, 7)
	assert.Equal(t, "primary", q.lastArgs[6])
	assert.Equal(t, &exp, q.lastArgs[5])
}

func TestUpdateTokens_NilExpiry(t *testing.T) {
	q := &fakeQuerier{}

	require.NoError(t, New(q).UpdateTokens(context.Background(), "acc-1", store.Tokens{AccessToken: "new"}))
	require.Len(t, q.lastArgs, 4)
	assert.Nil(t, q.lastArgs[3])
}

func TestStore_Integration(t *testing.T) {
	dbURL := os.Getenv("CALENDARLINK_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("CALENDARLINK_TEST_DATABASE_URL not set (integration test)")
	}

	ctx := context.Background()
	s, err := Open(ctx, dbURL)
	require.NoError(t, err)
	defer s.Close()

	phone := "5500" + time.Now().Format("150405000")
	acc, err := s.UpsertAccount(ctx, store.AccountUpsert{
		Phone:             phone,
		ProviderAccountID: "integration",
		AccessToken:       "a1",
		RefreshToken:      "r1",
		ExpiresAt:         time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = s.UpsertAccount(ctx, store.AccountUpsert{Phone: phone, ProviderAccountID: "integration", AccessToken: "a2"})
	require.NoError(t, err)

	found, err := s.FindActiveAccount(ctx, phone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acc.ID, found.ID)
	assert.Equal(t, "a2", found.AccessToken)
	assert.Equal(t, "r1", found.RefreshToken, "empty refresh token must keep the stored one")

	id, err := s.InsertReminderLink(ctx, store.ReminderLink{
		Phone: phone, CalendarAccountID: acc.ID, ReminderID: "rem-1",
		Content: "water plants", DueAt: "2024-05-10T10:00:00-03:00", TimeZone: "America/Sao_Paulo",
		GoogleEventID: "ev-1",
	})
	require.NoError(t, err)

	rem, err := s.FindReminder(ctx, phone, "rem-1")
	require.NoError(t, err)
	require.NotNil(t, rem)
	assert.Equal(t, id, rem.ID)
	assert.Equal(t, "r1", rem.Account.RefreshToken)

	require.NoError(t, s.DeleteReminder(ctx, id, phone))
	rem, err = s.FindReminder(ctx, phone, "rem-1")
	require.NoError(t, err)
	assert.Nil(t, rem)
}
