package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/google"
	"github.com/teemow/calendarlink/internal/state"
	"github.com/teemow/calendarlink/internal/store/storetest"
	"github.com/teemow/calendarlink/internal/webhook"
)

type fakeOAuth struct {
	exchangeErr error
	exchanged   []string
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeOAuth) UserInfo(context.Context, *oauth2.Token) (google.UserInfo, error) {
	return google.UserInfo{ID: "g-42", Email: "jane@example.com"}, nil
}

type memLinkCodes struct {
	codes map[string]string
	ttls  map[string]time.Duration
}

func newMemLinkCodes() *memLinkCodes {
	return &memLinkCodes{codes: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memLinkCodes) Put(_ context.Context, code, phone string, ttl time.Duration) error {
	m.codes[code] = phone
	m.ttls[code] = ttl
	return nil
}

func (m *memLinkCodes) Take(_ context.Context, code string) (string, bool, error) {
	phone, ok := m.codes[code]
	delete(m.codes, code)
	return phone, ok, nil
}

type recordingNotifier struct {
	events []webhook.ConnectedEvent
}

func (r *recordingNotifier) CalendarConnected(_ context.Context, ev webhook.ConnectedEvent) {
	r.events = append(r.events, ev)
}

func newLinking(t *testing.T, codes LinkCodeStore) (*Linking, *fakeOAuth, *storetest.Memory, *recordingNotifier) {
	t.Helper()
	codec, err := state.NewCodec("test-secret")
	require.NoError(t, err)

	oauth := &fakeOAuth{}
	accounts := storetest.New()
	notifier := &recordingNotifier{}
	l := NewLinking(LinkingConfig{
		Codec:     codec,
		OAuth:     oauth,
		Accounts:  accounts,
		LinkCodes: codes,
		Notifier:  notifier,
		Logger:    discardLogger(),
	})
	return l, oauth, accounts, notifier
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestLinkingStart_ShortLink(t *testing.T) {
	codes := newMemLinkCodes()
	l, _, _, _ := newLinking(t, codes)

	res, err := l.Start(context.Background(), "+55 (11) 99999-9999", "https://link.example.com/")
	require.NoError(t, err)

	assert.Equal(t, 900, res.TTLSeconds)
	assert.Empty(t, res.AuthorizationURL)
	require.True(t, strings.HasPrefix(res.ConnectURL, "https://link.example.com/calendar/link/"))

	code := strings.TrimPrefix(res.ConnectURL, "https://link.example.com/calendar/link/")
	assert.Len(t, code, 11, "8 random bytes in unpadded base64url")
	assert.Equal(t, "5511999999999", codes.codes[code])
	assert.Equal(t, LinkCodeTTL, codes.ttls[code])
}

func TestLinkingStart_DirectConsent(t *testing.T) {
	l, _, _, _ := newLinking(t, nil)

	res, err := l.Start(context.Background(), "5511999999999", "")
	require.NoError(t, err)
	assert.Empty(t, res.ConnectURL)

	claims, err := l.codec.Verify(stateFrom(t, res.AuthorizationURL))
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", claims.Subject)
}

func TestLinkingStart_RequiresPhone(t *testing.T) {
	l, _, _, _ := newLinking(t, nil)
	for _, phone := range []string{"", "  ", "()-"} {
		_, err := l.Start(context.Background(), phone, "")
		assert.ErrorIs(t, err, ErrPhoneRequired, "phone %q", phone)
	}
}

func TestLinkingRedeem(t *testing.T) {
	codes := newMemLinkCodes()
	l, _, _, _ := newLinking(t, codes)
	require.NoError(t, codes.Put(context.Background(), "abc", "5511999999999", LinkCodeTTL))

	authURL, err := l.Redeem(context.Background(), "abc")
	require.NoError(t, err)
	claims, err := l.codec.Verify(stateFrom(t, authURL))
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", claims.Subject)

	_, err = l.Redeem(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrLinkExpired, "codes are single use")

	noCodes, _, _, _ := newLinking(t, nil)
	_, err = noCodes.Redeem(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrLinkUnavailable)
}

func TestLinkingComplete(t *testing.T) {
	l, oauth, accounts, notifier := newLinking(t, nil)

	start, err := l.Start(context.Background(), "5511999999999", "")
	require.NoError(t, err)

	linked, err := l.Complete(context.Background(), stateFrom(t, start.AuthorizationURL), "code-1")
	require.NoError(t, err)

	assert.Equal(t, "5511999999999", linked.Phone)
	assert.Equal(t, "jane@example.com", linked.Email)
	assert.Equal(t, "primary", linked.CalendarID)
	assert.Equal(t, []string{"code-1"}, oauth.exchanged)

	acc, err := accounts.FindActiveAccount(context.Background(), "5511999999999")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, linked.AccountID, acc.ID)
	assert.Equal(t, "g-42", acc.ProviderAccountID)
	assert.Equal(t, "refresh-code-1", acc.RefreshToken)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, linked.AccountID, notifier.events[0].CalendarAccountID)
	assert.Equal(t, "jane@example.com", notifier.events[0].Email)
}

func TestLinkingComplete_Rejections(t *testing.T) {
	l, oauth, _, notifier := newLinking(t, nil)

	_, err := l.Complete(context.Background(), "garbage", "code")
	assert.Equal(t, CodeInvalidState, CodeOf(err))
	assert.True(t, errors.Is(err, state.ErrMalformed))

	start, _ := l.Start(context.Background(), "5511999999999", "")
	token := stateFrom(t, start.AuthorizationURL)

	_, err = l.Complete(context.Background(), token, "")
	assert.ErrorIs(t, err, ErrMissingCode)

	oauth.exchangeErr = &oauth2.RetrieveError{ErrorCode: "invalid_grant"}
	_, err = l.Complete(context.Background(), token, "code")
	assert.Equal(t, CodeOAuthFailed, CodeOf(err))
	assert.Len(t, oauth.exchanged, 1, "invalid_grant is not retried")
	assert.Empty(t, notifier.events)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5511999999999", NormalizePhone("+55 (11) 99999-9999"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}
