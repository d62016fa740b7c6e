package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calendarlink/internal/calendar"
	"github.com/teemow/calendarlink/internal/calendar/calendartest"
	"github.com/teemow/calendarlink/internal/google"
	"github.com/teemow/calendarlink/internal/pages"
	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/state"
	"github.com/teemow/calendarlink/internal/store"
	"github.com/teemow/calendarlink/internal/store/storetest"
)

const testPhone = "5511999999999"

type fakeOAuth struct{}

func (fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, Expiry: time.Now().Add(time.Hour)}, nil
}

func (fakeOAuth) UserInfo(context.Context, *oauth2.Token) (google.UserInfo, error) {
	return google.UserInfo{ID: "g-1", Email: "jane@example.com"}, nil
}

type memLinkCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *memLinkCodes) Put(_ context.Context, code, phone string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = phone
	return nil
}

func (m *memLinkCodes) Take(_ context.Context, code string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phone, ok := m.codes[code]
	delete(m.codes, code)
	return phone, ok, nil
}

type harness struct {
	store *storetest.Memory
	cal   *calendartest.Fake
	codec *state.Codec
	codes *memLinkCodes
	srv   *httptest.Server
}

type harnessOption func(*service.LinkingConfig)

func withoutLinkCodes() harnessOption {
	return func(cfg *service.LinkingConfig) {
		cfg.LinkCodes = nil
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := state.NewCodec("test-secret")
	require.NoError(t, err)

	h := &harness{
		store: storetest.New(),
		cal:   calendartest.New(),
		codec: codec,
		codes: &memLinkCodes{codes: map[string]string{}},
	}

	inv := resilience.NewInvoker(resilience.WithLogger(logger), resilience.WithDefaults(2, time.Millisecond))
	cfg := service.Config{
		Accounts:  h.store,
		Reminders: h.store,
		Calendars: func(context.Context, *store.Account) (*service.Session, error) {
			return &service.Session{API: h.cal}, nil
		},
		Invoker: inv,
		Logger:  logger,
	}
	linkCfg := service.LinkingConfig{
		Codec:     codec,
		OAuth:     fakeOAuth{},
		Accounts:  h.store,
		LinkCodes: h.codes,
		Invoker:   inv,
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&linkCfg)
	}

	sc := server.NewServerContext(context.Background(), server.Services{
		Events:    service.NewEvents(cfg),
		Reminders: service.NewReminders(cfg),
		Linking:   service.NewLinking(linkCfg),
	}, server.WithDatabase(h.store), server.WithLogger(logger))

	renderer, err := pages.New()
	require.NoError(t, err)

	api := New(sc, renderer, server.NewHealthChecker(sc), Config{
		PublicBaseURL:  "https://calendar.example.com/",
		WhatsAppNumber: "5511988887777",
	})
	h.srv = httptest.NewServer(api)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) addAccount() string {
	return h.store.AddAccount(store.Account{Phone: testPhone, AccessToken: "a", RefreshToken: "r"})
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{CheckRedirect: noRedirect}
	resp, err := client.Get(h.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (h *harness) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestLinkStart(t *testing.T) {
	h := newHarness(t)

	status, body := h.post(t, "/calendar/link/start", `{"phone":"+55 (11) 99999-9999"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 900, body["ttl_seconds"])

	connectURL, _ := body["connect_url"].(string)
	require.True(t, strings.HasPrefix(connectURL, "https://calendar.example.com/calendar/link/"), connectURL)
	code := strings.TrimPrefix(connectURL, "https://calendar.example.com/calendar/link/")
	assert.Equal(t, testPhone, h.codes.codes[code])
}

func TestLinkStart_Errors(t *testing.T) {
	h := newHarness(t)

	status, body := h.post(t, "/calendar/link/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "phone obrigatório", body["error"])

	status, body = h.post(t, "/calendar/link/start", `{"phone":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_json", body["error"])
}

func TestLinkStart_WithoutLinkCodes(t *testing.T) {
	h := newHarness(t, withoutLinkCodes())

	status, body := h.post(t, "/calendar/link/start", `{"phone":"5511999999999"}`)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "connect_url")
	assert.Contains(t, body["authorization_url"], "https://accounts.example.com/auth?state=")
}

func TestLinkBounce(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/calendar/link/abc123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))
	assert.Contains(t, body, `href="/calendar/link/abc123/go"`)
}

func TestLinkGo(t *testing.T) {
	h := newHarness(t)
	h.codes.codes["abc123"] = testPhone

	resp, _ := h.get(t, "/calendar/link/abc123/go")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	claims, err := h.codec.Verify(loc.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, testPhone, claims.Subject)

	resp, body := h.get(t, "/calendar/link/abc123/go")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "codes are single use")
	assert.Contains(t, body, "Link expirou")
}

func TestLinkGo_Unavailable(t *testing.T) {
	h := newHarness(t, withoutLinkCodes())

	resp, body := h.get(t, "/calendar/link/abc123/go")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Serviço indisponível")
}

func TestCallback(t *testing.T) {
	h := newHarness(t)
	token, err := h.codec.Issue(testPhone)
	require.NoError(t, err)

	resp, body := h.get(t, "/calendar/callback?code=auth-code&state="+url.QueryEscape(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "+55 (11) 99999-9999")
	assert.Contains(t, body, "jane@example.com")
	assert.Contains(t, body, "https://wa.me/5511988887777")

	acc, err := h.store.FindActiveAccount(context.Background(), testPhone)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "access-auth-code", acc.AccessToken)
	assert.Equal(t, "refresh-auth-code", acc.RefreshToken)
}

func TestCallback_TokenFailuresLookAlike(t *testing.T) {
	h := newHarness(t)
	valid, err := h.codec.Issue(testPhone)
	require.NoError(t, err)

	tampered := []byte(valid)
	tampered[len(tampered)-1] ^= 1

	paths := map[string]string{
		"malformed":     "/calendar/callback?code=c&state=garbage",
		"bad signature": "/calendar/callback?code=c&state=" + url.QueryEscape(string(tampered)),
		"missing state": "/calendar/callback?code=c",
		"missing code":  "/calendar/callback?state=" + url.QueryEscape(valid),
	}

	var bodies []string
	for name, path := range paths {
		resp, body := h.get(t, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		bodies = append(bodies, body)
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestEventsList(t *testing.T) {
	h := newHarness(t)
	h.addAccount()
	h.cal.Add(calendar.Event{Summary: "Dentista"})

	status, body := h.post(t, "/google-events/list",
		`{"phone":"5511999999999","time_min":"2026-03-01 08:00","time_max":"2026-03-02T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "primary", body["calendar_id"])
	assert.Equal(t, "2026-03-01T08:00", body["time_min"])
	items, _ := body["items"].([]any)
	assert.Len(t, items, 1)
}

func TestEventsErrors(t *testing.T) {
	h := newHarness(t)
	addManaged := func() {
		h.addAccount()
		h.cal.Add(calendar.Event{ID: "managed", Description: "Lembrete criado pela Bia 🐝"})
	}

	tests := []struct {
		name       string
		path       string
		body       string
		before     func()
		wantStatus int
		wantError  string
	}{
		{
			name:       "list missing fields",
			path:       "/google-events/list",
			body:       `{"phone":"5511999999999"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_fields",
		},
		{
			name:       "patch missing pair",
			path:       "/google-events/patch",
			body:       `{"phone":"5511999999999","event_id":"x","start_at":"2026-03-01T10:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_start_end_pair",
		},
		{
			name:       "patch nothing to update",
			path:       "/google-events/patch",
			body:       `{"phone":"5511999999999","event_id":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_update_fields",
		},
		{
			name:       "no calendar account",
			path:       "/google-events/delete",
			body:       `{"phone":"5511000000000","event_id":"x"}`,
			wantStatus: http.StatusOK,
			wantError:  "no_calendar_account",
		},
		{
			name:       "managed event is blocked",
			path:       "/google-events/delete",
			body:       `{"phone":"5511999999999","event_id":"managed"}`,
			before:     addManaged,
			wantStatus: http.StatusForbidden,
			wantError:  "bia_event_blocked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.before != nil {
				tt.before()
			}
			status, body := h.post(t, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestEventsPatchAndDelete(t *testing.T) {
	h := newHarness(t)
	h.addAccount()
	id := h.cal.Add(calendar.Event{Summary: "Reunião"})

	status, body := h.post(t, "/google-events/patch",
		`{"phone":"5511999999999","event_id":"`+id+`","summary":"Reunião de equipe"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["updatedOnGoogle"])

	status, body = h.post(t, "/google-events/delete", `{"phone":"5511999999999","event_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["deletedOnGoogle"])
	assert.False(t, h.cal.Has(id))

	status, body = h.post(t, "/google-events/delete", `{"phone":"5511999999999","event_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "not_found", body["reason"])
}

func TestReminderLifecycle(t *testing.T) {
	h := newHarness(t)
	h.addAccount()

	status, body := h.post(t, "/google-reminders/create",
		`{"phone":"5511999999999","content":"Tomar remédio","due_at":"2026-03-01T10:00:00-03:00","reminder_id":"r-1"}`)
	require.Equal(t, http.StatusOK, status)
	eventID, _ := body["google_event_id"].(string)
	require.NotEmpty(t, eventID)
	require.Len(t, h.cal.Created, 1)

	status, body = h.post(t, "/google-reminders/update", `{"phone":"5511999999999","id":"r-1","content":"Tomar vitamina"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["updatedOnGoogle"])

	status, body = h.post(t, "/google-reminders/delete", `{"phone":"5511999999999","reminder_id":"r-1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["deletedOnGoogle"])
	assert.Empty(t, h.store.Reminders())
}

func TestPagesAndHealth(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, body)

	resp, _ = h.get(t, "/politica-privacidade")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"service":"bia-calendar-auth"`)

	resp, _ = h.get(t, "/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSAndRequestID(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/google-events/list", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}
