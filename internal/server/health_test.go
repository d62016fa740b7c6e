package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	now time.Time
	err error
}

func (f fakeDB) Now(context.Context) (time.Time, error) {
	return f.now, f.err
}

func serve(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(nil)
	rec, body := serve(t, h.LivenessHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		shutdown   bool
		checkErr   error
		wantStatus int
		wantChecks map[string]any
	}{
		{
			name:       "all ok",
			ready:      true,
			wantStatus: http.StatusOK,
			wantChecks: map[string]any{"ready": "ok", "shutdown": "ok", "valkey": "ok"},
		},
		{
			name:       "not ready",
			ready:      false,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"ready": "not ready", "shutdown": "ok", "valkey": "ok"},
		},
		{
			name:       "shutting down",
			ready:      true,
			shutdown:   true,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"ready": "ok", "shutdown": "shutting down", "valkey": "ok"},
		},
		{
			name:       "dependency failing",
			ready:      true,
			checkErr:   errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"ready": "ok", "shutdown": "ok", "valkey": "failing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewServerContext(context.Background(), Services{})
			if tt.shutdown {
				require.NoError(t, sc.Shutdown())
			}
			h := NewHealthChecker(sc)
			h.SetReady(tt.ready)
			h.AddCheck("valkey", func(context.Context) error { return tt.checkErr })

			rec, body := serve(t, h.ReadinessHandler(), "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantChecks, body["checks"])
		})
	}
}

func TestServiceHealthHandler(t *testing.T) {
	dbTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		opts       []Option
		wantStatus int
		want       map[string]any
	}{
		{
			name:       "database reachable",
			opts:       []Option{WithDatabase(fakeDB{now: dbTime})},
			wantStatus: http.StatusOK,
			want:       map[string]any{"ok": true, "service": ServiceName, "db_time": "2026-03-01T12:00:00Z"},
		},
		{
			name:       "database error",
			opts:       []Option{WithDatabase(fakeDB{err: errors.New("timeout")})},
			wantStatus: http.StatusInternalServerError,
			want:       map[string]any{"ok": false, "error": "db_error"},
		},
		{
			name:       "no database",
			wantStatus: http.StatusInternalServerError,
			want:       map[string]any{"ok": false, "error": "db_error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(NewServerContext(context.Background(), Services{}, tt.opts...))
			rec, body := serve(t, h.ServiceHealthHandler(), "/health")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestDetailedHealthHandler(t *testing.T) {
	h := NewHealthChecker(nil)
	rec, body := serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])

	h.SetReady(false)
	rec, body = serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
}

func TestDetailedHealthHandler_Degraded(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("database", func(context.Context) error { return nil })
	h.AddCheck("valkey", func(context.Context) error { return errors.New("connection refused") })

	rec, body := serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"database": "ok", "valkey": "failing"}, body["checks"])
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), Services{})
	assert.False(t, sc.IsShutdown())

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())
}
