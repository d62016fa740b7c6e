package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing fields", err: service.ErrMissingFields, wantStatus: http.StatusBadRequest, wantCode: "missing_fields"},
		{name: "start end pair", err: service.ErrMissingStartEndPair, wantStatus: http.StatusBadRequest, wantCode: "missing_start_end_pair"},
		{name: "update fields", err: service.ErrMissingUpdateFields, wantStatus: http.StatusBadRequest, wantCode: "missing_update_fields"},
		{name: "no account", err: service.ErrNoCalendarAccount, wantStatus: http.StatusOK, wantCode: "no_calendar_account"},
		{name: "invalid tokens", err: service.ErrInvalidTokens, wantStatus: http.StatusOK, wantCode: "invalid_tokens"},
		{name: "blocked", err: service.ErrEventBlocked, wantStatus: http.StatusForbidden, wantCode: "bia_event_blocked"},
		{name: "no event id", err: service.ErrNoEventID, wantStatus: http.StatusInternalServerError, wantCode: "no_event_id"},
		{
			name:       "google update keeps its code over quota",
			err:        &service.Error{Code: service.CodeGoogleUpdate, Err: &googleapi.Error{Code: http.StatusTooManyRequests}},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "google_update_error",
		},
		{
			name:       "lock timeout",
			err:        fmt.Errorf("failed: %w", &sequencer.LockTimeoutError{Key: "calendar:1"}),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
		},
		{
			name:       "google 429",
			err:        &googleapi.Error{Code: http.StatusTooManyRequests},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
		},
		{
			name:       "google 403 quota",
			err:        &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
		},
		{name: "anything else", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
