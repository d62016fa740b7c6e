package httpapi

import (
	"net/http"

	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/service"
)

const (
	codeRateLimited   = "rate_limited"
	codeInternalError = "internal_error"
	codeInvalidJSON   = "invalid_json"
)

// statusFor maps a service failure to the response status and error code.
func statusFor(err error) (int, string) {
	switch code := service.CodeOf(err); code {
	case service.CodeMissingFields,
		service.CodeMissingStartEndPair,
		service.CodeMissingUpdateFields,
		service.CodePhoneRequired:
		return http.StatusBadRequest, string(code)
	case service.CodeNoCalendarAccount, service.CodeInvalidTokens:
		return http.StatusOK, string(code)
	case service.CodeEventBlocked:
		return http.StatusForbidden, string(code)
	case service.CodeNoEventID, service.CodeGoogleUpdate, service.CodeGoogleDelete:
		return http.StatusInternalServerError, string(code)
	}

	if sequencer.IsLockTimeout(err) || resilience.IsRateLimited(err) {
		return http.StatusTooManyRequests, codeRateLimited
	}
	return http.StatusInternalServerError, codeInternalError
}
