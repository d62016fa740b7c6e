package service

import "errors"

// Code is the machine-readable reason returned to callers.
type Code string

const (
	CodeMissingFields       Code = "missing_fields"
	CodeMissingStartEndPair Code = "missing_start_end_pair"
	CodeMissingUpdateFields Code = "missing_update_fields"
	CodeNoCalendarAccount   Code = "no_calendar_account"
	CodeInvalidTokens       Code = "invalid_tokens"
	CodeEventBlocked        Code = "bia_event_blocked"
	CodeNoEventID           Code = "no_event_id"
	CodeGoogleUpdate        Code = "google_update_error"
	CodeGoogleDelete        Code = "google_delete_error"
	CodePhoneRequired       Code = "phone obrigatório"
	CodeLinkUnavailable     Code = "link_unavailable"
	CodeLinkExpired         Code = "link_expired"
	CodeInvalidState        Code = "invalid_state"
	CodeMissingCode         Code = "missing_code"
	CodeOAuthFailed         Code = "oauth_failed"
)

// Error is a failure with a caller-facing code. Err holds the cause, if any.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMissingFields       = &Error{Code: CodeMissingFields}
	ErrMissingStartEndPair = &Error{Code: CodeMissingStartEndPair}
	ErrMissingUpdateFields = &Error{Code: CodeMissingUpdateFields}
	ErrNoCalendarAccount   = &Error{Code: CodeNoCalendarAccount}
	ErrInvalidTokens       = &Error{Code: CodeInvalidTokens}
	ErrEventBlocked        = &Error{Code: CodeEventBlocked}
	ErrNoEventID           = &Error{Code: CodeNoEventID}
	ErrPhoneRequired       = &Error{Code: CodePhoneRequired}
	ErrLinkUnavailable     = &Error{Code: CodeLinkUnavailable}
	ErrLinkExpired         = &Error{Code: CodeLinkExpired}
	ErrMissingCode         = &Error{Code: CodeMissingCode}
)

func wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
