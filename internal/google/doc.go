// Package google implements the Google OAuth client used to link calendars.
//
// It builds the consent URL, exchanges authorization codes, fetches the
// linked account's user info and wraps stored credentials in a token source
// that reports refreshes back to the caller instead of persisting them.
package google
