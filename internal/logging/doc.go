// Package logging provides structured logging utilities for the calendarlink service.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "events.patch")
//	logger.Info("event patched",
//	    logging.Account(account.ID),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("link started",
//	    logging.PhoneHash(phone))
//
// # Security Considerations
//
//   - Phone numbers and emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly, only their length via SanitizeToken
package logging
