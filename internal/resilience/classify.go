package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// transientMessages are substrings that mark a failure as an abrupt
// connection close or timeout when no typed error is available.
var transientMessages = []string{
	"timeout",
	"timed out",
	"socket hang up",
	"connection reset",
	"connection closed",
	"broken pipe",
	"unexpected eof",
}

var transientErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

// IsRetryable reports whether err is a transient failure worth retrying:
// transport connect, timeout, reset or DNS failures, HTTP 5xx, 408 and 429
// responses, rate or quota exceeded reasons, and messages mentioning a
// timeout or closed connection.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.Code) {
			return true
		}
		for _, item := range apiErr.Errors {
			if isQuotaReason(item.Reason) {
				return true
			}
		}
		return isQuotaReason(apiErr.Message) || hasTransientMessage(apiErr.Message)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retryableStatus(retrieveErr.Response.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	return hasTransientMessage(err.Error())
}

func hasTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range transientMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout
}

// isQuotaReason matches Google's rateLimitExceeded, userRateLimitExceeded and
// quotaExceeded reasons.
func isQuotaReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "ratelimit") || strings.Contains(r, "rate limit") || strings.Contains(r, "quota")
}

// StatusCode extracts the HTTP status carried by a remote error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return retrieveErr.Response.StatusCode
	}
	return 0
}

// IsRateLimited reports whether err is the provider refusing for quota:
// HTTP 429 or a rate or quota exceeded reason.
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	for _, item := range apiErr.Errors {
		if isQuotaReason(item.Reason) {
			return true
		}
	}
	return isQuotaReason(apiErr.Message)
}
