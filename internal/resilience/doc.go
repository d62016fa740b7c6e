// Package resilience retries calls to unreliable remote dependencies.
//
// Call runs a function up to a bounded number of attempts, sleeping with
// exponential backoff and jitter between attempts. Only failures that
// IsRetryable classifies as transient are retried; anything else is
// returned after the first attempt. The terminal error is always the
// original error returned by the function, so callers can still inspect
// *googleapi.Error and friends.
//
// Credentials refreshed while a call was in flight are reported back in
// Result.Refreshed for the caller to persist.
package resilience
