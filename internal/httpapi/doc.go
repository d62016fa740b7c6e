// Package httpapi exposes the calendar linking flow and the event and
// reminder operations over HTTP.
//
// Routes:
//
//	GET  /                           landing page
//	GET  /politica-privacidade       privacy policy
//	GET  /health, /healthz, /readyz  health probes
//	POST /calendar/link/start        issue a connect link for a phone
//	GET  /calendar/link/{code}       redirect bounce page
//	GET  /calendar/link/{code}/go    redeem the code and go to Google consent
//	GET  /calendar/callback          OAuth redirect target
//	POST /google-events/{list,patch,delete}
//	POST /google-reminders/{create,update,delete}
//
// JSON endpoints answer {ok:false, error:"<code>"} on failure. Validation
// failures use 400, a missing or unusable calendar account is reported
// with 200, quota refusals and lock timeouts become 429 rate_limited.
package httpapi
