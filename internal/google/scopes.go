package google

// DefaultOAuthScopes are the Google OAuth scopes requested when linking a calendar.
//
// The scopes provide access to:
//   - Google Calendar: create, change and delete events
//   - User info: email address and basic profile of the linked account
var DefaultOAuthScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"openid",
}
