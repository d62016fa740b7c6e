// Package calendar_tools provides MCP (Model Context Protocol) tools over
// the calendars linked to WhatsApp numbers.
//
// The tools delegate to the same service layer as the HTTP API, so pacing,
// retries and the protection of assistant-managed events apply unchanged.
// Every tool takes the caller's phone number; the linked account is looked
// up from it.
package calendar_tools
