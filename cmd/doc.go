// Package cmd implements the command-line interface for calendarlink.
//
// This package provides the following commands:
//   - serve: Start the HTTP service and the metrics server
//   - mcp: Serve the calendar tools over MCP on stdio
//   - state: Issue and verify signed OAuth state tokens
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Configuration is read from flags, from CALENDARLINK_ prefixed environment
// variables and from the unprefixed names used by existing deployments
// (GOOGLE_CLIENT_ID, SUPABASE_DB_URL, PORT and so on).
package cmd
