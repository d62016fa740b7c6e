// Package common provides shared helpers for the MCP tool packages:
// argument extraction, result encoding and handler instrumentation.
package common
