package common

import (
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarlink/internal/service"
)

func TestArgs(t *testing.T) {
	args := map[string]interface{}{
		"phone":       "5511999999999",
		"max_results": float64(25),
		"count":       7,
		"cancelled":   true,
		"wrong":       123,
	}

	assert.Equal(t, "5511999999999", StringArg(args, "phone"))
	assert.Equal(t, "", StringArg(args, "wrong"))
	assert.Equal(t, "", StringArg(args, "missing"))
	assert.Equal(t, int64(25), IntArg(args, "max_results"))
	assert.Equal(t, int64(7), IntArg(args, "count"))
	assert.Equal(t, int64(0), IntArg(args, "phone"))
	assert.True(t, BoolArg(args, "cancelled"))
	assert.False(t, BoolArg(args, "missing"))
}

func textOf(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, r.Content, 1)
	text, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult(service.ErrNoCalendarAccount)
	assert.True(t, r.IsError)
	assert.Equal(t, "no_calendar_account", textOf(t, r))

	r = ErrorResult(errors.New("boom"))
	assert.Equal(t, "boom", textOf(t, r))
}

func TestJSONResult(t *testing.T) {
	r, err := JSONResult(map[string]any{"ok": true})
	require.NoError(t, err)
	assert.False(t, r.IsError)
	assert.JSONEq(t, `{"ok":true}`, textOf(t, r))
}
