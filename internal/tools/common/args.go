package common

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendarlink/internal/service"
)

// StringArg returns args[name] when it is a string, or "".
func StringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// IntArg returns args[name] as an int64. JSON numbers arrive as float64.
func IntArg(args map[string]interface{}, name string) int64 {
	switch v := args[name].(type) {
	case float64:
		if v > math.MaxInt64 || v < math.MinInt64 {
			return 0
		}
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// BoolArg returns args[name] when it is a bool, or false.
func BoolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

// JSONResult encodes v as the text content of a tool result.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// ErrorResult reports a failed operation to the caller. Failures with a
// service code are reported by code; anything else keeps its message.
func ErrorResult(err error) *mcp.CallToolResult {
	if code := service.CodeOf(err); code != "" {
		return mcp.NewToolResultError(string(code))
	}
	return mcp.NewToolResultError(err.Error())
}
