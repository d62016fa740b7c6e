package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/tools/common"
)

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	res, err := sc.Events().List(ctx, service.ListRequest{
		Phone:            common.StringArg(args, "phone"),
		TimeMin:          common.StringArg(args, "time_min"),
		TimeMax:          common.StringArg(args, "time_max"),
		TimeZone:         common.StringArg(args, "tz"),
		Query:            common.StringArg(args, "q"),
		MaxResults:       common.IntArg(args, "max_results"),
		IncludeCancelled: common.BoolArg(args, "include_cancelled"),
	})
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res)
}

func handlePatchEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	res, err := sc.Events().Patch(ctx, service.PatchRequest{
		Phone:    common.StringArg(args, "phone"),
		EventID:  common.StringArg(args, "event_id"),
		Summary:  common.StringArg(args, "summary"),
		StartAt:  common.StringArg(args, "start_at"),
		EndAt:    common.StringArg(args, "end_at"),
		TimeZone: common.StringArg(args, "tz"),
		Scope:    common.StringArg(args, "scope"),
	})
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res)
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	res, err := sc.Events().Delete(ctx, service.DeleteRequest{
		Phone:   common.StringArg(args, "phone"),
		EventID: common.StringArg(args, "event_id"),
		Scope:   common.StringArg(args, "scope"),
	})
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res)
}

func handleReminderCreate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	res, err := sc.Reminders().Create(ctx, service.CreateReminderRequest{
		Phone:      common.StringArg(args, "phone"),
		ReminderID: common.StringArg(args, "reminder_id"),
		Content:    common.StringArg(args, "content"),
		DueAt:      common.StringArg(args, "due_at"),
		TimeZone:   common.StringArg(args, "tz"),
	})
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res)
}

func handleLinkStart(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	baseURL := common.StringArg(args, "base_url")
	if baseURL == "" {
		baseURL = sc.PublicBaseURL()
	}

	res, err := sc.Linking().Start(ctx, common.StringArg(args, "phone"), baseURL)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res)
}
