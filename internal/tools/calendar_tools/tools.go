package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/tools/common"
)

const phoneDescription = "WhatsApp number the calendar is linked to, digits only (e.g. '5511999999999')"

// RegisterCalendarTools registers all calendar tools with the MCP server.
// Without readOnly the patch, delete and reminder tools are registered too.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc.Events() == nil {
		return fmt.Errorf("event operations are required")
	}

	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List events of the linked calendar within a time range"),
		mcp.WithString("phone", mcp.Required(), mcp.Description(phoneDescription)),
		mcp.WithString("time_min",
			mcp.Required(),
			mcp.Description("Start of the range, RFC3339 or 'YYYY-MM-DD HH:MM'"),
		),
		mcp.WithString("time_max",
			mcp.Required(),
			mcp.Description("End of the range, RFC3339 or 'YYYY-MM-DD HH:MM'"),
		),
		mcp.WithString("tz", mcp.Description("IANA time zone for the returned times")),
		mcp.WithString("q", mcp.Description("Free text search")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of events to return")),
		mcp.WithBoolean("include_cancelled", mcp.Description("Include cancelled events")),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandler("calendar_list_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	linkTool := mcp.NewTool("calendar_link_start",
		mcp.WithDescription("Create a link the user opens to connect a Google Calendar to their number"),
		mcp.WithString("phone", mcp.Required(), mcp.Description(phoneDescription)),
		mcp.WithString("base_url", mcp.Description("Public origin of the service, used in the connect link")),
	)
	if sc.Linking() != nil {
		s.AddTool(linkTool, common.InstrumentedToolHandler("calendar_link_start", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleLinkStart(ctx, request, sc)
			}))
	}

	if readOnly {
		return nil
	}

	patchEventTool := mcp.NewTool("calendar_patch_event",
		mcp.WithDescription("Change the title and/or time of an event. Events created from reminders cannot be changed here."),
		mcp.WithString("phone", mcp.Required(), mcp.Description(phoneDescription)),
		mcp.WithString("event_id", mcp.Required(), mcp.Description("The ID of the event to change")),
		mcp.WithString("summary", mcp.Description("New title")),
		mcp.WithString("start_at", mcp.Description("New start; requires end_at")),
		mcp.WithString("end_at", mcp.Description("New end; requires start_at")),
		mcp.WithString("tz", mcp.Description("IANA time zone of start_at and end_at")),
		mcp.WithString("scope",
			mcp.Description("'this' for the single occurrence, 'series' for the whole recurring event"),
			mcp.Enum(service.ScopeThis, service.ScopeSeries),
		),
	)
	s.AddTool(patchEventTool, common.InstrumentedToolHandler("calendar_patch_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePatchEvent(ctx, request, sc)
		}))

	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete an event. Events created from reminders cannot be deleted here."),
		mcp.WithString("phone", mcp.Required(), mcp.Description(phoneDescription)),
		mcp.WithString("event_id", mcp.Required(), mcp.Description("The ID of the event to delete")),
		mcp.WithString("scope",
			mcp.Description("'this' for the single occurrence, 'series' for the whole recurring event"),
			mcp.Enum(service.ScopeThis, service.ScopeSeries),
		),
	)
	s.AddTool(deleteEventTool, common.InstrumentedToolHandler("calendar_delete_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	if sc.Reminders() == nil {
		return nil
	}

	reminderCreateTool := mcp.NewTool("reminder_create",
		mcp.WithDescription("Mirror a reminder as a 30 minute event on the linked calendar"),
		mcp.WithString("phone", mcp.Required(), mcp.Description(phoneDescription)),
		mcp.WithString("reminder_id", mcp.Required(), mcp.Description("ID of the reminder in the assistant")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Reminder text, used as the event title")),
		mcp.WithString("due_at", mcp.Required(), mcp.Description("When the reminder is due, RFC3339")),
		mcp.WithString("tz", mcp.Description("IANA time zone (default: America/Sao_Paulo)")),
	)
	s.AddTool(reminderCreateTool, common.InstrumentedToolHandler("reminder_create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReminderCreate(ctx, request, sc)
		}))

	return nil
}
