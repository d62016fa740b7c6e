package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/tools/calendar_tools"
)

// categoryOrder fixes the section order of the generated reference.
var categoryOrder = []string{"Google Calendar Tools", "Reminder Tools", "Other"}

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for the tools served by "calendarlink mcp".
The tools are registered against empty services and introspected, so the
reference always matches the registered definitions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return writeToolDocs(cmd.OutOrStdout())
			}
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeToolDocs(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

func writeToolDocs(w io.Writer) error {
	all, err := registeredTools(false)
	if err != nil {
		return err
	}
	readOnly, err := registeredTools(true)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, generateToolsMarkdown(all, readOnly))
	return err
}

// registeredTools returns the tools RegisterCalendarTools adds in the given
// mode, keyed by name.
func registeredTools(readOnly bool) (map[string]mcp.Tool, error) {
	serverContext := server.NewServerContext(context.Background(), server.Services{
		Events:    service.NewEvents(service.Config{}),
		Reminders: service.NewReminders(service.Config{}),
		Linking:   service.NewLinking(service.LinkingConfig{}),
	})
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("calendarlink", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, readOnly); err != nil {
		return nil, fmt.Errorf("failed to register calendar tools: %w", err)
	}

	tools := make(map[string]mcp.Tool)
	for _, serverTool := range mcpSrv.ListTools() {
		tools[serverTool.Tool.Name] = serverTool.Tool
	}
	return tools, nil
}

// generateToolsMarkdown renders all tools. Tools missing from readOnly are
// marked as requiring --yolo.
func generateToolsMarkdown(all, readOnly map[string]mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools available when running `calendarlink mcp`.\n\n")
	sb.WriteString("**Note:** This documentation is generated from the tool definitions by `calendarlink generate-docs`.\n\n")

	byCategory := make(map[string][]mcp.Tool)
	for _, name := range slices.Sorted(maps.Keys(all)) {
		category := getCategoryFromToolName(name)
		byCategory[category] = append(byCategory[category], all[name])
	}

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range categoryOrder {
		if len(byCategory[category]) == 0 {
			continue
		}
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor)
	}
	sb.WriteString("\n")

	sb.WriteString("## Account Resolution\n\n")
	sb.WriteString("Tools act on the Google Calendar linked to the `phone` argument:\n\n")
	sb.WriteString("- **Linked account:** The newest active Google account for the phone number is used\n")
	sb.WriteString("- **No account:** Tools answer `no_calendar_account`; use `calendar_link_start` to send a connect link\n")
	sb.WriteString("- **Managed events:** Events created from reminders cannot be changed or deleted by the event tools\n\n")

	sb.WriteString("## Safety Mode\n\n")
	sb.WriteString("By default only read-only tools are registered. Start the server with `--yolo` to enable the write tools.\n\n")

	for _, category := range categoryOrder {
		tools := byCategory[category]
		if len(tools) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range tools {
			_, ro := readOnly[tool.Name]
			sb.WriteString(generateToolMarkdown(tool, !ro))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "calendar":
		return "Google Calendar Tools"
	case "reminder":
		return "Reminder Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool, writes bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}
	if writes {
		sb.WriteString("**Mode:** write, requires `--yolo`\n\n")
	} else {
		sb.WriteString("**Mode:** read-only\n\n")
	}

	if len(tool.InputSchema.Properties) == 0 {
		return sb.String()
	}

	sb.WriteString("**Arguments:**\n")
	for _, name := range slices.Sorted(maps.Keys(tool.InputSchema.Properties)) {
		prop, ok := tool.InputSchema.Properties[name].(map[string]any)
		if !ok {
			continue
		}

		requiredStr := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			requiredStr = "required"
		}
		fmt.Fprintf(&sb, "- `%s` (%s): ", name, requiredStr)

		if desc, ok := prop["description"].(string); ok {
			sb.WriteString(desc)
		} else {
			fmt.Fprintf(&sb, "%s parameter", getPropertyType(prop))
		}
		if values := enumValues(prop); len(values) > 0 {
			fmt.Fprintf(&sb, " One of: `%s`.", strings.Join(values, "`, `"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func enumValues(prop map[string]any) []string {
	switch values := prop["enum"].(type) {
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, fmt.Sprint(v))
		}
		return out
	default:
		return nil
	}
}
