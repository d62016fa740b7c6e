package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calendarlink/internal/instrumentation"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/tools/calendar_tools"
)

func newMCPCmd() *cobra.Command {
	var yolo bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the calendar tools over MCP on stdio",
		Long: `Serve the calendar tools to an AI assistant using the Model Context
Protocol over standard input/output.

The tools share the service layer with the HTTP API: they read the linked
account from the database and talk to Google Calendar with its stored
credentials.

Safety Mode:
  By default only calendar_list_events and calendar_link_start are
  registered. Use --yolo to also register the tools that change calendars.

Logs are written to stderr so they do not interfere with the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runMCP(cmd.Context(), cfg, !yolo)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (event patch and delete, reminder creation). Default is read-only mode.")
	addConfigFlags(cmd.Flags())

	return cmd
}

func runMCP(parent context.Context, cfg Config, readOnly bool) error {
	if parent == nil {
		parent = context.Background()
	}
	shutdownCtx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	deps, err := buildDependencies(shutdownCtx, cfg, logger, provider.Metrics())
	if err != nil {
		return err
	}
	defer deps.Close()

	serverContext := server.NewServerContext(shutdownCtx, deps.services,
		server.WithDatabase(deps.db),
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logger),
		server.WithPublicBaseURL(cfg.PublicBaseURL),
	)
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("calendarlink", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, readOnly); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	logger.Info("starting MCP server on stdio", slog.Bool("read_only", readOnly))
	return runStdioServer(shutdownCtx, mcpSrv)
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
