package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valkey-io/valkey-go"

	"github.com/teemow/calendarlink/internal/calendar"
	"github.com/teemow/calendarlink/internal/google"
	"github.com/teemow/calendarlink/internal/httpapi"
	"github.com/teemow/calendarlink/internal/instrumentation"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/pages"
	"github.com/teemow/calendarlink/internal/resilience"
	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/server"
	"github.com/teemow/calendarlink/internal/service"
	"github.com/teemow/calendarlink/internal/state"
	"github.com/teemow/calendarlink/internal/store/postgres"
	"github.com/teemow/calendarlink/internal/valkeystore"
	"github.com/teemow/calendarlink/internal/webhook"
)

func newServeCmd() *cobra.Command {
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the calendar linking HTTP service.

The service exposes the connect flow (/calendar/link/*, /calendar/callback),
the event and reminder API used by the assistant (/google-events/*,
/google-reminders/*) and health endpoints. A separate metrics server is
started on --metrics-addr when the Prometheus exporter is active.

Required configuration:
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, SUPABASE_DB_URL (or DATABASE_URL)
  STATE_SIGNING_SECRET falls back to GOOGLE_CLIENT_SECRET.

Optional:
  REDIS_URL or VALKEY_URL enables short connect links and coordinates
  calendar writes across replicas. Without it writes are serialized per
  process only.

Every setting can also be given as a CALENDARLINK_ prefixed environment
variable, e.g. CALENDARLINK_PORT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if debugMode {
				cfg.LogLevel = "debug"
				cfg.LogFormat = "text"
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging with human readable output")
	addConfigFlags(cmd.Flags())

	return cmd
}

func runServe(parent context.Context, cfg Config) error {
	if parent == nil {
		parent = context.Background()
	}
	// Setup graceful shutdown
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

	// Initialize instrumentation provider
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

	renderer, err := pages.New()
	if err != nil {
		return fmt.Errorf("failed to load page templates: %w", err)
	}

	health := server.NewHealthChecker(serverContext)
	health.AddCheck("database", func(ctx context.Context) error {
		_, err := deps.db.Now(ctx)
		return err
	})
	if deps.valkey != nil {
		health.AddCheck("valkey", func(ctx context.Context) error {
			return valkeystore.Ping(ctx, deps.valkey)
		})
	}

	api := httpapi.New(serverContext, renderer, health, httpapi.Config{
		PublicBaseURL:  cfg.PublicBaseURL,
		WhatsAppNumber: cfg.WhatsAppNumber,
		Tracing:        provider.TracingEnabled(),
	})

	// Start metrics server when Prometheus is the metrics exporter
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		logger.Info("starting calendarlink",
			slog.String("addr", httpServer.Addr),
			slog.String("version", version),
			slog.Bool("coordinated", deps.valkey != nil),
			slog.Bool("short_links", deps.services.Linking.ShortLinks()),
			slog.Bool("webhook", cfg.WebhookURL != ""))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// dependencies are the long lived clients behind the service layer.
type dependencies struct {
	db       *postgres.Store
	valkey   valkey.Client
	services server.Services
}

// Close releases the database pool and the valkey connection.
func (d *dependencies) Close() {
	if d.valkey != nil {
		d.valkey.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// buildDependencies connects to the database and the optional valkey server
// and assembles the services.
func buildDependencies(ctx context.Context, cfg Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*dependencies, error) {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	deps := &dependencies{db: db}

	var (
		lockStore sequencer.LockStore
		linkCodes service.LinkCodeStore
	)
	if cfg.ValkeyURL != "" {
		client, err := valkeystore.NewClient(valkeystore.Config{URL: cfg.ValkeyURL, DialTimeout: 5 * time.Second})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.valkey = client
		lockStore = valkeystore.NewLockStore(client)
		linkCodes = valkeystore.NewLinkCodes(client)
	} else {
		logger.Warn("no valkey URL configured, calendar writes are serialized in this process only and connect links are direct")
	}

	oauth, err := google.NewOAuth(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	})
	if err != nil {
		deps.Close()
		return nil, err
	}

	codec, err := state.NewCodec(cfg.StateSigningSecret, state.WithMetrics(metrics))
	if err != nil {
		deps.Close()
		return nil, err
	}

	invoker := resilience.NewInvoker(resilience.WithLogger(logger), resilience.WithMetrics(metrics))

	if lockStore == nil {
		lockStore = sequencer.NewMemoryStore(nil)
	}
	seq := sequencer.New(lockStore, sequencer.WithLogger(logger), sequencer.WithMetrics(metrics))

	svcConfig := service.Config{
		Accounts:  db,
		Reminders: db,
		Calendars: service.GoogleCalendars(oauth, calendar.WithMetrics(metrics)),
		Sequencer: seq,
		Invoker:   invoker,
		Logger:    logger,
	}

	linking := service.LinkingConfig{
		Codec:     codec,
		OAuth:     oauth,
		Accounts:  db,
		LinkCodes: linkCodes,
		Invoker:   invoker,
		Logger:    logger,
	}
	if cfg.WebhookURL != "" {
		linking.Notifier = webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, webhook.WithLogger(logger))
	}

	deps.services = server.Services{
		Events:    service.NewEvents(svcConfig),
		Reminders: service.NewReminders(svcConfig),
		Linking:   service.NewLinking(linking),
	}
	return deps, nil
}
