package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultRedirectURI is the OAuth callback registered for the production host.
const DefaultRedirectURI = "https://calendar.gestaosincronia.com.br/calendar/callback"

const envPrefix = "CALENDARLINK"

// Config holds the settings shared by the serve and mcp commands.
type Config struct {
	Port int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	DatabaseURL        string
	StateSigningSecret string
	ValkeyURL          string

	WebhookURL     string
	WebhookSecret  string
	WhatsAppNumber string
	PublicBaseURL  string

	MetricsEnabled bool
	MetricsAddr    string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// setting is a configuration key and the legacy environment names that
// also populate it, in order of preference.
type setting struct {
	key    string
	legacy []string
}

var settings = []setting{
	{key: "port", legacy: []string{"PORT"}},
	{key: "google-client-id", legacy: []string{"GOOGLE_CLIENT_ID"}},
	{key: "google-client-secret", legacy: []string{"GOOGLE_CLIENT_SECRET"}},
	{key: "google-redirect-uri", legacy: []string{"GOOGLE_REDIRECT_URI"}},
	{key: "database-url", legacy: []string{"SUPABASE_DB_URL", "DATABASE_URL"}},
	{key: "state-signing-secret", legacy: []string{"STATE_SIGNING_SECRET"}},
	{key: "valkey-url", legacy: []string{"REDIS_URL", "VALKEY_URL"}},
	{key: "webhook-url", legacy: []string{"N8N_CALENDAR_CONNECTED_WEBHOOK_URL"}},
	{key: "webhook-secret", legacy: []string{"N8N_WEBHOOK_SECRET"}},
	{key: "whatsapp-number", legacy: []string{"BIA_WHATSAPP_NUMBER"}},
	{key: "public-base-url", legacy: []string{"PUBLIC_BASE_URL"}},
	{key: "metrics-enabled", legacy: []string{"METRICS_ENABLED"}},
	{key: "metrics-addr", legacy: []string{"METRICS_ADDR"}},
	{key: "log-level", legacy: []string{"LOG_LEVEL"}},
	{key: "log-format", legacy: []string{"LOG_FORMAT"}},
	{key: "shutdown-timeout"},
}

// addConfigFlags registers the configuration flags on flags.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.Int("port", 3000, "HTTP listen port. Can also use PORT env var.")
	flags.String("google-client-id", "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	flags.String("google-client-secret", "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	flags.String("google-redirect-uri", DefaultRedirectURI, "OAuth callback URL registered with Google. Can also use GOOGLE_REDIRECT_URI env var.")
	flags.String("database-url", "", "Postgres connection string. Can also use SUPABASE_DB_URL or DATABASE_URL env vars.")
	flags.String("state-signing-secret", "", "HMAC secret for OAuth state tokens (defaults to the client secret). Can also use STATE_SIGNING_SECRET env var.")
	flags.String("valkey-url", "", "Valkey/Redis URL for shared locks and link codes (e.g. redis://host:6379/0). Can also use REDIS_URL or VALKEY_URL env vars.")
	flags.String("webhook-url", "", "Webhook notified when a calendar is connected. Can also use N8N_CALENDAR_CONNECTED_WEBHOOK_URL env var.")
	flags.String("webhook-secret", "", "Secret sent in the x-webhook-secret header. Can also use N8N_WEBHOOK_SECRET env var.")
	flags.String("whatsapp-number", "", "Assistant WhatsApp number linked from the success page. Can also use BIA_WHATSAPP_NUMBER env var.")
	flags.String("public-base-url", "", "Public URL used to build short connect links. Can also use PUBLIC_BASE_URL env var.")
	flags.Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	flags.String("metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")
	flags.String("log-level", "info", "Log level: debug, info, warn or error. Can also use LOG_LEVEL env var.")
	flags.String("log-format", "json", "Log format: json or text. Can also use LOG_FORMAT env var.")
	flags.Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight requests on shutdown")
}

// envName returns the prefixed environment variable for key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// newConfigViper binds every setting to its flag, its prefixed environment
// variable and its legacy names. Explicit flags win over the environment.
func newConfigViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	for _, s := range settings {
		if flag := flags.Lookup(s.key); flag != nil {
			if err := v.BindPFlag(s.key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", s.key, err)
			}
		}
		names := append([]string{s.key, envName(s.key)}, s.legacy...)
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", s.key, err)
		}
	}
	return v, nil
}

// loadConfig reads the configuration bound to flags.
func loadConfig(flags *pflag.FlagSet) (Config, error) {
	v, err := newConfigViper(flags)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:               v.GetInt("port"),
		GoogleClientID:     strings.TrimSpace(v.GetString("google-client-id")),
		GoogleClientSecret: strings.TrimSpace(v.GetString("google-client-secret")),
		GoogleRedirectURI:  strings.TrimSpace(v.GetString("google-redirect-uri")),
		DatabaseURL:        strings.TrimSpace(v.GetString("database-url")),
		StateSigningSecret: v.GetString("state-signing-secret"),
		ValkeyURL:          strings.TrimSpace(v.GetString("valkey-url")),
		WebhookURL:         strings.TrimSpace(v.GetString("webhook-url")),
		WebhookSecret:      v.GetString("webhook-secret"),
		WhatsAppNumber:     strings.TrimSpace(v.GetString("whatsapp-number")),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString("public-base-url")), "/"),
		MetricsEnabled:     v.GetBool("metrics-enabled"),
		MetricsAddr:        strings.TrimSpace(v.GetString("metrics-addr")),
		LogLevel:           strings.TrimSpace(v.GetString("log-level")),
		LogFormat:          strings.TrimSpace(v.GetString("log-format")),
		ShutdownTimeout:    v.GetDuration("shutdown-timeout"),
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.GoogleRedirectURI == "" {
		cfg.GoogleRedirectURI = DefaultRedirectURI
	}
	if cfg.StateSigningSecret == "" {
		cfg.StateSigningSecret = cfg.GoogleClientSecret
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "SUPABASE_DB_URL")
	}
	if c.StateSigningSecret == "" {
		missing = append(missing, "STATE_SIGNING_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
