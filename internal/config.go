package internal

import (
	"errors"
	"time"

	"github.com/gdbrns/go-whatsapp-session-manager/internal/webhook"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/env"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/pkg/whatsapp"
)

type StartupConfig struct {
	Restore     bool
	Concurrency int
	JitterMax   time.Duration
}

type CronConfig struct {
	HealthCheck            bool
	HealthCheckSpec        string
	VersionRefresh         bool
	VersionRefreshSpec     string
	VersionRefreshForce    bool
	VersionRefreshInterval time.Duration
}

type Config struct {
	Address  string
	Port     string
	APIKey   string
	LogLevel string

	SessionPath       string
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	CleanupTimeout    time.Duration
	MaxAutoReconnect  int

	Client               pkgWhatsApp.Config
	RateLimit            ratelimit.Config
	Bulk                 dispatch.Options
	BulkMaxRecipients    int
	BulkJobTTL           time.Duration
	ValidatorConcurrency int

	Startup StartupConfig
	Cron    CronConfig
	Webhook webhook.WebhookConfig
}

// LoadConfig reads the service configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		// SERVER_ADDRESS: default "0.0.0.0" (all interfaces)
		Address: env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0"),
		// SERVER_PORT: default "7001"
		Port:     env.GetEnvStringOrDefault("SERVER_PORT", "7001"),
		APIKey:   env.GetEnvStringOrDefault("API_KEY", ""),
		LogLevel: env.GetEnvStringOrDefault("LOG_LEVEL", "info"),

		SessionPath:       env.GetEnvStringOrDefault("WHATSAPP_SESSION_PATH", "./sessions"),
		IdleTimeout:       env.GetEnvDurationOrDefault("WHATSAPP_IDLE_TIMEOUT", 24*time.Hour),
		IdleCheckInterval: env.GetEnvDurationOrDefault("WHATSAPP_IDLE_CHECK_INTERVAL", time.Minute),
		CleanupTimeout:    env.GetEnvDurationOrDefault("WHATSAPP_CLEANUP_TIMEOUT", 10*time.Second),
		MaxAutoReconnect:  env.GetEnvIntOrDefault("WHATSAPP_MAX_AUTO_RECONNECT", 3),

		Client: pkgWhatsApp.Config{
			AuthTimeout:  env.GetEnvDurationOrDefault("WHATSAPP_AUTH_TIMEOUT", 20*time.Second),
			ProxyURL:     env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""),
			QRTerminal:   env.GetEnvBoolOrDefault("WHATSAPP_QR_TERMINAL", false),
			MediaTimeout: env.GetEnvDurationOrDefault("WHATSAPP_MEDIA_TIMEOUT", 30*time.Second),
			MaxMediaSize: int64(env.GetEnvPositiveIntOrDefault("WHATSAPP_MEDIA_MAX_SIZE", 16<<20)),
		},
		RateLimit: ratelimit.Config{
			Window:       env.GetEnvDurationOrDefault("WHATSAPP_RATE_LIMIT_WINDOW", time.Minute),
			Max:          env.GetEnvPositiveIntOrDefault("WHATSAPP_RATE_LIMIT_MAX", 30),
			PollInterval: env.GetEnvDurationOrDefault("WHATSAPP_RATE_LIMIT_POLL", time.Second),
		},
		Bulk: dispatch.Options{
			BatchSize:     env.GetEnvPositiveIntOrDefault("WHATSAPP_BULK_BATCH_SIZE", 20),
			MessageDelay:  env.GetEnvDurationOrDefault("WHATSAPP_BULK_MESSAGE_DELAY", time.Second),
			BatchDelay:    env.GetEnvDurationOrDefault("WHATSAPP_BULK_BATCH_DELAY", 0),
			RecoveryDelay: env.GetEnvDurationOrDefault("WHATSAPP_BULK_RECOVERY_DELAY", 0),
		},
		BulkMaxRecipients:    env.GetEnvPositiveIntOrDefault("WHATSAPP_BULK_MAX_RECIPIENTS", 1000),
		BulkJobTTL:           env.GetEnvDurationOrDefault("WHATSAPP_BULK_JOB_TTL", time.Hour),
		ValidatorConcurrency: env.GetEnvPositiveIntOrDefault("WHATSAPP_VALIDATOR_CONCURRENCY", 10),

		Startup: StartupConfig{
			Restore:     env.GetEnvBoolOrDefault("WHATSAPP_STARTUP_RESTORE", false),
			Concurrency: env.GetEnvPositiveIntOrDefault("WHATSAPP_STARTUP_RECONNECT_CONCURRENCY", 5),
			JitterMax:   env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_JITTER_MAX", 3*time.Second),
		},
		Cron: CronConfig{
			HealthCheck:     env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_HEALTH_CHECK_CRON", true),
			HealthCheckSpec: env.GetEnvStringOrDefault("WHATSAPP_HEALTH_CHECK_CRON_SPEC", "0 */5 * * * *"),
			VersionRefresh:  env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON", false),
			// robfig/cron with seconds field (6 parts). Default: daily at 03:00:00.
			VersionRefreshSpec:     env.GetEnvStringOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_SPEC", "0 0 3 * * *"),
			VersionRefreshForce:    env.GetEnvBoolOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_FORCE", false),
			VersionRefreshInterval: env.GetEnvDurationOrDefault("WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL", 10*time.Minute),
		},
		Webhook: webhook.WebhookConfig{
			URL:           env.GetEnvStringOrDefault("WEBHOOK_URL", ""),
			Secret:        env.GetEnvStringOrDefault("WEBHOOK_SECRET", ""),
			Workers:       env.GetEnvPositiveIntOrDefault("WEBHOOK_WORKERS", 2),
			RetryLimit:    env.GetEnvPositiveIntOrDefault("WEBHOOK_RETRY_LIMIT", 3),
			AllowInsecure: env.GetEnvBoolOrDefault("WEBHOOK_ALLOW_INSECURE", false),
		},
	}

	if cfg.APIKey == "" {
		return cfg, errors.New("API_KEY must be set")
	}
	return cfg, nil
}
