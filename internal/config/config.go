package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/emeeran/phrm-diag-sub000/internal/retry"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Azure     AzureConfig
	Logging   LoggingConfig
	Analytics AnalyticsConfig
	Alerts    AlertsConfig
	Insights  InsightsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database connection configuration. An empty URL runs
// the service on the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig holds Azure OpenAI configuration. Leaving all fields empty
// disables the knowledge and generation port.
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// Enabled reports whether the OpenAI client should be created
func (c OpenAIConfig) Enabled() bool {
	return c.Endpoint != "" || c.APIKey != "" || c.Deployment != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// AnalyticsConfig tunes the analysis engines and the external lookups they make
type AnalyticsConfig struct {
	DedupWindow              time.Duration
	InteractionRetryAttempts int
	InteractionRetryDelay    time.Duration
	GenerationRetryAttempts  int
	GenerationRetryDelay     time.Duration
	LookupEnabled            bool
	LookupRate               float64
	LookupBurst              int
	LookupConcurrency        int
}

// InteractionPolicy is the retry policy for interaction lookups
func (c AnalyticsConfig) InteractionPolicy() retry.Policy {
	return retry.Policy{Attempts: c.InteractionRetryAttempts, BaseDelay: c.InteractionRetryDelay}
}

// GenerationPolicy is the retry policy for structured generation
func (c AnalyticsConfig) GenerationPolicy() retry.Policy {
	return retry.Policy{Attempts: c.GenerationRetryAttempts, BaseDelay: c.GenerationRetryDelay}
}

// AlertsConfig holds alert lifetimes and detector tunables
type AlertsConfig struct {
	AnomalyTTL        time.Duration
	MilestoneTTL      time.Duration
	WellnessTTL       time.Duration
	RecurringWindow   time.Duration
	RefillLeadTime    time.Duration
	RefillGrace       time.Duration
	DefaultSupplyDays int
}

// InsightsConfig holds predictive insight settings
type InsightsConfig struct {
	Validity time.Duration
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.allowedorigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.maxconns", 25)
	v.SetDefault("database.minconns", 2)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)
	v.SetDefault("database.runmigrations", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Analytics defaults
	v.SetDefault("analytics.dedupwindow", 24*time.Hour)
	v.SetDefault("analytics.interactionretryattempts", 2)
	v.SetDefault("analytics.interactionretrydelay", 300*time.Millisecond)
	v.SetDefault("analytics.generationretryattempts", 3)
	v.SetDefault("analytics.generationretrydelay", time.Second)
	v.SetDefault("analytics.lookupenabled", true)
	v.SetDefault("analytics.lookuprate", 5.0)
	v.SetDefault("analytics.lookupburst", 5)
	v.SetDefault("analytics.lookupconcurrency", 4)

	// Alert defaults
	v.SetDefault("alerts.anomalyttl", 14*24*time.Hour)
	v.SetDefault("alerts.milestonettl", 30*24*time.Hour)
	v.SetDefault("alerts.wellnessttl", 60*24*time.Hour)
	v.SetDefault("alerts.recurringwindow", 14*24*time.Hour)
	v.SetDefault("alerts.refillleadtime", 7*24*time.Hour)
	v.SetDefault("alerts.refillgrace", 7*24*time.Hour)
	v.SetDefault("alerts.defaultsupplydays", 30)

	// Insight defaults
	v.SetDefault("insights.validity", 30*24*time.Hour)
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.allowedorigins", "CORS_ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.maxconns", "DATABASE_MAX_CONNS")
	v.BindEnv("database.runmigrations", "DATABASE_RUN_MIGRATIONS")

	// Azure OpenAI
	v.BindEnv("azure.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("azure.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("azure.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")

	// Analytics
	v.BindEnv("analytics.dedupwindow", "ANALYSIS_DEDUP_WINDOW")
	v.BindEnv("analytics.interactionretryattempts", "INTERACTION_RETRY_ATTEMPTS")
	v.BindEnv("analytics.interactionretrydelay", "INTERACTION_RETRY_DELAY")
	v.BindEnv("analytics.generationretryattempts", "GENERATION_RETRY_ATTEMPTS")
	v.BindEnv("analytics.generationretrydelay", "GENERATION_RETRY_DELAY")
	v.BindEnv("analytics.lookupenabled", "INTERACTION_LOOKUP_ENABLED")
	v.BindEnv("analytics.lookuprate", "INTERACTION_LOOKUP_RATE")
	v.BindEnv("analytics.lookupburst", "INTERACTION_LOOKUP_BURST")
	v.BindEnv("analytics.lookupconcurrency", "INTERACTION_LOOKUP_CONCURRENCY")

	// Alerts
	v.BindEnv("alerts.anomalyttl", "ALERT_ANOMALY_TTL")
	v.BindEnv("alerts.milestonettl", "ALERT_MILESTONE_TTL")
	v.BindEnv("alerts.wellnessttl", "ALERT_WELLNESS_TTL")
	v.BindEnv("alerts.recurringwindow", "ALERT_RECURRING_WINDOW")
	v.BindEnv("alerts.refillleadtime", "ALERT_REFILL_LEAD_TIME")
	v.BindEnv("alerts.refillgrace", "ALERT_REFILL_GRACE")
	v.BindEnv("alerts.defaultsupplydays", "ALERT_DEFAULT_SUPPLY_DAYS")

	// Insights
	v.BindEnv("insights.validity", "INSIGHT_VALIDITY")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if c.Azure.OpenAI.Enabled() {
		if c.Azure.OpenAI.Endpoint == "" {
			return fmt.Errorf("azure.openai.endpoint is required")
		}
		if c.Azure.OpenAI.APIKey == "" {
			return fmt.Errorf("azure.openai.apikey is required")
		}
		if c.Azure.OpenAI.Deployment == "" {
			return fmt.Errorf("azure.openai.deployment is required")
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	a := c.Analytics
	if a.DedupWindow <= 0 {
		return fmt.Errorf("analytics.dedupwindow must be positive")
	}
	if a.InteractionRetryAttempts < 1 || a.GenerationRetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if a.InteractionRetryDelay < 0 || a.GenerationRetryDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if a.LookupRate < 0 {
		return fmt.Errorf("analytics.lookuprate must not be negative")
	}
	if a.LookupRate > 0 && a.LookupBurst < 1 {
		return fmt.Errorf("analytics.lookupburst must be at least 1 when a lookup rate is set")
	}
	if a.LookupConcurrency < 1 {
		return fmt.Errorf("analytics.lookupconcurrency must be at least 1")
	}

	for name, d := range map[string]time.Duration{
		"alerts.anomalyttl":      c.Alerts.AnomalyTTL,
		"alerts.milestonettl":    c.Alerts.MilestoneTTL,
		"alerts.wellnessttl":     c.Alerts.WellnessTTL,
		"alerts.recurringwindow": c.Alerts.RecurringWindow,
		"alerts.refillleadtime":  c.Alerts.RefillLeadTime,
		"alerts.refillgrace":     c.Alerts.RefillGrace,
		"insights.validity":      c.Insights.Validity,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Alerts.DefaultSupplyDays < 1 {
		return fmt.Errorf("alerts.defaultsupplydays must be at least 1")
	}

	return nil
}
