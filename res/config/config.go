// Package config loads process configuration from the environment and an optional config.yaml.
//
// REQUIRED (minimum to run against postgres):
//   - DATABASE_POSTGRES_URL: PostgreSQL connection string
//   - AUTH_JWT_SECRET: JWT signing secret
//
// OPTIONAL integrations degrade gracefully when left empty: REDIS_ADDR (sweep lock),
// SLACK_WEBHOOK_URL (operator notifications), SIDEMAIL_API_KEY (customer emails),
// GCS_INVOICE_BUCKET (invoice archive).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	StoreDriver string `mapstructure:"STORE_DRIVER"` // postgres | memory
	DatabaseURL string `mapstructure:"DATABASE_POSTGRES_URL"`

	JWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	SlackWebhookURL     string `mapstructure:"SLACK_WEBHOOK_URL"`
	SlackTimeoutSeconds int    `mapstructure:"SLACK_TIMEOUT_SECONDS"`

	SidemailAPIKey      string `mapstructure:"SIDEMAIL_API_KEY"`
	SidemailAPIURL      string `mapstructure:"SIDEMAIL_API_URL"`
	SidemailFromAddress string `mapstructure:"SIDEMAIL_FROM_ADDRESS"`

	GCSInvoiceBucket   string `mapstructure:"GCS_INVOICE_BUCKET"`
	GCSProjectID       string `mapstructure:"GCS_PROJECT_ID"`
	GCSCredentialsPath string `mapstructure:"GCS_CREDENTIALS_PATH"`

	AutoConfirmSchedule     string `mapstructure:"AUTO_CONFIRM_SCHEDULE"`
	AutoConfirmCutoffHours  int    `mapstructure:"AUTO_CONFIRM_CUTOFF_HOURS"`
	CancellationWindowHours int    `mapstructure:"CANCELLATION_WINDOW_HOURS"`
	SlotTickMinutes         int    `mapstructure:"SLOT_TICK_MINUTES"`
	DragSnapMinutes         int    `mapstructure:"DRAG_SNAP_MINUTES"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var defaults = map[string]interface{}{
	"ENVIRONMENT":               "development",
	"PORT":                      "8080",
	"FRONTEND_URL":              "",
	"STORE_DRIVER":              StoreDriverPostgres,
	"DATABASE_POSTGRES_URL":     "",
	"AUTH_JWT_SECRET":           "",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"SLACK_WEBHOOK_URL":         "",
	"SLACK_TIMEOUT_SECONDS":     5,
	"SIDEMAIL_API_KEY":          "",
	"SIDEMAIL_API_URL":          "https://api.sidemail.io/v1",
	"SIDEMAIL_FROM_ADDRESS":     "",
	"GCS_INVOICE_BUCKET":        "",
	"GCS_PROJECT_ID":            "",
	"GCS_CREDENTIALS_PATH":      "",
	"AUTO_CONFIRM_SCHEDULE":     "@hourly",
	"AUTO_CONFIRM_CUTOFF_HOURS": 3,
	"CANCELLATION_WINDOW_HOURS": 24,
	"SLOT_TICK_MINUTES":         30,
	"DRAG_SNAP_MINUTES":         10,
}

// Load reads config.yaml from the working directory or ./config when present, then lets
// environment variables override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_POSTGRES_URL is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("config: AUTH_JWT_SECRET is required")
	}
	if c.AutoConfirmCutoffHours <= 0 {
		return fmt.Errorf("config: AUTO_CONFIRM_CUTOFF_HOURS must be positive")
	}
	if c.CancellationWindowHours < 0 {
		return fmt.Errorf("config: CANCELLATION_WINDOW_HOURS must not be negative")
	}
	if c.SlotTickMinutes <= 0 || c.DragSnapMinutes <= 0 {
		return fmt.Errorf("config: SLOT_TICK_MINUTES and DRAG_SNAP_MINUTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) SlackTimeout() time.Duration {
	return time.Duration(c.SlackTimeoutSeconds) * time.Second
}

func (c *Config) AutoConfirmCutoff() time.Duration {
	return time.Duration(c.AutoConfirmCutoffHours) * time.Hour
}

func (c *Config) CancellationWindow() time.Duration {
	return time.Duration(c.CancellationWindowHours) * time.Hour
}

func (c *Config) SlotTick() time.Duration {
	return time.Duration(c.SlotTickMinutes) * time.Minute
}

func (c *Config) DragSnap() time.Duration {
	return time.Duration(c.DragSnapMinutes) * time.Minute
}
