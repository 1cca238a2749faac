package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Asine console backend.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	Email        EmailConfig        `mapstructure:"email"`
	Verification VerificationConfig `mapstructure:"verification"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Invites      InviteConfig       `mapstructure:"invites"`
	Session      SessionConfig      `mapstructure:"session"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	SiteURL         string        `mapstructure:"site_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
	RateLimit       RateLimit     `mapstructure:"rate_limit"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// RateLimit bounds request rates on the public provisioning endpoints.
type RateLimit struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IdentityConfig points at the GoTrue-compatible identity provider.
type IdentityConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	AnonKey    string        `mapstructure:"anon_key"`
	ServiceKey string        `mapstructure:"service_key"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Audience   string        `mapstructure:"audience"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StripeConfig carries payment processor credentials and price identifiers.
type StripeConfig struct {
	APIKey         string `mapstructure:"api_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	MonthlyPriceID string `mapstructure:"monthly_price_id"`
	YearlyPriceID  string `mapstructure:"yearly_price_id"`
}

// EmailConfig captures outbound email settings. Mailgun is preferred when
// both transports are enabled; SMTP is the fallback.
type EmailConfig struct {
	Mailgun MailgunConfig `mapstructure:"mailgun"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
}

// MailgunConfig defines Mailgun API delivery settings.
type MailgunConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Domain  string        `mapstructure:"domain"`
	APIKey  string        `mapstructure:"api_key"`
	Region  string        `mapstructure:"region"`
	From    string        `mapstructure:"from"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// VerificationConfig tunes email verification tokens.
type VerificationConfig struct {
	Expiry          time.Duration `mapstructure:"expiry"`
	Subject         string        `mapstructure:"subject"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// ProvisioningConfig tunes the profile reconciliation retry loop.
type ProvisioningConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// InviteConfig controls PM invitations.
type InviteConfig struct {
	RequireSuperAdmin bool `mapstructure:"require_super_admin"`
}

// SessionConfig controls operator session persistence.
type SessionConfig struct {
	StorePath string `mapstructure:"store_path"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("ASINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports misconfiguration that would make the core account flows
// unusable at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Identity.BaseURL) == "" {
		return errors.New("config: identity.base_url is required")
	}
	if strings.TrimSpace(c.Identity.ServiceKey) == "" {
		return errors.New("config: identity.service_key is required")
	}
	if c.Email.Mailgun.Enabled && strings.TrimSpace(c.Email.Mailgun.Domain) == "" {
		return errors.New("config: email.mailgun.domain is required when mailgun is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.site_url", "http://localhost:3000")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.metrics.enabled", true)
	v.SetDefault("server.metrics.endpoint", "/metrics")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.limit", 60)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/asine.sqlite")

	v.SetDefault("identity.timeout", "10s")
	v.SetDefault("identity.audience", "authenticated")

	v.SetDefault("email.mailgun.enabled", false)
	v.SetDefault("email.mailgun.region", "us")
	v.SetDefault("email.mailgun.timeout", "10s")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("verification.expiry", "24h")
	v.SetDefault("verification.cleanup_schedule", "@daily")

	v.SetDefault("provisioning.retry_attempts", 3)
	v.SetDefault("provisioning.retry_delay", "200ms")

	v.SetDefault("invites.require_super_admin", false)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
