package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	require.True(t, cfg.Server.Metrics.Enabled)
	require.Equal(t, "/metrics", cfg.Server.Metrics.Endpoint)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/asine.sqlite", cfg.Database.Path)

	require.Equal(t, 10*time.Second, cfg.Identity.Timeout)
	require.Equal(t, "authenticated", cfg.Identity.Audience)

	require.Equal(t, 24*time.Hour, cfg.Verification.Expiry)
	require.Equal(t, "@daily", cfg.Verification.CleanupSchedule)

	require.Equal(t, 3, cfg.Provisioning.RetryAttempts)
	require.Equal(t, 200*time.Millisecond, cfg.Provisioning.RetryDelay)

	require.False(t, cfg.Invites.RequireSuperAdmin)
	require.False(t, cfg.Email.Mailgun.Enabled)
	require.Equal(t, "us", cfg.Email.Mailgun.Region)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9100
  site_url: https://admin.asine.app
identity:
  base_url: https://auth.asine.app
  service_key: service-key
stripe:
  monthly_price_id: price_monthly
email:
  mailgun:
    enabled: true
    domain: mg.asine.app
    api_key: key-test
    region: eu
provisioning:
  retry_delay: 50ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "https://admin.asine.app", cfg.Server.SiteURL)
	require.Equal(t, "https://auth.asine.app", cfg.Identity.BaseURL)
	require.Equal(t, "price_monthly", cfg.Stripe.MonthlyPriceID)
	require.True(t, cfg.Email.Mailgun.Enabled)
	require.Equal(t, "eu", cfg.Email.Mailgun.Region)
	require.Equal(t, 50*time.Millisecond, cfg.Provisioning.RetryDelay)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("ASINE_SERVER_PORT", "9200")
	t.Setenv("ASINE_IDENTITY_BASE_URL", "https://auth.example.com")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "https://auth.example.com", cfg.Identity.BaseURL)
}

func TestValidateRejectsIncompleteIdentity(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Error(t, cfg.Validate())

	cfg.Identity.BaseURL = "https://auth.asine.app"
	require.Error(t, cfg.Validate())

	cfg.Identity.ServiceKey = "service-key"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMailgunWithoutDomain(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Identity.BaseURL = "https://auth.asine.app"
	cfg.Identity.ServiceKey = "service-key"
	cfg.Email.Mailgun.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.Email.Mailgun.Domain = "mg.asine.app"
	require.NoError(t, cfg.Validate())
}

func TestDatabaseSettingsSelectsHostDrivers(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/asine.sqlite",
			Postgres: DBAuthConfig{
				Enabled:  true,
				Host:     "db.internal",
				Port:     5432,
				Database: "asine",
				Username: "asine",
				Password: "secret",
			},
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, "asine", settings.Name)
}

func TestBuildMailerPrefersMailgun(t *testing.T) {
	cfg := &Config{
		Email: EmailConfig{
			Mailgun: MailgunConfig{
				Enabled: true,
				Domain:  "mg.asine.app",
				APIKey:  "key-test",
				From:    "Asine <no-reply@asine.app>",
			},
			SMTP: SMTPConfig{Enabled: true, Host: "smtp.example.com", From: "no-reply@asine.app"},
		},
	}

	mailer, err := cfg.BuildMailer()
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestBuildMailerWithoutTransport(t *testing.T) {
	cfg := &Config{}
	mailer, err := cfg.BuildMailer()
	require.NoError(t, err)
	require.Nil(t, mailer)
}
