package app

import (
	"github.com/asinehq/asine-console/internal/database"
	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/pkg/logger"
	"github.com/asinehq/asine-console/pkg/mail"
)

// DatabaseSettings converts the loaded configuration into connection
// settings for the database layer.
func (c *Config) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.DSN,
	}

	switch {
	case c.Database.Postgres.Enabled:
		cfg.Driver = "postgres"
		applyHostSettings(&cfg, c.Database.Postgres)
	case c.Database.MySQL.Enabled:
		cfg.Driver = "mysql"
		applyHostSettings(&cfg, c.Database.MySQL)
	}

	return cfg
}

func applyHostSettings(cfg *database.Config, auth DBAuthConfig) {
	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
}

// IdentitySettings maps configuration onto the identity client.
func (c *Config) IdentitySettings() identity.ClientConfig {
	return identity.ClientConfig{
		BaseURL:    c.Identity.BaseURL,
		AnonKey:    c.Identity.AnonKey,
		ServiceKey: c.Identity.ServiceKey,
		Timeout:    c.Identity.Timeout,
	}
}

// VerifierSettings maps configuration onto the local token verifier.
func (c *Config) VerifierSettings() identity.TokenVerifierConfig {
	return identity.TokenVerifierConfig{
		Secret:   c.Identity.JWTSecret,
		Audience: c.Identity.Audience,
	}
}

// StripeSettings maps configuration onto the payment gateway.
func (c *Config) StripeSettings() payments.StripeConfig {
	return payments.StripeConfig{
		APIKey:         c.Stripe.APIKey,
		WebhookSecret:  c.Stripe.WebhookSecret,
		SiteURL:        c.Server.SiteURL,
		MonthlyPriceID: c.Stripe.MonthlyPriceID,
		YearlyPriceID:  c.Stripe.YearlyPriceID,
	}
}

// BuildMailer selects the configured transport. Mailgun wins when both are
// enabled; a nil mailer is valid and downgrades email to a logged skip.
func (c *Config) BuildMailer() (mail.Mailer, error) {
	if c.Email.Mailgun.Enabled {
		return mail.NewMailgunMailer(mail.MailgunSettings{
			Enabled: true,
			Domain:  c.Email.Mailgun.Domain,
			APIKey:  c.Email.Mailgun.APIKey,
			Region:  c.Email.Mailgun.Region,
			From:    c.Email.Mailgun.From,
			Timeout: c.Email.Mailgun.Timeout,
		})
	}

	if c.Email.SMTP.Enabled {
		return mail.NewSMTPMailer(mail.SMTPSettings{
			Enabled:  true,
			Host:     c.Email.SMTP.Host,
			Port:     c.Email.SMTP.Port,
			Username: c.Email.SMTP.Username,
			Password: c.Email.SMTP.Password,
			From:     c.Email.SMTP.From,
			UseTLS:   c.Email.SMTP.UseTLS,
			Timeout:  c.Email.SMTP.Timeout,
		})
	}

	logger.Warn("no email transport configured, verification emails will be skipped")
	return nil, nil
}
