package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMailgunDisabled signals that Mailgun delivery is disabled via configuration.
var ErrMailgunDisabled = errors.New("mailgun: delivery disabled")

// MailgunSettings capture the runtime configuration for the Mailgun HTTP mailer.
type MailgunSettings struct {
	Enabled bool
	Domain  string
	APIKey  string
	Region  string
	From    string
	Timeout time.Duration
}

type mailgunMailer struct {
	cfg     MailgunSettings
	client  *http.Client
	baseURL string
}

// NewMailgunMailer builds a mailer that delivers through the Mailgun messages
// API. The EU region uses a separate API host.
func NewMailgunMailer(cfg MailgunSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Domain) == "" {
			return nil, errors.New("mailgun: domain is required when enabled")
		}
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("mailgun: api key is required when enabled")
		}
		if strings.HasPrefix(cfg.APIKey, "pubkey-") {
			return nil, errors.New("mailgun: public api keys cannot send mail, use a private key")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	base := "https://api.mailgun.net/v3"
	if strings.EqualFold(cfg.Region, "eu") {
		base = "https://api.eu.mailgun.net/v3"
	}

	return &mailgunMailer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: base,
	}, nil
}

func (m *mailgunMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrMailgunDisabled
	}

	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return errors.New("mailgun: at least one recipient is required")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		from = fmt.Sprintf("noreply@%s", m.cfg.Domain)
	}

	form := url.Values{}
	form.Set("from", from)
	form.Set("to", strings.Join(recipients, ","))
	form.Set("subject", msg.Subject)
	if msg.HTMLBody != "" {
		form.Set("html", msg.HTMLBody)
	}
	if msg.Body != "" {
		form.Set("text", msg.Body)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", m.baseURL, m.cfg.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mailgun: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailgun: api returned %d: %s", resp.StatusCode, mailgunErrorMessage(body))
	}

	// Mailgun occasionally reports failures inside a 200 response.
	var result struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err == nil && result.Error != "" {
		return fmt.Errorf("mailgun: %s", result.Error)
	}

	return nil
}

func mailgunErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no response body"
	}
	return text
}
