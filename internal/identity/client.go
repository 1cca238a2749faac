package identity

import (
	"bytes"
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

// ClientConfig bundles the options required to talk to the identity service.
type ClientConfig struct {
	BaseURL    string
	AnonKey    string // public API key sent on end-user calls
	ServiceKey string // privileged key for /admin endpoints
	Timeout    time.Duration
}

// Client implements Provider against a GoTrue-compatible REST API.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewClient validates the configuration and returns a ready Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("identity: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type accountPayload struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	EmailConfirmedAt string            `json:"email_confirmed_at"`
	UserMetadata     map[string]string `json:"user_metadata"`
}

func (p accountPayload) toAccount() *Account {
	return &Account{
		ID:             p.ID,
		Email:          p.Email,
		EmailConfirmed: p.EmailConfirmedAt != "",
		Metadata:       p.UserMetadata,
	}
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type errorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorPayload) text() string {
	for _, candidate := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// SignUp registers a new account with the supplied metadata.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*Account, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Metadata) > 0 {
		body["data"] = params.Metadata
	}

	var payload accountPayload
	if err := c.do(ctx, http.MethodPost, "/signup", c.anonKey, body, &payload); err != nil {
		return nil, err
	}

	// Some deployments wrap the account in a session envelope.
	if payload.ID == "" {
		return nil, errors.New("identity: signup returned no account id")
	}
	return payload.toAccount(), nil
}

// CreateUser provisions an account through the administrative API.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (*Account, error) {
	body := map[string]any{
		"email":         params.Email,
		"email_confirm": params.EmailConfirm,
	}
	if params.Password != "" {
		body["password"] = params.Password
	}
	if len(params.Metadata) > 0 {
		body["user_metadata"] = params.Metadata
	}

	var payload accountPayload
	if err := c.do(ctx, http.MethodPost, "/admin/users", c.serviceKey, body, &payload); err != nil {
		return nil, err
	}
	return payload.toAccount(), nil
}

// DeleteUser removes a provider account. Used as the compensating action
// when provisioning fails after signup.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("identity: user id is required")
	}
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), c.serviceKey, nil, nil)
}

// ConfirmEmail mirrors a console-side verification into the provider.
func (c *Client) ConfirmEmail(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("identity: user id is required")
	}
	body := map[string]any{"email_confirm": true}
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), c.serviceKey, body, nil)
}

// GetUser resolves the account behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*Account, error) {
	if accessToken == "" {
		return nil, ErrInvalidCredentials
	}
	var payload accountPayload
	if err := c.doWithBearer(ctx, http.MethodGet, "/user", accessToken, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toAccount(), nil
}

// GrantPassword exchanges credentials for a token pair.
func (c *Client) GrantPassword(ctx context.Context, email, password string) (*Token, error) {
	body := map[string]any{"email": email, "password": password}
	var payload tokenPayload
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.anonKey, body, &payload); err != nil {
		return nil, err
	}
	return &Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// RefreshToken exchanges a refresh token for a fresh pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	body := map[string]any{"refresh_token": refreshToken}
	var payload tokenPayload
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", c.anonKey, body, &payload); err != nil {
		return nil, err
	}
	return &Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// RevokeToken invalidates the session behind an access token.
func (c *Client) RevokeToken(ctx context.Context, accessToken string) error {
	return c.doWithBearer(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, body, out any) error {
	return c.send(ctx, method, path, apiKey, "Bearer "+apiKey, body, out)
}

func (c *Client) doWithBearer(ctx context.Context, method, path, accessToken string, body, out any) error {
	return c.send(ctx, method, path, c.anonKey, "Bearer "+accessToken, body, out)
}

func (c *Client) send(ctx context.Context, method, path, apiKey, authorization string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	if authorization != "Bearer " {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return c.mapError(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("identity: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)
	text := payload.text()

	code := ""
	switch v := payload.Code.(type) {
	case string:
		code = v
	case float64:
		code = fmt.Sprintf("%.0f", v)
	}
	if code == "" {
		code = payload.ErrorCode
	}

	lower := strings.ToLower(text)
	switch {
	case status == http.StatusTooManyRequests || code == "over_request_rate_limit":
		return ErrRateLimited
	case code == "user_already_exists" || code == "email_exists" || strings.Contains(lower, "already registered"):
		return ErrEmailRegistered
	case code == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		return ErrEmailNotConfirmed
	case status == http.StatusNotFound || code == "user_not_found":
		return ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		if code == "invalid_credentials" || payload.Error == "invalid_grant" || strings.Contains(lower, "invalid login credentials") {
			return ErrInvalidCredentials
		}
	}

	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Errorf("identity: provider returned %d: %s", status, text)
}
