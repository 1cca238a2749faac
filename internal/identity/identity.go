package identity

import (
	"context"
	"errors"
)

// Sentinel errors mapped from provider responses. Callers branch on these
// rather than parsing provider error text themselves.
var (
	ErrEmailRegistered    = errors.New("identity: email already registered")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrEmailNotConfirmed  = errors.New("identity: email not confirmed")
	ErrRateLimited        = errors.New("identity: rate limited")
	ErrNotFound           = errors.New("identity: account not found")
)

// Account is the provider-side user record. Metadata carries the console's
// name, property_name and role fields set at signup or invite time.
type Account struct {
	ID             string            `json:"id"`
	Email          string            `json:"email"`
	EmailConfirmed bool              `json:"email_confirmed"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Token is an issued credential pair.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignUpParams configure a self-service registration.
type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]string
}

// CreateUserParams configure an administrative account creation. When
// EmailConfirm is false the account is provisional until the user verifies.
type CreateUserParams struct {
	Email        string
	Password     string
	Metadata     map[string]string
	EmailConfirm bool
}

// Provider abstracts the external identity service. Accounts, passwords and
// email-confirmation state live on the provider; the console only mirrors
// what it needs.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (*Account, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*Account, error)
	DeleteUser(ctx context.Context, id string) error
	ConfirmEmail(ctx context.Context, id string) error
	GetUser(ctx context.Context, accessToken string) (*Account, error)
	GrantPassword(ctx context.Context, email, password string) (*Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	RevokeToken(ctx context.Context, accessToken string) error
}
