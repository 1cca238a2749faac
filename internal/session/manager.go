package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/asinehq/asine-console/internal/identity"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/logger"
)

// ManagerOption customises the Manager.
type ManagerOption func(*Manager)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// Manager drives the operator sign-in lifecycle against the identity
// provider: password grant, token refresh, revocation. The store holds at
// most one session; the console is a single-operator surface.
type Manager struct {
	provider identity.Provider
	store    Store
	now      func() time.Time
	log      *zap.Logger
}

// NewManager constructs a session manager.
func NewManager(provider identity.Provider, store Store, opts ...ManagerOption) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("session manager: identity provider is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}

	manager := &Manager{
		provider: provider,
		store:    store,
		now:      time.Now,
		log:      logger.WithModule("session"),
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager, nil
}

// Login exchanges operator credentials for a session and persists it.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	token, err := m.provider.GrantPassword(ctx, email, password)
	if err != nil {
		return nil, m.mapLoginError(err)
	}

	session := m.buildSession(token)
	if account, err := m.provider.GetUser(ctx, token.AccessToken); err == nil {
		session.User = accountUser(account)
	} else {
		m.log.Warn("could not load account after login", zap.Error(err))
		session.User = User{Email: email}
	}

	if err := m.store.Save(session); err != nil {
		return nil, apperrors.Wrap(err, "Failed to persist session")
	}
	return session, nil
}

// Current returns the stored session, refreshing it first when the access
// token is at or past expiry.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	session, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	if !session.Expired(m.now()) {
		return session, nil
	}
	return m.refresh(ctx, session)
}

// Refresh forces a token rotation regardless of expiry.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	session, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, session)
}

// Logout revokes the access token and clears the store. Revocation failures
// are logged; the local session is cleared regardless.
func (m *Manager) Logout(ctx context.Context) error {
	session, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}

	if err := m.provider.RevokeToken(ctx, session.AccessToken); err != nil {
		m.log.Warn("could not revoke token at provider", zap.Error(err))
	}
	return m.store.Clear()
}

func (m *Manager) refresh(ctx context.Context, session *Session) (*Session, error) {
	if session.RefreshToken == "" {
		_ = m.store.Clear()
		return nil, ErrSessionExpired
	}

	token, err := m.provider.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		// A rejected refresh token is unrecoverable; drop the session so
		// the operator is prompted to sign in again.
		_ = m.store.Clear()
		m.log.Info("session refresh rejected", zap.Error(err))
		return nil, ErrSessionExpired
	}

	rotated := m.buildSession(token)
	rotated.User = session.User

	if err := m.store.Save(rotated); err != nil {
		return nil, apperrors.Wrap(err, "Failed to persist session")
	}
	return rotated, nil
}

func (m *Manager) buildSession(token *identity.Token) *Session {
	session := &Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if token.ExpiresIn > 0 {
		session.ExpiresAt = m.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return session
}

func (m *Manager) mapLoginError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return apperrors.New("INVALID_CREDENTIALS", "Invalid email or password", 401)
	case errors.Is(err, identity.ErrEmailNotConfirmed):
		return apperrors.New("EMAIL_NOT_CONFIRMED", "Please verify your email before signing in", 403)
	case errors.Is(err, identity.ErrRateLimited):
		return apperrors.New("RATE_LIMITED", "Too many attempts, try again shortly", 429)
	default:
		return apperrors.NewUpstream("login", err)
	}
}

func accountUser(account *identity.Account) User {
	user := User{
		ID:    account.ID,
		Email: account.Email,
		Meta:  account.Metadata,
	}
	if account.Metadata != nil {
		user.Name = account.Metadata["name"]
		user.Role = account.Metadata["role"]
	}
	return user
}
