package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asinehq/asine-console/internal/identity"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
)

type stubProvider struct {
	grantErr   error
	refreshErr error
	revokeErr  error
	getUserErr error

	grantCalls   int
	refreshCalls int
	revokedToken string

	tokenSeq int
}

func (p *stubProvider) nextToken() *identity.Token {
	p.tokenSeq++
	return &identity.Token{
		AccessToken:  "access-" + string(rune('0'+p.tokenSeq)),
		RefreshToken: "refresh-" + string(rune('0'+p.tokenSeq)),
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}
}

func (p *stubProvider) GrantPassword(ctx context.Context, email, password string) (*identity.Token, error) {
	p.grantCalls++
	if p.grantErr != nil {
		return nil, p.grantErr
	}
	return p.nextToken(), nil
}

func (p *stubProvider) RefreshToken(ctx context.Context, refreshToken string) (*identity.Token, error) {
	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.nextToken(), nil
}

func (p *stubProvider) RevokeToken(ctx context.Context, accessToken string) error {
	p.revokedToken = accessToken
	return p.revokeErr
}

func (p *stubProvider) GetUser(ctx context.Context, accessToken string) (*identity.Account, error) {
	if p.getUserErr != nil {
		return nil, p.getUserErr
	}
	return &identity.Account{
		ID:    "acct-op",
		Email: "admin@asine.app",
		Metadata: map[string]string{
			"name": "Console Admin",
			"role": "super_admin",
		},
	}, nil
}

func (p *stubProvider) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.Account, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.Account, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) DeleteUser(ctx context.Context, id string) error { return nil }

func (p *stubProvider) ConfirmEmail(ctx context.Context, id string) error { return nil }

func TestLoginStoresSessionWithUser(t *testing.T) {
	provider := &stubProvider{}
	store := NewMemoryStore()
	manager, err := NewManager(provider, store)
	require.NoError(t, err)

	session, err := manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.Equal(t, "acct-op", session.User.ID)
	require.Equal(t, "super_admin", session.User.Role)

	stored, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, session.AccessToken, stored.AccessToken)
}

func TestLoginRequiresCredentials(t *testing.T) {
	manager, err := NewManager(&stubProvider{}, nil)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), "", "secret")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestLoginMapsProviderErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad credentials", identity.ErrInvalidCredentials, 401},
		{"unconfirmed email", identity.ErrEmailNotConfirmed, 403},
		{"rate limited", identity.ErrRateLimited, 429},
		{"unexpected", errors.New("boom"), 502},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			manager, err := NewManager(&stubProvider{grantErr: tc.err}, nil)
			require.NoError(t, err)

			_, err = manager.Login(context.Background(), "admin@asine.app", "secret")
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, tc.status, appErr.StatusCode)
		})
	}
}

func TestLoginSurvivesAccountLookupFailure(t *testing.T) {
	provider := &stubProvider{getUserErr: errors.New("profile endpoint down")}
	manager, err := NewManager(provider, nil)
	require.NoError(t, err)

	session, err := manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)
	require.Equal(t, "admin@asine.app", session.User.Email)
	require.Empty(t, session.User.ID)
}

func TestCurrentReturnsLiveSessionWithoutRefresh(t *testing.T) {
	provider := &stubProvider{}
	manager, err := NewManager(provider, nil)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)

	session, err := manager.Current(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.Equal(t, 0, provider.refreshCalls)
}

func TestCurrentRefreshesExpiredSession(t *testing.T) {
	provider := &stubProvider{}
	current := time.Now()
	manager, err := NewManager(provider, nil, WithClock(func() time.Time { return current }))
	require.NoError(t, err)

	first, err := manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	second, err := manager.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, provider.refreshCalls)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.Equal(t, first.User.ID, second.User.ID)
}

func TestRejectedRefreshClearsSession(t *testing.T) {
	provider := &stubProvider{}
	store := NewMemoryStore()
	manager, err := NewManager(provider, store)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)

	provider.refreshErr = identity.ErrInvalidCredentials
	_, err = manager.Refresh(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutRevokesAndClears(t *testing.T) {
	provider := &stubProvider{}
	store := NewMemoryStore()
	manager, err := NewManager(provider, store)
	require.NoError(t, err)

	session, err := manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background()))
	require.Equal(t, session.AccessToken, provider.revokedToken)

	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutClearsEvenWhenRevocationFails(t *testing.T) {
	provider := &stubProvider{revokeErr: errors.New("provider down")}
	store := NewMemoryStore()
	manager, err := NewManager(provider, store)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), "admin@asine.app", "secret")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background()))
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutWithoutSessionIsNoOp(t *testing.T) {
	manager, err := NewManager(&stubProvider{}, nil)
	require.NoError(t, err)
	require.NoError(t, manager.Logout(context.Background()))
}
