package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/models"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
)

// InviteInput describes an invitation request.
type InviteInput struct {
	Email string
	Name  string
	Role  string
}

// Invitee is the provider-side account an invitation creates.
type Invitee struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// InviteOption customises the InviteService.
type InviteOption func(*InviteService)

// WithSuperAdminGate requires the inviter's profile to carry the
// super_admin role. Off by default.
func WithSuperAdminGate() InviteOption {
	return func(s *InviteService) {
		s.requireSuperAdmin = true
	}
}

// InviteService creates provisional identity-provider accounts for invited
// property managers. No profile row is written here; that happens when the
// invitee completes registration.
type InviteService struct {
	db                *gorm.DB
	provider          identity.Provider
	requireSuperAdmin bool
}

// NewInviteService constructs the service.
func NewInviteService(db *gorm.DB, provider identity.Provider, opts ...InviteOption) (*InviteService, error) {
	if provider == nil {
		return nil, errors.New("invite service: identity provider is required")
	}

	service := &InviteService{
		db:       db,
		provider: provider,
	}

	for _, opt := range opts {
		opt(service)
	}

	if service.requireSuperAdmin && service.db == nil {
		return nil, errors.New("invite service: db is required when the super admin gate is enabled")
	}

	return service, nil
}

// Invite creates an unconfirmed identity-provider account with the given
// metadata. The inviter must already be authenticated; inviterID identifies
// them for the optional role gate.
func (s *InviteService) Invite(ctx context.Context, inviterID string, input InviteInput) (*Invitee, error) {
	ctx = ensureContext(ctx)

	if s.requireSuperAdmin {
		var inviter models.Profile
		err := s.db.WithContext(ctx).Select("role").First(&inviter, "id = ?", inviterID).Error
		if err != nil || inviter.Role != models.RoleSuperAdmin {
			return nil, apperrors.New("FORBIDDEN", "Super admin access required", 403)
		}
	}

	email := normaliseEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	role := strings.TrimSpace(input.Role)
	if email == "" || name == "" || role == "" {
		return nil, apperrors.NewBadRequest("Missing required fields")
	}
	if !validEmail(email) {
		return nil, apperrors.NewBadRequest("Invalid email format")
	}

	account, err := s.provider.CreateUser(ctx, identity.CreateUserParams{
		Email: email,
		Metadata: map[string]string{
			"name": name,
			"role": role,
		},
		EmailConfirm: false,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailRegistered) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.NewUpstream("invite", err)
	}

	return &Invitee{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Metadata["name"],
		Role:  account.Metadata["role"],
	}, nil
}
