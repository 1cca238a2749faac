package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/models"
	"github.com/asinehq/asine-console/pkg/crypto"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/logger"
	"github.com/asinehq/asine-console/pkg/metrics"
)

const (
	defaultVerificationExpiry     = 24 * time.Hour
	defaultVerificationTokenBytes = 32
)

var (
	// ErrMissingToken is returned when the verification link carries no token.
	ErrMissingToken = apperrors.New("MISSING_TOKEN", "Missing verification token. Please use the link from your email.", http.StatusBadRequest)

	// ErrInvalidToken covers unknown, expired and consumed tokens with one
	// message, so callers cannot probe which case occurred.
	ErrInvalidToken = apperrors.New("INVALID_TOKEN", "Invalid or expired verification token. Please request a new verification email.", http.StatusBadRequest)
)

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationExpiry overrides the token lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationTokenSize adjusts the number of random bytes in generated tokens.
func WithVerificationTokenSize(size int) VerificationOption {
	return func(s *VerificationService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// VerifyResult reports the outcome of a successful verification call.
type VerifyResult struct {
	ProfileID       string
	AlreadyVerified bool
	Message         string
}

// VerificationService issues and consumes email verification tokens. Tokens
// are stored hashed on the profile row; the plain token only ever travels in
// the email link.
type VerificationService struct {
	db          *gorm.DB
	provider    identity.Provider
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
	log         *zap.Logger
}

// NewVerificationService constructs a verification service. The identity
// provider is optional; when present, verified state is mirrored to it on a
// best-effort basis.
func NewVerificationService(db *gorm.DB, provider identity.Provider, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}

	service := &VerificationService{
		db:          db,
		provider:    provider,
		expiry:      defaultVerificationExpiry,
		tokenLength: defaultVerificationTokenBytes,
		now:         time.Now,
		log:         logger.WithModule("services.verification"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Expiry returns the configured token lifetime.
func (s *VerificationService) Expiry() time.Duration {
	return s.expiry
}

// IssueToken generates a fresh verification token for the profile and
// persists its hash with an expiry. The plain token is returned for the
// email link and never stored.
func (s *VerificationService) IssueToken(ctx context.Context, profileID string) (string, error) {
	ctx = ensureContext(ctx)
	if profileID == "" {
		return "", errors.New("verification service: profile id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return "", fmt.Errorf("verification service: generate token: %w", err)
	}

	hash := crypto.HashToken(token)
	expiresAt := s.now().Add(s.expiry)

	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profileID).
		Updates(map[string]any{
			"verification_token_hash":       hash,
			"verification_token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return "", fmt.Errorf("verification service: store token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", apperrors.ErrNotFound
	}

	return token, nil
}

// Verify consumes a token from an inbound link. The verified flag and token
// clearing happen in a single update; a second request with the same token
// reports invalid, and an already-verified profile short-circuits to success.
func (s *VerificationService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	ctx = ensureContext(ctx)

	if token == "" {
		metrics.VerificationOutcomes.WithLabelValues("invalid").Inc()
		return nil, ErrMissingToken
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).
		Where("verification_token_hash = ?", crypto.HashToken(token)).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.VerificationOutcomes.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidToken
		}
		return nil, apperrors.Wrap(err, "Database error during verification. Please try again later.")
	}

	if profile.EmailVerified {
		metrics.VerificationOutcomes.WithLabelValues("already_verified").Inc()
		return &VerifyResult{
			ProfileID:       profile.ID,
			AlreadyVerified: true,
			Message:         "Email already verified. You can sign in now.",
		}, nil
	}

	if profile.VerificationTokenExpiresAt != nil && s.now().After(*profile.VerificationTokenExpiresAt) {
		metrics.VerificationOutcomes.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidToken
	}

	update := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ? AND email_verified = ?", profile.ID, false).
		Updates(map[string]any{
			"email_verified":                true,
			"verification_token_hash":       nil,
			"verification_token_expires_at": nil,
		})
	if update.Error != nil {
		return nil, apperrors.Wrap(update.Error, "Failed to verify email. Please try again.")
	}

	if s.provider != nil {
		if err := s.provider.ConfirmEmail(ctx, profile.ID); err != nil {
			// The profile flag is authoritative; the provider mirror is
			// best effort only.
			s.log.Warn("could not mirror email confirmation to identity provider",
				zap.String("profile_id", profile.ID),
				zap.Error(err))
		}
	}

	metrics.VerificationOutcomes.WithLabelValues("verified").Inc()
	return &VerifyResult{
		ProfileID: profile.ID,
		Message:   "Email verified successfully! You can now sign in.",
	}, nil
}

// CleanupExpired clears expired unconsumed tokens so stale hashes do not
// accumulate on profile rows. Returns the number of profiles touched.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("email_verified = ? AND verification_token_hash IS NOT NULL AND verification_token_expires_at < ?", false, s.now()).
		Updates(map[string]any{
			"verification_token_hash":       nil,
			"verification_token_expires_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("verification service: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}
