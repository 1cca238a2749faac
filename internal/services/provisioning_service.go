package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/models"
	"github.com/asinehq/asine-console/internal/payments"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/logger"
	"github.com/asinehq/asine-console/pkg/metrics"
)

// RetryPolicy bounds the profile-row race wait in ProvisionAccount. The
// competing writer is an external trigger expected to finish within
// milliseconds, so a fixed short delay is enough.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy mirrors the production trigger timing.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 200 * time.Millisecond}

// ProvisioningOption customises the ProvisioningService.
type ProvisioningOption func(*ProvisioningService)

// WithRetryPolicy overrides the profile-race retry bounds.
func WithRetryPolicy(policy RetryPolicy) ProvisioningOption {
	return func(s *ProvisioningService) {
		if policy.MaxAttempts > 0 {
			s.retry = policy
		}
	}
}

// WithSleepFunc injects the delay function used between retries.
func WithSleepFunc(sleep func(time.Duration)) ProvisioningOption {
	return func(s *ProvisioningService) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// ProvisionInput describes a self-service registration request.
type ProvisionInput struct {
	Email        string
	Password     string
	Name         string
	PropertyName string
}

// CustomerInput describes a payment-customer creation request.
type CustomerInput struct {
	Email        string
	Name         string
	PropertyName string
}

// CheckoutInput describes a checkout-session request.
type CheckoutInput struct {
	UserID     string
	Email      string
	CustomerID string
	Plan       string
}

// ProvisionResult is the outcome of the fully orchestrated registration flow.
type ProvisionResult struct {
	Profile     *models.Profile
	CustomerID  string
	SessionID   string
	CheckoutURL string
}

// ProvisioningService orchestrates registration: identity account, profile
// row, payment customer and checkout session. Each step is a separate
// failure domain; only the profile step compensates (by deleting the fresh
// identity account), and nothing rolls back after the customer exists so a
// registrant can retry payment without re-registering.
type ProvisioningService struct {
	db       *gorm.DB
	provider identity.Provider
	gateway  payments.Gateway
	retry    RetryPolicy
	sleep    func(time.Duration)
	log      *zap.Logger
}

// NewProvisioningService constructs the service with its collaborators.
func NewProvisioningService(db *gorm.DB, provider identity.Provider, gateway payments.Gateway, opts ...ProvisioningOption) (*ProvisioningService, error) {
	if db == nil {
		return nil, errors.New("provisioning service: db is required")
	}
	if provider == nil {
		return nil, errors.New("provisioning service: identity provider is required")
	}
	if gateway == nil {
		return nil, errors.New("provisioning service: payment gateway is required")
	}

	service := &ProvisioningService{
		db:       db,
		provider: provider,
		gateway:  gateway,
		retry:    DefaultRetryPolicy,
		sleep:    time.Sleep,
		log:      logger.WithModule("services.provisioning"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// ProvisionAccount runs the identity and profile steps of registration. On
// success exactly one identity account and one pm profile row exist for the
// email, whichever writer created the row first.
func (s *ProvisioningService) ProvisionAccount(ctx context.Context, input ProvisionInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" || input.Password == "" || input.Name == "" || input.PropertyName == "" {
		return nil, apperrors.NewBadRequest("Missing required fields. Required: email, password, name, property_name")
	}
	if !validEmail(email) {
		return nil, apperrors.NewBadRequest("Invalid email format")
	}

	// The profile store is checked before touching the provider so a
	// duplicate registration produces no side effects at all.
	var existing models.Profile
	err := s.db.WithContext(ctx).Select("id").Where("email = ?", email).First(&existing).Error
	if err == nil {
		metrics.ProvisioningAttempts.WithLabelValues("auth_creation", "failure").Inc()
		return nil, apperrors.ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(err, "Failed to check existing accounts")
	}

	account, err := s.provider.SignUp(ctx, identity.SignUpParams{
		Email:    email,
		Password: input.Password,
		Metadata: map[string]string{
			"name":          input.Name,
			"property_name": input.PropertyName,
			"role":          string(models.RolePropertyManager),
		},
	})
	if err != nil {
		metrics.ProvisioningAttempts.WithLabelValues("auth_creation", "failure").Inc()
		if errors.Is(err, identity.ErrEmailRegistered) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.NewUpstream("auth_creation", err)
	}
	metrics.ProvisioningAttempts.WithLabelValues("auth_creation", "success").Inc()

	profile, err := s.ensureProfile(ctx, account.ID, email, input.Name, input.PropertyName)
	if err != nil {
		metrics.ProvisioningAttempts.WithLabelValues("profile", "failure").Inc()
		// Compensating action. Not guaranteed atomic; a failure here is
		// logged and the original error still surfaces.
		if cleanupErr := s.provider.DeleteUser(ctx, account.ID); cleanupErr != nil {
			s.log.Error("could not clean up identity account after profile failure",
				zap.String("account_id", account.ID),
				zap.Error(cleanupErr))
		}
		return nil, apperrors.NewUpstream("profile", err)
	}
	metrics.ProvisioningAttempts.WithLabelValues("profile", "success").Inc()

	return profile, nil
}

// ensureProfile makes the profile row for a fresh identity account carry the
// registration data. An external trigger may create a default row from the
// same signup event at any moment, so the update is retried before falling
// back to an insert, and the persisted role is re-checked afterwards.
func (s *ProvisioningService) ensureProfile(ctx context.Context, accountID, email, name, propertyName string) (*models.Profile, error) {
	fields := map[string]any{
		"name":                name,
		"email":               email,
		"property_name":       propertyName,
		"role":                string(models.RolePropertyManager),
		"approved":            false,
		"subscribed":          false,
		"subscription_status": string(models.SubscriptionPending),
	}

	updated := false
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		result := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("id = ?", accountID).
			Updates(fields)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			updated = true
			break
		}
		if attempt < s.retry.MaxAttempts {
			s.sleep(s.retry.Delay)
		}
	}

	if !updated {
		profile := models.Profile{
			ID:           accountID,
			Name:         name,
			Email:        email,
			PropertyName: propertyName,
			Role:         models.RolePropertyManager,
			Status:       models.SubscriptionPending,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			if isUniqueConstraintError(err) {
				// The trigger won the race between our last update attempt
				// and the insert. One more update settles it.
				result := s.db.WithContext(ctx).Model(&models.Profile{}).
					Where("id = ?", accountID).
					Updates(fields)
				if result.Error != nil || result.RowsAffected == 0 {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", accountID).Error; err != nil {
		return nil, err
	}

	if profile.Role != models.RolePropertyManager {
		s.log.Warn("profile persisted with wrong role, issuing corrective update",
			zap.String("profile_id", accountID),
			zap.String("role", string(profile.Role)))
		if err := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("id = ?", accountID).
			Update("role", string(models.RolePropertyManager)).Error; err != nil {
			s.log.Error("corrective role update failed", zap.String("profile_id", accountID), zap.Error(err))
		} else {
			profile.Role = models.RolePropertyManager
		}
	}

	return &profile, nil
}

// CreateCustomer creates the payment-processor customer for a registrant.
// Failures here deliberately leave the identity account and profile in
// place; the registrant retries payment without re-registering.
func (s *ProvisioningService) CreateCustomer(ctx context.Context, input CustomerInput) (*payments.Customer, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" || input.Name == "" || input.PropertyName == "" {
		return nil, apperrors.NewBadRequest("Missing required fields. Required: email, name, property_name")
	}
	if !validEmail(email) {
		return nil, apperrors.NewBadRequest("Invalid email format")
	}

	customer, err := s.gateway.CreateCustomer(ctx, payments.CreateCustomerParams{
		Email:        email,
		Name:         input.Name,
		PropertyName: input.PropertyName,
	})
	if err != nil {
		metrics.ProvisioningAttempts.WithLabelValues("customer_creation", "failure").Inc()
		return nil, apperrors.NewUpstream("customer_creation", err)
	}
	metrics.ProvisioningAttempts.WithLabelValues("customer_creation", "success").Inc()

	return customer, nil
}

// CreateCheckoutSession opens the checkout session a registrant pays
// through. The user id, plan and email ride along in metadata so webhook
// events can be reconciled later.
func (s *ProvisioningService) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*payments.CheckoutSession, error) {
	ctx = ensureContext(ctx)

	if input.CustomerID == "" || input.Plan == "" {
		return nil, apperrors.NewBadRequest("Missing required fields. Required: customer_id, plan")
	}
	if !payments.ValidPlan(input.Plan) {
		return nil, apperrors.NewBadRequest(`Invalid plan. Must be "monthly" or "yearly"`)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CreateCheckoutParams{
		CustomerID: input.CustomerID,
		Plan:       input.Plan,
		UserID:     input.UserID,
		Email:      normaliseEmail(input.Email),
	})
	if err != nil {
		metrics.ProvisioningAttempts.WithLabelValues("checkout_session", "failure").Inc()
		return nil, apperrors.NewUpstream("checkout_session", err)
	}
	metrics.ProvisioningAttempts.WithLabelValues("checkout_session", "success").Inc()

	return session, nil
}

// Provision runs the whole registration in one call: account, profile,
// customer and checkout session. The customer reference is stored on the
// profile eagerly so invoice events can reconcile even if checkout stalls.
func (s *ProvisioningService) Provision(ctx context.Context, input ProvisionInput, plan string) (*ProvisionResult, error) {
	ctx = ensureContext(ctx)

	if !payments.ValidPlan(plan) {
		return nil, apperrors.NewBadRequest(`Invalid plan. Must be "monthly" or "yearly"`)
	}

	profile, err := s.ProvisionAccount(ctx, input)
	if err != nil {
		return nil, err
	}

	customer, err := s.CreateCustomer(ctx, CustomerInput{
		Email:        profile.Email,
		Name:         profile.Name,
		PropertyName: profile.PropertyName,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Update("stripe_customer_id", customer.ID).Error; err != nil {
		s.log.Warn("could not store customer reference on profile",
			zap.String("profile_id", profile.ID),
			zap.Error(err))
	} else {
		profile.StripeCustomerID = customer.ID
	}

	session, err := s.CreateCheckoutSession(ctx, CheckoutInput{
		UserID:     profile.ID,
		Email:      profile.Email,
		CustomerID: customer.ID,
		Plan:       plan,
	})
	if err != nil {
		return nil, err
	}

	return &ProvisionResult{
		Profile:     profile,
		CustomerID:  customer.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}
