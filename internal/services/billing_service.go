package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/models"
	"github.com/asinehq/asine-console/internal/payments"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/logger"
	"github.com/asinehq/asine-console/pkg/mail"
	"github.com/asinehq/asine-console/pkg/metrics"
)

const defaultVerificationSubject = "Activate your Asine account"

// BillingOption customises the BillingService.
type BillingOption func(*BillingService)

// WithBillingClock injects a custom time source.
func WithBillingClock(clock func() time.Time) BillingOption {
	return func(s *BillingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithVerificationSubject overrides the activation email subject line.
func WithVerificationSubject(subject string) BillingOption {
	return func(s *BillingService) {
		if subject != "" {
			s.subject = subject
		}
	}
}

// BillingService reconciles payment-processor webhook events into profile
// state. Every branch writes known-final state, so redelivered events are
// safe to replay. Token issuance and email dispatch ride on checkout events
// as best-effort side effects; their failures never turn into webhook errors,
// or the processor would retry the event forever.
type BillingService struct {
	db           *gorm.DB
	verification *VerificationService
	mailer       mail.Mailer
	baseURL      string
	subject      string
	now          func() time.Time
	log          *zap.Logger
}

// NewBillingService constructs the service. The mailer may be nil, in which
// case activation emails are skipped with a log line.
func NewBillingService(db *gorm.DB, verification *VerificationService, mailer mail.Mailer, baseURL string, opts ...BillingOption) (*BillingService, error) {
	if db == nil {
		return nil, errors.New("billing service: db is required")
	}
	if verification == nil {
		return nil, errors.New("billing service: verification service is required")
	}

	service := &BillingService{
		db:           db,
		verification: verification,
		mailer:       mailer,
		baseURL:      strings.TrimRight(baseURL, "/"),
		subject:      defaultVerificationSubject,
		now:          time.Now,
		log:          logger.WithModule("services.billing"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// HandleEvent dispatches a normalised processor event to its reconciliation
// branch. Unknown event types are acknowledged and ignored.
func (s *BillingService) HandleEvent(ctx context.Context, event *payments.Event) error {
	ctx = ensureContext(ctx)
	if event == nil {
		return apperrors.NewBadRequest("missing event")
	}

	var err error
	switch event.Type {
	case payments.EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case payments.EventSubscriptionCreated:
		err = s.handleSubscriptionCreated(ctx, event)
	case payments.EventInvoicePaid:
		err = s.handleInvoicePaid(ctx, event)
	default:
		s.log.Info("ignoring unhandled event type", zap.String("type", event.Type))
		metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	result := "processed"
	if err != nil {
		result = "error"
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, result).Inc()
	return err
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, event *payments.Event) error {
	if event.UserID == "" || event.CustomerID == "" {
		return apperrors.NewBadRequest("Missing required metadata")
	}

	if err := s.activateProfile(ctx, event.UserID, event.CustomerID, event.Plan); err != nil {
		return apperrors.Wrap(err, "Failed to update user")
	}

	s.appendHistory(ctx, event)
	s.dispatchVerification(ctx, event)
	return nil
}

// handleSubscriptionCreated mirrors the checkout reconciliation but only
// when the subscription carries the metadata; processor-initiated
// subscriptions without it are a silent no-op.
func (s *BillingService) handleSubscriptionCreated(ctx context.Context, event *payments.Event) error {
	if event.UserID == "" || event.CustomerID == "" {
		s.log.Info("subscription event without metadata, skipping", zap.String("event_id", event.ID))
		return nil
	}

	if err := s.activateProfile(ctx, event.UserID, event.CustomerID, event.Plan); err != nil {
		return apperrors.Wrap(err, "Failed to update user")
	}

	s.appendHistory(ctx, event)
	return nil
}

// handleInvoicePaid has no user identifier to work with; it reconciles by
// customer reference and is a silent no-op when no profile matches.
func (s *BillingService) handleInvoicePaid(ctx context.Context, event *payments.Event) error {
	if event.CustomerID == "" {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("stripe_customer_id = ?", event.CustomerID).
		Updates(map[string]any{
			"subscribed":          true,
			"subscription_status": string(models.SubscriptionActive),
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "Failed to update user")
	}
	if result.RowsAffected == 0 {
		s.log.Info("invoice event matched no profile", zap.String("customer_id", event.CustomerID))
	}
	return nil
}

// activateProfile writes the final subscribed state. Plan is only written
// when the event carries one, so replays of plan-less events do not erase it.
func (s *BillingService) activateProfile(ctx context.Context, userID, customerID, plan string) error {
	fields := map[string]any{
		"subscribed":          true,
		"subscription_status": string(models.SubscriptionActive),
		"stripe_customer_id":  customerID,
	}
	if plan != "" {
		fields["plan"] = plan
	}

	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no profile found for user %s", userID)
	}
	return nil
}

func (s *BillingService) appendHistory(ctx context.Context, event *payments.Event) {
	metadata, err := json.Marshal(map[string]string{
		"user_id":         event.UserID,
		"plan":            event.Plan,
		"customer_id":     event.CustomerID,
		"subscription_id": event.SubscriptionID,
	})
	if err != nil {
		metadata = []byte("{}")
	}

	record := models.Subscription{
		ProfileID:        event.UserID,
		Plan:             event.Plan,
		Status:           models.SubscriptionActive,
		StripeCustomerID: event.CustomerID,
		EventID:          event.ID,
		EventType:        event.Type,
		Metadata:         datatypes.JSON(metadata),
		OccurredAt:       s.now(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.log.Error("could not append subscription history",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// dispatchVerification issues a token and sends the activation email.
// Failures are logged and swallowed; the webhook still acknowledges.
func (s *BillingService) dispatchVerification(ctx context.Context, event *payments.Event) {
	token, err := s.verification.IssueToken(ctx, event.UserID)
	if err != nil {
		s.log.Error("could not store verification token",
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}

	email, name := s.resolveRecipient(ctx, event)
	if email == "" {
		s.log.Error("could not send verification email, no recipient address",
			zap.String("user_id", event.UserID))
		return
	}
	if name == "" {
		name = "Property Manager"
	}

	if s.mailer == nil {
		s.log.Warn("no mailer configured, skipping verification email", zap.String("user_id", event.UserID))
		return
	}

	link := fmt.Sprintf("%s/verify?token=%s", s.baseURL, token)
	msg := mail.VerificationMessage(email, name, link, s.subject)
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailDispatches.WithLabelValues("failed").Inc()
		s.log.Error("could not send verification email",
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	metrics.EmailDispatches.WithLabelValues("sent").Inc()
}

// SendVerification issues a fresh token for the profile and emails the
// activation link. Unlike the webhook path, failures surface to the caller;
// an operator asking for a resend wants to know it did not go out.
func (s *BillingService) SendVerification(ctx context.Context, profileID string) error {
	ctx = ensureContext(ctx)
	if profileID == "" {
		return apperrors.NewBadRequest("Missing user id")
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Select("id", "email", "name").
		First(&profile, "id = ?", profileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Wrap(err, "Failed to load user")
	}

	token, err := s.verification.IssueToken(ctx, profile.ID)
	if err != nil {
		return apperrors.Wrap(err, "Failed to store verification token")
	}

	if s.mailer == nil {
		return apperrors.New("EMAIL_UNAVAILABLE", "Email delivery is not configured", 503)
	}

	name := profile.Name
	if name == "" {
		name = "Property Manager"
	}

	link := fmt.Sprintf("%s/verify?token=%s", s.baseURL, token)
	msg := mail.VerificationMessage(profile.Email, name, link, s.subject)
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailDispatches.WithLabelValues("failed").Inc()
		return apperrors.NewUpstream("email", err)
	}
	metrics.EmailDispatches.WithLabelValues("sent").Inc()
	return nil
}

// resolveRecipient prefers the contact details carried on the event and
// falls back to the stored profile.
func (s *BillingService) resolveRecipient(ctx context.Context, event *payments.Event) (string, string) {
	email := event.CustomerEmail
	name := event.CustomerName
	if email != "" && name != "" {
		return email, name
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Select("email", "name").
		First(&profile, "id = ?", event.UserID).Error
	if err != nil {
		return email, name
	}

	if email == "" {
		email = profile.Email
	}
	if name == "" {
		name = profile.Name
	}
	return email, name
}
