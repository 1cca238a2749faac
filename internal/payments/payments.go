package payments

import (
	"context"
	"errors"
)

// Plan identifiers accepted by the checkout flow.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Event types the webhook pipeline reconciles. Anything else is acknowledged
// and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionCreated = "customer.subscription.created"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails
	// signature verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")

	// ErrUnknownPlan is returned when a checkout request names a plan the
	// catalog has no price for.
	ErrUnknownPlan = errors.New("payments: unknown plan")
)

// Customer is a processor-side customer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// CheckoutSession carries the redirect URL a registrant completes payment at.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCustomerParams configure customer creation. PropertyName is attached
// as metadata so payments can be traced back to the property.
type CreateCustomerParams struct {
	Email        string
	Name         string
	PropertyName string
}

// CreateCheckoutParams configure a subscription checkout session. UserID,
// Plan and Email are stamped into session and subscription metadata so the
// webhook pipeline can reconcile the resulting events.
type CreateCheckoutParams struct {
	CustomerID string
	Plan       string
	UserID     string
	Email      string
}

// Event is a processor webhook event normalised to the fields the billing
// pipeline needs. Fields are empty when the source event does not carry them;
// invoice events, for example, have no user identifier.
type Event struct {
	ID             string
	Type           string
	UserID         string
	Plan           string
	CustomerID     string
	SubscriptionID string
	CustomerEmail  string
	CustomerName   string
}

// Gateway abstracts the external payment processor.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// ValidPlan reports whether plan names a known subscription plan.
func ValidPlan(plan string) bool {
	return plan == PlanMonthly || plan == PlanYearly
}
