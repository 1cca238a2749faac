package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeConfig bundles the credentials and price catalog for the Stripe gateway.
type StripeConfig struct {
	APIKey         string
	WebhookSecret  string
	SiteURL        string
	MonthlyPriceID string
	YearlyPriceID  string
}

// Validate checks that the configuration can support the checkout flow.
func (c StripeConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("stripe: api key is required")
	}
	if c.MonthlyPriceID == "" || c.YearlyPriceID == "" {
		return errors.New("stripe: monthly and yearly price ids are required")
	}
	return nil
}

// TestMode reports whether the configured key is a test-mode secret.
func (c StripeConfig) TestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	config StripeConfig
}

// NewStripeGateway validates the configuration and sets the SDK key.
func NewStripeGateway(config StripeConfig) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = config.APIKey

	return &StripeGateway{config: config}, nil
}

func (g *StripeGateway) priceFor(plan string) (string, error) {
	switch plan {
	case PlanMonthly:
		return g.config.MonthlyPriceID, nil
	case PlanYearly:
		return g.config.YearlyPriceID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
}

// CreateCustomer creates a Stripe customer tagged with the property name.
func (g *StripeGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if params.Email == "" {
		return nil, errors.New("stripe: email is required to create customer")
	}

	customerParams := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	customerParams.Context = ctx

	if params.Name != "" {
		customerParams.Name = stripe.String(params.Name)
	}
	if params.PropertyName != "" {
		customerParams.AddMetadata("property_name", params.PropertyName)
	}

	created, err := customer.New(customerParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: create customer: %w", err)
	}

	return &Customer{
		ID:    created.ID,
		Email: created.Email,
		Name:  created.Name,
	}, nil
}

// CreateCheckoutSession opens a subscription checkout for the chosen plan.
// The user id, plan and email are stamped into both the session metadata and
// the subscription metadata, so every downstream event type can be reconciled.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error) {
	if params.CustomerID == "" {
		return nil, errors.New("stripe: customer id is required")
	}

	priceID, err := g.priceFor(params.Plan)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"plan": params.Plan}
	if params.UserID != "" {
		metadata["user_id"] = params.UserID
	}
	if params.Email != "" {
		metadata["email"] = params.Email
	}

	siteURL := strings.TrimRight(g.config.SiteURL, "/")

	sessionParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(params.CustomerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata:                 metadata,
		SuccessURL:               stripe.String(siteURL + "?session_id={CHECKOUT_SESSION_ID}&payment=success"),
		CancelURL:                stripe.String(siteURL + "?payment=cancelled"),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	sessionParams.Context = ctx

	created, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	return &CheckoutSession{
		ID:  created.ID,
		URL: created.URL,
	}, nil
}

// ParseEvent verifies the payload signature and normalises the event into the
// fields the billing pipeline consumes. Signature verification is the only
// access control on the webhook endpoint.
//
// ConstructEventWithOptions runs with IgnoreAPIVersionMismatch because the
// processor may deliver events pinned to a newer API version than the SDK;
// the signature check is unaffected.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if len(payload) == 0 || signature == "" || g.config.WebhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, g.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	event := &Event{
		ID:   stripeEvent.ID,
		Type: string(stripeEvent.Type),
	}

	switch event.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		event.UserID = sess.Metadata["user_id"]
		event.Plan = sess.Metadata["plan"]
		if event.Plan == "" {
			event.Plan = sess.Metadata["plan_type"]
		}
		event.CustomerEmail = sess.Metadata["email"]
		event.CustomerName = sess.Metadata["name"]
		if sess.Customer != nil {
			event.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			event.SubscriptionID = sess.Subscription.ID
		}
		if sess.CustomerDetails != nil {
			if sess.CustomerDetails.Email != "" {
				event.CustomerEmail = sess.CustomerDetails.Email
			}
			if sess.CustomerDetails.Name != "" {
				event.CustomerName = sess.CustomerDetails.Name
			}
		}

	case EventInvoicePaid:
		var invoice stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("stripe: decode invoice: %w", err)
		}
		if invoice.Customer != nil {
			event.CustomerID = invoice.Customer.ID
		}

	case EventSubscriptionCreated:
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: decode subscription: %w", err)
		}
		event.UserID = sub.Metadata["user_id"]
		event.Plan = sub.Metadata["plan"]
		event.CustomerEmail = sub.Metadata["email"]
		event.SubscriptionID = sub.ID
		if sub.Customer != nil {
			event.CustomerID = sub.Customer.ID
		}
		if event.Plan == "" && sub.Items != nil && len(sub.Items.Data) > 0 {
			if price := sub.Items.Data[0].Price; price != nil {
				event.Plan = price.Nickname
			}
		}
	}

	return event, nil
}
