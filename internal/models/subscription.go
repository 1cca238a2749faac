package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription is an append-only history record written each time a billing
// event reconciles a profile. The current state lives on the profile itself;
// these rows exist for auditing what the payment processor reported.
type Subscription struct {
	BaseModel

	ProfileID string `gorm:"type:uuid;not null;index" json:"profile_id"`

	Plan             string             `json:"plan"`
	Status           SubscriptionStatus `gorm:"type:varchar(32)" json:"status"`
	StripeCustomerID string             `json:"stripe_customer_id"`

	// EventID and EventType identify the processor event that produced this
	// row, for tracing replays back to their source.
	EventID   string `gorm:"index" json:"event_id"`
	EventType string `json:"event_type"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
}
