package models

import (
	"time"

	"gorm.io/gorm"
)

// Role identifies the kind of account a profile represents.
type Role string

const (
	RolePropertyManager Role = "pm"
	RoleTenant          Role = "tenant"
	RoleSuperAdmin      Role = "super_admin"
)

// SubscriptionStatus tracks where a profile sits in the billing lifecycle.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Profile is the console-side record for an account. Its ID is shared with
// the identity provider's account so the two stores can be joined without a
// mapping table. Passwords and email-confirmation state live with the
// provider, not here.
type Profile struct {
	// ID mirrors the identity-provider account id, so no auto-generation.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PropertyName string `json:"property_name"`

	Role Role `gorm:"type:varchar(32);not null;default:'pm';index" json:"role"`

	Approved   bool               `gorm:"default:false" json:"approved"`
	Subscribed bool               `gorm:"default:false" json:"subscribed"`
	Status     SubscriptionStatus `gorm:"column:subscription_status;type:varchar(32);default:'pending'" json:"subscription_status"`
	Plan       string             `json:"plan"`

	StripeCustomerID string `gorm:"index" json:"stripe_customer_id"`

	// Verification tokens are stored hashed. Both fields are set together
	// when a token is issued and cleared together when it is consumed.
	VerificationTokenHash      *string    `gorm:"index" json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`
	EmailVerified              bool       `gorm:"default:false" json:"email_verified"`

	Subscriptions []Subscription `gorm:"foreignKey:ProfileID" json:"subscriptions,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasOutstandingVerification reports whether a token is pending consumption.
func (p *Profile) HasOutstandingVerification() bool {
	return !p.EmailVerified && p.VerificationTokenHash != nil
}

// BeforeSave keeps the subscribed flag consistent with the status column.
func (p *Profile) BeforeSave(tx *gorm.DB) error {
	if p.Subscribed && p.Status == SubscriptionPending {
		p.Status = SubscriptionActive
	}
	return nil
}
