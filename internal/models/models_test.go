package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestSubscriptionUsesBaseBeforeCreate(t *testing.T) {
	s := &Subscription{}
	if err := s.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected ID to be generated")
	}
}

func TestProfileHasOutstandingVerification(t *testing.T) {
	hash := "deadbeef"
	expiry := time.Now().Add(24 * time.Hour)

	p := Profile{VerificationTokenHash: &hash, VerificationTokenExpiresAt: &expiry}
	if !p.HasOutstandingVerification() {
		t.Fatal("expected outstanding verification")
	}

	p.EmailVerified = true
	if p.HasOutstandingVerification() {
		t.Fatal("verified profile should not report outstanding verification")
	}

	p = Profile{}
	if p.HasOutstandingVerification() {
		t.Fatal("profile without token should not report outstanding verification")
	}
}

func TestProfileBeforeSavePromotesPendingStatus(t *testing.T) {
	p := Profile{Subscribed: true, Status: SubscriptionPending}
	if err := p.BeforeSave(nil); err != nil {
		t.Fatalf("before save: %v", err)
	}
	if p.Status != SubscriptionActive {
		t.Fatalf("expected status to be promoted, got %q", p.Status)
	}

	p = Profile{Subscribed: false, Status: SubscriptionPending}
	if err := p.BeforeSave(nil); err != nil {
		t.Fatalf("before save: %v", err)
	}
	if p.Status != SubscriptionPending {
		t.Fatalf("expected status to stay pending, got %q", p.Status)
	}
}
