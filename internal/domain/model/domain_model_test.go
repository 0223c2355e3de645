//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"course-marketplace/internal/domain"
)

// --- Payment Model Tests ---

func TestPaymentStatusTerminal(t *testing.T) {
	t.Run("pending is the only non-terminal status", func(t *testing.T) {
		if PaymentStatusPending.Terminal() {
			t.Error("expected pending to be non-terminal")
		}
		for _, s := range []PaymentStatus{
			PaymentStatusCompleted,
			PaymentStatusFailed,
			PaymentStatusRefunded,
			PaymentStatusExpired,
		} {
			if !s.Terminal() {
				t.Errorf("expected %s to be terminal", s)
			}
		}
	})
}

func TestPaymentExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	t.Run("pending payment past its window is expired", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusPending, ExpiresAt: &past}
		if !p.Expired(now) {
			t.Error("expected expired")
		}
	})

	t.Run("pending payment inside its window is not expired", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusPending, ExpiresAt: &future}
		if p.Expired(now) {
			t.Error("expected not expired")
		}
	})

	t.Run("payment without a window never expires", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusPending}
		if p.Expired(now) {
			t.Error("expected not expired")
		}
	})

	t.Run("terminal payment is never expired", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusCompleted, ExpiresAt: &past}
		if p.Expired(now) {
			t.Error("expected a completed payment to never read as expired")
		}
	})
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want StatusFamily
	}{
		{"SUCCESS", FamilySuccess},
		{"COMPLETED", FamilySuccess},
		{"PAID", FamilySuccess},
		{"success", FamilySuccess},
		{"  Paid  ", FamilySuccess},
		{"FAILED", FamilyFailure},
		{"CANCELLED", FamilyFailure},
		{"REJECTED", FamilyFailure},
		{"PENDING", FamilyPending},
		{"PROCESSING", FamilyPending},
		{"", FamilyUnknown},
		{"APPROVED_MAYBE", FamilyUnknown},
		{"REFUND_REQUESTED", FamilyUnknown},
	}
	for _, c := range cases {
		if got := NormalizeStatus(c.in); got != c.want {
			t.Errorf("NormalizeStatus(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

// --- User Model Tests ---

func TestNewUser(t *testing.T) {
	t.Run("should create a new user successfully", func(t *testing.T) {
		startTime := time.Now()
		user, err := NewUser("", "buyer@example.com", "Buyer")

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if user == nil {
			t.Fatal("expected user to be non-nil, but got nil")
		}
		if user.ID == "" {
			t.Error("expected user ID to be non-empty")
		}
		if user.Email != "buyer@example.com" {
			t.Errorf("unexpected email %s", user.Email)
		}
		if time.Since(startTime) > time.Second {
			t.Errorf("user.RegisteredAt timestamp is too far from current time")
		}
	})

	t.Run("should fail with empty email", func(t *testing.T) {
		user, err := NewUser("", "", "Buyer")
		if err == nil {
			t.Fatal("expected an error for empty email, but got nil")
		}
		if user != nil {
			t.Errorf("expected user to be nil on error, but it was not")
		}
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected error to be ErrInvalidArgument, but got %T", err)
		}
	})

	t.Run("name falls back to the email address", func(t *testing.T) {
		user, err := NewUser("", "buyer@example.com", "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := user.Name(); got != "buyer@example.com" {
			t.Errorf("expected email fallback, got %s", got)
		}
	})
}

// --- Course Model Tests ---

func TestCourseFree(t *testing.T) {
	t.Run("zero price is free", func(t *testing.T) {
		c := &Course{PriceCents: 0}
		if !c.Free() {
			t.Error("expected free")
		}
	})

	t.Run("priced course is not free", func(t *testing.T) {
		c := &Course{PriceCents: 4999}
		if c.Free() {
			t.Error("expected not free")
		}
	})
}

func TestCourseDeleted(t *testing.T) {
	now := time.Now()
	c := &Course{DeletedAt: &now}
	if !c.Deleted() {
		t.Error("expected deleted")
	}
	if (&Course{}).Deleted() {
		t.Error("expected not deleted")
	}
}
