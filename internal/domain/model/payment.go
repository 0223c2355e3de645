package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // awaiting provider outcome
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed, enrollment paid
	PaymentStatusFailed    PaymentStatus = "failed"    // provider reported failure/cancel
	PaymentStatusRefunded  PaymentStatus = "refunded"  // refunded after completion
	PaymentStatusExpired   PaymentStatus = "expired"   // QR window elapsed before confirmation
)

// Terminal reports whether no further transition may be applied.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

type PaymentMethod string

const (
	MethodStripe PaymentMethod = "stripe"
	MethodPayPal PaymentMethod = "paypal"
	MethodVietQR PaymentMethod = "vietqr"
	MethodManual PaymentMethod = "manual"
)

// GatewayMeta is the per-provider audit payload attached to a payment. Exactly
// one of the provider structs is set; Audit holds anything the provider sent
// that we only keep for forensic replay, never for logic.
type GatewayMeta struct {
	Stripe *StripeMeta            `json:"stripe,omitempty"`
	PayPal *PayPalMeta            `json:"paypal,omitempty"`
	VietQR *VietQRMeta            `json:"vietqr,omitempty"`
	Manual *ManualMeta            `json:"manual,omitempty"`
	Audit  map[string]interface{} `json:"audit,omitempty"`
}

type StripeMeta struct {
	SessionID     string `json:"session_id"`
	PaymentIntent string `json:"payment_intent,omitempty"`
	EventID       string `json:"event_id,omitempty"`
}

type PayPalMeta struct {
	PaymentID string `json:"payment_id"`
	PayerID   string `json:"payer_id,omitempty"`
	SaleID    string `json:"sale_id,omitempty"`
}

type VietQRMeta struct {
	BankCode          string `json:"bank_code,omitempty"`
	AccountNumber     string `json:"account_number,omitempty"`
	BankTransactionID string `json:"bank_transaction_id,omitempty"`
	Reference         string `json:"reference,omitempty"`
	QRContent         string `json:"qr_content,omitempty"`
	WebhookID         string `json:"webhook_id,omitempty"`
}

type ManualMeta struct {
	ConfirmedBy string `json:"confirmed_by"`
	Note        string `json:"note,omitempty"`
}

// Payment records one attempt to pay for an enrollment. A user may accumulate
// several attempts for the same course after expiry or failure; at most one of
// them is pending and unexpired at a time.
type Payment struct {
	ID            string // UUID
	UserID        string
	CourseID      string
	EnrollmentID  *string // nil until an enrollment is matched (bare QR / manual flows)
	TransactionID string  // globally unique correlation key
	AmountCents   int64   // minor currency units, never floats
	Currency      string
	Method        PaymentMethod
	Status        PaymentStatus
	Meta          GatewayMeta
	InvoiceNumber *string // set exactly once, after completion
	FailureReason string
	// AmountMismatch marks a success notification whose reported amount did
	// not equal AmountCents. The transaction id is the trust anchor, so the
	// completion still happened; the flag routes the record to human review.
	AmountMismatch bool
	ExpiresAt      *time.Time // only meaningful while pending (QR flow)
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether a pending payment's grace window has closed.
// Terminal payments are never expired: the field loses meaning once the
// status leaves pending.
func (p *Payment) Expired(now time.Time) bool {
	return p.Status == PaymentStatusPending && p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// StatusFamily buckets the free-form status strings providers report.
type StatusFamily int

const (
	FamilyUnknown StatusFamily = iota
	FamilySuccess
	FamilyFailure
	FamilyPending
)

// NormalizeStatus maps a provider-reported status onto a family. Unrecognized
// strings map to FamilyUnknown and are recorded as anomalies, never applied.
func NormalizeStatus(s string) StatusFamily {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "COMPLETED", "PAID":
		return FamilySuccess
	case "FAILED", "CANCELLED", "REJECTED":
		return FamilyFailure
	case "PENDING", "PROCESSING":
		return FamilyPending
	default:
		return FamilyUnknown
	}
}

// Notification is the common shape every provider-specific webhook handler
// normalizes into before calling the reconciler.
type Notification struct {
	TransactionID string
	Status        string // raw provider status; bucketed via NormalizeStatus
	AmountCents   int64
	Currency      string
	ProviderRef   string // bank transaction id / payment intent / sale id
	ReceivedAt    time.Time
	// AccountMismatch is set by the verifier when the payload names a
	// receiving account other than the configured one; such notifications
	// are archived and alerted, never applied.
	AccountMismatch bool
	Raw             map[string]interface{} // archived verbatim
}
