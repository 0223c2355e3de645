package adapter

import (
	"context"
	"time"

	"course-marketplace/internal/domain/model"
)

// CheckoutRequest is what a gateway needs to mint a provider artifact.
type CheckoutRequest struct {
	UserID       string
	EnrollmentID string
	CourseID     string
	CourseTitle  string
	Description  string
	AmountCents  int64
	Currency     string
}

// BankDetails is the human-readable transfer target for the QR flow.
type BankDetails struct {
	BankCode      string `json:"bankCode"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

// CheckoutArtifact is the provider-specific thing the client needs to pay:
// a redirect URL (Stripe/PayPal) or a QR payload plus transfer instructions
// (VietQR). TransactionID correlates the eventual notification back to the
// pending payment.
type CheckoutArtifact struct {
	TransactionID string
	CheckoutURL   string
	QRImage       string // data URI, VietQR only
	QRContent     string
	Bank          *BankDetails
	ExpiresAt     *time.Time // VietQR only; source of truth for QR validity
}

// CheckoutGateway is the hex port for payment providers.
type CheckoutGateway interface {
	Method() model.PaymentMethod
	// CreateCheckout initiates a payment intent with the provider. Provider
	// unreachability surfaces as domain.ErrGatewayUnavailable wrapped with
	// detail; no local state is written by the adapter itself.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutArtifact, error)
}

// PayPalExecutor is the caller-driven confirmation leg of the PayPal flow:
// the client returns from the approval redirect holding paymentID/payerID and
// the server executes the sale. The round-trip to PayPal is the authenticity
// check; there is no webhook signature.
type PayPalExecutor interface {
	Execute(ctx context.Context, paymentID, payerID string) (*model.Notification, error)
}
