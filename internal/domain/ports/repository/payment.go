package repository

import (
	"context"
	"time"

	"course-marketplace/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Create inserts a new payment. A transaction_id collision returns
	// domain.ErrDuplicateTransaction; it never overwrites.
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Payment, error)

	// UpdateStatusIfPending applies the transition only when the persisted
	// status is still 'pending'. The returned bool reports whether the write
	// took effect; false means another delivery won the race or the payment
	// was already terminal.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, meta *model.GatewayMeta, completedAt *time.Time, failureReason string) (bool, error)

	// OverrideStatus applies a transition from any state except completed.
	// Admin manual confirmation only; every automated transition goes
	// through UpdateStatusIfPending.
	OverrideStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, meta *model.GatewayMeta, completedAt *time.Time) (bool, error)

	// SetEnrollment links a payment to the enrollment it pays for.
	SetEnrollment(ctx context.Context, tx Tx, paymentID, enrollmentID string) error
	// SetInvoiceNumber writes the invoice number once; a second call is a no-op.
	SetInvoiceNumber(ctx context.Context, tx Tx, paymentID, invoiceNumber string) error
	// MarkAmountMismatch flags the payment for human review.
	MarkAmountMismatch(ctx context.Context, tx Tx, paymentID string) error

	ListPendingExpired(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string, methods []model.PaymentMethod, offset, limit int) ([]*model.Payment, int, error)
}
