package adapter

import (
	"context"

	"course-marketplace/internal/domain/model"
)

// InvoiceData carries everything the renderer needs for one receipt.
type InvoiceData struct {
	InvoiceNumber string
	Payment       *model.Payment
	User          *model.User
	Course        *model.Course
}

// InvoiceRenderer produces a PDF receipt and returns its path on disk.
type InvoiceRenderer interface {
	Render(ctx context.Context, data InvoiceData) (path string, err error)
	// Path returns where a previously rendered invoice lives, or "" if absent.
	Path(invoiceNumber string) string
}

// Mailer sends transactional mail. All sends are best-effort from the state
// machine's point of view; failures are logged, never propagated upward.
type Mailer interface {
	SendInvoice(ctx context.Context, to, name, courseTitle, invoiceNumber, attachmentPath string, amountCents int64, currency string) error
	SendAnomalyAlert(ctx context.Context, subject string, lines []string) error
}
