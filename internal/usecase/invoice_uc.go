package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
	"course-marketplace/internal/domain/ports/repository"
	"course-marketplace/internal/infra/metrics"
)

// Compile-time checks
var (
	_ InvoiceUseCase = (*invoiceUC)(nil)
	_ InvoiceIssuer  = (*invoiceUC)(nil)
)

// InvoiceRecord is what the download endpoints hand back.
type InvoiceRecord struct {
	InvoiceNumber string
	Path          string
	Payment       *model.Payment
	Course        *model.Course
}

type InvoiceUseCase interface {
	// Issue numbers, renders and emails the receipt for a completed
	// payment. The number is assigned once and survives re-issues; render
	// and mail failures are logged and reported but leave the payment
	// untouched.
	Issue(ctx context.Context, paymentID string) error
	// Lookup returns the caller's invoice, re-rendering the PDF if the file
	// is gone.
	Lookup(ctx context.Context, userID, paymentID string) (*InvoiceRecord, error)
}

type invoiceUC struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	courses  repository.CourseRepository
	renderer adapter.InvoiceRenderer
	mailer   adapter.Mailer
	log      *zerolog.Logger
	now      func() time.Time
}

func NewInvoiceUseCase(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	courses repository.CourseRepository,
	renderer adapter.InvoiceRenderer,
	mailer adapter.Mailer,
	logger *zerolog.Logger,
) *invoiceUC {
	return &invoiceUC{
		payments: payments,
		users:    users,
		courses:  courses,
		renderer: renderer,
		mailer:   mailer,
		log:      logger,
		now:      time.Now,
	}
}

// invoiceNumber derives the receipt number from the payment. The year comes
// from the completion time so re-issues in a later year keep the original
// number.
func invoiceNumber(p *model.Payment, now time.Time) string {
	at := now
	if p.CompletedAt != nil {
		at = *p.CompletedAt
	}
	id := p.ID
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return fmt.Sprintf("WH-%d-%s", at.Year(), strings.ToUpper(id))
}

func (u *invoiceUC) Issue(ctx context.Context, paymentID string) error {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		metrics.IncInvoice("failed")
		return err
	}
	if p.Status != model.PaymentStatusCompleted {
		return domain.ErrInvoiceUnavailable
	}

	number := invoiceNumber(p, u.now())
	if p.InvoiceNumber != nil {
		number = *p.InvoiceNumber
	} else if err := u.payments.SetInvoiceNumber(ctx, nil, p.ID, number); err != nil {
		metrics.IncInvoice("failed")
		return err
	}

	user, err := u.users.FindByID(ctx, nil, p.UserID)
	if err != nil {
		metrics.IncInvoice("failed")
		return err
	}
	course, err := u.courses.FindByID(ctx, nil, p.CourseID)
	if err != nil {
		metrics.IncInvoice("failed")
		return err
	}

	path, err := u.renderer.Render(ctx, adapter.InvoiceData{
		InvoiceNumber: number,
		Payment:       p,
		User:          user,
		Course:        course,
	})
	if err != nil {
		metrics.IncInvoice("render_failed")
		return fmt.Errorf("render invoice %s: %w", number, err)
	}

	if err := u.mailer.SendInvoice(ctx, user.Email, user.Name(), course.Title, number, path, p.AmountCents, p.Currency); err != nil {
		metrics.IncInvoice("mail_failed")
		u.log.Error().Err(err).Str("invoice", number).Str("to", user.Email).Msg("invoice mail failed")
		return err
	}

	metrics.IncInvoice("sent")
	u.log.Info().Str("invoice", number).Str("payment_id", p.ID).Msg("invoice issued")
	return nil
}

func (u *invoiceUC) Lookup(ctx context.Context, userID, paymentID string) (*InvoiceRecord, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusCompleted || p.InvoiceNumber == nil {
		return nil, domain.ErrInvoiceUnavailable
	}

	course, err := u.courses.FindByID(ctx, nil, p.CourseID)
	if err != nil {
		return nil, err
	}

	path := u.renderer.Path(*p.InvoiceNumber)
	if path == "" {
		user, err := u.users.FindByID(ctx, nil, p.UserID)
		if err != nil {
			return nil, err
		}
		path, err = u.renderer.Render(ctx, adapter.InvoiceData{
			InvoiceNumber: *p.InvoiceNumber,
			Payment:       p,
			User:          user,
			Course:        course,
		})
		if err != nil {
			return nil, fmt.Errorf("re-render invoice %s: %w", *p.InvoiceNumber, err)
		}
	}

	return &InvoiceRecord{
		InvoiceNumber: *p.InvoiceNumber,
		Path:          path,
		Payment:       p,
		Course:        course,
	}, nil
}
