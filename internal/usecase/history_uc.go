package usecase

import (
	"context"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentQueryUseCase = (*paymentQueryUC)(nil)

// HistoryPage is one page of a user's payment history.
type HistoryPage struct {
	Payments []*model.Payment
	Total    int
	Page     int
	PageSize int
}

type PaymentQueryUseCase interface {
	History(ctx context.Context, userID string, methods []model.PaymentMethod, page, pageSize int) (*HistoryPage, error)
	// Details returns one payment, owner-scoped.
	Details(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	Enrollments(ctx context.Context, userID string) ([]*model.Enrollment, error)
	// UnmatchedWebhooks lists archived deliveries that never matched a
	// payment, for operators chasing a missing purchase.
	UnmatchedWebhooks(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

type paymentQueryUC struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	events      repository.WebhookEventRepository
}

func NewPaymentQueryUseCase(payments repository.PaymentRepository, enrollments repository.EnrollmentRepository, events repository.WebhookEventRepository) *paymentQueryUC {
	return &paymentQueryUC{payments: payments, enrollments: enrollments, events: events}
}

func (u *paymentQueryUC) History(ctx context.Context, userID string, methods []model.PaymentMethod, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	payments, total, err := u.payments.ListByUser(ctx, nil, userID, methods, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Payments: payments, Total: total, Page: page, PageSize: pageSize}, nil
}

func (u *paymentQueryUC) Details(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (u *paymentQueryUC) Enrollments(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	return u.enrollments.ListByUser(ctx, nil, userID)
}

func (u *paymentQueryUC) UnmatchedWebhooks(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return u.events.ListUnmatched(ctx, nil, limit)
}
