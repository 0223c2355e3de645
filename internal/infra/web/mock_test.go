//go:build !integration

package web

import (
	"context"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/usecase"
)

// --- Mock Use Cases (Ports) ---

type mockCheckoutUC struct {
	InitiateFunc   func(ctx context.Context, userID, courseID string, method model.PaymentMethod) (*usecase.CheckoutResult, error)
	InitiateQRFunc func(ctx context.Context, userID, courseID string) (*usecase.CheckoutResult, error)
	FreeEnrollFunc func(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
}

var _ usecase.CheckoutUseCase = (*mockCheckoutUC)(nil)

func (m *mockCheckoutUC) Initiate(ctx context.Context, userID, courseID string, method model.PaymentMethod) (*usecase.CheckoutResult, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, userID, courseID, method)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCheckoutUC) InitiateQR(ctx context.Context, userID, courseID string) (*usecase.CheckoutResult, error) {
	if m.InitiateQRFunc != nil {
		return m.InitiateQRFunc(ctx, userID, courseID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCheckoutUC) FreeEnroll(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	if m.FreeEnrollFunc != nil {
		return m.FreeEnrollFunc(ctx, userID, courseID)
	}
	return nil, domain.ErrNotFound
}

type mockReconcileUC struct {
	ReconcileFunc     func(ctx context.Context, provider model.PaymentMethod, webhookID string, n *model.Notification) (*usecase.ReconcileResult, error)
	ManualConfirmFunc func(ctx context.Context, paymentID, adminID, note string) (*model.Payment, error)
	VerifyFunc        func(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	ExecutePayPalFunc func(ctx context.Context, userID, paymentID, payerID string) (*usecase.ReconcileResult, error)
}

var _ usecase.ReconcileUseCase = (*mockReconcileUC)(nil)

func (m *mockReconcileUC) Reconcile(ctx context.Context, provider model.PaymentMethod, webhookID string, n *model.Notification) (*usecase.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, provider, webhookID, n)
	}
	return &usecase.ReconcileResult{Outcome: usecase.OutcomeUnmatched}, nil
}

func (m *mockReconcileUC) ManualConfirm(ctx context.Context, paymentID, adminID, note string) (*model.Payment, error) {
	if m.ManualConfirmFunc != nil {
		return m.ManualConfirmFunc(ctx, paymentID, adminID, note)
	}
	return nil, domain.ErrNotFound
}

func (m *mockReconcileUC) Verify(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, paymentID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockReconcileUC) ExecutePayPal(ctx context.Context, userID, paymentID, payerID string) (*usecase.ReconcileResult, error) {
	if m.ExecutePayPalFunc != nil {
		return m.ExecutePayPalFunc(ctx, userID, paymentID, payerID)
	}
	return nil, domain.ErrNotFound
}

type mockInvoiceUC struct {
	IssueFunc  func(ctx context.Context, paymentID string) error
	LookupFunc func(ctx context.Context, userID, paymentID string) (*usecase.InvoiceRecord, error)
}

var _ usecase.InvoiceUseCase = (*mockInvoiceUC)(nil)

func (m *mockInvoiceUC) Issue(ctx context.Context, paymentID string) error {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, paymentID)
	}
	return nil
}

func (m *mockInvoiceUC) Lookup(ctx context.Context, userID, paymentID string) (*usecase.InvoiceRecord, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, userID, paymentID)
	}
	return nil, domain.ErrInvoiceUnavailable
}

type mockQueryUC struct {
	HistoryFunc           func(ctx context.Context, userID string, methods []model.PaymentMethod, page, pageSize int) (*usecase.HistoryPage, error)
	DetailsFunc           func(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	EnrollmentsFunc       func(ctx context.Context, userID string) ([]*model.Enrollment, error)
	UnmatchedWebhooksFunc func(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

var _ usecase.PaymentQueryUseCase = (*mockQueryUC)(nil)

func (m *mockQueryUC) History(ctx context.Context, userID string, methods []model.PaymentMethod, page, pageSize int) (*usecase.HistoryPage, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, methods, page, pageSize)
	}
	return &usecase.HistoryPage{Payments: []*model.Payment{}, Page: 1, PageSize: 10}, nil
}

func (m *mockQueryUC) Details(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	if m.DetailsFunc != nil {
		return m.DetailsFunc(ctx, userID, paymentID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockQueryUC) Enrollments(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	if m.EnrollmentsFunc != nil {
		return m.EnrollmentsFunc(ctx, userID)
	}
	return []*model.Enrollment{}, nil
}

func (m *mockQueryUC) UnmatchedWebhooks(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	if m.UnmatchedWebhooksFunc != nil {
		return m.UnmatchedWebhooksFunc(ctx, limit)
	}
	return []*model.WebhookEvent{}, nil
}
