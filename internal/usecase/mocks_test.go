//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
	"course-marketplace/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockPaymentRepo is an in-memory PaymentRepository. Per-method Func fields
// override the default behavior for failure-injection tests.
type MockPaymentRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Payment // by id
	byTxn map[string]string         // transaction id -> id

	CreateFunc                func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	FindByTransactionIDFunc   func(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) (bool, error)
	OverrideStatusFunc        func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) (bool, error)
	SetInvoiceNumberFunc      func(ctx context.Context, tx repository.Tx, paymentID, invoiceNumber string) error
	MarkAmountMismatchFunc    func(ctx context.Context, tx repository.Tx, paymentID string) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}, byTxn: map[string]string{}}
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byTxn[p.TransactionID]; dup {
		return domain.ErrDuplicateTransaction
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	r.byTxn[p.TransactionID] = p.ID
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	if r.FindByTransactionIDFunc != nil {
		return r.FindByTransactionIDFunc(ctx, tx, transactionID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byTxn[transactionID]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, meta *model.GatewayMeta, completedAt *time.Time, failureReason string) (bool, error) {
	if r.UpdateStatusIfPendingFunc != nil {
		return r.UpdateStatusIfPendingFunc(ctx, tx, id, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if meta != nil {
		p.Meta = *meta
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	if failureReason != "" {
		p.FailureReason = failureReason
	}
	return true, nil
}

func (r *MockPaymentRepo) OverrideStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, meta *model.GatewayMeta, completedAt *time.Time) (bool, error) {
	if r.OverrideStatusFunc != nil {
		return r.OverrideStatusFunc(ctx, tx, id, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status == model.PaymentStatusCompleted {
		return false, nil
	}
	p.Status = status
	if meta != nil {
		p.Meta = *meta
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	return true, nil
}

func (r *MockPaymentRepo) SetEnrollment(ctx context.Context, tx repository.Tx, paymentID, enrollmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	eid := enrollmentID
	p.EnrollmentID = &eid
	return nil
}

func (r *MockPaymentRepo) SetInvoiceNumber(ctx context.Context, tx repository.Tx, paymentID, invoiceNumber string) error {
	if r.SetInvoiceNumberFunc != nil {
		return r.SetInvoiceNumberFunc(ctx, tx, paymentID, invoiceNumber)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.InvoiceNumber == nil {
		n := invoiceNumber
		p.InvoiceNumber = &n
	}
	return nil
}

func (r *MockPaymentRepo) MarkAmountMismatch(ctx context.Context, tx repository.Tx, paymentID string) error {
	if r.MarkAmountMismatchFunc != nil {
		return r.MarkAmountMismatchFunc(ctx, tx, paymentID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.AmountMismatch = true
	return nil
}

func (r *MockPaymentRepo) ListPendingExpired(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.ExpiresAt != nil && p.ExpiresAt.Before(asOf) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, methods []model.PaymentMethod, offset, limit int) ([]*model.Payment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Payment
	for _, p := range r.data {
		if p.UserID != userID {
			continue
		}
		if len(methods) > 0 {
			found := false
			for _, m := range methods {
				if p.Method == m {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		cp := *p
		all = append(all, &cp)
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// get returns the stored payment without copying, for assertions.
func (r *MockPaymentRepo) get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

// ---- Enrollments ----

type MockEnrollmentRepo struct {
	mu     sync.Mutex
	data   map[string]*model.Enrollment // by id
	byPair map[string]string            // userID+"/"+courseID -> id

	UpsertPendingFunc       func(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error)
	UpdatePaymentStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.EnrollmentPaymentStatus) error
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{data: map[string]*model.Enrollment{}, byPair: map[string]string{}}
}

func pairKey(userID, courseID string) string { return userID + "/" + courseID }

func (r *MockEnrollmentRepo) Create(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byPair[pairKey(e.UserID, e.CourseID)]; dup {
		return domain.ErrAlreadyExists
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	r.data[e.ID] = &cp
	r.byPair[pairKey(e.UserID, e.CourseID)] = e.ID
	return nil
}

func (r *MockEnrollmentRepo) UpsertPending(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	if r.UpsertPendingFunc != nil {
		return r.UpsertPendingFunc(ctx, tx, userID, courseID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[pairKey(userID, courseID)]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	now := time.Now()
	e := &model.Enrollment{
		ID:            uuid.NewString(),
		UserID:        userID,
		CourseID:      courseID,
		PaymentStatus: model.EnrollmentPending,
		EnrolledAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.data[e.ID] = e
	r.byPair[pairKey(userID, courseID)] = e.ID
	cp := *e
	return &cp, nil
}

func (r *MockEnrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.data[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockEnrollmentRepo) FindByUserAndCourse(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[pairKey(userID, courseID)]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockEnrollmentRepo) UpdatePaymentStatus(ctx context.Context, tx repository.Tx, id string, status model.EnrollmentPaymentStatus) error {
	if r.UpdatePaymentStatusFunc != nil {
		return r.UpdatePaymentStatusFunc(ctx, tx, id, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.PaymentStatus = status
	return nil
}

func (r *MockEnrollmentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Enrollment
	for _, e := range r.data {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockEnrollmentRepo) get(id string) *model.Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

// ---- Courses ----

type MockCourseRepo struct {
	mu   sync.Mutex
	data map[string]*model.Course
}

var _ repository.CourseRepository = (*MockCourseRepo)(nil)

func NewMockCourseRepo() *MockCourseRepo {
	return &MockCourseRepo{data: map[string]*model.Course{}}
}

func (r *MockCourseRepo) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.data[c.ID] = &cp
	return nil
}

func (r *MockCourseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockCourseRepo) ListActive(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Course
	for _, c := range r.data {
		if c.DeletedAt == nil {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Users ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.data {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Webhook events ----

type MockWebhookEventRepo struct {
	mu     sync.Mutex
	Events []*model.WebhookEvent

	ArchiveFunc       func(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error
	ListUnmatchedFunc func(ctx context.Context, tx repository.Tx, limit int) ([]*model.WebhookEvent, error)
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{}
}

func (r *MockWebhookEventRepo) Archive(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	if r.ArchiveFunc != nil {
		return r.ArchiveFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.Events = append(r.Events, &cp)
	return nil
}

func (r *MockWebhookEventRepo) ListUnmatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.WebhookEvent, error) {
	if r.ListUnmatchedFunc != nil {
		return r.ListUnmatchedFunc(ctx, tx, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookEvent
	for _, e := range r.Events {
		if !e.Matched && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the function immediately with NoTX by default; assign
// WithTxFunc for tests that need to observe or fail the transaction.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

type MockGateway struct {
	MethodVal model.PaymentMethod

	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutArtifact, error)

	mu    sync.Mutex
	Calls []adapter.CheckoutRequest
}

var _ adapter.CheckoutGateway = (*MockGateway)(nil)

func (g *MockGateway) Method() model.PaymentMethod { return g.MethodVal }

func (g *MockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutArtifact, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, req)
	g.mu.Unlock()
	if g.CreateCheckoutFunc != nil {
		return g.CreateCheckoutFunc(ctx, req)
	}
	return &adapter.CheckoutArtifact{
		TransactionID: "txn-" + uuid.NewString(),
		CheckoutURL:   "https://pay.example.com/checkout",
	}, nil
}

type MockPayPalExecutor struct {
	ExecuteFunc func(ctx context.Context, paymentID, payerID string) (*model.Notification, error)
}

var _ adapter.PayPalExecutor = (*MockPayPalExecutor)(nil)

func (m *MockPayPalExecutor) Execute(ctx context.Context, paymentID, payerID string) (*model.Notification, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, paymentID, payerID)
	}
	return &model.Notification{
		TransactionID: paymentID,
		Status:        "COMPLETED",
		ProviderRef:   payerID,
		ReceivedAt:    time.Now(),
	}, nil
}

type MockRenderer struct {
	RenderFunc func(ctx context.Context, data adapter.InvoiceData) (string, error)
	PathFunc   func(invoiceNumber string) string

	mu       sync.Mutex
	Rendered []adapter.InvoiceData
}

var _ adapter.InvoiceRenderer = (*MockRenderer)(nil)

func (m *MockRenderer) Render(ctx context.Context, data adapter.InvoiceData) (string, error) {
	m.mu.Lock()
	m.Rendered = append(m.Rendered, data)
	m.mu.Unlock()
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, data)
	}
	return "/tmp/invoices/" + data.InvoiceNumber + ".pdf", nil
}

func (m *MockRenderer) Path(invoiceNumber string) string {
	if m.PathFunc != nil {
		return m.PathFunc(invoiceNumber)
	}
	return "/tmp/invoices/" + invoiceNumber + ".pdf"
}

type sentInvoice struct {
	To            string
	InvoiceNumber string
	Attachment    string
}

type MockMailer struct {
	mu       sync.Mutex
	Invoices []sentInvoice
	Alerts   []string

	SendInvoiceFunc func(ctx context.Context, to, name, courseTitle, invoiceNumber, attachmentPath string, amountCents int64, currency string) error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) SendInvoice(ctx context.Context, to, name, courseTitle, invoiceNumber, attachmentPath string, amountCents int64, currency string) error {
	if m.SendInvoiceFunc != nil {
		return m.SendInvoiceFunc(ctx, to, name, courseTitle, invoiceNumber, attachmentPath, amountCents, currency)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invoices = append(m.Invoices, sentInvoice{To: to, InvoiceNumber: invoiceNumber, Attachment: attachmentPath})
	return nil
}

func (m *MockMailer) SendAnomalyAlert(ctx context.Context, subject string, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, subject)
	return nil
}

func (m *MockMailer) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

// MockInvoiceIssuer records issue requests from the reconciler.
type MockInvoiceIssuer struct {
	mu     sync.Mutex
	Issued []string

	IssueFunc func(ctx context.Context, paymentID string) error
}

func (m *MockInvoiceIssuer) Issue(ctx context.Context, paymentID string) error {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Issued = append(m.Issued, paymentID)
	return nil
}

func (m *MockInvoiceIssuer) issuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Issued)
}
