package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
	"course-marketplace/internal/domain/ports/repository"
	"course-marketplace/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutResult is what a checkout initiation hands back to the transport
// layer. Free courses skip the gateway entirely, so Payment and Artifact are
// nil and Free is set.
type CheckoutResult struct {
	Payment    *model.Payment
	Enrollment *model.Enrollment
	Artifact   *adapter.CheckoutArtifact
	Free       bool
}

type CheckoutUseCase interface {
	// Initiate starts a paid checkout: a pending enrollment is upserted
	// first, then the gateway mints its artifact, then the pending payment
	// row is written. A gateway failure after the upsert leaves the pending
	// enrollment behind; a later attempt reuses it.
	Initiate(ctx context.Context, userID, courseID string, method model.PaymentMethod) (*CheckoutResult, error)
	// InitiateQR mints a bank-transfer QR without touching enrollments. The
	// enrollment is fabricated when the bank confirms the transfer.
	InitiateQR(ctx context.Context, userID, courseID string) (*CheckoutResult, error)
	// FreeEnroll grants a free course directly.
	FreeEnroll(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
}

type checkoutUC struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	gateways    map[model.PaymentMethod]adapter.CheckoutGateway
	log         *zerolog.Logger
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	courses repository.CourseRepository,
	gateways []adapter.CheckoutGateway,
	logger *zerolog.Logger,
) *checkoutUC {
	byMethod := make(map[model.PaymentMethod]adapter.CheckoutGateway, len(gateways))
	for _, g := range gateways {
		byMethod[g.Method()] = g
	}
	return &checkoutUC{
		payments:    payments,
		enrollments: enrollments,
		courses:     courses,
		gateways:    byMethod,
		log:         logger,
	}
}

// loadPayableCourse resolves the course and rejects checkouts for courses the
// user cannot buy anymore.
func (u *checkoutUC) loadPayableCourse(ctx context.Context, userID, courseID string) (*model.Course, error) {
	course, err := u.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course.Deleted() {
		return nil, domain.ErrCourseDeleted
	}
	existing, err := u.enrollments.FindByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.PaymentStatus == model.EnrollmentPaid {
		return nil, domain.ErrAlreadyEnrolled
	}
	return course, nil
}

func (u *checkoutUC) Initiate(ctx context.Context, userID, courseID string, method model.PaymentMethod) (*CheckoutResult, error) {
	course, err := u.loadPayableCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if course.Free() {
		e, err := u.FreeEnroll(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Enrollment: e, Free: true}, nil
	}

	gw, ok := u.gateways[method]
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	enrollment, err := u.enrollments.UpsertPending(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}

	artifact, err := gw.CreateCheckout(ctx, adapter.CheckoutRequest{
		UserID:       userID,
		EnrollmentID: enrollment.ID,
		CourseID:     courseID,
		CourseTitle:  course.Title,
		Description:  course.Title,
		AmountCents:  course.PriceCents,
		Currency:     course.Currency,
	})
	if err != nil {
		// The pending enrollment stays; the next attempt reuses it.
		u.log.Error().Err(err).Str("method", string(method)).Str("course_id", courseID).Msg("checkout gateway call failed")
		return nil, err
	}

	p, err := u.createPending(ctx, userID, courseID, &enrollment.ID, course, method, artifact)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Payment: p, Enrollment: enrollment, Artifact: artifact}, nil
}

func (u *checkoutUC) InitiateQR(ctx context.Context, userID, courseID string) (*CheckoutResult, error) {
	course, err := u.loadPayableCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if course.Free() {
		return nil, domain.ErrInvalidArgument
	}
	gw, ok := u.gateways[model.MethodVietQR]
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	artifact, err := gw.CreateCheckout(ctx, adapter.CheckoutRequest{
		UserID:      userID,
		CourseID:    courseID,
		CourseTitle: course.Title,
		AmountCents: course.PriceCents,
		Currency:    course.Currency,
	})
	if err != nil {
		return nil, err
	}

	p, err := u.createPending(ctx, userID, courseID, nil, course, model.MethodVietQR, artifact)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Payment: p, Artifact: artifact}, nil
}

func (u *checkoutUC) FreeEnroll(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	course, err := u.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course.Deleted() {
		return nil, domain.ErrCourseDeleted
	}
	if !course.Free() {
		return nil, domain.ErrInvalidArgument
	}
	existing, err := u.enrollments.FindByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.PaymentStatus == model.EnrollmentPaid {
		return nil, domain.ErrAlreadyEnrolled
	}

	e, err := u.enrollments.UpsertPending(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	if e.PaymentStatus != model.EnrollmentPaid {
		if err := u.enrollments.UpdatePaymentStatus(ctx, nil, e.ID, model.EnrollmentPaid); err != nil {
			return nil, err
		}
		e.PaymentStatus = model.EnrollmentPaid
	}
	return e, nil
}

func (u *checkoutUC) createPending(
	ctx context.Context, userID, courseID string, enrollmentID *string,
	course *model.Course, method model.PaymentMethod, artifact *adapter.CheckoutArtifact,
) (*model.Payment, error) {
	now := time.Now()
	p := &model.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		CourseID:      courseID,
		EnrollmentID:  enrollmentID,
		TransactionID: artifact.TransactionID,
		AmountCents:   course.PriceCents,
		Currency:      course.Currency,
		Method:        method,
		Status:        model.PaymentStatusPending,
		Meta:          pendingMeta(method, artifact),
		ExpiresAt:     artifact.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.payments.Create(ctx, nil, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(method), string(model.PaymentStatusPending))
	return p, nil
}

func pendingMeta(method model.PaymentMethod, artifact *adapter.CheckoutArtifact) model.GatewayMeta {
	switch method {
	case model.MethodStripe:
		return model.GatewayMeta{Stripe: &model.StripeMeta{SessionID: artifact.TransactionID}}
	case model.MethodPayPal:
		return model.GatewayMeta{PayPal: &model.PayPalMeta{PaymentID: artifact.TransactionID}}
	case model.MethodVietQR:
		m := &model.VietQRMeta{Reference: artifact.TransactionID, QRContent: artifact.QRContent}
		if artifact.Bank != nil {
			m.BankCode = artifact.Bank.BankCode
			m.AccountNumber = artifact.Bank.AccountNumber
		}
		return model.GatewayMeta{VietQR: m}
	default:
		return model.GatewayMeta{}
	}
}
