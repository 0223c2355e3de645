package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
	"course-marketplace/internal/domain/ports/repository"
	"course-marketplace/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileOutcome names what a notification did to the stored payment.
type ReconcileOutcome string

const (
	OutcomeCompleted ReconcileOutcome = "completed"
	// OutcomeReplayed means the payment was already terminal, or another
	// delivery won the conditional write. The caller acknowledges either way.
	OutcomeReplayed ReconcileOutcome = "replayed"
	OutcomeExpired  ReconcileOutcome = "expired"
	OutcomeFailed   ReconcileOutcome = "failed"
	// OutcomeHeartbeat is a provider-side pending notification; archived,
	// no transition.
	OutcomeHeartbeat ReconcileOutcome = "heartbeat"
	OutcomeUnmatched ReconcileOutcome = "unmatched"
	// OutcomeAnomaly is an unrecognized provider status; archived and
	// alerted, never applied.
	OutcomeAnomaly ReconcileOutcome = "anomaly"
	// OutcomeBlocked is an amount mismatch under the block policy.
	OutcomeBlocked ReconcileOutcome = "blocked"
)

type ReconcileResult struct {
	Outcome ReconcileOutcome
	Payment *model.Payment
}

type ReconcileUseCase interface {
	// Reconcile drives the payment state machine from one verified
	// notification. It never returns an error for expected webhook noise
	// (replays, heartbeats, unmatched ids); the outcome tells the transport
	// layer how to respond.
	Reconcile(ctx context.Context, provider model.PaymentMethod, webhookID string, n *model.Notification) (*ReconcileResult, error)
	// ManualConfirm is the admin override for payments the provider never
	// confirmed. Completed payments are refused.
	ManualConfirm(ctx context.Context, paymentID, adminID, note string) (*model.Payment, error)
	// Verify returns the caller's payment, expiring it first if its window
	// has lapsed.
	Verify(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	// ExecutePayPal finalizes an approved PayPal payment on behalf of the
	// session user, then reconciles the gateway's verdict.
	ExecutePayPal(ctx context.Context, userID, paymentID, payerID string) (*ReconcileResult, error)
}

type reconcileUC struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	events      repository.WebhookEventRepository
	tm          repository.TransactionManager
	invoices    InvoiceIssuer
	paypal      adapter.PayPalExecutor
	mailer      adapter.Mailer
	policy      config.PaymentPolicyConfig
	log         *zerolog.Logger
	now         func() time.Time
}

// InvoiceIssuer is the slice of the invoice use case the reconciler needs.
// Issuing is fire-and-forget; errors are the issuer's to log.
type InvoiceIssuer interface {
	Issue(ctx context.Context, paymentID string) error
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	events repository.WebhookEventRepository,
	tm repository.TransactionManager,
	invoices InvoiceIssuer,
	paypal adapter.PayPalExecutor,
	mailer adapter.Mailer,
	policy config.PaymentPolicyConfig,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		payments:    payments,
		enrollments: enrollments,
		events:      events,
		tm:          tm,
		invoices:    invoices,
		paypal:      paypal,
		mailer:      mailer,
		policy:      policy,
		log:         logger,
		now:         time.Now,
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, provider model.PaymentMethod, webhookID string, n *model.Notification) (*ReconcileResult, error) {
	p, err := u.payments.FindByTransactionID(ctx, nil, n.TransactionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	u.archive(ctx, provider, webhookID, n, p != nil)

	if p == nil {
		u.log.Warn().Str("provider", string(provider)).Str("transaction_id", n.TransactionID).Msg("webhook for unknown transaction")
		metrics.IncWebhook(string(provider), "unmatched")
		return &ReconcileResult{Outcome: OutcomeUnmatched}, nil
	}

	if p.Status.Terminal() {
		metrics.IncWebhook(string(provider), "replayed")
		return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
	}

	if p.Expired(u.now()) {
		applied, err := u.expire(ctx, p)
		if err != nil {
			return nil, err
		}
		if !applied {
			// Lost the race to a concurrent delivery that settled the payment.
			metrics.IncWebhook(string(provider), "replayed")
			return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
		}
		p.Status = model.PaymentStatusExpired
		metrics.IncWebhook(string(provider), "expired")
		return &ReconcileResult{Outcome: OutcomeExpired, Payment: p}, nil
	}

	if n.AccountMismatch {
		u.log.Warn().Str("provider", string(provider)).Str("payment_id", p.ID).Str("transaction_id", n.TransactionID).Msg("webhook names a different receiving account")
		metrics.IncWebhook(string(provider), "anomaly")
		u.alert(fmt.Sprintf("Receiving account mismatch from %s", provider), []string{
			"Payment ID: " + p.ID,
			"Transaction ID: " + n.TransactionID,
			"Reported status: " + n.Status,
		})
		return &ReconcileResult{Outcome: OutcomeAnomaly, Payment: p}, nil
	}

	switch model.NormalizeStatus(n.Status) {
	case model.FamilySuccess:
		return u.applySuccess(ctx, provider, p, n)
	case model.FamilyFailure:
		return u.applyFailure(ctx, provider, p, n)
	case model.FamilyPending:
		metrics.IncWebhook(string(provider), "heartbeat")
		return &ReconcileResult{Outcome: OutcomeHeartbeat, Payment: p}, nil
	default:
		u.log.Warn().Str("provider", string(provider)).Str("status", n.Status).Str("payment_id", p.ID).Msg("unrecognized provider status")
		metrics.IncWebhook(string(provider), "anomaly")
		u.alert(fmt.Sprintf("Unrecognized payment status from %s", provider), []string{
			"Payment ID: " + p.ID,
			"Transaction ID: " + n.TransactionID,
			"Reported status: " + n.Status,
		})
		return &ReconcileResult{Outcome: OutcomeAnomaly, Payment: p}, nil
	}
}

func (u *reconcileUC) applySuccess(ctx context.Context, provider model.PaymentMethod, p *model.Payment, n *model.Notification) (*ReconcileResult, error) {
	mismatch := n.AmountCents != p.AmountCents

	if mismatch && u.policy.AmountMismatchPolicy == config.MismatchPolicyBlock {
		applied := false
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			applied, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusFailed, nil, nil, "amount mismatch")
			if err != nil || !applied {
				return err
			}
			return u.failEnrollment(ctx, tx, p)
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			metrics.IncWebhook(string(provider), "replayed")
			return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
		}
		u.flagMismatch(ctx, p, n)
		metrics.IncPayment(string(p.Method), string(model.PaymentStatusFailed))
		metrics.IncWebhook(string(provider), "blocked")
		p.Status = model.PaymentStatusFailed
		return &ReconcileResult{Outcome: OutcomeBlocked, Payment: p}, nil
	}

	meta := successMeta(provider, p, n)
	completedAt := n.ReceivedAt
	if completedAt.IsZero() {
		completedAt = u.now()
	}

	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		applied, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusCompleted, meta, &completedAt, "")
		if err != nil || !applied {
			return err
		}
		return u.settleEnrollment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		metrics.IncWebhook(string(provider), "replayed")
		return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
	}

	if mismatch {
		u.flagMismatch(ctx, p, n)
	}

	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &completedAt
	metrics.IncPayment(string(p.Method), string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(p.Currency, p.AmountCents)
	metrics.IncWebhook(string(provider), "completed")

	go func(id string) {
		if err := u.invoices.Issue(context.Background(), id); err != nil {
			u.log.Error().Err(err).Str("payment_id", id).Msg("invoice issue failed")
		}
	}(p.ID)

	return &ReconcileResult{Outcome: OutcomeCompleted, Payment: p}, nil
}

func (u *reconcileUC) applyFailure(ctx context.Context, provider model.PaymentMethod, p *model.Payment, n *model.Notification) (*ReconcileResult, error) {
	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		applied, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusFailed, nil, nil, n.Status)
		if err != nil || !applied {
			return err
		}
		return u.failEnrollment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		metrics.IncWebhook(string(provider), "replayed")
		return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
	}
	p.Status = model.PaymentStatusFailed
	metrics.IncPayment(string(p.Method), string(model.PaymentStatusFailed))
	metrics.IncWebhook(string(provider), "failed")
	return &ReconcileResult{Outcome: OutcomeFailed, Payment: p}, nil
}

func (u *reconcileUC) ManualConfirm(ctx context.Context, paymentID, adminID, note string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusCompleted {
		return nil, domain.ErrAlreadyConfirmed
	}

	meta := p.Meta
	meta.Manual = &model.ManualMeta{ConfirmedBy: adminID, Note: note}
	now := u.now()

	applied := false
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		applied, err = u.payments.OverrideStatus(ctx, tx, p.ID, model.PaymentStatusCompleted, &meta, &now)
		if err != nil || !applied {
			return err
		}
		return u.settleEnrollment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domain.ErrAlreadyConfirmed
	}

	p.Status = model.PaymentStatusCompleted
	p.Meta = meta
	p.CompletedAt = &now
	metrics.IncPayment(string(p.Method), string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(p.Currency, p.AmountCents)

	go func(id string) {
		if err := u.invoices.Issue(context.Background(), id); err != nil {
			u.log.Error().Err(err).Str("payment_id", id).Msg("invoice issue failed")
		}
	}(p.ID)

	u.log.Info().Str("payment_id", p.ID).Str("admin_id", adminID).Msg("payment manually confirmed")
	return p, nil
}

func (u *reconcileUC) ExecutePayPal(ctx context.Context, userID, paymentID, payerID string) (*ReconcileResult, error) {
	p, err := u.payments.FindByTransactionID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if p.Status.Terminal() {
		return &ReconcileResult{Outcome: OutcomeReplayed, Payment: p}, nil
	}

	n, err := u.paypal.Execute(ctx, paymentID, payerID)
	if err != nil {
		return nil, err
	}
	return u.Reconcile(ctx, model.MethodPayPal, "", n)
}

func (u *reconcileUC) Verify(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if p.Expired(u.now()) {
		applied, err := u.expire(ctx, p)
		if err != nil {
			return nil, err
		}
		if !applied {
			// A concurrent webhook settled the payment between our read and
			// the conditional write; report what actually happened.
			return u.payments.FindByID(ctx, nil, paymentID)
		}
		p.Status = model.PaymentStatusExpired
	}
	return p, nil
}

// settleEnrollment marks the paid-for enrollment paid, fabricating the row
// first for payments that never had one (bare QR, manual confirmation of
// such).
func (u *reconcileUC) settleEnrollment(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p.EnrollmentID != nil {
		return u.enrollments.UpdatePaymentStatus(ctx, tx, *p.EnrollmentID, model.EnrollmentPaid)
	}
	if p.CourseID == "" {
		return nil
	}
	e, err := u.enrollments.UpsertPending(ctx, tx, p.UserID, p.CourseID)
	if err != nil {
		return err
	}
	if err := u.enrollments.UpdatePaymentStatus(ctx, tx, e.ID, model.EnrollmentPaid); err != nil {
		return err
	}
	return u.payments.SetEnrollment(ctx, tx, p.ID, e.ID)
}

func (u *reconcileUC) failEnrollment(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p.EnrollmentID == nil {
		return nil
	}
	return u.enrollments.UpdatePaymentStatus(ctx, tx, *p.EnrollmentID, model.EnrollmentFailed)
}

func (u *reconcileUC) expire(ctx context.Context, p *model.Payment) (bool, error) {
	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		applied, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusExpired, nil, nil, "payment window expired")
		if err != nil || !applied {
			return err
		}
		metrics.IncPayment(string(p.Method), string(model.PaymentStatusExpired))
		return u.failEnrollment(ctx, tx, p)
	})
	return applied, err
}

func (u *reconcileUC) flagMismatch(ctx context.Context, p *model.Payment, n *model.Notification) {
	if err := u.payments.MarkAmountMismatch(ctx, nil, p.ID); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to flag amount mismatch")
	}
	p.AmountMismatch = true
	metrics.IncAmountMismatch()
	u.log.Warn().Str("payment_id", p.ID).Int64("expected_cents", p.AmountCents).Int64("reported_cents", n.AmountCents).Msg("amount mismatch")
	u.alert("Payment amount mismatch", []string{
		"Payment ID: " + p.ID,
		"Transaction ID: " + p.TransactionID,
		fmt.Sprintf("Expected: %d %s", p.AmountCents, p.Currency),
		fmt.Sprintf("Reported: %d %s", n.AmountCents, n.Currency),
	})
}

func (u *reconcileUC) archive(ctx context.Context, provider model.PaymentMethod, webhookID string, n *model.Notification, matched bool) {
	e := &model.WebhookEvent{
		ID:            uuid.NewString(),
		WebhookID:     webhookID,
		Provider:      provider,
		TransactionID: n.TransactionID,
		Status:        n.Status,
		AmountCents:   n.AmountCents,
		Matched:       matched,
		Payload:       n.Raw,
		ReceivedAt:    n.ReceivedAt,
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = u.now()
	}
	if err := u.events.Archive(ctx, nil, e); err != nil {
		u.log.Error().Err(err).Str("transaction_id", n.TransactionID).Msg("failed to archive webhook event")
	}
}

func (u *reconcileUC) alert(subject string, lines []string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := u.mailer.SendAnomalyAlert(ctx, subject, lines); err != nil {
			u.log.Error().Err(err).Str("subject", subject).Msg("anomaly alert mail failed")
		}
	}()
}

func successMeta(provider model.PaymentMethod, p *model.Payment, n *model.Notification) *model.GatewayMeta {
	meta := p.Meta
	switch provider {
	case model.MethodStripe:
		if meta.Stripe == nil {
			meta.Stripe = &model.StripeMeta{SessionID: p.TransactionID}
		}
		meta.Stripe.PaymentIntent = n.ProviderRef
	case model.MethodPayPal:
		if meta.PayPal == nil {
			meta.PayPal = &model.PayPalMeta{PaymentID: p.TransactionID}
		}
		meta.PayPal.PayerID = n.ProviderRef
	case model.MethodVietQR:
		if meta.VietQR == nil {
			meta.VietQR = &model.VietQRMeta{Reference: p.TransactionID}
		}
		meta.VietQR.BankTransactionID = n.ProviderRef
	}
	return &meta
}
