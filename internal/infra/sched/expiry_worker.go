package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
	"course-marketplace/internal/infra/metrics"
)

// ExpiryWorker periodically closes pending payments whose window lapsed
// without the provider ever confirming. The webhook path and verify endpoint
// already expire lazily; the sweep catches payments nobody looks at again.
type ExpiryWorker struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	tm          repository.TransactionManager
	interval    time.Duration
	batch       int
	log         *zerolog.Logger
}

func NewExpiryWorker(
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	tm repository.TransactionManager,
	interval time.Duration,
	batch int,
	logger *zerolog.Logger,
) *ExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	sweepLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		payments:    payments,
		enrollments: enrollments,
		tm:          tm,
		interval:    interval,
		batch:       batch,
		log:         &sweepLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n := w.sweep(ctx)
			if n > 0 {
				metrics.AddSweepExpired(n)
				w.log.Info().Int("count", n).Msg("pending payments expired")
			}
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) int {
	stale, err := w.payments.ListPendingExpired(ctx, nil, time.Now(), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep list failed")
		return 0
	}

	expired := 0
	for _, p := range stale {
		err := w.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			applied, err := w.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusExpired, nil, nil, "payment window expired")
			if err != nil || !applied {
				// A webhook confirmed the payment between the list and
				// here; leave it alone.
				return err
			}
			expired++
			if p.EnrollmentID != nil {
				return w.enrollments.UpdatePaymentStatus(ctx, tx, *p.EnrollmentID, model.EnrollmentFailed)
			}
			return nil
		})
		if err != nil {
			w.log.Error().Err(err).Str("payment_id", p.ID).Msg("expiry sweep transition failed")
		}
	}
	return expired
}
