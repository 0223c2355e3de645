package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, course_id, enrollment_id, transaction_id, amount_cents, currency, method, status, meta, invoice_number, failure_reason, amount_mismatch, expires_at, completed_at, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, course_id, enrollment_id, transaction_id, amount_cents, currency, method, status, meta, invoice_number, failure_reason, amount_mismatch, expires_at, completed_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
);`

	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.CourseID, p.EnrollmentID, p.TransactionID, p.AmountCents, p.Currency,
		p.Method, p.Status, meta, p.InvoiceNumber, p.FailureReason, p.AmountMismatch,
		p.ExpiresAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTransaction
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.scanOne(ctx, tx, q, id)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.scanOne(ctx, tx, q, transactionID)
}

// UpdateStatusIfPending is the single write path for status transitions. The
// WHERE clause conditions the update on the pre-transition state, so two
// concurrent deliveries for the same transaction serialize to one effective
// transition; the loser observes rowsAffected == 0.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus,
	meta *model.GatewayMeta, completedAt *time.Time, failureReason string,
) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           meta = COALESCE($3, meta),
           completed_at = COALESCE($4, completed_at),
           failure_reason = CASE WHEN $5 <> '' THEN $5 ELSE failure_reason END,
           updated_at = NOW()
     WHERE id = $1
       AND status = 'pending';`

	var metaJSON []byte
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return false, domain.ErrInvalidArgument
		}
		metaJSON = b
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), metaJSON, completedAt, failureReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) OverrideStatus(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus,
	meta *model.GatewayMeta, completedAt *time.Time,
) (bool, error) {
	// Completed stays completed even under admin override.
	const q = `
    UPDATE payments
       SET status = $2,
           meta = COALESCE($3, meta),
           completed_at = COALESCE($4, completed_at),
           updated_at = NOW()
     WHERE id = $1
       AND status <> 'completed';`

	var metaJSON []byte
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return false, domain.ErrInvalidArgument
		}
		metaJSON = b
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), metaJSON, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) SetEnrollment(ctx context.Context, tx repository.Tx, paymentID, enrollmentID string) error {
	const q = `UPDATE payments SET enrollment_id=$2, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, paymentID, enrollmentID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) SetInvoiceNumber(ctx context.Context, tx repository.Tx, paymentID, invoiceNumber string) error {
	// Set-once: a payment keeps the first invoice number it ever got.
	const q = `UPDATE payments SET invoice_number=$2, updated_at=NOW() WHERE id=$1 AND invoice_number IS NULL;`
	if _, err := execSQL(ctx, r.pool, tx, q, paymentID, invoiceNumber); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) MarkAmountMismatch(ctx context.Context, tx repository.Tx, paymentID string) error {
	const q = `UPDATE payments SET amount_mismatch=TRUE, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, paymentID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListPendingExpired(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments
 WHERE status='pending' AND expires_at IS NOT NULL AND expires_at < $1
 ORDER BY expires_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, methods []model.PaymentMethod, offset, limit int) ([]*model.Payment, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	ms := make([]string, 0, len(methods))
	for _, m := range methods {
		ms = append(ms, string(m))
	}

	countQ := `SELECT COUNT(*) FROM payments WHERE user_id=$1 AND ($2::text[] = '{}' OR method = ANY($2));`
	row, err := pickRow(ctx, r.pool, tx, countQ, userID, ms)
	if err != nil {
		return nil, 0, domain.ErrOperationFailed
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE user_id=$1 AND ($2::text[] = '{}' OR method = ANY($2))
 ORDER BY created_at DESC OFFSET $3 LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, ms, offset, limit)
	if err != nil {
		return nil, 0, domain.ErrOperationFailed
	}
	defer rows.Close()
	out, err := scanPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *paymentRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := &model.Payment{}
	var metaJSON []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.EnrollmentID, &p.TransactionID, &p.AmountCents,
		&p.Currency, &p.Method, &p.Status, &metaJSON, &p.InvoiceNumber, &p.FailureReason,
		&p.AmountMismatch, &p.ExpiresAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &p.Meta)
	}
	return p, nil
}

func scanPayments(rows pgx.Rows) ([]*model.Payment, error) {
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}
