package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

const enrollmentColumns = `id, user_id, course_id, payment_status, completion_percentage, enrolled_at, last_accessed_at, created_at, updated_at`

func (r *enrollmentRepo) Create(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	const q = `
INSERT INTO enrollments (id, user_id, course_id, payment_status, completion_percentage, enrolled_at, last_accessed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.CourseID, e.PaymentStatus, e.CompletionPercentage,
		e.EnrolledAt, e.LastAccessedAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// UpsertPending relies on the (user_id, course_id) unique index: the insert
// either creates the pending row or no-ops against the existing one, and the
// row is returned either way. Two concurrent checkouts for the same pair
// therefore converge on a single enrollment.
func (r *enrollmentRepo) UpsertPending(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	now := time.Now()
	const q = `
INSERT INTO enrollments (id, user_id, course_id, payment_status, completion_percentage, enrolled_at, last_accessed_at, created_at, updated_at)
VALUES ($1,$2,$3,'pending',0,$4,$4,$4,$4)
ON CONFLICT (user_id, course_id) DO UPDATE SET updated_at = NOW()
RETURNING ` + enrollmentColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString(), userID, courseID, now)
	if err != nil {
		return nil, err
	}
	e, err := scanEnrollment(row)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id=$1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *enrollmentRepo) FindByUserAndCourse(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id=$1 AND course_id=$2 LIMIT 1;`
	return r.scanOne(ctx, tx, q, userID, courseID)
}

func (r *enrollmentRepo) UpdatePaymentStatus(ctx context.Context, tx repository.Tx, id string, status model.EnrollmentPaymentStatus) error {
	const q = `UPDATE enrollments SET payment_status=$2, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, string(status)); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *enrollmentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Enrollment, error) {
	const q = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id=$1 ORDER BY enrolled_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *enrollmentRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Enrollment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	e, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.PaymentStatus, &e.CompletionPercentage,
		&e.EnrolledAt, &e.LastAccessedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}
