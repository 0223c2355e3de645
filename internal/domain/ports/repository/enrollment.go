package repository

import (
	"context"

	"course-marketplace/internal/domain/model"
)

// -----------------------------
// Enrollments
// -----------------------------

type EnrollmentRepository interface {
	// Create inserts a new enrollment. A (user_id, course_id) collision
	// returns domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, e *model.Enrollment) error
	// UpsertPending finds or creates the pending enrollment for the pair.
	// An existing row is returned as-is, whatever its payment status; the
	// compound unique index makes the row-per-pair invariant hold under
	// concurrent checkouts.
	UpsertPending(ctx context.Context, tx Tx, userID, courseID string) (*model.Enrollment, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)
	FindByUserAndCourse(ctx context.Context, tx Tx, userID, courseID string) (*model.Enrollment, error)
	UpdatePaymentStatus(ctx context.Context, tx Tx, id string, status model.EnrollmentPaymentStatus) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Enrollment, error)
}
