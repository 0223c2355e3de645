package model

import "time"

type EnrollmentPaymentStatus string

const (
	EnrollmentPending  EnrollmentPaymentStatus = "pending"
	EnrollmentPaid     EnrollmentPaymentStatus = "paid"
	EnrollmentFailed   EnrollmentPaymentStatus = "failed"
	EnrollmentRefunded EnrollmentPaymentStatus = "refunded"
)

// Enrollment is a user's claim on a course. One row per (user, course),
// enforced by a compound unique index in storage.
type Enrollment struct {
	ID                   string // UUID
	UserID               string
	CourseID             string
	PaymentStatus        EnrollmentPaymentStatus
	CompletionPercentage int // progress tracking, maintained elsewhere
	EnrolledAt           time.Time
	LastAccessedAt       time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
