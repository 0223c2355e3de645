package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Enrollment / checkout
	ErrAlreadyEnrolled = errors.New("user already enrolled in this course")
	ErrCourseDeleted   = errors.New("course is not available")

	// Payment reconciliation
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	ErrUnmatchedTransaction = errors.New("no payment matches transaction id")
	ErrPaymentExpired       = errors.New("payment window has expired")
	ErrAlreadyConfirmed     = errors.New("payment already confirmed")
	ErrAmountMismatch       = errors.New("reported amount does not match payment")
	ErrInvoiceUnavailable   = errors.New("invoice not available for this payment")

	// Webhook trust boundary
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// Gateways
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// Storage
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
