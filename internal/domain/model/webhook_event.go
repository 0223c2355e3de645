package model

import "time"

// WebhookEvent archives every inbound notification after signature
// verification, matched or not. Unmatched events are the audit trail for
// manual investigation; they must never be silently dropped.
type WebhookEvent struct {
	ID            string // UUID
	WebhookID     string // per-delivery id echoed back to the provider
	Provider      PaymentMethod
	TransactionID string
	Status        string
	AmountCents   int64
	Matched       bool
	Payload       map[string]interface{} // raw body, verbatim
	ReceivedAt    time.Time
}
