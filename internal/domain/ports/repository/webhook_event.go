package repository

import (
	"context"

	"course-marketplace/internal/domain/model"
)

// -----------------------------
// Webhook events (audit archive)
// -----------------------------

type WebhookEventRepository interface {
	// Archive stores a verified inbound notification, matched or not.
	Archive(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	ListUnmatched(ctx context.Context, tx Tx, limit int) ([]*model.WebhookEvent, error)
}
