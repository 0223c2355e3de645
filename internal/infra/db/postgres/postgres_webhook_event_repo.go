package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Archive(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, webhook_id, provider, transaction_id, status, amount_cents, matched, payload, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		e.ID, e.WebhookID, e.Provider, e.TransactionID, e.Status, e.AmountCents, e.Matched, payload, e.ReceivedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) ListUnmatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, webhook_id, provider, transaction_id, status, amount_cents, matched, payload, received_at
 FROM webhook_events WHERE matched = FALSE ORDER BY received_at DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		e := &model.WebhookEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.Provider, &e.TransactionID, &e.Status,
			&e.AmountCents, &e.Matched, &payload, &e.ReceivedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		out = append(out, e)
	}
	return out, nil
}
