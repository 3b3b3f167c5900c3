package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// OutboxRepository is the dispatcher's side of the outbox table; the
// writer side lives on OrderRepository.AppendEvent.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// PendingEvents returns undispatched events oldest first.
func (r *OutboxRepository) PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	const query = `
SELECT id, order_id, kind, payload, created_at, dispatched_at, attempts
FROM outbox_events
WHERE dispatched_at IS NULL
ORDER BY created_at, id
LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.OrderID, &kind, &ev.Payload, &ev.CreatedAt, &ev.DispatchedAt, &ev.Attempts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	return out, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	const stmt = `UPDATE outbox_events SET dispatched_at = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, stmt, id, at)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", id)
	}
	return nil
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, id string) error {
	const stmt = `UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", id)
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE dispatched_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
