package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type EarningsRepository struct {
	pool *pgxpool.Pool
}

func NewEarningsRepository(pool *pgxpool.Pool) *EarningsRepository {
	return &EarningsRepository{pool: pool}
}

// InsertCredit records an owner payout once per order. The primary key
// on order_id makes replays a no-op, which keeps the at-least-once
// outbox from double-crediting.
func (r *EarningsRepository) InsertCredit(ctx context.Context, c domain.EarningsCredit) error {
	const stmt = `
INSERT INTO earnings_credits (order_id, channel_id, amount, credited_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (order_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, stmt, c.OrderID, c.ChannelID, c.Amount, c.CreditedAt)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

func (r *EarningsRepository) SumEarnings(ctx context.Context, channelID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM earnings_credits WHERE channel_id = $1`

	var total int64
	if err := r.pool.QueryRow(ctx, query, channelID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	return total, nil
}
