package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type ChannelRepository struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

const channelColumns = `id, owner_id, telegram_id, username, title, pricing, verified, status, created_at`

func scanChannel(row pgx.Row) (domain.Channel, error) {
	var ch domain.Channel
	var status string
	var pricing []byte
	err := row.Scan(&ch.ID, &ch.OwnerID, &ch.TelegramID, &ch.Username, &ch.Title,
		&pricing, &ch.Verified, &status, &ch.CreatedAt)
	if err != nil {
		return domain.Channel{}, err
	}
	if err := json.Unmarshal(pricing, &ch.Pricing); err != nil {
		return domain.Channel{}, fmt.Errorf("decode pricing: %w", err)
	}
	ch.Status = domain.ChannelStatus(status)
	return ch, nil
}

func (r *ChannelRepository) CreateChannel(ctx context.Context, ch domain.Channel) error {
	const stmt = `
INSERT INTO channels (id, owner_id, telegram_id, username, title, pricing, verified, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	pricing, err := json.Marshal(ch.Pricing)
	if err != nil {
		return fmt.Errorf("encode pricing: %w", err)
	}

	_, err = r.pool.Exec(ctx, stmt,
		ch.ID, ch.OwnerID, ch.TelegramID, ch.Username, ch.Title,
		pricing, ch.Verified, string(ch.Status), ch.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrChannelExists
		}
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

func (r *ChannelRepository) GetChannel(ctx context.Context, id string) (domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	ch, err := scanChannel(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		switch {
		case isInvalidUUID(err):
			return domain.Channel{}, domain.ErrInvalidID
		case err == pgx.ErrNoRows:
			return domain.Channel{}, domain.ErrChannelNotFound
		}
		return domain.Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func (r *ChannelRepository) ListChannels(ctx context.Context, status domain.ChannelStatus) ([]domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY created_at DESC, id`
	args := []any{}
	if status != "" {
		query = `SELECT ` + channelColumns + ` FROM channels WHERE status = $1 ORDER BY created_at DESC, id`
		args = append(args, string(status))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return out, nil
}

func (r *ChannelRepository) UpdateChannel(ctx context.Context, ch domain.Channel) error {
	const stmt = `
UPDATE channels SET owner_id = $2, username = $3, title = $4, pricing = $5, verified = $6, status = $7
WHERE id = $1`

	pricing, err := json.Marshal(ch.Pricing)
	if err != nil {
		return fmt.Errorf("encode pricing: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt,
		ch.ID, ch.OwnerID, ch.Username, ch.Title, pricing, ch.Verified, string(ch.Status))
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}

func (r *ChannelRepository) CountChannels(ctx context.Context, status domain.ChannelStatus) (int, error) {
	query := `SELECT COUNT(*) FROM channels`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}
