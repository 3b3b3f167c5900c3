package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `
id, buyer_id, channel_id, ad_format,
price, discount_amount, final_price,
order_status, escrow_status,
escrow_amount, escrow_held_at, escrow_released_at,
delivery_confirmed, delivery_confirmed_at, delivery_confirmed_by,
auto_posted, auto_posted_at, post_url,
creative_content, creative_media_id, reject_reason,
created_at, paid_at, completed_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var orderStatus, escrowStatus string
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.ChannelID, &o.AdFormat,
		&o.Price, &o.DiscountAmount, &o.FinalPrice,
		&orderStatus, &escrowStatus,
		&o.EscrowAmount, &o.EscrowHeldAt, &o.EscrowReleasedAt,
		&o.DeliveryConfirmed, &o.DeliveryConfirmedAt, &o.DeliveryConfirmedBy,
		&o.AutoPosted, &o.AutoPostedAt, &o.PostURL,
		&o.CreativeContent, &o.CreativeMediaID, &o.RejectReason,
		&o.CreatedAt, &o.PaidAt, &o.CompletedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.OrderStatus = domain.OrderStatus(orderStatus)
	o.EscrowStatus = domain.EscrowStatus(escrowStatus)
	return o, nil
}

// GetOrderForUpdate locks the order row for the calling transaction.
// NOWAIT makes a second writer fail immediately, which surfaces as
// ErrBusy instead of queueing on the lock.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE NOWAIT`

	o, err := scanOrder(r.queryRow(ctx, query, id))
	if err != nil {
		switch {
		case isLockNotAvailable(err):
			return domain.Order{}, domain.ErrBusy
		case isInvalidUUID(err):
			return domain.Order{}, domain.ErrInvalidID
		case err == pgx.ErrNoRows:
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order for update: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.queryRow(ctx, query, id))
	if err != nil {
		switch {
		case isInvalidUUID(err):
			return domain.Order{}, domain.ErrInvalidID
		case err == pgx.ErrNoRows:
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o domain.Order) error {
	const stmt = `
INSERT INTO orders (
	id, buyer_id, channel_id, ad_format,
	price, discount_amount, final_price,
	order_status, escrow_status,
	escrow_amount, escrow_held_at, escrow_released_at,
	delivery_confirmed, delivery_confirmed_at, delivery_confirmed_by,
	auto_posted, auto_posted_at, post_url,
	creative_content, creative_media_id, reject_reason,
	created_at, paid_at, completed_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
)`

	_, err := r.exec(ctx, stmt,
		o.ID, o.BuyerID, o.ChannelID, o.AdFormat,
		o.Price, o.DiscountAmount, o.FinalPrice,
		string(o.OrderStatus), string(o.EscrowStatus),
		o.EscrowAmount, o.EscrowHeldAt, o.EscrowReleasedAt,
		o.DeliveryConfirmed, o.DeliveryConfirmedAt, o.DeliveryConfirmedBy,
		o.AutoPosted, o.AutoPostedAt, o.PostURL,
		o.CreativeContent, o.CreativeMediaID, o.RejectReason,
		o.CreatedAt, o.PaidAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// UpdateOrder writes the full mutable state back. The lifecycle service
// always loads the row with GetOrderForUpdate first, so this never
// races another writer.
func (r *OrderRepository) UpdateOrder(ctx context.Context, o domain.Order) error {
	const stmt = `
UPDATE orders SET
	order_status = $2, escrow_status = $3,
	escrow_amount = $4, escrow_held_at = $5, escrow_released_at = $6,
	delivery_confirmed = $7, delivery_confirmed_at = $8, delivery_confirmed_by = $9,
	auto_posted = $10, auto_posted_at = $11, post_url = $12,
	creative_content = $13, creative_media_id = $14, reject_reason = $15,
	paid_at = $16, completed_at = $17
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		o.ID,
		string(o.OrderStatus), string(o.EscrowStatus),
		o.EscrowAmount, o.EscrowHeldAt, o.EscrowReleasedAt,
		o.DeliveryConfirmed, o.DeliveryConfirmedAt, o.DeliveryConfirmedBy,
		o.AutoPosted, o.AutoPostedAt, o.PostURL,
		o.CreativeContent, o.CreativeMediaID, o.RejectReason,
		o.PaidAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, id`
	return r.listOrders(ctx, query, buyerID)
}

func (r *OrderRepository) ListOrdersByChannel(ctx context.Context, channelID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE channel_id = $1 ORDER BY created_at DESC, id`
	return r.listOrders(ctx, query, channelID)
}

func (r *OrderRepository) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// ListUnpaidBefore returns ids of orders still in pending_payment
// created before cutoff, oldest first. Used by the expiry sweeper.
func (r *OrderRepository) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const query = `
SELECT id FROM orders
WHERE order_status = 'pending_payment' AND created_at < $1
ORDER BY created_at, id
LIMIT $2`

	rows, err := r.query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpaid: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unpaid: %w", err)
	}
	return ids, nil
}

// AppendEvent inserts an outbox event; the lifecycle service calls it
// inside the same transaction as the order update it describes.
func (r *OrderRepository) AppendEvent(ctx context.Context, ev domain.OutboxEvent) error {
	const stmt = `
INSERT INTO outbox_events (id, order_id, kind, payload, created_at, attempts)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, ev.ID, ev.OrderID, string(ev.Kind), ev.Payload, ev.CreatedAt, ev.Attempts)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *OrderRepository) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *OrderRepository) CountActiveOrders(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM orders WHERE order_status NOT IN ('completed', 'refunded')`

	var n int
	if err := r.queryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active orders: %w", err)
	}
	return n, nil
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
