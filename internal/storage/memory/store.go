// Package memory is the in-process storage backend. It mirrors the
// postgres repositories' contracts, including fail-fast row locking
// and transactional staging, so the service runs without a database in
// local setups and unit tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	channels map[string]domain.Channel
	events   []domain.OutboxEvent
	credits  map[string]domain.EarningsCredit

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		channels: make(map[string]domain.Channel),
		credits:  make(map[string]domain.EarningsCredit),
		locks:    make(map[string]*sync.Mutex),
	}
}

type txKey struct{}

// memTx stages writes until WithTx's callback returns nil. Order locks
// taken inside the transaction are held until after commit.
type memTx struct {
	store  *Store
	locked []string
	orders map[string]domain.Order
	events []domain.OutboxEvent
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

// WithTx runs fn against a staged view of the store. A nil return
// commits the staged writes atomically; any error discards them. A
// nested call reuses the transaction already in ctx.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{store: s, orders: make(map[string]domain.Order)}
	defer tx.release()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (tx *memTx) commit() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for id, o := range tx.orders {
		tx.store.orders[id] = o
	}
	tx.store.events = append(tx.store.events, tx.events...)
}

func (tx *memTx) release() {
	for _, id := range tx.locked {
		tx.store.orderLock(id).Unlock()
	}
}

func (tx *memTx) holds(id string) bool {
	return slices.Contains(tx.locked, id)
}

func (s *Store) orderLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// GetOrderForUpdate locks the order for the calling transaction and
// returns its current state. If another transaction holds the order
// the call fails with ErrBusy immediately.
func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	tx := txFrom(ctx)
	if tx == nil {
		return domain.Order{}, fmt.Errorf("get order for update: not in a transaction")
	}

	if !tx.holds(id) {
		if !s.orderLock(id).TryLock() {
			return domain.Order{}, domain.ErrBusy
		}
		tx.locked = append(tx.locked, id)
	}

	if staged, ok := tx.orders[id]; ok {
		return staged, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	if tx := txFrom(ctx); tx != nil {
		tx.orders[o.ID] = o
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) UpdateOrder(ctx context.Context, o domain.Order) error {
	if tx := txFrom(ctx); tx != nil {
		tx.orders[o.ID] = o
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if tx := txFrom(ctx); tx != nil {
		if staged, ok := tx.orders[id]; ok {
			return staged, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.listOrders(func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) ListOrdersByChannel(ctx context.Context, channelID string) ([]domain.Order, error) {
	return s.listOrders(func(o domain.Order) bool { return o.ChannelID == channelID }), nil
}

func (s *Store) listOrders(match func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	// Newest first, id as tie-break so test fixtures with one clock
	// instant still list deterministically.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListUnpaidBefore returns ids of orders still waiting for payment
// created before cutoff, oldest first.
func (s *Store) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []domain.Order
	for _, o := range s.orders {
		if o.OrderStatus == domain.OrderStatusPendingPayment && o.CreatedAt.Before(cutoff) {
			stale = append(stale, o)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].CreatedAt.Equal(stale[j].CreatedAt) {
			return stale[i].CreatedAt.Before(stale[j].CreatedAt)
		}
		return stale[i].ID < stale[j].ID
	})

	ids := make([]string, 0, len(stale))
	for _, o := range stale {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (s *Store) AppendEvent(ctx context.Context, ev domain.OutboxEvent) error {
	if tx := txFrom(ctx); tx != nil {
		tx.events = append(tx.events, ev)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// PendingEvents returns undispatched events in append order.
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.OutboxEvent
	for _, ev := range s.events {
		if ev.DispatchedAt != nil {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].DispatchedAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (s *Store) RecordFailure(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Attempts++
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ev := range s.events {
		if ev.DispatchedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateChannel(ctx context.Context, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.channels {
		if existing.TelegramID == ch.TelegramID {
			return domain.ErrChannelExists
		}
	}
	ch.Pricing = maps.Clone(ch.Pricing)
	s.channels[ch.ID] = ch
	return nil
}

func (s *Store) GetChannel(ctx context.Context, id string) (domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return domain.Channel{}, domain.ErrChannelNotFound
	}
	ch.Pricing = maps.Clone(ch.Pricing)
	return ch, nil
}

func (s *Store) ListChannels(ctx context.Context, status domain.ChannelStatus) ([]domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Channel
	for _, ch := range s.channels {
		if status != "" && ch.Status != status {
			continue
		}
		ch.Pricing = maps.Clone(ch.Pricing)
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateChannel(ctx context.Context, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch.ID]; !ok {
		return domain.ErrChannelNotFound
	}
	ch.Pricing = maps.Clone(ch.Pricing)
	s.channels[ch.ID] = ch
	return nil
}

// InsertCredit records an earnings credit once per order; replays
// return nil without touching the existing row.
func (s *Store) InsertCredit(ctx context.Context, c domain.EarningsCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credits[c.OrderID]; ok {
		return nil
	}
	s.credits[c.OrderID] = c
	return nil
}

func (s *Store) SumEarnings(ctx context.Context, channelID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, c := range s.credits {
		if c.ChannelID == channelID {
			total += c.Amount
		}
	}
	return total, nil
}

func (s *Store) CountOrders(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
}

// CountActiveOrders counts orders that have not reached a final
// lifecycle status yet.
func (s *Store) CountActiveOrders(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		switch o.OrderStatus {
		case domain.OrderStatusCompleted, domain.OrderStatusRefunded:
		default:
			n++
		}
	}
	return n, nil
}

func (s *Store) CountChannels(ctx context.Context, status domain.ChannelStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status == "" {
		return len(s.channels), nil
	}
	n := 0
	for _, ch := range s.channels {
		if ch.Status == status {
			n++
		}
	}
	return n, nil
}
