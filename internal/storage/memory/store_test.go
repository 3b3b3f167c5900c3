package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, s *Store, id string, status domain.OrderStatus, createdAt time.Time) {
	t.Helper()
	err := s.CreateOrder(context.Background(), domain.Order{
		ID:           id,
		BuyerID:      "buyer-1",
		ChannelID:    "chan-1",
		OrderStatus:  status,
		EscrowStatus: domain.EscrowStatusPending,
		CreatedAt:    createdAt,
	})
	require.NoError(t, err)
}

func TestWithTx_CommitsStagedWrites(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.OrderStatusPendingPayment, baseTime)

	err := s.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.GetOrderForUpdate(txCtx, "o-1")
		require.NoError(t, err)

		o.OrderStatus = domain.OrderStatusPaid
		require.NoError(t, s.UpdateOrder(txCtx, o))
		require.NoError(t, s.AppendEvent(txCtx, domain.OutboxEvent{ID: "ev-1", OrderID: "o-1", Kind: domain.EventOrderPaid}))

		// Not visible outside the transaction yet.
		outside, err := s.GetOrder(ctx, "o-1")
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusPendingPayment, outside.OrderStatus)
		return nil
	})
	require.NoError(t, err)

	o, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, o.OrderStatus)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderPaid, pending[0].Kind)
}

func TestWithTx_ErrorDiscardsWrites(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.OrderStatusPendingPayment, baseTime)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.GetOrderForUpdate(txCtx, "o-1")
		require.NoError(t, err)

		o.OrderStatus = domain.OrderStatusPaid
		require.NoError(t, s.UpdateOrder(txCtx, o))
		require.NoError(t, s.AppendEvent(txCtx, domain.OutboxEvent{ID: "ev-1", OrderID: "o-1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	o, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPendingPayment, o.OrderStatus)

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGetOrderForUpdate_BusyWhileLocked(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.OrderStatusPendingPayment, baseTime)

	locked := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.GetOrderForUpdate(txCtx, "o-1"); err != nil {
				return err
			}
			close(locked)
			<-proceed
			return nil
		})
	}()

	<-locked
	err := s.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.GetOrderForUpdate(txCtx, "o-1")
		return err
	})
	require.ErrorIs(t, err, domain.ErrBusy)

	close(proceed)
	require.NoError(t, <-done)

	// Lock released after commit; next transaction proceeds.
	err = s.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.GetOrderForUpdate(txCtx, "o-1")
		return err
	})
	require.NoError(t, err)
}

func TestGetOrderForUpdate_RequiresTransaction(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.GetOrderForUpdate(context.Background(), "o-1")
	require.Error(t, err)
}

func TestGetOrderForUpdate_NotFound(t *testing.T) {
	t.Parallel()

	s := NewStore()
	err := s.WithTx(context.Background(), func(txCtx context.Context) error {
		_, err := s.GetOrderForUpdate(txCtx, "missing")
		return err
	})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListOrders_FiltersAndSorts(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	seedOrder(t, s, "o-old", domain.OrderStatusPendingPayment, baseTime)
	seedOrder(t, s, "o-new", domain.OrderStatusPendingPayment, baseTime.Add(time.Hour))
	require.NoError(t, s.CreateOrder(ctx, domain.Order{
		ID: "o-other", BuyerID: "buyer-2", ChannelID: "chan-2",
		OrderStatus: domain.OrderStatusPaid, CreatedAt: baseTime,
	}))

	byBuyer, err := s.ListOrdersByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, byBuyer, 2)
	require.Equal(t, "o-new", byBuyer[0].ID)
	require.Equal(t, "o-old", byBuyer[1].ID)

	byChannel, err := s.ListOrdersByChannel(ctx, "chan-2")
	require.NoError(t, err)
	require.Len(t, byChannel, 1)
	require.Equal(t, "o-other", byChannel[0].ID)
}

func TestListUnpaidBefore(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	cutoff := baseTime.Add(30 * time.Minute)

	seedOrder(t, s, "o-stale-1", domain.OrderStatusPendingPayment, baseTime)
	seedOrder(t, s, "o-stale-2", domain.OrderStatusPendingPayment, baseTime.Add(time.Minute))
	seedOrder(t, s, "o-fresh", domain.OrderStatusPendingPayment, baseTime.Add(time.Hour))
	seedOrder(t, s, "o-paid", domain.OrderStatusPaid, baseTime)

	ids, err := s.ListUnpaidBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"o-stale-1", "o-stale-2"}, ids)

	capped, err := s.ListUnpaidBefore(ctx, cutoff, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"o-stale-1"}, capped)
}

func TestOutbox_MarkDispatchedAndFailures(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, domain.OutboxEvent{ID: "ev-1", Kind: domain.EventOrderPaid}))
	require.NoError(t, s.AppendEvent(ctx, domain.OutboxEvent{ID: "ev-2", Kind: domain.EventOrderRefunded}))

	pending, err := s.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "ev-1", pending[0].ID)

	require.NoError(t, s.RecordFailure(ctx, "ev-1"))
	require.NoError(t, s.MarkDispatched(ctx, "ev-1", baseTime))

	pending, err = s.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "ev-2", pending[0].ID)

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Error(t, s.MarkDispatched(ctx, "missing", baseTime))
}

func TestChannels_UniqueTelegramID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	ch := domain.Channel{ID: "c-1", TelegramID: 42, Title: "Tech Daily", Pricing: map[string]int64{"post": 100}, CreatedAt: baseTime}
	require.NoError(t, s.CreateChannel(ctx, ch))

	dup := domain.Channel{ID: "c-2", TelegramID: 42, Title: "Copycat", CreatedAt: baseTime}
	require.ErrorIs(t, s.CreateChannel(ctx, dup), domain.ErrChannelExists)

	got, err := s.GetChannel(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, "Tech Daily", got.Title)

	// Mutating the returned pricing map must not leak into the store.
	got.Pricing["post"] = 999
	again, err := s.GetChannel(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), again.Pricing["post"])
}

func TestChannels_ListByStatus(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateChannel(ctx, domain.Channel{ID: "c-1", TelegramID: 1, Status: domain.ChannelStatusActive, CreatedAt: baseTime}))
	require.NoError(t, s.CreateChannel(ctx, domain.Channel{ID: "c-2", TelegramID: 2, Status: domain.ChannelStatusPending, CreatedAt: baseTime.Add(time.Minute)}))

	active, err := s.ListChannels(ctx, domain.ChannelStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "c-1", active[0].ID)

	all, err := s.ListChannels(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "c-2", all[0].ID)

	n, err := s.CountChannels(ctx, domain.ChannelStatusActive)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestInsertCredit_IdempotentPerOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	credit := domain.EarningsCredit{OrderID: "o-1", ChannelID: "c-1", Amount: 8000, CreditedAt: baseTime}
	require.NoError(t, s.InsertCredit(ctx, credit))

	replay := credit
	replay.Amount = 9999
	require.NoError(t, s.InsertCredit(ctx, replay))

	total, err := s.SumEarnings(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, int64(8000), total)
}

func TestCountOrders(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	seedOrder(t, s, "o-1", domain.OrderStatusPendingPayment, baseTime)
	seedOrder(t, s, "o-2", domain.OrderStatusCompleted, baseTime)
	seedOrder(t, s, "o-3", domain.OrderStatusRefunded, baseTime)

	total, err := s.CountOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	active, err := s.CountActiveOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, active)
}
