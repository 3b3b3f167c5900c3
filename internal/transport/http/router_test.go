package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/app"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/delivery"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/earnings"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/escrow"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/notify"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/outbox"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/storage/memory"
)

// marketplace is a full stack on the in-memory store: router, services
// and an outbox dispatcher drained by hand.
type marketplace struct {
	handler    http.Handler
	dispatcher *outbox.Dispatcher
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()

	clk := clock.NewSystem()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	channelSvc := app.NewChannelService(store, app.AllowAllVerifier{}, clk, logger)
	orderSvc := app.NewOrderService(store, store, clk)
	lifecycleSvc := app.NewLifecycleService(store, escrow.NewLedger(clk), delivery.NewTracker(clk), clk, logger)
	earningsSvc := earnings.NewService(store, clk, logger)

	sink := outbox.Fanout(
		earningsSvc,
		notify.NewSink(store, notify.NewLogNotifier(logger), logger),
	)
	dispatcher := outbox.NewDispatcher(store, sink, clk, logger)

	handler := NewRouter(RouterConfig{
		Channels:     channelSvc,
		Earnings:     earningsSvc,
		Orders:       orderSvc,
		Lifecycle:    lifecycleSvc,
		OrderStats:   store,
		ChannelStats: store,
		OutboxStats:  store,
	})

	return &marketplace{handler: handler, dispatcher: dispatcher}
}

func (m *marketplace) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRouterOrderFlow(t *testing.T) {
	m := newMarketplace(t)

	rec := m.do(t, http.MethodPost, "/channels",
		`{"owner_id":"9001","telegram_id":-1001234,"title":"Tech Daily","pricing":{"post":100,"pinned":250}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create channel: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ch channelResponse
	decodeInto(t, rec, &ch)

	rec = m.do(t, http.MethodPost, "/channels/"+ch.ID+"/verify", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify channel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = m.do(t, http.MethodPost, "/orders",
		`{"buyer_id":"1337","channel_id":"`+ch.ID+`","ad_format":"post","price":100,"discount":20}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var o orderResponse
	decodeInto(t, rec, &o)
	if o.FinalPrice != 80 {
		t.Fatalf("expected final price 80, got %d", o.FinalPrice)
	}

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/pay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = m.do(t, http.MethodGet, "/orders/"+o.ID+"/escrow", "")
	var es escrowResponse
	decodeInto(t, rec, &es)
	if es.Status != "held" || es.Amount == nil || *es.Amount != 80 {
		t.Fatalf("expected 80 held in escrow, got %+v", es)
	}

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/creative", `{"content":"Buy our widgets"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit creative: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/creative/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var posted orderResponse
	decodeInto(t, rec, &posted)
	if posted.OrderStatus != "posted" || posted.PostURL == "" {
		t.Fatalf("expected posted order with url, got %+v", posted)
	}

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/delivery/confirm", `{"confirmed_by":"1337"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm delivery: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/release", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var done orderResponse
	decodeInto(t, rec, &done)
	if done.OrderStatus != "completed" || done.EscrowStatus != "released" {
		t.Fatalf("expected completed/released, got %s/%s", done.OrderStatus, done.EscrowStatus)
	}

	if err := m.dispatcher.Drain(context.Background()); err != nil {
		t.Fatalf("drain outbox: %v", err)
	}

	rec = m.do(t, http.MethodGet, "/channels/"+ch.ID+"/earnings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("earnings: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":80`) {
		t.Fatalf("expected credited earnings, got %q", rec.Body.String())
	}

	rec = m.do(t, http.MethodGet, "/stats", "")
	var stats statsResponse
	decodeInto(t, rec, &stats)
	if stats.OrdersTotal != 1 || stats.OrdersActive != 0 || stats.ChannelsTotal != 1 || stats.OutboxPending != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRouterRefundFlow(t *testing.T) {
	m := newMarketplace(t)

	rec := m.do(t, http.MethodPost, "/channels",
		`{"owner_id":"9001","telegram_id":-1005678,"title":"Crypto News","pricing":{"post":100}}`)
	var ch channelResponse
	decodeInto(t, rec, &ch)
	m.do(t, http.MethodPost, "/channels/"+ch.ID+"/verify", "")

	rec = m.do(t, http.MethodPost, "/orders",
		`{"buyer_id":"1337","channel_id":"`+ch.ID+`","ad_format":"post","price":100}`)
	var o orderResponse
	decodeInto(t, rec, &o)

	m.do(t, http.MethodPost, "/orders/"+o.ID+"/pay", "")

	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/refund", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Retrying the refund succeeds without changing anything.
	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/refund", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat refund: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var again orderResponse
	decodeInto(t, rec, &again)
	if again.OrderStatus != "refunded" || again.EscrowStatus != "refunded" {
		t.Fatalf("expected refunded order, got %s/%s", again.OrderStatus, again.EscrowStatus)
	}

	// Refunded is final; no release can follow.
	rec = m.do(t, http.MethodPost, "/orders/"+o.ID+"/release", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("release after refund: expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), codeOrderTerminal) {
		t.Fatalf("expected code %s, got %q", codeOrderTerminal, rec.Body.String())
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	m := newMarketplace(t)

	rec := m.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	decodeInto(t, rec, &resp)
	if resp.Code != codeNotFound {
		t.Fatalf("expected code %s, got %s", codeNotFound, resp.Code)
	}

	rec = m.do(t, http.MethodDelete, "/orders", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
