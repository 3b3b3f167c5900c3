// Package http is the REST surface of the marketplace: channel
// catalog, order placement and every lifecycle transition. Handlers
// depend on small consumer-side interfaces so tests can plug in fakes
// per endpoint.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/metrics"
)

// RouterConfig carries the services and middleware dependencies of the
// HTTP surface. Logger, Metrics, MetricsPage and CORSOrigins are
// optional; everything else must be set.
type RouterConfig struct {
	Channels  ChannelDirectory
	Earnings  EarningsReader
	Orders    OrderDirectory
	Lifecycle OrderLifecycle

	OrderStats   OrderCounter
	ChannelStats ChannelCounter
	OutboxStats  PendingEventCounter

	Logger      *slog.Logger
	Metrics     *metrics.Set
	MetricsPage http.Handler
	CORSOrigins []string
}

// NewRouter wires all marketplace endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(RequestMetrics(cfg.Metrics))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())

	r.Get("/health", HealthHandler)
	r.Get("/stats", HandleStats(cfg.OrderStats, cfg.ChannelStats, cfg.OutboxStats))
	if cfg.MetricsPage != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsPage)
	}

	r.Route("/channels", func(r chi.Router) {
		r.Post("/", HandleCreateChannel(cfg.Channels))
		r.Get("/", HandleListChannels(cfg.Channels))
		r.Get("/{id}", HandleGetChannel(cfg.Channels))
		r.Post("/{id}/verify", HandleVerifyChannel(cfg.Channels))
		r.Get("/{id}/earnings", HandleChannelEarnings(cfg.Earnings))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", HandleCreateOrder(cfg.Orders))
		r.Get("/", HandleListOrders(cfg.Orders))
		r.Get("/{id}", HandleGetOrder(cfg.Orders))
		r.Get("/{id}/escrow", HandleEscrowStatus(cfg.Orders))

		r.Post("/{id}/pay", HandlePayOrder(cfg.Lifecycle))
		r.Post("/{id}/creative", HandleSubmitCreative(cfg.Lifecycle))
		r.Post("/{id}/creative/approve", HandleApproveCreative(cfg.Lifecycle))
		r.Post("/{id}/creative/reject", HandleRejectCreative(cfg.Lifecycle))
		r.Post("/{id}/delivery/confirm", HandleConfirmDelivery(cfg.Lifecycle))
		r.Post("/{id}/release", HandleReleaseFunds(cfg.Lifecycle))
		r.Post("/{id}/refund", HandleRefundOrder(cfg.Lifecycle))
	})

	return r
}
