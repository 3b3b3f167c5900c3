package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/app"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/delivery"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/earnings"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/escrow"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/metrics"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/notify"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/outbox"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/storage/memory"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/storage/postgres"
	transporthttp "github.com/macbere/Telegram-Ads-marketplace-App/internal/transport/http"
	"github.com/macbere/Telegram-Ads-marketplace-App/migrations"
)

const (
	defaultPort        = "8080"
	defaultCORSOrigins = "http://localhost:5173,http://127.0.0.1:5173"
	shutdownTimeout    = 10 * time.Second
)

// backends groups the storage interfaces the services consume. Both
// the postgres repositories and the in-memory store satisfy them, so
// everything past this struct is backend-agnostic.
type backends struct {
	orders    app.OrderRepository
	channels  app.ChannelRepository
	lifecycle app.LifecycleRepository
	stale     app.StaleOrderSource
	events    outbox.EventSource
	credits   earnings.CreditStore
	catalog   notify.ChannelReader

	orderStats   transporthttp.OrderCounter
	channelStats transporthttp.ChannelCounter
	outboxStats  transporthttp.PendingEventCounter
}

func postgresBackends(pool *pgxpool.Pool) backends {
	orders := postgres.NewOrderRepository(pool)
	channels := postgres.NewChannelRepository(pool)
	events := postgres.NewOutboxRepository(pool)
	credits := postgres.NewEarningsRepository(pool)
	return backends{
		orders:       orders,
		channels:     channels,
		lifecycle:    orders,
		stale:        orders,
		events:       events,
		credits:      credits,
		catalog:      channels,
		orderStats:   orders,
		channelStats: channels,
		outboxStats:  events,
	}
}

func memoryBackends() backends {
	store := memory.NewStore()
	return backends{
		orders:       store,
		channels:     store,
		lifecycle:    store,
		stale:        store,
		events:       store,
		credits:      store,
		catalog:      store,
		orderStats:   store,
		channelStats: store,
		outboxStats:  store,
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	loadEnvFile(logger)

	port := getEnv("PORT", defaultPort)
	corsOrigins := parseCSV(getEnv("CORS_ORIGINS", defaultCORSOrigins))
	paymentTTL := getDuration(logger, "UNPAID_ORDER_TTL", 24*time.Hour)
	sweepSchedule := getEnv("SWEEP_SCHEDULE", "@every 10m")
	outboxInterval := getDuration(logger, "OUTBOX_POLL_INTERVAL", 2*time.Second)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var store backends
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(startupCtx, dbURL)
		if err != nil {
			fatal(logger, "connect to db", err)
		}
		defer pool.Close()

		if err := pool.Ping(startupCtx); err != nil {
			fatal(logger, "db ping", err)
		}
		if err := migrations.Apply(startupCtx, pool); err != nil {
			fatal(logger, "apply migrations", err)
		}
		store = postgresBackends(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage; data is lost on restart")
		store = memoryBackends()
	}

	var (
		verifier app.AdminVerifier = app.AllowAllVerifier{}
		notifier notify.Notifier   = notify.NewLogNotifier(logger)
	)
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		client := notify.NewClient(token, os.Getenv("TELEGRAM_API_URL"))
		verifier = notify.NewTelegramVerifier(client)
		notifier = notify.NewTelegramNotifier(client)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, channel checks auto-approve and notifications go to the log")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clk := clock.NewSystem()

	channelSvc := app.NewChannelService(store.channels, verifier, clk, logger)
	orderSvc := app.NewOrderService(store.orders, store.channels, clk)
	lifecycleSvc := app.NewLifecycleService(
		store.lifecycle,
		escrow.NewLedger(clk),
		delivery.NewTracker(clk),
		clk,
		logger,
		app.WithMetrics(m),
	)
	earningsSvc := earnings.NewService(store.credits, clk, logger)

	dispatcher := outbox.NewDispatcher(
		store.events,
		outbox.Fanout(
			earningsSvc,
			notify.NewSink(store.catalog, notifier, logger),
		),
		clk,
		logger,
		outbox.WithPollInterval(outboxInterval),
		outbox.WithMetrics(m),
	)

	sweeper := app.NewSweeper(store.stale, lifecycleSvc, clk, logger,
		app.WithPaymentTTL(paymentTTL),
		app.WithSchedule(sweepSchedule),
	)

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Channels:     channelSvc,
		Earnings:     earningsSvc,
		Orders:       orderSvc,
		Lifecycle:    lifecycleSvc,
		OrderStats:   store.orderStats,
		ChannelStats: store.channelStats,
		OutboxStats:  store.outboxStats,
		Logger:       logger,
		Metrics:      m,
		MetricsPage:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigins:  corsOrigins,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(); err != nil {
		fatal(logger, "start sweeper", err)
	}
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("api listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(logger *slog.Logger, key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid duration, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return d
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func loadEnvFile(logger *slog.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Warn("failed to locate .env", "error", err)
		return
	}
	if path == "" {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open env file", "path", path, "error", err)
		return
	}
	if err := parseEnvFile(logger, file); err != nil {
		logger.Warn("failed to load env file", "path", path, "error", err)
	} else {
		logger.Info("loaded env file", "path", path)
	}
	_ = file.Close()
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *slog.Logger, file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		value = trimQuotes(value)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Warn("failed to set env var from file", "key", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
