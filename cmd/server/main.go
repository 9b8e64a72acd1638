package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calbook/internal/api"
	"calbook/internal/config"
	"calbook/internal/database"
	"calbook/internal/domain"
	"calbook/internal/events"
	"calbook/internal/export"
	"calbook/internal/logging"
	"calbook/internal/metrics"
	"calbook/internal/notify"
	"calbook/internal/repository"
	"calbook/internal/service"
	"calbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, cacheClose := initSlotCache(cfg, &logger)
	if cacheClose != nil {
		defer cacheClose()
	}

	notifyWorker := initNotifyWorker(ctx, cfg, &logger)

	var queue service.NotifyQueue
	if notifyWorker != nil {
		queue = notifyWorker
	}

	bus := events.NewEventBus()
	bookings := service.NewBookingService(db, cache, bus, queue, cfg.Booking.MaxAdvanceDays, &logger)
	types := service.NewEventTypeService(db, cache, cfg.Host.Name, &logger)
	schedules := service.NewScheduleService(db, cache, &logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	server := api.NewServer(cfg.API, bookings, types, schedules, exporter, &logger)

	startMetrics(ctx, cfg, &logger)

	return serve(ctx, server, notifyWorker, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server").Logger()

	return cfg, logger, closer, nil
}

// initSlotCache always returns a usable cache: redis fronted by an
// in-memory fallback when configured and reachable, plain memory
// otherwise.
func initSlotCache(cfg *config.Config, logger *zerolog.Logger) (domain.SlotCache, func()) {
	ttl := time.Duration(cfg.Redis.CacheTTL) * time.Second
	memory := repository.NewMemorySlotCache(ttl)

	if !cfg.Redis.Enabled {
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with memory cache")
		return memory, nil
	}
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	primary := repository.NewRedisSlotCache(client, ttl)
	failover := repository.NewFailoverSlotCache(primary, memory, logger)
	return failover, func() { _ = repository.Close(client) }
}

// initNotifyWorker starts the mail worker, or returns nil when SMTP is
// off and bookings should proceed silently.
func initNotifyWorker(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *worker.NotifyWorker {
	if !cfg.SMTP.Enabled {
		logger.Info().Msg("smtp disabled, booking notifications are off")
		return nil
	}

	mailer := notify.NewMailer(cfg.SMTP, cfg.Host.Name, logger)
	retry := worker.RetryPolicy{MaxRetries: cfg.Booking.NotifyMaxRetries}
	w := worker.NewNotifyWorker(mailer, retry, cfg.Booking.NotifyQueueSize, logger)
	w.Start(ctx)
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, server *api.Server, notifyWorker *worker.NotifyWorker, logger *zerolog.Logger) error {
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	// Drain in-flight notifications before exiting.
	if notifyWorker != nil {
		notifyWorker.Wait()
	}

	logger.Info().Msg("server stopped")
	return nil
}
