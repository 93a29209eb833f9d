package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/bot"
	"courtbook/internal/clock"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/google"
	"courtbook/internal/health"
	"courtbook/internal/ledger"
	"courtbook/internal/metrics"
	"courtbook/internal/mq"
	"courtbook/internal/report"
	"courtbook/internal/repository"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		bootLogger := newLogger(config.LoggingConfig{Level: "info"})
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Logging)

	loc, _ := cfg.Location()
	closed, _ := cfg.ClosedWeekday()
	clk := clock.NewSystem(loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, snapshot, err := openStore(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("open ledger store")
	}
	defer store.Close()

	notifier := telegramNotifier(cfg, &logger)

	bus := events.NewEventBus(cfg.Events.QueueSize, &logger)
	closers := wireSubscribers(ctx, cfg, bus, notifier, &logger)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	l := ledger.New(store, clk,
		ledger.WithWindowDays(cfg.Ledger.WindowDays),
		ledger.WithClosedWeekday(closed),
		ledger.WithDefaultCustomerName(cfg.Ledger.DefaultCustomerName),
		ledger.WithEventPublisher(bus),
		ledger.WithLogger(&logger),
	)

	// Materialize the window so bookings work before the first listing.
	if _, err := l.ListSlots(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial slot regeneration failed")
	}

	busDone := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(busDone)
	}()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Monitoring.GRPCHealthPort > 0 {
		checker := health.NewChecker(store, cfg.HealthCheckInterval(), &logger)
		go func() {
			if err := health.Serve(ctx, cfg.Monitoring.GRPCHealthPort, checker, &logger); err != nil {
				logger.Error().Err(err).Msg("gRPC health server error")
			}
		}()
	}

	if snapshot != nil {
		ext := ".json"
		if cfg.Storage.Backend == config.BackendSQLite {
			ext = ".db"
		}
		backups := database.NewBackupService(snapshot, ext, cfg.Backup, &logger)
		if err := backups.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("backup service not started")
		}
	}

	var reportNotifier report.Notifier
	if notifier != nil {
		reportNotifier = notifier
	}
	reports := report.NewService(l, clk, cfg.Report, reportNotifier, &logger)
	if err := reports.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("report service not started")
	}

	server := api.NewHTTPServer(cfg, l, store, &logger)
	server.Start()

	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Int("window_days", cfg.Ledger.WindowDays).
		Str("closed", closed.String()).
		Msg("courtbook started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	select {
	case <-busDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("event queue not drained before shutdown deadline")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openStore builds the configured backend, wrapped with a Redis replica when
// enabled. The snapshotter is nil for backends without a local file.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (database.Store, database.Snapshotter, error) {
	var (
		primary  database.Store
		snapshot database.Snapshotter
	)

	switch cfg.Storage.Backend {
	case config.BackendFile:
		fs, err := database.NewFileStore(cfg.Storage.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}
		primary, snapshot = fs, fs
	case config.BackendSQLite:
		ss, err := database.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		primary, snapshot = ss, ss
	case config.BackendRedis:
		rdb := newRedisClient(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		primary = database.NewRedisStore(rdb, cfg.Redis.Key, logger)
	case config.BackendPostgres:
		ps, err := database.NewPostgresStore(ctx, cfg.Storage.PostgresURL, logger)
		if err != nil {
			return nil, nil, err
		}
		primary = ps
	case config.BackendMemory:
		primary = database.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if !cfg.Storage.Replica.Enabled || cfg.Storage.Backend == config.BackendRedis {
		return primary, snapshot, nil
	}

	replica := database.NewRedisStore(newRedisClient(cfg.Redis), cfg.Redis.Key, logger)
	logger.Info().Str("redis", cfg.Redis.Address).Msg("Ledger replica enabled")
	return repository.NewReplicatedStore(primary, replica, cfg.ReplicaRecheck(), logger), snapshot, nil
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB})
}

func telegramNotifier(cfg *config.Config, logger *zerolog.Logger) *bot.Notifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	n, err := bot.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Debug, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Telegram notifier disabled")
		return nil
	}
	return n
}

// wireSubscribers attaches the optional booking consumers to the bus and
// returns what must be closed on shutdown.
func wireSubscribers(ctx context.Context, cfg *config.Config, bus *events.EventBus, notifier *bot.Notifier, logger *zerolog.Logger) []io.Closer {
	var closers []io.Closer

	if notifier != nil {
		bus.Subscribe(events.SlotBooked, notifier.HandleSlotBooked)
	}

	if cfg.Google.Enabled {
		sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Google Sheets mirror disabled")
		} else {
			if err := sheets.EnsureHeader(ctx); err != nil {
				logger.Warn().Err(err).Msg("Could not prepare booking sheet header")
			}
			bus.Subscribe(events.SlotBooked, sheets.HandleSlotBooked)
		}
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Error().Err(err).Msg("RabbitMQ forwarding disabled")
		} else {
			bus.Subscribe(events.SlotBooked, pub.HandleEvent)
			closers = append(closers, pub)
		}
	}

	return closers
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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
