package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"frontdesk/internal/api"
	"frontdesk/internal/attendance"
	"frontdesk/internal/clinic"
	"frontdesk/internal/clock"
	"frontdesk/internal/config"
	"frontdesk/internal/database"
	"frontdesk/internal/events"
	"frontdesk/internal/metrics"
	"frontdesk/internal/rollover"
	"frontdesk/internal/store"
	"frontdesk/internal/token"
	"frontdesk/internal/visit"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := os.Getenv("FRONTDESK_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = newRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis config error")
		}
		defer rdb.Close()
	}

	st, db, err := openStore(ctx, cfg, rdb, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open store error")
	}
	if db != nil {
		defer db.Close()
	}

	hub := events.NewHub(logger)
	defer hub.Close()
	var publisher events.Publisher = hub
	if cfg.Notify.RedisBridge {
		bridge := events.NewRedisBridge(hub, rdb, cfg.Notify.ChannelPrefix, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("start redis bridge")
		}
		publisher = bridge
	}

	directory := clinic.NewDirectory(clock.System{}, len(cfg.Clinics) > 0)
	if err := directory.Update(cfg.Clinics); err != nil {
		logger.Warn().Err(err).Msg("some clinics were skipped")
	}
	err = config.Watch(ctx, configPath, 30*time.Second, logger, func(next *config.Config) {
		if err := directory.Update(next.Clinics); err != nil {
			logger.Warn().Err(err).Msg("some clinics were skipped")
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	issuer := token.NewIssuer(st, cfg.Store.MaxRetries, logger)
	visits := visit.NewService(st, issuer, publisher, cfg.Store.MaxRetries, logger)
	tracker := attendance.NewTracker(st, publisher, cfg.Attendance.WindowDays, cfg.Store.MaxRetries, logger)

	watcher := rollover.NewWatcher(directory, publisher, clock.System{}, cfg.RolloverInterval(), logger)
	go watcher.Start(ctx)

	if db != nil {
		backups := database.NewBackupService(db, cfg.Backup, cfg.BackupInterval(), &logger)
		go backups.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	pinger, _ := st.(store.Pinger)
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, pinger, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(cfg.Server, api.Deps{
		Tokens:     issuer,
		Visits:     visits,
		Attendance: tracker,
		Clinics:    directory,
		Events:     hub,
	}, logger)

	logger.Info().
		Str("store", cfg.Store.Driver).
		Int("clinics", len(cfg.Clinics)).
		Bool("redis_bridge", cfg.Notify.RedisBridge).
		Msg("front desk started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("front desk stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}), nil
}

// openStore returns the configured record store. db is set for the SQL
// drivers so the caller can close it and run backups.
func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (store.Store, *database.DB, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("memory store: records are lost on restart")
		return store.NewMemory(), nil, nil
	case config.DriverSQLite:
		db, err := database.NewDB(cfg.Database.Path, logger)
		return db, db, err
	case config.DriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database.DSN, logger)
		return db, db, err
	case config.DriverRedis:
		rs := store.NewRedisStore(rdb, cfg.Redis.KeyPrefix, *logger)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, nil, err
		}
		return rs, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func startHealthServer(ctx context.Context, port int, pinger store.Pinger, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if pinger != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := pinger.Ping(ctxPing); err != nil {
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
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
