package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gigbook/internal/api"
	"gigbook/internal/auth"
	"gigbook/internal/backup"
	"gigbook/internal/booking"
	"gigbook/internal/cache"
	"gigbook/internal/config"
	"gigbook/internal/events"
	"gigbook/internal/gigs"
	"gigbook/internal/lineup"
	"gigbook/internal/metrics"
	"gigbook/internal/notify"
	"gigbook/internal/profile"
	"gigbook/internal/store"
	mongostore "gigbook/internal/store/mongo"
	"gigbook/internal/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapshotter backup.Snapshotter
	handle := store.NewHandle(func(ctx context.Context) (store.Store, error) {
		switch cfg.Database.Backend {
		case "sqlite":
			s, err := sqlite.Open(ctx, cfg.Database.Path, logger)
			if err != nil {
				return nil, err
			}
			snapshotter = s
			return s, nil
		case "mongo":
			s, err := mongostore.Open(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		default:
			return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
		}
	})
	if _, err := handle.Get(ctx); err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Database.Backend).Msg("open store error")
	}
	defer handle.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	st := cache.New(handle, rdb, cfg.CacheTTL(), logger)

	templates := config.NewSpotTemplates()
	if err := config.WatchSpotTemplates(ctx, cfg.Spots.TemplatesPath, cfg.SpotsWatchInterval(), templates.Set); err != nil {
		logger.Warn().Err(err).Msg("spot templates unavailable, gigs need inline spots")
	}

	bus := events.NewEventBus()
	lineups := lineup.NewManager(st, bus, nil, logger)
	bookings := booking.NewService(st, lineups, bus, logger)

	notifier := notify.NewService(st,
		notify.NewResendClient(cfg.Notify.ResendAPIKey, cfg.NotifyRate()),
		notify.Options{From: cfg.Notify.From, SiteURL: cfg.Notify.SiteURL},
		logger)
	notifier.Subscribe(bus, cfg.Notify.Auto)
	if cfg.Notify.ResendAPIKey == "" {
		logger.Warn().Msg("notify.resend_api_key is empty, emails are disabled")
	}

	secret := []byte(cfg.Auth.JWTSecret)
	deps := api.Deps{
		Auth: auth.NewAuthenticator(auth.Credentials{
			Email:        cfg.Auth.AdminEmail,
			PasswordHash: cfg.Auth.PasswordHash,
			Password:     cfg.Auth.Password,
			Salt:         cfg.Auth.Salt,
			Secret:       secret,
			AllowHash:    cfg.Auth.AllowHashEndpoint,
		}, nil, logger),
		Gate:        auth.NewGate(secret, auth.ParseAllowList(cfg.AdminList()), nil),
		Bookings:    bookings,
		Lineup:      lineups,
		Gigs:        gigs.NewService(st, templates, bus, nil, logger),
		Profiles:    profile.NewService(st, nil, logger),
		Notify:      notifier,
		CORSOrigins: cfg.Server.CORSOrigins,
		LoginRate:   cfg.LoginRate(),
	}
	if cfg.Identity.JWTSecret != "" {
		deps.Identity = auth.NewIdentityVerifier([]byte(cfg.Identity.JWTSecret))
	} else {
		logger.Warn().Msg("identity.jwt_secret is empty, only admin tokens are accepted")
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, st, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if snapshotter != nil {
		backups := backup.NewService(snapshotter, backup.Config{
			Enabled:   cfg.Backup.Enabled,
			Dir:       cfg.Backup.Path,
			Interval:  cfg.BackupInterval(),
			Retention: cfg.BackupRetention(),
		}, logger)
		go backups.Start(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewServer(deps, logger).Handler(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("backend", cfg.Database.Backend).Msg("gigbook started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("gigbook stopped")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func startHealthServer(ctx context.Context, port int, st pinger, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := st.Ping(ctxPing); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
