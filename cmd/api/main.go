package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storepay/internal/config"
	"storepay/internal/core/reconcile"
	httpx "storepay/internal/http"
	"storepay/internal/provider/paypack"
	"storepay/internal/services/order"
	"storepay/internal/services/payment"
	"storepay/internal/store/memory"
	"storepay/internal/store/postgres"
	"storepay/internal/store/repositories"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checks []func(context.Context) error

	// Payment records: Postgres when configured, memory otherwise
	var payments repositories.PaymentRepository
	if cfg.DB.DSN != "" {
		pool := postgres.MustOpen(ctx, cfg.DB.DSN)
		defer pool.Close()
		repo := postgres.NewRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("db schema failed")
		}
		payments = postgres.NewPaymentRepository(repo)
		checks = append(checks, repo.Ping)
	} else {
		log.Warn().Msg("DB_DSN not set, payment records are kept in memory")
		payments = memory.NewPaymentRepository()
	}

	// Credential session: shared through Redis when configured
	var tokens paypack.TokenStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the session manager falls back to acquiring per call while Redis is away
			log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis ping failed")
		}
		tokens = paypack.NewRedisTokenStore(rdb)
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	gateway, _ := paypack.New(cfg, tokens)
	poller := reconcile.NewPoller(gateway, cfg.Poll.Interval, cfg.Poll.MaxAttempts)
	paymentService := payment.NewService(gateway, payments, poller)

	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:         cfg,
		PaymentService: paymentService,
		OrderService:   order.NewService(),
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Str("provider", gateway.Name()).
			Dur("poll_interval", cfg.Poll.Interval).
			Int("poll_max_attempts", cfg.Poll.MaxAttempts).
			Msgf("storepay API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if err := paymentService.Shutdown(ctx2); err != nil {
		log.Warn().Err(err).Int("watching", paymentService.Watching()).Msg("pollers did not stop in time")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg config.Cfg) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.DefaultContextLogger = &log.Logger
}
