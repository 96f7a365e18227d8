package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/config"
	"github.com/kiosko-dev/backend-kiosko/internal/lock"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
	"github.com/kiosko-dev/backend-kiosko/internal/order"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

const taskReapOrders = "order:reap"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "reaper").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	reaper := &order.Reaper{
		DB:  order.PoolDB{Pool: pool, Q: store.New(pool)},
		TTL: cfg.PaymentTTL,
		Log: logger,
	}
	locker := lock.Locker{R: redisClient}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskReapOrders, func(taskCtx context.Context, _ *asynq.Task) error {
		err := locker.TryWithLock(taskCtx, "lock:order-reap", cfg.ReapInterval, func(lockCtx context.Context) error {
			_, err := reaper.Run(lockCtx)
			return err
		})
		if errors.Is(err, lock.ErrNotAcquired) {
			// another instance holds the tick
			return nil
		}
		return err
	})

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", cfg.ReapInterval),
		asynq.NewTask(taskReapOrders, nil),
	); err != nil {
		logger.Fatal().Err(err).Msg("register reap schedule")
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		srv.Shutdown()
	}()

	logger.Info().Dur("interval", cfg.ReapInterval).Msg("reaper starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("reaper stopped with error")
	}
	logger.Info().Msg("reaper shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "kiosko-reaper"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
