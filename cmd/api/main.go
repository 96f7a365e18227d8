package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/auth"
	"github.com/kiosko-dev/backend-kiosko/internal/cart"
	"github.com/kiosko-dev/backend-kiosko/internal/common"
	"github.com/kiosko-dev/backend-kiosko/internal/config"
	"github.com/kiosko-dev/backend-kiosko/internal/currency"
	"github.com/kiosko-dev/backend-kiosko/internal/events"
	"github.com/kiosko-dev/backend-kiosko/internal/health"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
	"github.com/kiosko-dev/backend-kiosko/internal/order"
	"github.com/kiosko-dev/backend-kiosko/internal/payment"
	"github.com/kiosko-dev/backend-kiosko/internal/promo"
	"github.com/kiosko-dev/backend-kiosko/internal/ratelimit"
	"github.com/kiosko-dev/backend-kiosko/internal/resilience"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.MetricsNamespace, nil)

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kiosko-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()
	queries := store.New(pool)

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	validate := validator.New()

	rates := &currency.Cache{
		TTL: cfg.RatesTTL,
		Source: &currency.HTTPProvider{
			URL: cfg.RatesURL,
			Client: &resilience.HTTPClient{
				Client:      &http.Client{Timeout: 10 * time.Second},
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("exchange-rates").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
				Target:      "exchange-rates",
				Logger:      &logger,
			},
		},
	}
	engine := &currency.Engine{
		Multipliers: cfg.CurrencyMultipliers,
		Base:        cfg.CurrencyBase,
		Rates:       rates,
	}

	promoSvc := &promo.Service{Q: queries, Currency: engine}
	promoHandler := &promo.Handler{Svc: promoSvc, Validate: validate}

	cartSvc := &cart.Service{Q: queries, Currency: engine, Promo: promoSvc}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	orderSvc := &order.Service{
		Q:          queries,
		DB:         order.PoolDB{Pool: pool, Q: queries},
		Cart:       cartSvc,
		Log:        logger,
		MaxPending: cfg.OrderMaxPending,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Validate: validate}

	var gateway payment.Gateway
	if cfg.GatewayBaseURL != "" {
		gateway = &payment.HTTPGateway{
			BaseURL:   cfg.GatewayBaseURL,
			SecretKey: cfg.GatewaySecretKey,
			Client: &resilience.HTTPClient{
				Client:      &http.Client{Timeout: 15 * time.Second},
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("payment-gateway").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
				Target:      "payment-gateway",
				Logger:      &logger,
			},
		}
	} else {
		logger.Warn().Msg("gateway base url not set, using mock gateway")
		gateway = payment.NewMockGateway()
	}
	paymentSvc := &payment.Service{
		Q:          queries,
		DB:         payment.PoolDB{Pool: pool, Q: queries},
		Gateway:    gateway,
		Bus:        &events.Bus{S: queries, Log: logger},
		TTL:        cfg.PaymentTTL,
		Log:        logger,
		SuccessURL: cfg.GatewaySuccessURL,
		CancelURL:  cfg.GatewayCancelURL,
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc, Validate: validate}

	authSvc := &auth.Service{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		TokenTTL: cfg.AccessTokenTTL,
	}
	authMiddleware := auth.Middleware{Service: authSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter error") },
	}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(limiter.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: readinessChecker{db: pool, redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Put("/items", cartHandler.SetItem)
			c.Delete("/items/{skuID}", cartHandler.RemoveItem)
			c.Post("/promocode", cartHandler.ApplyPromocode)
			c.Delete("/promocode", cartHandler.RemovePromocode)
		})

		v.With(authMiddleware.RequireAuth, idem.Middleware).Post("/checkout", orderHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderID}", orderHandler.Get)
			authR.With(idem.Middleware).Post("/payments/sessions", paymentHandler.CreateSession)
		})
		v.With(idem.Middleware).Post("/payments/capture", paymentHandler.Capture)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole("admin"))
			admin.Post("/promocodes", promoHandler.Create)
			admin.Put("/promocodes/{code}", promoHandler.Update)
			admin.Get("/promocodes/{code}", promoHandler.Get)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
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
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "kiosko-api"

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
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(probeCtx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(probeCtx).Err()
}
