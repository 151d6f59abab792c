package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"learning-rewards/api"
	"learning-rewards/clock"
	"learning-rewards/config"
	"learning-rewards/middleware/auth"
	"learning-rewards/middleware/ratelimit"
	rldomain "learning-rewards/middleware/ratelimit/domain"
	rlinfra "learning-rewards/middleware/ratelimit/infra"
	"learning-rewards/rewards/application"
	"learning-rewards/rewards/domain"
	"learning-rewards/rewards/infra"

	"github.com/redis/go-redis/v9"
)

// rewardsStore é o conjunto de stores que o servidor precisa.
type rewardsStore interface {
	domain.EventStore
	domain.RuleStore
	domain.StreakStore
	domain.BadgeStore
	domain.ProgressStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.Default()
	clk := clock.RealClock{}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	memStore := rlinfra.NewMemoryStore(
		rlinfra.WithClock(clk),
		rlinfra.WithShards(cfg.RateMemoryShards),
		rlinfra.WithMaxKeys(cfg.RateMemoryMaxKeys),
		rlinfra.WithCleanupEvery(cfg.RateCleanupEvery),
	)
	memStore.StartJanitor(ctx)

	var rdb *redis.Client
	if cfg.RateStore == "redis" || cfg.RateStatsEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		// sem Redis no boot o servidor sobe mesmo assim: o fallback cobre a contagem
		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Printf("redis ping error: %v", err)
		}
		cancelPing()
	}

	var counters rldomain.CounterStore = memStore
	if cfg.RateStore == "redis" {
		counters = rlinfra.NewFallbackStore(
			rlinfra.NewRedisStore(rdb, rlinfra.WithRedisPrefix(cfg.RateRedisPrefix), rlinfra.WithRedisClock(clk)),
			memStore,
			rlinfra.WithFallbackTimeout(cfg.RateStoreTimeout),
			rlinfra.WithFallbackLogger(logger),
		)
	}

	var statsStore rldomain.StatsStore
	if cfg.RateStatsEnabled {
		statsStore = rlinfra.NewRedisStatsStore(
			rdb,
			rlinfra.WithStatsPrefix(cfg.RateStatsPrefix),
			rlinfra.WithStatsTTL(cfg.RateStatsTTL),
			rlinfra.WithStatsBucket(cfg.RateStatsBucket),
			rlinfra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		)
	}

	store, closeStore, err := openRewardsStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer closeStore()

	verifier, err := auth.NewJWTVerifier(
		[]byte(cfg.AuthJWTSecret),
		auth.WithIssuer(cfg.AuthIssuer),
		auth.WithAudience(cfg.AuthAudience),
	)
	if err != nil {
		log.Fatalf("auth error: %v", err)
	}

	ledger := application.NewLedger(store, store, clk, logger)
	badges := application.NewBadges(store, domain.DefaultBadges, clk, logger)

	srv := api.NewServer(api.Dependencies{
		Policies:     cfg.Policies,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ConcurrencyTimeout,
		},
		Limiter: ratelimit.New(ratelimit.Options{
			Store:               counters,
			Stats:               statsStore,
			Clock:               clk,
			Logger:              logger,
			KeyFn:               ratelimit.HeaderOrClientIP(cfg.RateKeyHeader),
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		}),
		Auth:     verifier,
		Ledger:   ledger,
		Streaks:  application.NewStreaks(store, ledger, badges, clk, logger),
		Progress: application.NewProgress(store, ledger, badges, clk, logger),
		Badges:   badges,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("server listening on %s", cfg.ListenAddr)
	logger.Printf("rate: store=%s redisAddr=%q timeout=%s shards=%d maxKeys=%d keyHeader=%q", cfg.RateStore, cfg.RedisAddr, cfg.RateStoreTimeout, cfg.RateMemoryShards, cfg.RateMemoryMaxKeys, cfg.RateKeyHeader)
	logger.Printf("rate-stats: enabled=%v prefix=%q bucket=%q ttl=%s trackKeys=%v", cfg.RateStatsEnabled, cfg.RateStatsPrefix, cfg.RateStatsBucket, cfg.RateStatsTTL, cfg.RateStatsTrackKeys)
	logger.Printf("rewards: store=%s rules=%d", cfg.Store, len(cfg.XPRules))
	logger.Printf("concurrency: max=%d acquireTimeout=%s", cfg.ConcurrencyMax, cfg.ConcurrencyTimeout)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func openRewardsStore(ctx context.Context, cfg config.Config) (rewardsStore, func(), error) {
	if cfg.Store != "postgres" {
		return infra.NewMemoryStore(cfg.XPRules...), func() {}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := infra.OpenPostgres(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := infra.NewPostgresStore(db, infra.WithQueryTimeout(cfg.DBTimeout))
	if err := pg.Migrate(openCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := pg.SeedRules(openCtx, cfg.XPRules); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pg, func() { _ = db.Close() }, nil
}
