package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/papertrade/papertrade/internal/account"
	"github.com/papertrade/papertrade/internal/api"
	"github.com/papertrade/papertrade/internal/config"
	"github.com/papertrade/papertrade/internal/events"
	"github.com/papertrade/papertrade/internal/identity"
	"github.com/papertrade/papertrade/internal/lock"
	"github.com/papertrade/papertrade/internal/market"
	"github.com/papertrade/papertrade/internal/pricing"
	"github.com/papertrade/papertrade/internal/ranking"
	"github.com/papertrade/papertrade/internal/store"
	"github.com/papertrade/papertrade/internal/trade"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("papertrade exited with error", "err", err)
		os.Exit(1)
	}
	fmt.Println("papertrade stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Ledger store ---
	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, pool.Close)
		ps := store.NewPostgresStore(pool)
		if err := ps.Migrate(ctx); err != nil {
			return err
		}
		st = ps
		logger.Info("connected to PostgreSQL")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Trade locks ---
	var locker lock.Locker = lock.NewKeyedLocker()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, logger)
		logger.Info("Redis trade locks enabled")
	}

	// --- Event fan-out ---
	hub := events.NewWSHub(logger)
	publishers := events.Multi{hub}
	if cfg.NatsURL != "" {
		np, err := events.ConnectNATS(cfg.NatsURL, logger)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, np.Close)
		publishers = append(publishers, np)
		logger.Info("NATS event publishing enabled", "url", cfg.NatsURL)
	}

	// --- Services ---
	markets := market.NewService(st, logger)
	if cfg.SeedStocks {
		n, err := markets.SeedDefaults(ctx, market.DefaultListings)
		if err != nil {
			logger.Error("seed defaults failed", "err", err)
		} else if n > 0 {
			logger.Info("seeded default stocks", "count", n)
		}
	}

	oracle := pricing.NewOracle(st,
		pricing.WithInterval(cfg.PriceTickInterval),
		pricing.WithPublisher(publishers),
		pricing.WithLogger(logger),
	)

	srv := &api.Server{
		Trader:   trade.NewEngine(st, oracle, locker, publishers, logger),
		Ranker:   ranking.NewEngine(st),
		Accounts: account.NewService(st, cfg.InitialCapital, logger),
		Market:   markets,
		Identity: identity.NewHeaderResolver(cfg.PlayerHeader),
		WS:       hub.HandleWS,
		Log:      logger,
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		oracle.Start(gctx)
		<-gctx.Done()
		oracle.Stop()
		return nil
	})

	g.Go(func() error {
		logger.Info("papertrade listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down papertrade...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
