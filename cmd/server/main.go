package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/GauravKarakoti/OddsSync/internal/config"
	"github.com/GauravKarakoti/OddsSync/internal/crossdomain"
	"github.com/GauravKarakoti/OddsSync/internal/directory"
	"github.com/GauravKarakoti/OddsSync/internal/engine"
	"github.com/GauravKarakoti/OddsSync/internal/ledger"
	"github.com/GauravKarakoti/OddsSync/internal/metrics"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Domain assignment ---
	// The real provisioning mechanism is an external boundary; by default
	// every market is pinned to this deployment's domain.
	var assigner directory.DomainAssigner = directory.StaticAssigner{Domain: cfg.DomainID}
	if !cfg.SharedDomain && cfg.DeriveDomains {
		assigner = directory.NewDerivedAssigner(cfg.DomainID)
	}

	// --- Core components ---
	dir := directory.New(st, assigner)
	ldg := ledger.New(st, nil)

	var forwarder crossdomain.Forwarder
	if len(cfg.Peers) > 0 {
		forwarder = crossdomain.NewHTTPForwarder(cfg.Peers)
		slog.Info("cross-domain forwarding enabled", "peers", len(cfg.Peers))
	}

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	svc := engine.NewService(cfg.DomainID, dir, ldg, st, forwarder, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"oddsync","domain":"` + cfg.DomainID + `"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time market events.
		r.Get("/ws", wsHub.HandleWS)

		// Query view, always routed.
		var q engine.Query = svc
		r.Get("/markets", q.ListMarkets)
		r.Get("/markets/{marketID}", q.GetMarket)
		r.Get("/markets/{marketID}/odds", q.GetOdds)
		r.Get("/markets/{marketID}/bets", q.GetMarketBets)
		r.Get("/users/{principal}/bets", q.GetUserBets)
		r.Get("/bets/{betID}", q.GetBet)

		// Mutation view, omitted on read-only deployments.
		if !cfg.ReadOnly {
			var m engine.Mutator = svc
			r.Post("/markets", m.CreateMarket)
			r.Post("/markets/{marketID}/resolve", m.ResolveMarket)
			r.Post("/bets", m.PlaceBet)
			r.Post("/crossdomain/bets", m.HandleCrossDomainBet)
		}
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("oddsync listening", "port", cfg.Port, "domain", cfg.DomainID, "read_only", cfg.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down oddsync...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("oddsync stopped")
}
