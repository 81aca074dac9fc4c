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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/betting"
	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/metrics"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
	"github.com/harvestbet/pari-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
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

	// --- Pricing policy ---
	defaultOdds := decimalEnv("DEFAULT_ODDS", decimal.NewFromInt(2))
	pricing, err := parimutuel.NewPricingPolicy(defaultOdds)
	if err != nil {
		slog.Error("invalid DEFAULT_ODDS", "err", err)
		os.Exit(1)
	}

	// --- Charity fee ---
	feeRate := decimalEnv("FEE_RATE", decimal.NewFromFloat(0.01))

	// --- Stake limits ---
	maxPerMarket := decimalEnv("MAX_STAKE_PER_MARKET", decimal.NewFromInt(1000))
	maxPerProvince := decimalEnv("MAX_STAKE_PER_PROVINCE", decimal.NewFromInt(5000))
	limiter := limits.NewStakeLimiter(maxPerMarket, maxPerProvince)

	// --- WebSocket hub ---
	wsHub := betting.NewWSHub()
	go wsHub.Run()

	// --- Betting service ---
	svc := betting.NewService(st, pricing, limiter, feeRate, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"pari-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time pool updates.
		r.Get("/ws", wsHub.HandleWS)

		// Market management.
		r.Get("/markets", svc.ListMarkets)
		r.Post("/markets", svc.CreateMarket)
		r.Get("/markets/{marketID}", svc.GetMarket)
		r.Get("/propositions/{ticker}/market", svc.GetMarketByProposition)
		r.Get("/markets/{marketID}/quote", svc.GetQuote)
		r.Get("/markets/{marketID}/stakes", svc.GetMarketStakes)
		r.Post("/markets/{marketID}/close", svc.CloseMarket)
		r.Post("/markets/{marketID}/resolve", svc.ResolveMarket)
		r.Post("/markets/{marketID}/cancel", svc.CancelMarket)

		// Stake placement.
		r.Post("/stakes", svc.PlaceStake)

		// Bettor history.
		r.Get("/bettors/{bettorID}/stakes", svc.GetBettorStakes)

		// Charity ledger.
		r.Get("/charity", svc.GetCharity)
		r.Post("/charity/{entryID}/distribute", svc.DistributeCharity)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("pari-engine listening", "port", port)
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

	slog.Info("shutting down pari-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("pari-engine stopped")
}

// decimalEnv reads a decimal-valued environment variable, falling back to
// def when unset or unparsable.
func decimalEnv(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		slog.Warn("invalid decimal env var, using default", "key", key, "value", v)
		return def
	}
	return d
}
