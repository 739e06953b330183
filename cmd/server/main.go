package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"authgate/internal/authn/cache"
	"authgate/internal/authn/resolver"
	"authgate/internal/organization/store"
	"authgate/internal/platform/config"
	"authgate/internal/platform/httpserver"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	platformredis "authgate/internal/platform/redis"
	httptransport "authgate/internal/transport/http"
	"authgate/pkg/platform/audit/publisher"
	auditmemory "authgate/pkg/platform/audit/store/memory"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Resolution logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	orgStore, db, err := newStore(cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	var resolutionCache cache.ResolutionCache
	if redisClient != nil {
		defer redisClient.Close()
		resolutionCache = cache.NewRedis(redisClient.Client)
		log.Info("using redis resolution cache")
	} else {
		mem, err := cache.NewMemory(cfg.CacheSize)
		if err != nil {
			log.Error("cache init failed", "error", err)
			os.Exit(1)
		}
		resolutionCache = mem
	}

	auditPub := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithAsyncBuffer(256))
	defer auditPub.Close()

	res := resolver.New(
		resolver.Config{
			SigningKey:   cfg.SigningKey,
			SystemAPIKey: cfg.SystemAPIKey,
			CacheTTL:     cfg.CacheTTL,
			StoreTimeout: cfg.StoreTimeout,
		},
		orgStore,
		resolutionCache,
		resolver.WithLogger(log),
		resolver.WithMetrics(metrics.New()),
		resolver.WithAuditPublisher(auditPub),
	)

	var health []httptransport.HealthChecker
	if redisClient != nil {
		health = append(health, redisClient)
	}
	handler := httptransport.NewHandler(log, health...)
	router := httptransport.NewRouter(handler, res)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting authgate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newStore selects PostgreSQL when DATABASE_URL is set, otherwise the
// in-memory store for local development.
func newStore(cfg config.Server) (store.Store, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return store.NewInMemory(), nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store.NewPostgres(db), db, nil
}
