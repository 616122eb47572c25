package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradepost/internal/audit"
	"tradepost/internal/captoken"
	"tradepost/internal/extension"
	"tradepost/internal/platform/config"
	"tradepost/internal/platform/database"
	"tradepost/internal/platform/health"
	"tradepost/internal/platform/logger"
	"tradepost/internal/policy"
	"tradepost/internal/shop/metrics"
	"tradepost/internal/shop/service"
	"tradepost/internal/shop/store"
	"tradepost/internal/shop/tracer"
	httptransport "tradepost/internal/transport/http"
	"tradepost/migrations"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.PostgresDSN
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var shopStore store.Store
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.Migrate(ctx, migrations.FS); err != nil {
			cancel()
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		cancel()
		shopStore = store.NewPostgres(pool.DB())
		log.Info("using postgres shop store")
	} else {
		shopStore = store.New()
		log.Warn("POSTGRES_DSN not set, using in-memory shop store")
	}

	policies := policy.NewRegistry()

	auditor := audit.NewPublisher(
		[]audit.Sink{audit.NewLogSink(log)},
		audit.WithAsyncBuffer(cfg.AuditBuffer),
		audit.WithPublisherLogger(log),
	)
	defer auditor.Close()

	shops := service.NewService(shopStore, policies,
		service.WithAuditor(auditor),
		service.WithMetrics(metrics.New()),
		service.WithTracer(tracer.NewOTel()),
		service.WithLogger(log),
	)
	extensions := extension.NewService(shopStore, policies, extension.WithLogger(log))
	tokens := captoken.NewService(cfg.SigningKey, "tradepost", cfg.TokenTTL)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	handler := httptransport.NewHandler(shops, extensions, tokens, log)
	router := httptransport.NewRouter(handler, healthHandler, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
