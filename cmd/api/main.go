package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/subkeep/subkeep-api/internal/config"
	"github.com/subkeep/subkeep-api/internal/domain/admin"
	"github.com/subkeep/subkeep-api/internal/domain/allocation"
	"github.com/subkeep/subkeep-api/internal/domain/checkout"
	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/domain/monitor"
	"github.com/subkeep/subkeep-api/internal/domain/refund"
	"github.com/subkeep/subkeep-api/internal/middleware"
	"github.com/subkeep/subkeep-api/internal/pkg/cache"
	"github.com/subkeep/subkeep-api/internal/pkg/database"
	"github.com/subkeep/subkeep-api/internal/pkg/events"
	"github.com/subkeep/subkeep-api/internal/pkg/logger"
	"github.com/subkeep/subkeep-api/internal/pkg/provider"
	pkgresponse "github.com/subkeep/subkeep-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Subkeep API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	// ---------- Infrastructure ----------
	store := ledger.NewPostgresStore(db)
	balanceCache := cache.NewRedisCache(redisClient)

	var publisher events.Publisher
	if redisClient != nil {
		publisher = events.NewRedisPublisher(redisClient, cfg.EventsChannel)
	} else {
		publisher = events.LogPublisher{}
	}

	providerClient := provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	})

	// ---------- Services ----------
	creditService := credit.NewService(store, balanceCache, cfg.BalanceCacheTTL, publisher, credit.Limits{
		MaxTransactionAmount: cfg.MaxTransactionAmount,
		MaxBalance:           cfg.MaxBalance,
		MinBalance:           cfg.MinBalance,
		AllowNegative:        cfg.AllowNegativeBalance,
	})
	allocationService := allocation.NewService(creditService, publisher)

	refundRepo := refund.NewPostgresRepository(db)
	refundService := refund.NewService(refundRepo, creditService, publisher)

	checkoutService := checkout.NewService(creditService)

	paymentMonitor := monitor.New(providerClient, allocationService, publisher, monitor.Config{
		Interval:     cfg.MonitorInterval,
		CheckTimeout: cfg.MonitorCheckTimeout,
		MaxRetries:   cfg.MonitorMaxRetries,
		RetryBackoff: cfg.MonitorRetryBackoff,
	}, prometheus.DefaultRegisterer)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	paymentMonitor.Start(monitorCtx)

	// ---------- Handlers ----------
	creditHandler := credit.NewHandler(creditService)
	checkoutHandler := checkout.NewHandler(checkoutService)
	refundHandler := refund.NewHandler(refundService)
	monitorHandler := monitor.NewHandler(paymentMonitor)
	adminHandler := admin.NewHandler(allocationService, creditService, refundService, paymentMonitor)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", creditHandler.Routes())
		r.Mount("/checkout", checkoutHandler.Routes())
		r.Mount("/refunds", refundHandler.Routes())
		r.Mount("/payments", monitorHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	paymentMonitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
