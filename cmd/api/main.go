package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypta-wallet/config"
	httpHandler "crypta-wallet/internal/adapter/http/handler"
	pgStorage "crypta-wallet/internal/adapter/storage/postgres"
	redisStorage "crypta-wallet/internal/adapter/storage/redis"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/internal/relay"
	"crypta-wallet/internal/service"
	"crypta-wallet/pkg/logger"
	"crypta-wallet/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Crypta Wallet")

	ctx := context.Background()

	// Schema first, so the pool never sees a half-migrated ledger
	if cfg.Database.Migrate {
		if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	holdingRepo := pgStorage.NewHoldingRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Ledger.SettleTimeout)

	// Initialize Redis stores
	priceCache := redisStorage.NewPriceCache(rdb, cfg.Market.HistoryTTL, cfg.Market.PriceTimeout, m)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService(service.DefaultArgon2Params)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	startingCash, err := cfg.Ledger.StartingCashAmount()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid starting cash")
	}

	// Initialize business services
	walletSvc := service.NewWalletService(
		walletRepo,
		holdingRepo,
		txRepo,
		transactor,
		startingCash,
		log,
	)
	settlementSvc := service.NewSettlementService(
		walletRepo,
		holdingRepo,
		txRepo,
		priceCache,
		transactor,
		service.NewSupportedSet(cfg.Market.Symbols),
		m,
		log,
	)
	authSvc := service.NewAuthService(userRepo, walletSvc, transactor, hashSvc, tokenSvc, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Market relays
	relayCtx, stopRelays := context.WithCancel(context.Background())
	defer stopRelays()

	ingestDone := make(chan struct{})
	if cfg.Market.RelayEnabled {
		ingestor := relay.NewIngestor(cfg.Market.StreamURL, priceCache, nil, m, log)
		go func() {
			defer close(ingestDone)
			if err := ingestor.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Price ingestion stopped")
			}
		}()
	} else {
		close(ingestDone)
		log.Warn().Msg("Price ingestion disabled, cache must be fed externally")
	}

	streamer := relay.NewStreamer(priceCache, relay.StreamConfig{
		KlineURL:       cfg.Market.KlineURL,
		Interval:       cfg.Market.StreamInterval,
		DefaultSymbols: cfg.Market.Symbols,
	}, m, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		SettlementSvc:  settlementSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Streamer:       streamer,
		Metrics:        m,
		MetricsHandler: metrics.Handler(registry),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Shutdown does not track hijacked websocket sessions.
	stopRelays()
	streamer.Close()
	<-ingestDone

	auditSvc.Wait()
	log.Info().Msg("Server exited")
}
