package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/studiox/backend/internal/assets"
	"github.com/studiox/backend/internal/auth"
	"github.com/studiox/backend/internal/billing"
	"github.com/studiox/backend/internal/config"
	"github.com/studiox/backend/internal/creations"
	"github.com/studiox/backend/internal/middleware"
	"github.com/studiox/backend/internal/pricing"
	"github.com/studiox/backend/internal/provider"
	"github.com/studiox/backend/internal/repository"
	"github.com/studiox/backend/internal/router"
	"github.com/studiox/backend/internal/studio"
	"github.com/studiox/backend/internal/tokens"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	creationRepo := repository.NewCreationRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)

	// Token accounting
	tokenSvc := tokens.NewService(userRepo, ledgerRepo)
	tokensHandler := tokens.NewHandler(tokenSvc, ledgerRepo, logger)

	// Auth
	authSvc := auth.NewService(userRepo, tokenSvc, cfg.Auth.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	// Pricing
	prices := pricing.Default()
	if len(cfg.Pricing.ModelCosts) > 0 {
		prices, err = pricing.NewTable(cfg.Pricing)
		if err != nil {
			slog.Error("Invalid pricing configuration", "error", err)
			os.Exit(1)
		}
	}

	// Generation gateway
	gateway := provider.NewPoyoClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout())

	// Object storage is optional in local development; without it completed
	// jobs keep the provider-hosted URL.
	var relocator assets.Relocator
	var objectStore *assets.MinioStore
	if cfg.Storage.Endpoint != "" {
		objectStore, err = assets.NewMinioStore(ctx, cfg.Storage, logger)
		if err != nil {
			slog.Error("Object storage init failed", "error", err)
			os.Exit(1)
		}
		relocator = objectStore
	} else {
		slog.Warn("Object storage not configured, outputs keep provider URLs")
	}

	validator, err := studio.NewValidator(cfg.SchemaDir)
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	studioSvc := studio.NewService(jobRepo, creationRepo, tokenSvc, gateway, relocator, prices, validator, logger)
	studioHandler := studio.NewHandler(studioSvc, logger)

	billingSvc := billing.NewService(paymentRepo, tokenSvc, userRepo, logger)
	billingHandler := billing.NewHandler(billingSvc, billing.SharedSecretVerifier{Secret: cfg.Billing.WebhookSecret}, logger)

	var objectDeleter creations.ObjectDeleter
	if objectStore != nil {
		objectDeleter = objectStore
	}
	creationsSvc := creations.NewService(creationRepo, objectDeleter, logger)
	creationsHandler := creations.NewHandler(creationsSvc, logger)

	apiRouter := router.New(
		authHandler,
		tokensHandler,
		studioHandler,
		billingHandler,
		creationsHandler,
		middleware.JWTAuth(authSvc),
		middleware.BalanceCheck(pool, prices),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Signature"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	serverAddr := "0.0.0.0:" + cfg.Server.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
