package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/courtcase/financial-analysis/internal/api"
	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/crypto"
	"github.com/courtcase/financial-analysis/internal/events"
	"github.com/courtcase/financial-analysis/internal/repository/elasticsearch"
	"github.com/courtcase/financial-analysis/internal/repository/postgres"
	"github.com/courtcase/financial-analysis/internal/repository/s3"
	"github.com/courtcase/financial-analysis/internal/service"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting Financial Analysis Service...")

	// 3. Audit signing
	signer, err := crypto.NewAuditSigner(cfg.Audit.HMACSecret)
	if err != nil {
		sugar.Fatalf("Failed to initialize audit signer: %v", err)
	}

	// 4. Repositories
	ledgerRepo, err := postgres.NewLedgerRepository(cfg.Database)
	if err != nil {
		sugar.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer ledgerRepo.Close()

	auditRepo := postgres.NewAuditRepository(ledgerRepo.Pool(), signer)

	alertIndex, err := elasticsearch.NewAlertIndex(cfg.Elasticsearch)
	if err != nil {
		sugar.Warnf("Failed to connect to Elasticsearch: %v (alert search will be unavailable)", err)
		alertIndex = nil
	}

	reportRepo, err := s3.NewReportRepository(context.Background(), cfg.S3)
	if err != nil {
		sugar.Fatalf("Failed to initialize S3 repository: %v", err)
	}

	// 5. Services
	var indexer service.AlertIndexer
	if alertIndex != nil {
		indexer = alertIndex
	}
	ledgerService := service.NewLedgerService(ledgerRepo, ledgerRepo, auditRepo, logger)
	alertService := service.NewAlertService(ledgerRepo, auditRepo, indexer, logger)
	summaryService := service.NewSummaryService(ledgerRepo, ledgerRepo, cfg.Analysis, logger)
	analysisService := service.NewAnalysisService(
		ledgerRepo, ledgerRepo, alertService, summaryService, reportRepo, auditRepo, cfg.Analysis, logger,
	)

	// 6. Kafka Consumer
	consumer, err := events.NewIngestConsumer(cfg.Kafka, ledgerService, analysisService, logger)
	if err != nil {
		sugar.Fatalf("Failed to create Kafka consumer: %v", err)
	}

	// Start Consumer in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sugar.Info("Starting ingestion consumer loop...")
		if err := consumer.Start(ctx); err != nil {
			sugar.Errorf("Ingestion consumer failed: %v", err)
		}
	}()
	defer consumer.Close()

	// 7. API Server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	financeHandler := api.NewFinanceHandler(analysisService, summaryService, alertService, alertIndex, auditRepo)
	ledgerHandler := api.NewLedgerHandler(ledgerService)

	apiGroup := e.Group("/api/v1")

	// Security: JWT authentication on the API surface
	keyData, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	var signingKey interface{}
	if err == nil {
		signingKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			sugar.Warnf("Failed to parse JWT public key: %v", err)
		}
	} else {
		sugar.Warnf("JWT public key not found at %s: %v", cfg.Auth.JWTPublicKeyPath, err)
	}

	if signingKey != nil {
		jwtConfig := echojwt.Config{
			SigningKey:    signingKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.MapClaims)
			},
		}
		apiGroup.Use(echojwt.WithConfig(jwtConfig))
		sugar.Info("JWT Authentication enabled for /api/v1/*")
	} else {
		sugar.Warn("JWT Authentication DISABLED - Missing Public Key (Security Risk)")
	}

	financeHandler.RegisterRoutes(apiGroup)
	ledgerHandler.RegisterRoutes(apiGroup)

	// Health Check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Start Server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Shutting down the server: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Fatal(err)
	}
}
