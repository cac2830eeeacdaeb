package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"docmarket/internal/catalog"
	"docmarket/internal/config"
	"docmarket/internal/database"
	"docmarket/internal/database/migration"
	"docmarket/internal/gateway"
	handlers "docmarket/internal/http/handler"
	"docmarket/internal/http/middleware"
	"docmarket/internal/otel"
	"docmarket/internal/repository/postgres"
	"docmarket/internal/service"
	"docmarket/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.Local

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The catalog is deploy-time data; a bad entry must stop startup, not
	// surface mid-checkout.
	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		log.Fatalf("invalid catalog: %v", err)
	}

	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	gw, err := gateway.NewHTTP(cfg.Gateway)
	if err != nil {
		log.Fatalf("failed to initialize payment gateway: %v", err)
	}

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// Initialize repositories and services
	store := postgres.NewStore(db)
	repos := store.Repositories()
	docSvc := service.NewDocumentService(objStore, repos.Documents, repos.Orders, cat)
	orderSvc := service.NewOrderService(store, repos, cat, gw, cfg.Gateway.WebhookSecret, metrics)

	// Background reconciliation keeps document payment status consistent
	// with settled orders after partial failures.
	sweeper := service.NewSweeper(orderSvc, time.Duration(cfg.SweepIntervalSec)*time.Second)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, cat, docSvc, orderSvc, cfg.Gateway.WebhookSecret)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
