package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"phishguard/internal/blocklist"
	"phishguard/internal/config"
	"phishguard/internal/features"
	"phishguard/internal/feed"
	"phishguard/internal/handler"
	"phishguard/internal/middleware"
	"phishguard/internal/repository"
	"phishguard/internal/scoring"
	"phishguard/internal/service"
	"phishguard/internal/whois"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting PhishGuard...", zap.String("config", configPath))

	// Create data directory if not exists
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	repo, err := repository.NewReportRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	filter := blocklist.NewFilter(cfg.Blocklist.Capacity, cfg.Blocklist.FalsePositiveRate, logger)
	hub := feed.NewHub(cfg.CORS.Origins, logger)

	// Initialize service
	reports := service.NewReportService(
		repo,
		features.NewExtractor(logger),
		scoring.NewRuleScorer(),
		logger,
		filter,
		hub,
	)

	warmed, err := reports.WarmListeners(context.Background())
	if err != nil {
		logger.Fatal("Failed to rebuild blocklist", zap.Error(err))
	}
	logger.Info("Blocklist rebuilt", zap.Int("confirmed_reports", warmed))

	var domains handler.DomainLookup
	if cfg.Whois.Enabled {
		domains = whois.NewClient(cfg.Whois.Timeout, logger)
		logger.Info("WHOIS lookups enabled", zap.Duration("timeout", cfg.Whois.Timeout))
	}

	apiHandler := handler.NewHandler(reports, filter, hub, domains, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(middleware.CORS(cfg.CORS.Origins))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(
			middleware.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
			logger,
		))
		logger.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
	}

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Stop on interrupt or when the listener fails
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("PhishGuard is running",
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
