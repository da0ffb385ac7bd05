package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"marketplace/internal/config"
	httpapi "marketplace/internal/http"
	"marketplace/internal/logging"
	"marketplace/internal/observability"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	_ "marketplace/docs"
)

// @title Marketplace API
// @version 0.1.0
// @description Markets, products, stock and pricing queries.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// GIN_MODE is read by gin itself and wins
	if os.Getenv(gin.EnvGinMode) == "" && cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("storage open failed", zap.String("storage", string(cfg.Storage)), zap.Error(err))
	}
	defer store.Close()

	marketSvc := service.NewMarketPlaceService(store, store, logger)
	srv := httpapi.NewServer(marketSvc, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(srv.Engine(), config.ServiceName),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("storage", string(cfg.Storage)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}
}

func openStore(cfg config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Storage {
	case config.StorageDatabase:
		return repository.NewSQLiteStore(cfg.DBPath, logger)
	default:
		return repository.NewFileStore(repository.LedgersIn(cfg.DataDir), logger)
	}
}
