package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/telemetry"
	"pdf-term-stats/routes"
	"pdf-term-stats/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
		log.Fatal("Failed to create storage directory:", err)
	}

	deps := routes.Dependencies{
		Downloader: services.NewDownloader(cfg, metrics),
		Metrics:    metrics,
	}

	var cache *services.ResultCache
	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer rdb.Close()
		cache = services.NewResultCache(rdb, cfg.CacheTTL)
		deps.Redis = rdb
	}
	deps.Service = services.NewAnalysisService(cfg, cache, metrics)

	var store *services.AnalysisStore
	if cfg.AsyncEnabled() {
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		store = services.NewAnalysisStore(mongoClient.Database(cfg.DBName).Collection(config.AnalysesCollection))

		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Invalid Redis configuration:", err)
		}
		queueClient := asynq.NewClient(redisOpt)
		defer queueClient.Close()

		deps.Store = store
		deps.Queue = queueClient
	} else {
		logger.Warn("Asynchronous analyses disabled: REDIS_URL and MONGO_URI are required")
	}

	janitor := services.NewJanitor(cfg.FileStorageDir, cfg.ArtifactTTL, store)
	if err := janitor.Start(cfg.JanitorEvery); err != nil {
		log.Fatal("Failed to start janitor:", err)
	}
	defer janitor.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
