package main

import (
	"context"
	"log"
	"time"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/queue"
	"pdf-term-stats/internal/telemetry"
	"pdf-term-stats/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if !cfg.AsyncEnabled() {
		log.Fatal("Worker requires REDIS_URL and MONGO_URI")
	}

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	store := services.NewAnalysisStore(mongoClient.Database(cfg.DBName).Collection(config.AnalysesCollection))

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	svc := services.NewAnalysisService(cfg, services.NewResultCache(rdb, cfg.CacheTTL), metrics)

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queue.QueueAnalyses: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(svc, store, cfg.FileStorageDir)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting Asynq worker", "queue", queue.QueueAnalyses, "concurrency", 4)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
