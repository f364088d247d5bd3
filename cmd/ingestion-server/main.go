// Package main is the entry point of the document ingestion server. It
// serves the ingestion API and runs the background ingestion worker in
// the same process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"linktree-ai-go/internal/config"
	"linktree-ai-go/internal/handler"
	"linktree-ai-go/internal/middleware"
	"linktree-ai-go/internal/pipeline"
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/internal/service"
	"linktree-ai-go/pkg/cache"
	"linktree-ai-go/pkg/database"
	"linktree-ai-go/pkg/embedding"
	"linktree-ai-go/pkg/es"
	"linktree-ai-go/pkg/kafka"
	"linktree-ai-go/pkg/log"
	"linktree-ai-go/pkg/storage"
)

func main() {
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	rdb := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Provider.Dimensions)
	if err != nil {
		log.Fatalf("failed to initialize elasticsearch: %v", err)
	}

	archive, err := storage.NewArchive(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize minio archive: %v", err)
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	embCache := cache.NewEmbeddingCache(rdb, cfg.Cache.KeyPrefix, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)

	tenantRepo := repository.NewTenantRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	chunkRepo := repository.NewChunkRepository(esClient, cfg.Elasticsearch.IndexName)

	tenantService := service.NewTenantService(tenantRepo)
	provider := embedding.NewClient(cfg.Provider)
	embeddingService := service.NewEmbeddingService(provider, embCache, cfg.Provider.DefaultModel, cfg.Provider.Dimensions)

	chunkSize := cfg.Ingestion.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 512
	}
	chunkOverlap := cfg.Ingestion.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = 50
	}

	ingestionService := service.NewIngestionService(tenantService, taskRepo, chunkRepo, tenantRepo, producer, archive, chunkSize, chunkOverlap)

	processor, err := pipeline.NewProcessor(embeddingService, chunkRepo, taskRepo, tenantRepo, archive, cfg.Ingestion.WorkerPool)
	if err != nil {
		log.Fatalf("failed to initialize processor: %v", err)
	}
	defer processor.Release()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, rdb, processor)

	gin.SetMode(cfg.Ingestion.Mode)
	r := gin.New()
	r.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.RateLimit(rdb, cfg.RateLimit.RequestsPerWindow, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
	)

	handler.NewIngestHandler(ingestionService).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Ingestion.Port),
		Handler: r,
	}

	go func() {
		log.Infof("ingestion server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped gracefully")
}
