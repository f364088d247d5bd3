// Package main is the entry point of the query answering server.
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
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/internal/service"
	"linktree-ai-go/pkg/cache"
	"linktree-ai-go/pkg/database"
	"linktree-ai-go/pkg/embedding"
	"linktree-ai-go/pkg/es"
	"linktree-ai-go/pkg/llm"
	"linktree-ai-go/pkg/log"
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

	embCache := cache.NewEmbeddingCache(rdb, cfg.Cache.KeyPrefix, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)

	tenantRepo := repository.NewTenantRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)
	chunkRepo := repository.NewChunkRepository(esClient, cfg.Elasticsearch.IndexName)

	tenantService := service.NewTenantService(tenantRepo)
	provider := embedding.NewClient(cfg.Provider)
	embeddingService := service.NewEmbeddingService(provider, embCache, cfg.Provider.DefaultModel, cfg.Provider.Dimensions)
	llmClient := llm.NewClient(cfg.LLM)

	similarityCutoff := cfg.Query.SimilarityCutoff
	if similarityCutoff <= 0 {
		similarityCutoff = 0.7
	}

	queryService := service.NewQueryService(
		tenantService,
		embeddingService,
		chunkRepo,
		queryLogRepo,
		tenantRepo,
		llmClient,
		cfg.Query.SimilarityTopK,
		similarityCutoff,
		cfg.Query.DefaultResponseMode,
	)

	gin.SetMode(cfg.Query.Mode)
	r := gin.New()
	r.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.RateLimit(rdb, cfg.RateLimit.RequestsPerWindow, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
	)

	handler.NewQueryHandler(queryService, db, rdb).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Query.Port),
		Handler: r,
	}

	go func() {
		log.Infof("query server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped gracefully")
}
