package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/service"
	"linktree-ai-go/pkg/cache"
	"linktree-ai-go/pkg/log"
	"linktree-ai-go/pkg/token"
)

// EmbedHandler serves the embedding generation endpoints.
type EmbedHandler struct {
	embeddingService service.EmbeddingService
	tenantService    service.TenantService
	embCache         *cache.EmbeddingCache
	jwtManager       *token.JWTManager
	db               *gorm.DB
}

// NewEmbedHandler creates a new EmbedHandler instance.
func NewEmbedHandler(
	embeddingService service.EmbeddingService,
	tenantService service.TenantService,
	embCache *cache.EmbeddingCache,
	jwtManager *token.JWTManager,
	db *gorm.DB,
) *EmbedHandler {
	return &EmbedHandler{
		embeddingService: embeddingService,
		tenantService:    tenantService,
		embCache:         embCache,
		jwtManager:       jwtManager,
		db:               db,
	}
}

// RegisterRoutes wires the handler into the router.
func (h *EmbedHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/embed", h.Embed)
	r.POST("/embed/batch", h.EmbedBatch)
	r.GET("/models", h.ListModels)
	r.GET("/status", h.Status)
	r.GET("/cache/stats", h.CacheStats)
	r.DELETE("/cache/clear/:tenant_id", h.ClearCache)
}

func (h *EmbedHandler) embed(c *gin.Context, tenantID string, texts []string, requestedModel string) {
	startTime := time.Now()

	tenant, err := h.tenantService.Authorize(tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.embeddingService.EmbedBatch(c.Request.Context(), tenant, texts, requestedModel)
	if err != nil {
		log.Errorf("failed to generate embeddings for tenant %s: %v", tenantID, err)
		respondError(c, err)
		return
	}

	// Only the embedding endpoints charge embed usage; the query and
	// ingestion pipelines account for their own.
	if tokens := service.EstimateEmbeddingTokens(texts); tokens > 0 {
		h.tenantService.TrackTokenUsage(tenantID, tokens, result.Model)
	}

	c.JSON(http.StatusOK, model.EmbeddingResponse{
		Success:        true,
		Embeddings:     result.Embeddings,
		Model:          result.Model,
		Dimensions:     result.Dimensions,
		ProcessingTime: time.Since(startTime).Seconds(),
		CachedCount:    result.CachedCount,
	})
}

// Embed handles POST /embed.
func (h *EmbedHandler) Embed(c *gin.Context) {
	var req model.EmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Metadatas) > 0 && len(req.Metadatas) != len(req.Texts) {
		respondError(c, apperr.New(apperr.KindValidation, "metadata length must match texts length"))
		return
	}
	h.embed(c, req.TenantID, req.Texts, req.Model)
}

// EmbedBatch handles POST /embed/batch.
func (h *EmbedHandler) EmbedBatch(c *gin.Context) {
	var req model.BatchEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	texts := make([]string, len(req.Items))
	for i, item := range req.Items {
		texts[i] = item.Text
	}
	h.embed(c, req.TenantID, texts, req.Model)
}

// ListModels handles GET /models: the tier-gated embedding catalogue.
func (h *EmbedHandler) ListModels(c *gin.Context) {
	tenant, err := h.tenantService.Authorize(c.Query("tenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": model.EmbeddingModelsForTier(tenant.SubscriptionTier)})
}

// Status handles GET /status: component health of this service.
func (h *EmbedHandler) Status(c *gin.Context) {
	redisStatus := "unavailable"
	if h.embCache.Available(c.Request.Context()) {
		redisStatus = "available"
	}

	mysqlStatus := "available"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		mysqlStatus = "unavailable"
	}

	overall := "healthy"
	if redisStatus == "unavailable" || mysqlStatus == "unavailable" {
		overall = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": overall,
		"components": gin.H{
			"redis": redisStatus,
			"mysql": mysqlStatus,
		},
		"version": "1.0.0",
	})
}

// CacheStats handles GET /cache/stats.
func (h *EmbedHandler) CacheStats(c *gin.Context) {
	if _, err := h.tenantService.Authorize(c.Query("tenant_id")); err != nil {
		respondError(c, err)
		return
	}
	if !h.embCache.Available(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"status": "cache_unavailable"})
		return
	}
	stats, err := h.embCache.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// operatorAuthorized reports whether the request carries a valid
// operator token.
func (h *EmbedHandler) operatorAuthorized(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	_, err := h.jwtManager.VerifyToken(strings.TrimPrefix(auth, "Bearer "))
	return err == nil
}

// ClearCache handles DELETE /cache/clear/:tenant_id. The whole cache is
// shared, so clearing is restricted to business-tier tenants acting on
// themselves, or holders of an operator token.
func (h *EmbedHandler) ClearCache(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !h.operatorAuthorized(c) {
		tenant, err := h.tenantService.Authorize(tenantID)
		if err != nil {
			respondError(c, err)
			return
		}
		if tenant.SubscriptionTier != model.TierBusiness {
			respondError(c, apperr.New(apperr.KindForbidden, "clearing the cache requires a business subscription or an operator token"))
			return
		}
	}

	deleted, err := h.embCache.Clear(c.Request.Context())
	if err != nil {
		log.Errorf("failed to clear embedding cache: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "cache_cleared",
		"keys_deleted": deleted,
	})
}
