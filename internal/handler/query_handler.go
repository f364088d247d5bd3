package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/service"
	"linktree-ai-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// QueryHandler serves the query answering endpoints.
type QueryHandler struct {
	queryService service.QueryService
	db           *gorm.DB
	rdb          *redis.Client
}

// NewQueryHandler creates a new QueryHandler instance.
func NewQueryHandler(queryService service.QueryService, db *gorm.DB, rdb *redis.Client) *QueryHandler {
	return &QueryHandler{queryService: queryService, db: db, rdb: rdb}
}

// RegisterRoutes wires the handler into the router.
func (h *QueryHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/query", h.Query)
	r.GET("/query/stream", h.StreamQuery)
	r.GET("/documents", h.ListDocuments)
	r.GET("/collections", h.ListCollections)
	r.GET("/llm/models", h.ListLLMModels)
	r.GET("/stats", h.Stats)
	r.GET("/healthcheck", h.Healthcheck)
}

// Query handles POST /query: the full RAG pipeline.
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.queryService.Query(c.Request.Context(), &req)
	if err != nil {
		log.Errorf("query failed for tenant %s: %v", req.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StreamQuery handles GET /query/stream: the same pipeline with the
// answer streamed over a websocket. The client sends one QueryRequest
// as its first message; the answer arrives chunk by chunk, terminated
// by a completion notice.
func (h *QueryHandler) StreamQuery(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, payload, err := conn.ReadMessage()
	if err != nil {
		log.Errorf("failed to read query message: %v", err)
		return
	}

	var req model.QueryRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.TenantID == "" || req.Query == "" {
		errResp, _ := json.Marshal(map[string]string{"error": "invalid query message"})
		_ = conn.WriteMessage(websocket.TextMessage, errResp)
		return
	}

	if err := h.queryService.StreamQuery(c.Request.Context(), &req, conn); err != nil {
		log.Errorf("streaming query failed for tenant %s: %v", req.TenantID, err)
		errResp, _ := json.Marshal(map[string]string{"error": err.Error()})
		_ = conn.WriteMessage(websocket.TextMessage, errResp)
	}

	completion, _ := json.Marshal(map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	})
	_ = conn.WriteMessage(websocket.TextMessage, completion)
}

// ListDocuments handles GET /documents.
func (h *QueryHandler) ListDocuments(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	collection := c.Query("collection_name")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	docs, total, err := h.queryService.ListDocuments(c.Request.Context(), tenantID, collection, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":       tenantID,
		"documents":       docs,
		"total":           total,
		"limit":           limit,
		"offset":          offset,
		"collection_name": collection,
	})
}

// ListCollections handles GET /collections.
func (h *QueryHandler) ListCollections(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	collections, err := h.queryService.ListCollections(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":   tenantID,
		"collections": collections,
	})
}

// ListLLMModels handles GET /llm/models.
func (h *QueryHandler) ListLLMModels(c *gin.Context) {
	models, err := h.queryService.ListLLMModels(c.Query("tenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// Stats handles GET /stats.
func (h *QueryHandler) Stats(c *gin.Context) {
	report, err := h.queryService.GetStats(c.Query("tenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Healthcheck handles GET /healthcheck: component health of this service.
func (h *QueryHandler) Healthcheck(c *gin.Context) {
	mysqlStatus := "available"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		mysqlStatus = "unavailable"
	}

	redisStatus := "available"
	if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
		redisStatus = "unavailable"
	}

	overall := "healthy"
	if mysqlStatus == "unavailable" || redisStatus == "unavailable" {
		overall = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": overall,
		"components": gin.H{
			"mysql": mysqlStatus,
			"redis": redisStatus,
		},
		"version": "1.0.0",
	})
}
