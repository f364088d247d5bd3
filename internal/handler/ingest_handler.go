package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/service"
	"linktree-ai-go/pkg/log"
)

// IngestHandler serves the document ingestion endpoints.
type IngestHandler struct {
	ingestionService service.IngestionService
}

// NewIngestHandler creates a new IngestHandler instance.
func NewIngestHandler(ingestionService service.IngestionService) *IngestHandler {
	return &IngestHandler{ingestionService: ingestionService}
}

// RegisterRoutes wires the handler into the router.
func (h *IngestHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/ingest", h.Ingest)
	r.GET("/ingest/tasks/:task_id", h.GetTask)
	r.GET("/documents/:tenant_id/:document_id/download", h.DownloadDocument)
	r.DELETE("/documents/:tenant_id/:document_id", h.DeleteDocument)
	r.DELETE("/collections/:tenant_id/:collection_name", h.DeleteCollection)
}

// Ingest handles POST /ingest. The documents are chunked and queued;
// the reply carries a task id for polling.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req model.IngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.ingestionService.Ingest(c.Request.Context(), &req)
	if err != nil {
		log.Errorf("ingestion request failed for tenant %s: %v", req.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetTask handles GET /ingest/tasks/:task_id.
func (h *IngestHandler) GetTask(c *gin.Context) {
	task, err := h.ingestionService.GetTask(c.Query("tenant_id"), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":        task.TaskID,
		"tenant_id":      task.TenantID,
		"collection":     task.Collection,
		"document_count": task.DocumentCount,
		"chunk_count":    task.ChunkCount,
		"status":         task.Status,
		"error_message":  task.ErrorMessage,
		"created_at":     task.CreatedAt,
		"completed_at":   task.CompletedAt,
	})
}

// DownloadDocument handles GET /documents/:tenant_id/:document_id/download.
// It returns a presigned link to the archived source text.
func (h *IngestHandler) DownloadDocument(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	documentID := c.Param("document_id")
	collection := c.Query("collection_name")

	url, err := h.ingestionService.GetDocumentURL(c.Request.Context(), tenantID, collection, documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id":  documentID,
		"download_url": url,
		"expires_in":   3600,
	})
}

// DeleteDocument handles DELETE /documents/:tenant_id/:document_id.
func (h *IngestHandler) DeleteDocument(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	documentID := c.Param("document_id")

	deleted, err := h.ingestionService.DeleteDocument(c.Request.Context(), tenantID, documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "deleted",
		"document_id":    documentID,
		"deleted_chunks": deleted,
	})
}

// DeleteCollection handles DELETE /collections/:tenant_id/:collection_name.
func (h *IngestHandler) DeleteCollection(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	collection := c.Param("collection_name")

	deletedDocs, err := h.ingestionService.DeleteCollection(c.Request.Context(), tenantID, collection)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "deleted",
		"collection":        collection,
		"deleted_documents": deletedDocs,
	})
}
