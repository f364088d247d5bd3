package model

// EmbeddingRequest is the body of POST /embed.
type EmbeddingRequest struct {
	TenantID  string              `json:"tenant_id" binding:"required"`
	Texts     []string            `json:"texts" binding:"required"`
	Metadatas []map[string]string `json:"metadata,omitempty"`
	Model     string              `json:"model,omitempty"`
}

// TextItem is one entry of a batch embedding request.
type TextItem struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BatchEmbeddingRequest is the body of POST /embed/batch.
type BatchEmbeddingRequest struct {
	TenantID string     `json:"tenant_id" binding:"required"`
	Items    []TextItem `json:"items" binding:"required"`
	Model    string     `json:"model,omitempty"`
}

// EmbedResult is the outcome of one batch resolution through the
// cache-then-provider path.
type EmbedResult struct {
	Embeddings  [][]float32
	Model       string
	Dimensions  int
	CachedCount int
}

// EmbeddingResponse is the reply of both embedding endpoints.
type EmbeddingResponse struct {
	Success        bool        `json:"success"`
	Embeddings     [][]float32 `json:"embeddings"`
	Model          string      `json:"model"`
	Dimensions     int         `json:"dimensions"`
	ProcessingTime float64     `json:"processing_time"`
	CachedCount    int         `json:"cached_count"`
}

// DocumentMetadata is the caller-supplied metadata for one document.
type DocumentMetadata struct {
	Source         string            `json:"source"`
	Author         string            `json:"author,omitempty"`
	CreatedAt      string            `json:"created_at,omitempty"`
	DocumentType   string            `json:"document_type"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// IngestionRequest is the body of POST /ingest.
type IngestionRequest struct {
	TenantID          string             `json:"tenant_id" binding:"required"`
	Documents         []string           `json:"documents" binding:"required"`
	DocumentMetadatas []DocumentMetadata `json:"document_metadatas"`
	CollectionName    string             `json:"collection_name"`
}

// IngestionResponse is the reply of POST /ingest. Persistence is
// deferred; TaskID can be polled for completion.
type IngestionResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	DocumentIDs []string `json:"document_ids"`
	NodesCount  int      `json:"nodes_count"`
	TaskID      string   `json:"task_id"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	Query          string `json:"query" binding:"required"`
	CollectionName string `json:"collection_name"`
	LLMModel       string `json:"llm_model,omitempty"`
	SimilarityTopK int    `json:"similarity_top_k,omitempty"`
	ResponseMode   string `json:"response_mode,omitempty"`
}

// QueryContextItem is one retrieved source returned with an answer.
type QueryContextItem struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// QueryResponse is the reply of POST /query.
type QueryResponse struct {
	TenantID       string             `json:"tenant_id"`
	Query          string             `json:"query"`
	Response       string             `json:"response"`
	Sources        []QueryContextItem `json:"sources"`
	ProcessingTime float64            `json:"processing_time"`
	LLMModel       string             `json:"llm_model"`
	CollectionName string             `json:"collection_name"`
}
