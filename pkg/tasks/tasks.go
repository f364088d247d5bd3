// Package tasks defines the structure of ingestion jobs sent to Kafka.
package tasks

import "linktree-ai-go/internal/model"

// ChunkPayload is one pre-chunked segment awaiting embedding and indexing.
type ChunkPayload struct {
	ChunkID  string              `json:"chunk_id"`
	Text     string              `json:"text"`
	Metadata model.ChunkMetadata `json:"metadata"`
}

// DocumentPayload carries a document's raw text for archival.
type DocumentPayload struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// IngestionJob is the message produced per /ingest request. Chunking
// happens synchronously in the request handler; embedding and
// persistence happen when this job is consumed.
type IngestionJob struct {
	TaskID     string            `json:"task_id"`
	TenantID   string            `json:"tenant_id"`
	Collection string            `json:"collection"`
	Chunks     []ChunkPayload    `json:"chunks"`
	Documents  []DocumentPayload `json:"documents"`
}
