package model

// ChunkMetadata is the typed metadata attached to every chunk. Known
// fields are explicit; anything else travels in Extra.
type ChunkMetadata struct {
	TenantID     string            `json:"tenant_id"`
	Source       string            `json:"source"`
	Author       string            `json:"author,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	DocumentID   string            `json:"document_id"`
	Collection   string            `json:"collection"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ChunkDocument is the unit stored in the Elasticsearch index: one
// fixed-size segment of a document together with its embedding.
type ChunkDocument struct {
	ChunkID  string        `json:"chunk_id"`
	TenantID string        `json:"tenant_id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Vector   []float32     `json:"vector"`
	Model    string        `json:"model"`
}

// RetrievedChunk is a chunk returned from vector retrieval with its
// similarity score.
type RetrievedChunk struct {
	Chunk ChunkDocument
	Score float64
}

// DocumentInfo summarizes one ingested document, reconstructed from the
// metadata of its chunks.
type DocumentInfo struct {
	DocumentID   string `json:"document_id"`
	Source       string `json:"source"`
	Author       string `json:"author,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Collection   string `json:"collection"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CollectionStat is one entry of the collection listing.
type CollectionStat struct {
	Name          string `json:"name"`
	DocumentCount int64  `json:"document_count"`
}
