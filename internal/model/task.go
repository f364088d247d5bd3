package model

import "time"

// Ingestion task states. A task moves pending → processing → completed
// or failed; there are no other transitions.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// IngestionTask maps the ingestion_tasks table. One row per /ingest
// request; the background worker updates the status so callers can
// observe completion.
type IngestionTask struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID        string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"taskId"`
	TenantID      string     `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	Collection    string     `gorm:"type:varchar(128)" json:"collection"`
	DocumentCount int        `gorm:"not null" json:"documentCount"`
	ChunkCount    int        `gorm:"not null" json:"chunkCount"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ErrorMessage  string     `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// TableName sets the table name for this model.
func (IngestionTask) TableName() string {
	return "ingestion_tasks"
}
