package repository

import (
	"gorm.io/gorm"

	"linktree-ai-go/internal/model"
)

// QueryLogRepository persists the append-only query analytics records.
type QueryLogRepository interface {
	Create(entry *model.QueryLog) error
	FindRecentByTenant(tenantID string, limit int) ([]model.QueryLog, error)
	CountByTenant(tenantID string) (int64, error)
}

type queryLogRepository struct {
	db *gorm.DB
}

// NewQueryLogRepository creates a new QueryLogRepository instance.
func NewQueryLogRepository(db *gorm.DB) QueryLogRepository {
	return &queryLogRepository{db: db}
}

// Create appends one query log record.
func (r *queryLogRepository) Create(entry *model.QueryLog) error {
	return r.db.Create(entry).Error
}

// FindRecentByTenant returns the tenant's most recent queries, newest first.
func (r *queryLogRepository) FindRecentByTenant(tenantID string, limit int) ([]model.QueryLog, error) {
	var logs []model.QueryLog
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// CountByTenant returns the total number of queries a tenant has run.
func (r *queryLogRepository) CountByTenant(tenantID string) (int64, error) {
	var total int64
	err := r.db.Model(&model.QueryLog{}).Where("tenant_id = ?", tenantID).Count(&total).Error
	return total, err
}
