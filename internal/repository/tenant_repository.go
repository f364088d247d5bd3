// Package repository defines the data access interfaces and their
// GORM / Elasticsearch implementations.
package repository

import (
	"time"

	"gorm.io/gorm"

	"linktree-ai-go/internal/model"
)

// TenantRepository covers the tenant, subscription and usage tables.
type TenantRepository interface {
	FindByTenantID(tenantID string) (*model.Tenant, error)
	FindActiveSubscription(tenantID string) (*model.TenantSubscription, error)
	GetStats(tenantID string) (*model.TenantStats, error)
	GetTierLimits(tier string) (*model.TenantFeatures, error)
	IncrementTokenUsage(tenantID string, tokens int64) error
	IncrementDocumentCount(tenantID string, delta int64) error
	DecrementDocumentCount(tenantID string, delta int64) error
}

type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new TenantRepository instance.
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// FindByTenantID looks up a tenant by its external id.
func (r *tenantRepository) FindByTenantID(tenantID string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.Where("tenant_id = ?", tenantID).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindActiveSubscription returns the tenant's active subscription row,
// or gorm.ErrRecordNotFound when none is active.
func (r *tenantRepository) FindActiveSubscription(tenantID string) (*model.TenantSubscription, error) {
	var sub model.TenantSubscription
	err := r.db.Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetStats returns the tenant's usage counters, or gorm.ErrRecordNotFound
// when the tenant has no stats row yet.
func (r *tenantRepository) GetStats(tenantID string) (*model.TenantStats, error) {
	var stats model.TenantStats
	err := r.db.Where("tenant_id = ?", tenantID).First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetTierLimits returns the ceilings configured for a subscription tier.
func (r *tenantRepository) GetTierLimits(tier string) (*model.TenantFeatures, error) {
	var features model.TenantFeatures
	err := r.db.Where("tier = ?", tier).First(&features).Error
	if err != nil {
		return nil, err
	}
	return &features, nil
}

// ensureStatsRow creates the stats row for a tenant if it does not exist
// yet, so the atomic counter updates always have a target.
func (r *tenantRepository) ensureStatsRow(tenantID string) error {
	now := time.Now()
	stats := model.TenantStats{TenantID: tenantID, LastActivity: &now}
	return r.db.Where("tenant_id = ?", tenantID).FirstOrCreate(&stats).Error
}

// IncrementTokenUsage adds tokens to the tenant's monthly counter and
// touches last_activity. The update is a single atomic SQL expression.
func (r *tenantRepository) IncrementTokenUsage(tenantID string, tokens int64) error {
	if err := r.ensureStatsRow(tenantID); err != nil {
		return err
	}
	return r.db.Model(&model.TenantStats{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"tokens_used":   gorm.Expr("tokens_used + ?", tokens),
			"last_activity": time.Now(),
		}).Error
}

// IncrementDocumentCount adds delta documents to the tenant's counter.
func (r *tenantRepository) IncrementDocumentCount(tenantID string, delta int64) error {
	if err := r.ensureStatsRow(tenantID); err != nil {
		return err
	}
	return r.db.Model(&model.TenantStats{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"document_count": gorm.Expr("document_count + ?", delta),
			"last_activity":  time.Now(),
		}).Error
}

// DecrementDocumentCount subtracts delta documents, never going below zero.
func (r *tenantRepository) DecrementDocumentCount(tenantID string, delta int64) error {
	return r.db.Model(&model.TenantStats{}).
		Where("tenant_id = ?", tenantID).
		Update("document_count", gorm.Expr("GREATEST(document_count - ?, 0)", delta)).Error
}
