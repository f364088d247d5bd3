// Package model defines the datastore entities and wire structures.
package model

import "time"

// Subscription tiers. All data and ceilings are partitioned by tier.
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierBusiness = "business"
)

// Tenant maps the tenants table. Tenants are created and managed by an
// external system; this platform only reads them.
type Tenant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"tenantId"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName sets the table name for this model.
func (Tenant) TableName() string {
	return "tenants"
}

// TenantSubscription maps the tenant_subscriptions table.
type TenantSubscription struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID         string     `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	SubscriptionTier string     `gorm:"type:varchar(20);not null" json:"subscriptionTier"`
	IsActive         bool       `gorm:"not null;default:false" json:"isActive"`
	StartedAt        *time.Time `json:"startedAt"`
	ExpiresAt        *time.Time `json:"expiresAt"`
}

// TableName sets the table name for this model.
func (TenantSubscription) TableName() string {
	return "tenant_subscriptions"
}

// TenantFeatures maps the tenant_features table: per-tier ceilings.
type TenantFeatures struct {
	ID                uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Tier              string `gorm:"type:varchar(20);not null;uniqueIndex" json:"tier"`
	MaxDocs           int64  `gorm:"not null" json:"maxDocs"`
	MaxTokensPerMonth int64  `gorm:"not null" json:"maxTokensPerMonth"`
}

// TableName sets the table name for this model.
func (TenantFeatures) TableName() string {
	return "tenant_features"
}

// TenantStats maps the tenant_stats table: current usage counters.
// Counters are mutated only through atomic increment/decrement updates.
type TenantStats struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"tenantId"`
	DocumentCount int64      `gorm:"not null;default:0" json:"documentCount"`
	TokensUsed    int64      `gorm:"not null;default:0" json:"tokensUsed"`
	LastActivity  *time.Time `json:"lastActivity"`
}

// TableName sets the table name for this model.
func (TenantStats) TableName() string {
	return "tenant_stats"
}

// QueryLog maps the query_logs table. Append-only analytics record.
type QueryLog struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID        string    `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	Query           string    `gorm:"type:text" json:"query"`
	Collection      string    `gorm:"type:varchar(128)" json:"collection"`
	LLMModel        string    `gorm:"type:varchar(64);column:llm_model" json:"llmModel"`
	TokensEstimated int64     `json:"tokensEstimated"`
	ResponseTimeMs  int64     `json:"responseTimeMs"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName sets the table name for this model.
func (QueryLog) TableName() string {
	return "query_logs"
}

// TenantInfo is the result of a successful authorization check. It is
// ephemeral and travels with the request.
type TenantInfo struct {
	TenantID         string `json:"tenant_id"`
	SubscriptionTier string `json:"subscription_tier"`
}
