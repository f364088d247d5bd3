// Package service implements the business logic of the three services.
package service

import (
	"errors"

	"gorm.io/gorm"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/pkg/log"
)

// TenantService authorizes tenants and enforces their quotas. Every
// operation in every service runs Authorize first.
type TenantService interface {
	// Authorize verifies the tenant exists and holds an active
	// subscription, returning its id and tier.
	Authorize(tenantID string) (*model.TenantInfo, error)
	// CheckDocumentQuota fails with a rate-limit error when the tenant
	// has reached its tier's document ceiling.
	CheckDocumentQuota(info *model.TenantInfo) error
	// CheckTokenQuota fails with a rate-limit error when the tenant has
	// reached its tier's monthly token ceiling.
	CheckTokenQuota(info *model.TenantInfo) error
	// TrackTokenUsage records estimated token usage, scaled by the
	// model's cost factor. Failures are logged, never surfaced.
	TrackTokenUsage(tenantID string, estimatedTokens int64, llmModel string)
}

type tenantService struct {
	tenantRepo repository.TenantRepository
}

// NewTenantService creates a new TenantService instance.
func NewTenantService(tenantRepo repository.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo}
}

// Authorize verifies the tenant and its subscription.
func (s *tenantService) Authorize(tenantID string) (*model.TenantInfo, error) {
	if _, err := s.tenantRepo.FindByTenantID(tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "tenant %s not found", tenantID)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to look up tenant %s", tenantID)
	}

	sub, err := s.tenantRepo.FindActiveSubscription(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindForbidden, "no active subscription for tenant %s", tenantID)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to look up subscription for tenant %s", tenantID)
	}

	return &model.TenantInfo{
		TenantID:         tenantID,
		SubscriptionTier: sub.SubscriptionTier,
	}, nil
}

// usageAndLimits loads the tenant's counters and its tier ceilings. A
// missing stats row means the tenant has used nothing yet.
func (s *tenantService) usageAndLimits(info *model.TenantInfo) (*model.TenantStats, *model.TenantFeatures, error) {
	stats, err := s.tenantRepo.GetStats(info.TenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, apperr.Wrap(apperr.KindUpstream, err, "failed to load usage for tenant %s", info.TenantID)
	}

	limits, err := s.tenantRepo.GetTierLimits(info.SubscriptionTier)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindUpstream, err, "subscription tier limits not found for tier %s", info.SubscriptionTier)
	}
	return stats, limits, nil
}

// CheckDocumentQuota enforces the tier's document ceiling.
func (s *tenantService) CheckDocumentQuota(info *model.TenantInfo) error {
	stats, limits, err := s.usageAndLimits(info)
	if err != nil {
		return err
	}
	if stats == nil {
		// No usage recorded yet: under quota.
		return nil
	}
	if stats.DocumentCount >= limits.MaxDocs {
		return apperr.New(apperr.KindRateLimited, "document limit reached for your subscription tier")
	}
	return nil
}

// CheckTokenQuota enforces the tier's monthly token ceiling.
func (s *tenantService) CheckTokenQuota(info *model.TenantInfo) error {
	stats, limits, err := s.usageAndLimits(info)
	if err != nil {
		return err
	}
	if stats == nil {
		return nil
	}
	if limits.MaxTokensPerMonth > 0 && stats.TokensUsed >= limits.MaxTokensPerMonth {
		return apperr.New(apperr.KindRateLimited, "monthly token limit reached for your subscription tier")
	}
	return nil
}

// TrackTokenUsage scales the estimate by the model's cost factor and
// records it. Usage tracking never fails a request.
func (s *tenantService) TrackTokenUsage(tenantID string, estimatedTokens int64, llmModel string) {
	adjusted := int64(float64(estimatedTokens) * model.CostFactor(llmModel))
	if err := s.tenantRepo.IncrementTokenUsage(tenantID, adjusted); err != nil {
		log.Errorf("failed to track token usage for tenant %s: %v", tenantID, err)
	}
}
