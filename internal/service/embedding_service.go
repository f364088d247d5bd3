package service

import (
	"context"
	"strings"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
	"linktree-ai-go/pkg/embedding"
	"linktree-ai-go/pkg/log"
)

// EmbeddingCacheStore is the slice of the embedding cache the resolver
// needs. Satisfied by *cache.EmbeddingCache; tests substitute a fake.
type EmbeddingCacheStore interface {
	Key(model, text string) string
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// EmbeddingService resolves batches of texts to vectors through the
// cache-then-provider path.
type EmbeddingService interface {
	// EmbedBatch resolves one vector per input text, in input order.
	// Blank texts become zero vectors; duplicate texts share a single
	// provider slot; any provider failure aborts the whole batch.
	// Resolution never touches the tenant's quota counters: the query
	// and ingestion pipelines reuse this path, and each caller decides
	// what to charge.
	EmbedBatch(ctx context.Context, tenant *model.TenantInfo, texts []string, requestedModel string) (*model.EmbedResult, error)
}

type embeddingService struct {
	provider     embedding.Client
	cache        EmbeddingCacheStore
	defaultModel string
	dimensions   int
}

// NewEmbeddingService creates a new EmbeddingService instance.
func NewEmbeddingService(provider embedding.Client, embCache EmbeddingCacheStore, defaultModel string, dimensions int) EmbeddingService {
	return &embeddingService{
		provider:     provider,
		cache:        embCache,
		defaultModel: defaultModel,
		dimensions:   dimensions,
	}
}

// resolveModel picks the embedding model for a request. Only pro and
// business tenants may name one; everyone else gets the default.
func (s *embeddingService) resolveModel(tier, requested string) string {
	if requested != "" && model.EmbeddingModelAllowed(tier) {
		return requested
	}
	return s.defaultModel
}

// EmbedBatch classifies every position as blank, cached, or pending,
// makes at most one provider call for the pending texts, writes the new
// vectors back to the cache, and scatters everything to the original
// positions. Cache failures degrade to misses; they never fail a batch.
func (s *embeddingService) EmbedBatch(ctx context.Context, tenant *model.TenantInfo, texts []string, requestedModel string) (*model.EmbedResult, error) {
	embModel := s.resolveModel(tenant.SubscriptionTier, requestedModel)

	vectors := make([][]float32, len(texts))
	cachedCount := 0
	cacheHealthy := true

	// Pending texts deduplicated by derived key: each unique key takes
	// one provider slot and fans out to every position holding it.
	pendingKeys := make([]string, 0, len(texts))
	pendingTexts := make([]string, 0, len(texts))
	pendingByKey := make(map[string][]int)
	hitByKey := make(map[string][]float32)

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			// Blank input: zero vector, never cached, never sent out.
			vectors[i] = make([]float32, s.dimensions)
			continue
		}

		key := s.cache.Key(embModel, text)
		if v, ok := hitByKey[key]; ok {
			vectors[i] = v
			cachedCount++
			continue
		}
		if indices, ok := pendingByKey[key]; ok {
			pendingByKey[key] = append(indices, i)
			continue
		}

		if cacheHealthy {
			v, err := s.cache.Get(ctx, key)
			if err != nil {
				log.Warnf("embedding cache unavailable, degrading to misses: %v", err)
				cacheHealthy = false
			} else if v != nil {
				hitByKey[key] = v
				vectors[i] = v
				cachedCount++
				continue
			}
		}

		pendingByKey[key] = []int{i}
		pendingKeys = append(pendingKeys, key)
		pendingTexts = append(pendingTexts, text)
	}

	if len(pendingTexts) > 0 {
		fresh, err := s.provider.EmbedBatch(ctx, embModel, pendingTexts)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to generate embeddings")
		}
		for j, key := range pendingKeys {
			v := fresh[j]
			if cacheHealthy {
				if err := s.cache.Set(ctx, key, v); err != nil {
					log.Warnf("failed to cache embedding: %v", err)
					cacheHealthy = false
				}
			}
			for _, i := range pendingByKey[key] {
				vectors[i] = v
			}
		}
	}

	dims := s.dimensions
	for _, v := range vectors {
		if len(v) > 0 {
			dims = len(v)
			break
		}
	}

	return &model.EmbedResult{
		Embeddings:  vectors,
		Model:       embModel,
		Dimensions:  dims,
		CachedCount: cachedCount,
	}, nil
}
