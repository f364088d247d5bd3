package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLLMModel(t *testing.T) {
	tests := []struct {
		name      string
		tier      string
		requested string
		want      string
	}{
		{"free default", TierFree, "", LLMModelEconomy},
		{"free allowed model", TierFree, LLMModelEconomy, LLMModelEconomy},
		{"free requests premium, silently downgraded", TierFree, LLMModelPremium, LLMModelEconomy},
		{"pro default", TierPro, "", LLMModelPremium},
		{"pro requests economy", TierPro, LLMModelEconomy, LLMModelEconomy},
		{"pro requests claude, silently downgraded", TierPro, LLMModelClaude, LLMModelPremium},
		{"business default", TierBusiness, "", LLMModelPremium},
		{"business requests claude", TierBusiness, LLMModelClaude, LLMModelClaude},
		{"unknown tier treated as free", "enterprise", LLMModelPremium, LLMModelEconomy},
		{"unknown model downgraded", TierBusiness, "gpt-9", LLMModelPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLLMModel(tt.tier, tt.requested))
		})
	}
}

func TestCostFactor(t *testing.T) {
	assert.Equal(t, 1.0, CostFactor(LLMModelEconomy))
	assert.Equal(t, 5.0, CostFactor(LLMModelPremium))
	assert.Equal(t, 10.0, CostFactor(LLMModelVision))
	assert.Equal(t, 8.0, CostFactor(LLMModelClaude))
	assert.Equal(t, 1.0, CostFactor("unknown-model"))
}

func TestLLMModelsForTier(t *testing.T) {
	free := LLMModelsForTier(TierFree)
	assert.Len(t, free, 1)
	assert.Equal(t, LLMModelEconomy, free[0].ID)

	business := LLMModelsForTier(TierBusiness)
	assert.Len(t, business, 4)

	unknown := LLMModelsForTier("nonsense")
	assert.Len(t, unknown, 1)
}

func TestEmbeddingModelsForTier(t *testing.T) {
	assert.Len(t, EmbeddingModelsForTier(TierFree), 1)
	assert.Len(t, EmbeddingModelsForTier(TierPro), 2)
	assert.Len(t, EmbeddingModelsForTier(TierBusiness), 2)

	assert.False(t, EmbeddingModelAllowed(TierFree))
	assert.True(t, EmbeddingModelAllowed(TierPro))
	assert.True(t, EmbeddingModelAllowed(TierBusiness))
}
