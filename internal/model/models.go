package model

// ModelInfo describes one model in the tier-gated catalogue.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Dimensions  int    `json:"dimensions,omitempty"`
	Description string `json:"description"`
}

// LLM model identifiers.
const (
	LLMModelEconomy = "gpt-3.5-turbo"
	LLMModelPremium = "gpt-4-turbo"
	LLMModelVision  = "gpt-4-turbo-vision"
	LLMModelClaude  = "claude-3-5-sonnet"
)

// Embedding model identifiers.
const (
	EmbeddingModelSmall = "text-embedding-3-small"
	EmbeddingModelLarge = "text-embedding-3-large"
)

// tierLLMModels maps a subscription tier to the LLM models it may use.
var tierLLMModels = map[string][]string{
	TierFree:     {LLMModelEconomy},
	TierPro:      {LLMModelEconomy, LLMModelPremium},
	TierBusiness: {LLMModelEconomy, LLMModelPremium, LLMModelVision, LLMModelClaude},
}

// tierDefaultLLM maps a subscription tier to its default LLM model.
var tierDefaultLLM = map[string]string{
	TierFree:     LLMModelEconomy,
	TierPro:      LLMModelPremium,
	TierBusiness: LLMModelPremium,
}

// modelCostFactor scales estimated token usage per model before it is
// recorded against the tenant's quota.
var modelCostFactor = map[string]float64{
	LLMModelEconomy: 1.0,
	LLMModelPremium: 5.0,
	LLMModelVision:  10.0,
	LLMModelClaude:  8.0,
}

// ResolveLLMModel returns the model to use for the given tier. A
// requested model outside the tier's allow-list is silently replaced by
// the tier default, never rejected.
func ResolveLLMModel(tier, requested string) string {
	allowed, ok := tierLLMModels[tier]
	if !ok {
		allowed = tierLLMModels[TierFree]
	}
	if requested != "" {
		for _, m := range allowed {
			if m == requested {
				return requested
			}
		}
	}
	if def, ok := tierDefaultLLM[tier]; ok {
		return def
	}
	return LLMModelEconomy
}

// CostFactor returns the per-model token cost factor, defaulting to 1.0
// for unknown models.
func CostFactor(model string) float64 {
	if f, ok := modelCostFactor[model]; ok {
		return f
	}
	return 1.0
}

// LLMModelsForTier returns the LLM catalogue visible to the given tier.
func LLMModelsForTier(tier string) []ModelInfo {
	catalogue := map[string]ModelInfo{
		LLMModelEconomy: {
			ID:          LLMModelEconomy,
			Name:        "GPT-3.5 Turbo",
			Provider:    "openai",
			Description: "Fast and cost-effective model for most queries",
		},
		LLMModelPremium: {
			ID:          LLMModelPremium,
			Name:        "GPT-4 Turbo",
			Provider:    "openai",
			Description: "Advanced reasoning capabilities for complex queries",
		},
		LLMModelVision: {
			ID:          LLMModelVision,
			Name:        "GPT-4 Turbo Vision",
			Provider:    "openai",
			Description: "Vision capabilities for image analysis (if needed)",
		},
		LLMModelClaude: {
			ID:          LLMModelClaude,
			Name:        "Claude 3.5 Sonnet",
			Provider:    "anthropic",
			Description: "Alternative model with excellent instruction following",
		},
	}

	ids, ok := tierLLMModels[tier]
	if !ok {
		ids = tierLLMModels[TierFree]
	}
	models := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		models = append(models, catalogue[id])
	}
	return models
}

// EmbeddingModelsForTier returns the embedding catalogue visible to the
// given tier. The large model is reserved for pro and business.
func EmbeddingModelsForTier(tier string) []ModelInfo {
	base := []ModelInfo{
		{
			ID:          EmbeddingModelSmall,
			Name:        "OpenAI Embedding Small",
			Provider:    "openai",
			Dimensions:  1536,
			Description: "Fast and efficient general purpose embedding model",
		},
	}
	if tier == TierPro || tier == TierBusiness {
		base = append(base, ModelInfo{
			ID:          EmbeddingModelLarge,
			Name:        "OpenAI Embedding Large",
			Provider:    "openai",
			Dimensions:  3072,
			Description: "High performance embedding model with better retrieval quality",
		})
	}
	return base
}

// EmbeddingModelAllowed reports whether the tier may request a custom
// embedding model. Free-tier requests for a custom model are ignored by
// the caller, not rejected.
func EmbeddingModelAllowed(tier string) bool {
	return tier == TierPro || tier == TierBusiness
}
