package service

import (
	"strings"

	"linktree-ai-go/internal/model"
)

// EstimateTokens approximates the token count of a text as its word
// count times 1.3. Deliberately rough; it feeds quota accounting, not
// billing-grade metering.
func EstimateTokens(text string) int64 {
	return int64(float64(len(strings.Fields(text))) * 1.3)
}

// EstimateEmbeddingTokens sums the token estimate of a batch, skipping
// blank texts since those never reach the provider. Only the embedding
// endpoints charge this; the query and ingestion pipelines account for
// their usage themselves.
func EstimateEmbeddingTokens(texts []string) int64 {
	var total int64
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		total += EstimateTokens(text)
	}
	return total
}

// estimateContextTokens counts retrieved chunk text at half weight:
// context rides along in the prompt and costs less than generated
// tokens, so it is billed at 0.5 words per word. Extra metadata is not
// part of the prompt and is not counted.
func estimateContextTokens(chunks []model.RetrievedChunk) int64 {
	words := 0
	for _, c := range chunks {
		words += len(strings.Fields(c.Chunk.Content))
	}
	return int64(float64(words) * 0.5)
}
