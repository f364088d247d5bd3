// Package embedding provides a client for the embedding provider API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"linktree-ai-go/internal/config"
	"linktree-ai-go/pkg/log"
)

// Client defines the interface for an embedding provider. Implementations
// accept a batch of texts and return one fixed-dimension vector per text,
// in submission order.
type Client interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// RetryConfig bounds the retry loop around provider calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the production retry settings: three
// attempts with exponential backoff between 4s and 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		MaxDelay:     10 * time.Second,
	}
}

type openAICompatibleClient struct {
	cfg    config.ProviderConfig
	client *http.Client
	retry  RetryConfig
}

// NewClient creates an embedding client for an OpenAI-compatible API.
func NewClient(cfg config.ProviderConfig) Client {
	return NewClientWithRetry(cfg, DefaultRetryConfig())
}

// NewClientWithRetry creates an embedding client with explicit retry
// settings. Tests use short delays here.
func NewClientWithRetry(cfg config.ProviderConfig, retry RetryConfig) Client {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
		retry:  retry,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch resolves the whole input through the provider's
// /embeddings endpoint, splitting it into sub-batches of the configured
// size. Each sub-batch is retried with exponential backoff; the error
// returned after the last attempt aborts the whole call.
func (c *openAICompatibleClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = c.cfg.DefaultModel
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedWithRetry(ctx, model, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *openAICompatibleClient) embedWithRetry(ctx context.Context, model string, texts []string) ([][]float32, error) {
	var lastErr error
	delay := c.retry.InitialDelay
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		vectors, err := c.embedOnce(ctx, model, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		log.Warnf("embedding provider call failed (attempt %d/%d): %v", attempt, c.retry.MaxAttempts, err)

		if attempt == c.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
	return nil, fmt.Errorf("embedding provider failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *openAICompatibleClient) embedOnce(ctx context.Context, model string, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: model,
		Input: texts,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d texts", len(embeddingResp.Data), len(texts))
	}

	vectors := make([][]float32, len(embeddingResp.Data))
	for i, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("received empty embedding from api at position %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
