package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktree-ai-go/internal/config"
)

// testRetryConfig keeps backoff delays negligible in tests.
func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

type providerServer struct {
	mu        sync.Mutex
	requests  []embeddingRequest
	failFirst int
	badVector bool
	shortData bool
}

func (s *providerServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.requests = append(s.requests, req)

		if s.failFirst > 0 {
			s.failFirst--
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}

		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		n := len(req.Input)
		if s.shortData {
			n--
		}
		data := make([]datum, 0, n)
		for i := 0; i < n; i++ {
			vec := []float32{float32(len(req.Input[i])), float32(i)}
			if s.badVector {
				vec = nil
			}
			data = append(data, datum{Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}
}

func newTestClient(t *testing.T, srv *providerServer, batchSize int) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	cfg := config.ProviderConfig{
		APIKey:       "test-key",
		BaseURL:      ts.URL,
		DefaultModel: "text-embedding-3-small",
		Dimensions:   2,
		BatchSize:    batchSize,
	}
	return NewClientWithRetry(cfg, testRetryConfig()), ts
}

func TestEmbedBatchRequestShape(t *testing.T) {
	srv := &providerServer{}
	client, _ := newTestClient(t, srv, 0)

	vectors, err := client.EmbedBatch(context.Background(), "", []string{"aa", "b"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{2, 0}, vectors[0])
	assert.Equal(t, []float32{1, 1}, vectors[1])

	require.Len(t, srv.requests, 1)
	assert.Equal(t, "text-embedding-3-small", srv.requests[0].Model, "empty model falls back to the configured default")
	assert.Equal(t, []string{"aa", "b"}, srv.requests[0].Input)
}

func TestEmbedBatchSplitsIntoSubBatches(t *testing.T) {
	srv := &providerServer{}
	client, _ := newTestClient(t, srv, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := client.EmbedBatch(context.Background(), "custom-model", texts)
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}

	require.Len(t, srv.requests, 3)
	assert.Equal(t, []string{"a", "bb"}, srv.requests[0].Input)
	assert.Equal(t, []string{"ccc", "dddd"}, srv.requests[1].Input)
	assert.Equal(t, []string{"eeeee"}, srv.requests[2].Input)
	for _, req := range srv.requests {
		assert.Equal(t, "custom-model", req.Model)
	}
}

func TestEmbedBatchRetriesThenSucceeds(t *testing.T) {
	srv := &providerServer{failFirst: 2}
	client, _ := newTestClient(t, srv, 0)

	vectors, err := client.EmbedBatch(context.Background(), "", []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, srv.requests, 3, "two failures then one success")
}

func TestEmbedBatchExhaustsRetries(t *testing.T) {
	srv := &providerServer{failFirst: 3}
	client, _ := newTestClient(t, srv, 0)

	_, err := client.EmbedBatch(context.Background(), "", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Len(t, srv.requests, 3)
}

func TestEmbedBatchRejectsShortResponse(t *testing.T) {
	srv := &providerServer{shortData: true, failFirst: 0}
	client, _ := newTestClient(t, srv, 0)

	_, err := client.EmbedBatch(context.Background(), "", []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 texts")
}

func TestEmbedBatchRejectsEmptyVector(t *testing.T) {
	srv := &providerServer{badVector: true}
	client, _ := newTestClient(t, srv, 0)

	_, err := client.EmbedBatch(context.Background(), "", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	srv := &providerServer{}
	client, _ := newTestClient(t, srv, 0)

	vectors, err := client.EmbedBatch(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, srv.requests)
}
