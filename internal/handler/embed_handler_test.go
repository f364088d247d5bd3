package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktree-ai-go/internal/model"
)

type trackedUsage struct {
	tenantID string
	tokens   int64
	model    string
}

type fakeTenantService struct {
	tier    string
	tracked []trackedUsage
}

func (s *fakeTenantService) Authorize(tenantID string) (*model.TenantInfo, error) {
	return &model.TenantInfo{TenantID: tenantID, SubscriptionTier: s.tier}, nil
}

func (s *fakeTenantService) CheckDocumentQuota(*model.TenantInfo) error { return nil }

func (s *fakeTenantService) CheckTokenQuota(*model.TenantInfo) error { return nil }

func (s *fakeTenantService) TrackTokenUsage(tenantID string, tokens int64, llmModel string) {
	s.tracked = append(s.tracked, trackedUsage{tenantID: tenantID, tokens: tokens, model: llmModel})
}

type fakeEmbeddingService struct{}

func (fakeEmbeddingService) EmbedBatch(_ context.Context, _ *model.TenantInfo, texts []string, _ string) (*model.EmbedResult, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3, 4}
	}
	return &model.EmbedResult{
		Embeddings: vectors,
		Model:      "text-embedding-3-small",
		Dimensions: 4,
	}, nil
}

func TestEmbedEndpointChargesUsageOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tenantSvc := &fakeTenantService{tier: model.TierPro}
	h := NewEmbedHandler(fakeEmbeddingService{}, tenantSvc, nil, nil, nil)

	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	body := `{"tenant_id":"t1","texts":["hello world",""]}`
	req := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// "hello world" is two words: 2 * 1.3 truncates to 2 tokens; the
	// blank text costs nothing. Exactly one charge for the request.
	require.Len(t, tenantSvc.tracked, 1)
	assert.Equal(t, "t1", tenantSvc.tracked[0].tenantID)
	assert.Equal(t, int64(2), tenantSvc.tracked[0].tokens)
	assert.Equal(t, "text-embedding-3-small", tenantSvc.tracked[0].model)
}
