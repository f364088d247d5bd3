package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/pkg/llm"
	"linktree-ai-go/pkg/log"
)

// SubscriptionInfo is the subscription block of a stats report.
type SubscriptionInfo struct {
	Tier      string     `json:"tier"`
	StartedAt *time.Time `json:"started_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// TenantStatsReport is the reply of GET /stats.
type TenantStatsReport struct {
	TenantID      string           `json:"tenant_id"`
	DocumentCount int64            `json:"document_count"`
	TokensUsed    int64            `json:"tokens_used"`
	LastActivity  *time.Time       `json:"last_activity"`
	TotalQueries  int64            `json:"total_queries"`
	TokenLimit    int64            `json:"token_limit,omitempty"`
	DocumentLimit int64            `json:"document_limit,omitempty"`
	Subscription  SubscriptionInfo `json:"subscription"`
	RecentQueries []model.QueryLog `json:"recent_queries"`
}

// QueryService answers tenant questions over their indexed documents.
type QueryService interface {
	Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error)
	StreamQuery(ctx context.Context, req *model.QueryRequest, writer llm.MessageWriter) error
	ListDocuments(ctx context.Context, tenantID, collection string, limit, offset int) ([]model.DocumentInfo, int, error)
	ListCollections(ctx context.Context, tenantID string) ([]model.CollectionStat, error)
	ListLLMModels(tenantID string) ([]model.ModelInfo, error)
	GetStats(tenantID string) (*TenantStatsReport, error)
}

type queryService struct {
	tenantService    TenantService
	embeddingService EmbeddingService
	chunkRepo        repository.ChunkRepository
	queryLogRepo     repository.QueryLogRepository
	tenantRepo       repository.TenantRepository
	llmClient        llm.Client
	defaultTopK      int
	similarityCutoff float64
	defaultMode      string
}

// NewQueryService creates a new QueryService instance.
func NewQueryService(
	tenantService TenantService,
	embeddingService EmbeddingService,
	chunkRepo repository.ChunkRepository,
	queryLogRepo repository.QueryLogRepository,
	tenantRepo repository.TenantRepository,
	llmClient llm.Client,
	defaultTopK int,
	similarityCutoff float64,
	defaultMode string,
) QueryService {
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	if defaultMode == "" {
		defaultMode = "compact"
	}
	return &queryService{
		tenantService:    tenantService,
		embeddingService: embeddingService,
		chunkRepo:        chunkRepo,
		queryLogRepo:     queryLogRepo,
		tenantRepo:       tenantRepo,
		llmClient:        llmClient,
		defaultTopK:      defaultTopK,
		similarityCutoff: similarityCutoff,
		defaultMode:      defaultMode,
	}
}

// retrieve embeds the query and returns the relevant chunks above the
// similarity cutoff.
func (s *queryService) retrieve(ctx context.Context, tenant *model.TenantInfo, req *model.QueryRequest) ([]model.RetrievedChunk, error) {
	embRes, err := s.embeddingService.EmbedBatch(ctx, tenant, []string{req.Query}, "")
	if err != nil {
		return nil, err
	}

	topK := req.SimilarityTopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	hits, err := s.chunkRepo.KNNSearch(ctx, tenant.TenantID, req.CollectionName, embRes.Embeddings[0], topK)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to retrieve context")
	}

	relevant := make([]model.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= s.similarityCutoff {
			relevant = append(relevant, hit)
		}
	}
	return relevant, nil
}

// metadataForSource flattens chunk metadata for the response, dropping
// the tenant id, which callers must never see echoed back.
func metadataForSource(meta model.ChunkMetadata) map[string]string {
	out := make(map[string]string)
	for k, v := range meta.Extra {
		out[k] = v
	}
	out["source"] = meta.Source
	if meta.Author != "" {
		out["author"] = meta.Author
	}
	if meta.CreatedAt != "" {
		out["created_at"] = meta.CreatedAt
	}
	if meta.DocumentType != "" {
		out["document_type"] = meta.DocumentType
	}
	out["document_id"] = meta.DocumentID
	out["collection"] = meta.Collection
	return out
}

const answerSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. If the context does not contain the answer, say so."

func contextBlock(chunks []model.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, c.Chunk.Content)
	}
	return b.String()
}

func compactPrompt(query string, chunks []model.RetrievedChunk) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", contextBlock(chunks), query)},
	}
}

// synthesize generates the answer from the retrieved chunks according
// to the response mode. compact stuffs all context into one call;
// refine walks the chunks improving the answer; tree answers per chunk
// and then combines.
func (s *queryService) synthesize(ctx context.Context, llmModel, mode, query string, chunks []model.RetrievedChunk) (string, error) {
	if len(chunks) == 0 {
		return "No relevant context was found to answer this query.", nil
	}

	switch mode {
	case "refine":
		answer, err := s.llmClient.Complete(ctx, llmModel, compactPrompt(query, chunks[:1]))
		if err != nil {
			return "", err
		}
		for _, c := range chunks[1:] {
			refined, err := s.llmClient.Complete(ctx, llmModel, []llm.Message{
				{Role: "system", Content: answerSystemPrompt},
				{Role: "user", Content: fmt.Sprintf(
					"Existing answer: %s\n\nAdditional context:\n%s\n\nQuestion: %s\n\nRefine the existing answer using the additional context. Keep it if the context adds nothing.",
					answer, c.Chunk.Content, query)},
			})
			if err != nil {
				return "", err
			}
			answer = refined
		}
		return answer, nil

	case "tree", "tree_summarize":
		partials := make([]string, 0, len(chunks))
		for _, c := range chunks {
			partial, err := s.llmClient.Complete(ctx, llmModel, compactPrompt(query, []model.RetrievedChunk{c}))
			if err != nil {
				return "", err
			}
			partials = append(partials, partial)
		}
		return s.llmClient.Complete(ctx, llmModel, []llm.Message{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Candidate answers:\n%s\nQuestion: %s\n\nCombine the candidate answers into one final answer.",
				strings.Join(partials, "\n---\n"), query)},
		})

	default: // compact
		return s.llmClient.Complete(ctx, llmModel, compactPrompt(query, chunks))
	}
}

// finishQuery tracks usage and appends the analytics record.
func (s *queryService) finishQuery(req *model.QueryRequest, llmModel, response string, chunks []model.RetrievedChunk, started time.Time) int64 {
	totalTokens := EstimateTokens(req.Query) + EstimateTokens(response) + estimateContextTokens(chunks)
	s.tenantService.TrackTokenUsage(req.TenantID, totalTokens, llmModel)

	entry := &model.QueryLog{
		TenantID:        req.TenantID,
		Query:           req.Query,
		Collection:      req.CollectionName,
		LLMModel:        llmModel,
		TokensEstimated: totalTokens,
		ResponseTimeMs:  time.Since(started).Milliseconds(),
	}
	if err := s.queryLogRepo.Create(entry); err != nil {
		log.Errorf("failed to log query for tenant %s: %v", req.TenantID, err)
	}
	return totalTokens
}

// Query runs the full RAG pipeline and returns the answer with sources.
func (s *queryService) Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	started := time.Now()

	tenant, err := s.tenantService.Authorize(req.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.tenantService.CheckTokenQuota(tenant); err != nil {
		return nil, err
	}

	// A requested model outside the tier's allow-list is replaced by
	// the tier default, never rejected.
	llmModel := model.ResolveLLMModel(tenant.SubscriptionTier, req.LLMModel)

	chunks, err := s.retrieve(ctx, tenant, req)
	if err != nil {
		return nil, err
	}

	mode := req.ResponseMode
	if mode == "" {
		mode = s.defaultMode
	}
	response, err := s.synthesize(ctx, llmModel, mode, req.Query, chunks)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to generate answer")
	}

	s.finishQuery(req, llmModel, response, chunks, started)

	sources := make([]model.QueryContextItem, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, model.QueryContextItem{
			Text:     c.Chunk.Content,
			Metadata: metadataForSource(c.Chunk.Metadata),
			Score:    c.Score,
		})
	}

	collection := req.CollectionName
	if collection == "" {
		collection = "default"
	}
	return &model.QueryResponse{
		TenantID:       req.TenantID,
		Query:          req.Query,
		Response:       response,
		Sources:        sources,
		ProcessingTime: time.Since(started).Seconds(),
		LLMModel:       llmModel,
		CollectionName: collection,
	}, nil
}

// countingWriter forwards streamed chunks and accumulates the full
// answer so usage can be tracked after the stream ends.
type countingWriter struct {
	inner llm.MessageWriter
	buf   strings.Builder
}

func (w *countingWriter) WriteMessage(messageType int, data []byte) error {
	w.buf.Write(data)
	return w.inner.WriteMessage(messageType, data)
}

// StreamQuery runs the same pipeline but streams the answer chunk by
// chunk. Only compact synthesis is supported over the stream.
func (s *queryService) StreamQuery(ctx context.Context, req *model.QueryRequest, writer llm.MessageWriter) error {
	started := time.Now()

	tenant, err := s.tenantService.Authorize(req.TenantID)
	if err != nil {
		return err
	}
	if err := s.tenantService.CheckTokenQuota(tenant); err != nil {
		return err
	}

	llmModel := model.ResolveLLMModel(tenant.SubscriptionTier, req.LLMModel)

	chunks, err := s.retrieve(ctx, tenant, req)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		if err := writer.WriteMessage(websocket.TextMessage, []byte("No relevant context was found to answer this query.")); err != nil {
			return err
		}
		s.finishQuery(req, llmModel, "", chunks, started)
		return nil
	}

	counting := &countingWriter{inner: writer}
	if err := s.llmClient.StreamChat(ctx, llmModel, compactPrompt(req.Query, chunks), counting); err != nil {
		return apperr.Wrap(apperr.KindUpstream, err, "failed to stream answer")
	}

	s.finishQuery(req, llmModel, counting.buf.String(), chunks, started)
	return nil
}

// ListDocuments returns a page of the tenant's distinct documents.
func (s *queryService) ListDocuments(ctx context.Context, tenantID, collection string, limit, offset int) ([]model.DocumentInfo, int, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return nil, 0, err
	}

	docs, err := s.chunkRepo.ListDocuments(ctx, tenantID, collection)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindUpstream, err, "failed to list documents")
	}

	total := len(docs)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []model.DocumentInfo{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return docs[offset:end], total, nil
}

// ListCollections returns the tenant's collections with document counts.
func (s *queryService) ListCollections(ctx context.Context, tenantID string) ([]model.CollectionStat, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return nil, err
	}
	stats, err := s.chunkRepo.ListCollections(ctx, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to list collections")
	}
	return stats, nil
}

// ListLLMModels returns the LLM catalogue visible to the tenant's tier.
func (s *queryService) ListLLMModels(tenantID string) ([]model.ModelInfo, error) {
	tenant, err := s.tenantService.Authorize(tenantID)
	if err != nil {
		return nil, err
	}
	return model.LLMModelsForTier(tenant.SubscriptionTier), nil
}

// GetStats assembles the tenant's usage report: counters, limits,
// subscription window, and the five most recent queries.
func (s *queryService) GetStats(tenantID string) (*TenantStatsReport, error) {
	tenant, err := s.tenantService.Authorize(tenantID)
	if err != nil {
		return nil, err
	}

	report := &TenantStatsReport{
		TenantID:      tenantID,
		RecentQueries: []model.QueryLog{},
		Subscription:  SubscriptionInfo{Tier: tenant.SubscriptionTier},
	}

	stats, err := s.tenantRepo.GetStats(tenantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to load stats for tenant %s", tenantID)
	}
	if stats != nil {
		report.DocumentCount = stats.DocumentCount
		report.TokensUsed = stats.TokensUsed
		report.LastActivity = stats.LastActivity
	}

	if limits, err := s.tenantRepo.GetTierLimits(tenant.SubscriptionTier); err == nil {
		report.TokenLimit = limits.MaxTokensPerMonth
		report.DocumentLimit = limits.MaxDocs
	}

	if sub, err := s.tenantRepo.FindActiveSubscription(tenantID); err == nil {
		report.Subscription.StartedAt = sub.StartedAt
		report.Subscription.ExpiresAt = sub.ExpiresAt
	}

	if recent, err := s.queryLogRepo.FindRecentByTenant(tenantID, 5); err == nil {
		report.RecentQueries = recent
	}
	if total, err := s.queryLogRepo.CountByTenant(tenantID); err == nil {
		report.TotalQueries = total
	}

	return report, nil
}
