package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"linktree-ai-go/internal/model"
	"linktree-ai-go/pkg/cache"
	"linktree-ai-go/pkg/llm"
	"linktree-ai-go/pkg/tasks"
)

// vecFor derives a small deterministic vector from a text so tests can
// tell results apart.
func vecFor(text string) []float32 {
	return []float32{float32(len(text)), 1, 2, 3}
}

type providerCall struct {
	model string
	texts []string
}

type fakeProvider struct {
	calls []providerCall
	err   error
}

func (p *fakeProvider) EmbedBatch(_ context.Context, embModel string, texts []string) ([][]float32, error) {
	p.calls = append(p.calls, providerCall{model: embModel, texts: texts})
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFor(t)
	}
	return out, nil
}

type fakeCacheStore struct {
	store   map[string][]float32
	getErr  error
	setErr  error
	gets    int
	sets    int
	prefix  string
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{store: map[string][]float32{}, prefix: "test-embed"}
}

func (c *fakeCacheStore) Key(embModel, text string) string {
	return cache.Key(c.prefix, embModel, text)
}

func (c *fakeCacheStore) Get(_ context.Context, key string) ([]float32, error) {
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.store[key], nil
}

func (c *fakeCacheStore) Set(_ context.Context, key string, vector []float32) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.store[key] = vector
	return nil
}

// fakeTenantRepo is an in-memory TenantRepository.
type fakeTenantRepo struct {
	tenants       map[string]*model.Tenant
	subscriptions map[string]*model.TenantSubscription
	stats         map[string]*model.TenantStats
	limits        map[string]*model.TenantFeatures
	tokensAdded   map[string]int64
	docDelta      map[string]int64
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{
		tenants:       map[string]*model.Tenant{},
		subscriptions: map[string]*model.TenantSubscription{},
		stats:         map[string]*model.TenantStats{},
		limits:        map[string]*model.TenantFeatures{},
		tokensAdded:   map[string]int64{},
		docDelta:      map[string]int64{},
	}
}

func (r *fakeTenantRepo) addTenant(tenantID, tier string) {
	r.tenants[tenantID] = &model.Tenant{TenantID: tenantID}
	r.subscriptions[tenantID] = &model.TenantSubscription{TenantID: tenantID, SubscriptionTier: tier, IsActive: true}
}

func (r *fakeTenantRepo) FindByTenantID(tenantID string) (*model.Tenant, error) {
	if t, ok := r.tenants[tenantID]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) FindActiveSubscription(tenantID string) (*model.TenantSubscription, error) {
	if s, ok := r.subscriptions[tenantID]; ok && s.IsActive {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) GetStats(tenantID string) (*model.TenantStats, error) {
	if s, ok := r.stats[tenantID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) GetTierLimits(tier string) (*model.TenantFeatures, error) {
	if l, ok := r.limits[tier]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) IncrementTokenUsage(tenantID string, tokens int64) error {
	r.tokensAdded[tenantID] += tokens
	return nil
}

func (r *fakeTenantRepo) IncrementDocumentCount(tenantID string, delta int64) error {
	r.docDelta[tenantID] += delta
	return nil
}

func (r *fakeTenantRepo) DecrementDocumentCount(tenantID string, delta int64) error {
	r.docDelta[tenantID] -= delta
	return nil
}

// fakeTaskRepo is an in-memory TaskRepository.
type fakeTaskRepo struct {
	tasks map[string]*model.IngestionTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]*model.IngestionTask{}}
}

func (r *fakeTaskRepo) Create(task *model.IngestionTask) error {
	r.tasks[task.TaskID] = task
	return nil
}

func (r *fakeTaskRepo) FindByTaskID(taskID string) (*model.IngestionTask, error) {
	if t, ok := r.tasks[taskID]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTaskRepo) MarkProcessing(taskID string) error {
	r.tasks[taskID].Status = model.TaskStatusProcessing
	return nil
}

func (r *fakeTaskRepo) MarkCompleted(taskID string) error {
	r.tasks[taskID].Status = model.TaskStatusCompleted
	return nil
}

func (r *fakeTaskRepo) MarkFailed(taskID string, errMsg string) error {
	r.tasks[taskID].Status = model.TaskStatusFailed
	r.tasks[taskID].ErrorMessage = errMsg
	return nil
}

// fakeChunkRepo is an in-memory ChunkRepository.
type fakeChunkRepo struct {
	indexed    []model.ChunkDocument
	searchHits []model.RetrievedChunk
	searchErr  error
}

func (r *fakeChunkRepo) BulkIndex(_ context.Context, chunks []model.ChunkDocument) error {
	r.indexed = append(r.indexed, chunks...)
	return nil
}

func (r *fakeChunkRepo) KNNSearch(_ context.Context, _, _ string, _ []float32, _ int) ([]model.RetrievedChunk, error) {
	return r.searchHits, r.searchErr
}

func (r *fakeChunkRepo) DeleteByDocumentID(_ context.Context, tenantID, documentID string) (int64, error) {
	var remaining []model.ChunkDocument
	var deleted int64
	for _, c := range r.indexed {
		if c.TenantID == tenantID && c.Metadata.DocumentID == documentID {
			deleted++
			continue
		}
		remaining = append(remaining, c)
	}
	r.indexed = remaining
	return deleted, nil
}

func (r *fakeChunkRepo) DeleteByCollection(_ context.Context, tenantID, collection string) ([]string, error) {
	seen := map[string]bool{}
	var docIDs []string
	var remaining []model.ChunkDocument
	for _, c := range r.indexed {
		if c.TenantID == tenantID && c.Metadata.Collection == collection {
			if !seen[c.Metadata.DocumentID] {
				seen[c.Metadata.DocumentID] = true
				docIDs = append(docIDs, c.Metadata.DocumentID)
			}
			continue
		}
		remaining = append(remaining, c)
	}
	r.indexed = remaining
	return docIDs, nil
}

func (r *fakeChunkRepo) ListDocuments(_ context.Context, tenantID, collection string) ([]model.DocumentInfo, error) {
	seen := map[string]bool{}
	var docs []model.DocumentInfo
	for _, c := range r.indexed {
		if c.TenantID != tenantID {
			continue
		}
		if collection != "" && c.Metadata.Collection != collection {
			continue
		}
		if seen[c.Metadata.DocumentID] {
			continue
		}
		seen[c.Metadata.DocumentID] = true
		docs = append(docs, model.DocumentInfo{
			DocumentID: c.Metadata.DocumentID,
			Source:     c.Metadata.Source,
			Collection: c.Metadata.Collection,
		})
	}
	return docs, nil
}

func (r *fakeChunkRepo) ListCollections(_ context.Context, tenantID string) ([]model.CollectionStat, error) {
	counts := map[string]map[string]bool{}
	for _, c := range r.indexed {
		if c.TenantID != tenantID {
			continue
		}
		if counts[c.Metadata.Collection] == nil {
			counts[c.Metadata.Collection] = map[string]bool{}
		}
		counts[c.Metadata.Collection][c.Metadata.DocumentID] = true
	}
	var stats []model.CollectionStat
	for name, docs := range counts {
		stats = append(stats, model.CollectionStat{Name: name, DocumentCount: int64(len(docs))})
	}
	return stats, nil
}

// fakeQueryLogRepo is an in-memory QueryLogRepository.
type fakeQueryLogRepo struct {
	entries []*model.QueryLog
}

func (r *fakeQueryLogRepo) Create(entry *model.QueryLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeQueryLogRepo) FindRecentByTenant(tenantID string, limit int) ([]model.QueryLog, error) {
	var out []model.QueryLog
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			out = append(out, *r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeQueryLogRepo) CountByTenant(tenantID string) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// fakePublisher records published ingestion jobs.
type fakePublisher struct {
	jobs []tasks.IngestionJob
	err  error
}

func (p *fakePublisher) ProduceJob(_ context.Context, job tasks.IngestionJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

// fakeArchive signs predictable download URLs.
type fakeArchive struct {
	err error
}

func (a *fakeArchive) PresignedURL(_ context.Context, tenantID, collection, documentID string, _ time.Duration) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return fmt.Sprintf("https://archive.test/%s/%s/%s.txt", tenantID, collection, documentID), nil
}

// fakeLLM answers with a canned response and records calls.
type fakeLLM struct {
	response string
	calls    []string
	models   []string
}

func (l *fakeLLM) Complete(_ context.Context, llmModel string, messages []llm.Message) (string, error) {
	l.models = append(l.models, llmModel)
	l.calls = append(l.calls, messages[len(messages)-1].Content)
	if l.response == "" {
		return "canned answer", nil
	}
	return l.response, nil
}

func (l *fakeLLM) StreamChat(_ context.Context, llmModel string, messages []llm.Message, writer llm.MessageWriter) error {
	l.models = append(l.models, llmModel)
	l.calls = append(l.calls, messages[len(messages)-1].Content)
	resp := l.response
	if resp == "" {
		resp = "canned answer"
	}
	return writer.WriteMessage(1, []byte(resp))
}

// fakeEmbedder returns deterministic vectors without a provider.
type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, _ *model.TenantInfo, texts []string, _ string) (*model.EmbedResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFor(t)
	}
	return &model.EmbedResult{Embeddings: out, Model: "test-model", Dimensions: 4}, nil
}

var errBoom = errors.New("boom")

// retrievedChunk builds a retrieval hit for tests.
func retrievedChunk(tenantID, content string, score float64) model.RetrievedChunk {
	return model.RetrievedChunk{
		Chunk: model.ChunkDocument{
			ChunkID:  fmt.Sprintf("chunk-%s", content),
			TenantID: tenantID,
			Content:  content,
			Metadata: model.ChunkMetadata{
				TenantID:   tenantID,
				Source:     "doc.txt",
				DocumentID: "doc-1",
				Collection: "default",
			},
		},
		Score: score,
	}
}
