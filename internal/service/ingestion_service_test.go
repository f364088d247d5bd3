package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
)

func newTestIngestionService(repo *fakeTenantRepo, taskRepo *fakeTaskRepo, chunkRepo *fakeChunkRepo, pub *fakePublisher) IngestionService {
	return NewIngestionService(NewTenantService(repo), taskRepo, chunkRepo, repo, pub, &fakeArchive{}, 512, 50)
}

func ingestionRequest(docs int) *model.IngestionRequest {
	req := &model.IngestionRequest{
		TenantID:       "t1",
		CollectionName: "kb",
	}
	for i := 0; i < docs; i++ {
		req.Documents = append(req.Documents, strings.Repeat("a", 1100))
		req.DocumentMetadatas = append(req.DocumentMetadatas, model.DocumentMetadata{
			Source:       "doc.txt",
			DocumentType: "text",
		})
	}
	return req
}

func TestIngestQueuesTaskAndChunks(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	taskRepo := newFakeTaskRepo()
	pub := &fakePublisher{}
	svc := newTestIngestionService(repo, taskRepo, &fakeChunkRepo{}, pub)

	resp, err := svc.Ingest(context.Background(), ingestionRequest(2))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Len(t, resp.DocumentIDs, 2)
	// 1100 runes at 512/50 chunk into 3 windows per document.
	assert.Equal(t, 6, resp.NodesCount)
	assert.NotEmpty(t, resp.TaskID)

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, resp.TaskID, job.TaskID)
	assert.Equal(t, "t1", job.TenantID)
	assert.Equal(t, "kb", job.Collection)
	assert.Len(t, job.Chunks, 6)
	assert.Len(t, job.Documents, 2)
	for _, chunk := range job.Chunks {
		assert.Equal(t, "t1", chunk.Metadata.TenantID)
		assert.Equal(t, "kb", chunk.Metadata.Collection)
		assert.Contains(t, resp.DocumentIDs, chunk.Metadata.DocumentID)
	}

	task, err := taskRepo.FindByTaskID(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, 2, task.DocumentCount)
	assert.Equal(t, 6, task.ChunkCount)
}

func TestIngestMetadataLengthMismatch(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	svc := newTestIngestionService(repo, newFakeTaskRepo(), &fakeChunkRepo{}, &fakePublisher{})

	req := ingestionRequest(2)
	req.DocumentMetadatas = req.DocumentMetadatas[:1]

	_, err := svc.Ingest(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIngestDocumentQuotaEnforced(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierFree)
	repo.limits[model.TierFree] = &model.TenantFeatures{Tier: model.TierFree, MaxDocs: 3, MaxTokensPerMonth: 1000}
	repo.stats["t1"] = &model.TenantStats{TenantID: "t1", DocumentCount: 3}
	svc := newTestIngestionService(repo, newFakeTaskRepo(), &fakeChunkRepo{}, &fakePublisher{})

	_, err := svc.Ingest(context.Background(), ingestionRequest(1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}

func TestIngestPublishFailureMarksTaskFailed(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	taskRepo := newFakeTaskRepo()
	svc := newTestIngestionService(repo, taskRepo, &fakeChunkRepo{}, &fakePublisher{err: errBoom})

	_, err := svc.Ingest(context.Background(), ingestionRequest(1))
	require.Error(t, err)

	require.Len(t, taskRepo.tasks, 1)
	for _, task := range taskRepo.tasks {
		assert.Equal(t, model.TaskStatusFailed, task.Status)
	}
}

func TestGetTaskScopedToTenant(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	repo.addTenant("t2", model.TierPro)
	taskRepo := newFakeTaskRepo()
	taskRepo.tasks["task-1"] = &model.IngestionTask{TaskID: "task-1", TenantID: "t1", Status: model.TaskStatusCompleted}
	svc := newTestIngestionService(repo, taskRepo, &fakeChunkRepo{}, &fakePublisher{})

	task, err := svc.GetTask("t1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)

	_, err = svc.GetTask("t2", "task-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.GetTask("t1", "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetDocumentURL(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	svc := newTestIngestionService(repo, newFakeTaskRepo(), &fakeChunkRepo{}, &fakePublisher{})

	url, err := svc.GetDocumentURL(context.Background(), "t1", "", "d1")
	require.NoError(t, err)
	assert.Equal(t, "https://archive.test/t1/default/d1.txt", url)

	_, err = svc.GetDocumentURL(context.Background(), "ghost", "kb", "d1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteDocumentDecrementsCount(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	chunkRepo := &fakeChunkRepo{indexed: []model.ChunkDocument{
		{ChunkID: "c1", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d1", Collection: "kb"}},
		{ChunkID: "c2", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d1", Collection: "kb"}},
		{ChunkID: "c3", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d2", Collection: "kb"}},
	}}
	svc := newTestIngestionService(repo, newFakeTaskRepo(), chunkRepo, &fakePublisher{})

	deleted, err := svc.DeleteDocument(context.Background(), "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, int64(-1), repo.docDelta["t1"])

	_, err = svc.DeleteDocument(context.Background(), "t1", "d1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteCollectionDecrementsByDistinctDocuments(t *testing.T) {
	repo := newFakeTenantRepo()
	repo.addTenant("t1", model.TierPro)
	chunkRepo := &fakeChunkRepo{indexed: []model.ChunkDocument{
		{ChunkID: "c1", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d1", Collection: "kb"}},
		{ChunkID: "c2", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d1", Collection: "kb"}},
		{ChunkID: "c3", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d2", Collection: "kb"}},
		{ChunkID: "c4", TenantID: "t1", Metadata: model.ChunkMetadata{DocumentID: "d3", Collection: "other"}},
	}}
	svc := newTestIngestionService(repo, newFakeTaskRepo(), chunkRepo, &fakePublisher{})

	deletedDocs, err := svc.DeleteCollection(context.Background(), "t1", "kb")
	require.NoError(t, err)
	// Four chunks, but only two distinct documents in the collection.
	assert.Equal(t, 2, deletedDocs)
	assert.Equal(t, int64(-2), repo.docDelta["t1"])

	// The other collection survives.
	assert.Len(t, chunkRepo.indexed, 1)
	assert.Equal(t, "d3", chunkRepo.indexed[0].Metadata.DocumentID)
}
