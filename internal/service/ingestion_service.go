package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"linktree-ai-go/internal/apperr"
	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/pipeline"
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/pkg/log"
	"linktree-ai-go/pkg/tasks"
)

// JobPublisher publishes ingestion jobs to the task queue. Satisfied by
// kafka.Producer; tests substitute a fake.
type JobPublisher interface {
	ProduceJob(ctx context.Context, job tasks.IngestionJob) error
}

// DocumentArchive issues download URLs for archived source documents.
// Satisfied by storage.Archive.
type DocumentArchive interface {
	PresignedURL(ctx context.Context, tenantID, collection, documentID string, expiry time.Duration) (string, error)
}

// downloadURLExpiry bounds how long an archive download link stays valid.
const downloadURLExpiry = time.Hour

// IngestionService accepts documents, queues them for background
// processing, and manages document/collection removal.
type IngestionService interface {
	Ingest(ctx context.Context, req *model.IngestionRequest) (*model.IngestionResponse, error)
	GetTask(tenantID, taskID string) (*model.IngestionTask, error)
	GetDocumentURL(ctx context.Context, tenantID, collection, documentID string) (string, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) (int64, error)
	DeleteCollection(ctx context.Context, tenantID, collection string) (int, error)
}

type ingestionService struct {
	tenantService TenantService
	taskRepo      repository.TaskRepository
	chunkRepo     repository.ChunkRepository
	tenantRepo    repository.TenantRepository
	publisher     JobPublisher
	archive       DocumentArchive
	chunkSize     int
	chunkOverlap  int
}

// NewIngestionService creates a new IngestionService instance.
func NewIngestionService(
	tenantService TenantService,
	taskRepo repository.TaskRepository,
	chunkRepo repository.ChunkRepository,
	tenantRepo repository.TenantRepository,
	publisher JobPublisher,
	archive DocumentArchive,
	chunkSize, chunkOverlap int,
) IngestionService {
	return &ingestionService{
		tenantService: tenantService,
		taskRepo:      taskRepo,
		chunkRepo:     chunkRepo,
		tenantRepo:    tenantRepo,
		publisher:     publisher,
		archive:       archive,
		chunkSize:     chunkSize,
		chunkOverlap:  chunkOverlap,
	}
}

// Ingest validates and chunks the documents, records a pending task,
// and publishes one job for the background processor. Persistence is
// deferred; the response carries the task id for polling.
func (s *ingestionService) Ingest(ctx context.Context, req *model.IngestionRequest) (*model.IngestionResponse, error) {
	tenant, err := s.tenantService.Authorize(req.TenantID)
	if err != nil {
		return nil, err
	}

	if len(req.Documents) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no documents provided")
	}
	if len(req.DocumentMetadatas) != len(req.Documents) {
		return nil, apperr.New(apperr.KindValidation, "number of documents must match number of metadata objects")
	}

	if err := s.tenantService.CheckDocumentQuota(tenant); err != nil {
		return nil, err
	}

	collection := req.CollectionName
	if collection == "" {
		collection = "default"
	}

	taskID := uuid.New().String()
	documentIDs := make([]string, 0, len(req.Documents))
	chunkPayloads := make([]tasks.ChunkPayload, 0, len(req.Documents))
	documentPayloads := make([]tasks.DocumentPayload, 0, len(req.Documents))

	for i, docText := range req.Documents {
		docID := uuid.New().String()
		documentIDs = append(documentIDs, docID)
		documentPayloads = append(documentPayloads, tasks.DocumentPayload{
			DocumentID: docID,
			Text:       docText,
		})

		meta := req.DocumentMetadatas[i]
		for _, chunkText := range pipeline.SplitText(docText, s.chunkSize, s.chunkOverlap) {
			chunkPayloads = append(chunkPayloads, tasks.ChunkPayload{
				ChunkID: uuid.New().String(),
				Text:    chunkText,
				Metadata: model.ChunkMetadata{
					TenantID:     req.TenantID,
					Source:       meta.Source,
					Author:       meta.Author,
					CreatedAt:    meta.CreatedAt,
					DocumentType: meta.DocumentType,
					DocumentID:   docID,
					Collection:   collection,
					Extra:        meta.CustomMetadata,
				},
			})
		}
	}

	task := &model.IngestionTask{
		TaskID:        taskID,
		TenantID:      req.TenantID,
		Collection:    collection,
		DocumentCount: len(req.Documents),
		ChunkCount:    len(chunkPayloads),
		Status:        model.TaskStatusPending,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to record ingestion task")
	}

	job := tasks.IngestionJob{
		TaskID:     taskID,
		TenantID:   req.TenantID,
		Collection: collection,
		Chunks:     chunkPayloads,
		Documents:  documentPayloads,
	}
	if err := s.publisher.ProduceJob(ctx, job); err != nil {
		if markErr := s.taskRepo.MarkFailed(taskID, "failed to queue ingestion job"); markErr != nil {
			log.Errorf("failed to mark task %s failed: %v", taskID, markErr)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to queue ingestion job")
	}

	log.Infof("queued ingestion task %s: tenant=%s documents=%d chunks=%d", taskID, req.TenantID, len(req.Documents), len(chunkPayloads))
	return &model.IngestionResponse{
		Success:     true,
		Message:     "Documents accepted for ingestion",
		DocumentIDs: documentIDs,
		NodesCount:  len(chunkPayloads),
		TaskID:      taskID,
	}, nil
}

// GetTask returns the state of one ingestion task.
func (s *ingestionService) GetTask(tenantID, taskID string) (*model.IngestionTask, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return nil, err
	}
	task, err := s.taskRepo.FindByTaskID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "ingestion task %s not found", taskID)
		}
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to look up ingestion task %s", taskID)
	}
	if task.TenantID != tenantID {
		return nil, apperr.New(apperr.KindForbidden, "you can only access your own ingestion tasks")
	}
	return task, nil
}

// GetDocumentURL returns a time-limited download link for the archived
// source text of one document.
func (s *ingestionService) GetDocumentURL(ctx context.Context, tenantID, collection, documentID string) (string, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return "", err
	}
	if collection == "" {
		collection = "default"
	}
	url, err := s.archive.PresignedURL(ctx, tenantID, collection, documentID, downloadURLExpiry)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, err, "failed to sign download url for document %s", documentID)
	}
	return url, nil
}

// DeleteDocument removes every chunk of one document and decrements the
// tenant's document counter. Returns the number of removed chunks.
func (s *ingestionService) DeleteDocument(ctx context.Context, tenantID, documentID string) (int64, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return 0, err
	}

	deleted, err := s.chunkRepo.DeleteByDocumentID(ctx, tenantID, documentID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, err, "failed to delete document %s", documentID)
	}
	if deleted == 0 {
		return 0, apperr.New(apperr.KindNotFound, "document %s not found", documentID)
	}

	if err := s.tenantRepo.DecrementDocumentCount(tenantID, 1); err != nil {
		log.Errorf("failed to decrement document count for tenant %s: %v", tenantID, err)
	}
	return deleted, nil
}

// DeleteCollection removes every chunk in a collection and decrements
// the tenant's document counter by the number of distinct documents
// that were removed.
func (s *ingestionService) DeleteCollection(ctx context.Context, tenantID, collection string) (int, error) {
	if _, err := s.tenantService.Authorize(tenantID); err != nil {
		return 0, err
	}

	docIDs, err := s.chunkRepo.DeleteByCollection(ctx, tenantID, collection)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, err, "failed to delete collection %s", collection)
	}
	if len(docIDs) == 0 {
		return 0, apperr.New(apperr.KindNotFound, "collection %s not found", collection)
	}

	if err := s.tenantRepo.DecrementDocumentCount(tenantID, int64(len(docIDs))); err != nil {
		log.Errorf("failed to decrement document count for tenant %s: %v", tenantID, err)
	}
	return len(docIDs), nil
}
