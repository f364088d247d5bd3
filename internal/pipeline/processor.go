package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"linktree-ai-go/internal/model"
	"linktree-ai-go/internal/repository"
	"linktree-ai-go/pkg/log"
	"linktree-ai-go/pkg/storage"
	"linktree-ai-go/pkg/tasks"
)

// Embedder resolves a batch of texts to vectors. Satisfied by the
// embedding service; declared here to keep the processor decoupled.
type Embedder interface {
	EmbedBatch(ctx context.Context, tenant *model.TenantInfo, texts []string, requestedModel string) (*model.EmbedResult, error)
}

// DocumentArchiver stores raw document text. Satisfied by storage.Archive.
type DocumentArchiver interface {
	PutDocument(ctx context.Context, tenantID, collection, documentID, text string) error
}

var _ DocumentArchiver = (*storage.Archive)(nil)

// Processor consumes ingestion jobs: it embeds the pre-chunked texts,
// indexes them into Elasticsearch, archives the raw documents, and
// keeps the task row and tenant counters up to date.
type Processor struct {
	embedder   Embedder
	chunkRepo  repository.ChunkRepository
	taskRepo   repository.TaskRepository
	tenantRepo repository.TenantRepository
	archive    DocumentArchiver
	pool       *ants.Pool
}

// NewProcessor creates a Processor with a worker pool of poolSize for
// per-document archival.
func NewProcessor(
	embedder Embedder,
	chunkRepo repository.ChunkRepository,
	taskRepo repository.TaskRepository,
	tenantRepo repository.TenantRepository,
	archive DocumentArchiver,
	poolSize int,
) (*Processor, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Processor{
		embedder:   embedder,
		chunkRepo:  chunkRepo,
		taskRepo:   taskRepo,
		tenantRepo: tenantRepo,
		archive:    archive,
		pool:       pool,
	}, nil
}

// Release shuts the worker pool down.
func (p *Processor) Release() {
	p.pool.Release()
}

// Process handles one ingestion job end to end. Chunk ids double as
// Elasticsearch document ids, so a redelivered job re-indexes the same
// chunks instead of duplicating them.
func (p *Processor) Process(ctx context.Context, job tasks.IngestionJob) error {
	if err := p.taskRepo.MarkProcessing(job.TaskID); err != nil {
		log.Errorf("failed to mark task %s processing: %v", job.TaskID, err)
	}

	if err := p.process(ctx, job); err != nil {
		if markErr := p.taskRepo.MarkFailed(job.TaskID, err.Error()); markErr != nil {
			log.Errorf("failed to mark task %s failed: %v", job.TaskID, markErr)
		}
		return err
	}

	if err := p.taskRepo.MarkCompleted(job.TaskID); err != nil {
		log.Errorf("failed to mark task %s completed: %v", job.TaskID, err)
	}
	return nil
}

func (p *Processor) process(ctx context.Context, job tasks.IngestionJob) error {
	texts := make([]string, len(job.Chunks))
	for i, chunk := range job.Chunks {
		texts[i] = chunk.Text
	}

	// One resolver batch for the whole task; the cache absorbs repeats.
	embRes, err := p.embedder.EmbedBatch(ctx, &model.TenantInfo{TenantID: job.TenantID}, texts, "")
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunkDocs := make([]model.ChunkDocument, len(job.Chunks))
	for i, chunk := range job.Chunks {
		chunkDocs[i] = model.ChunkDocument{
			ChunkID:  chunk.ChunkID,
			TenantID: job.TenantID,
			Content:  chunk.Text,
			Metadata: chunk.Metadata,
			Vector:   embRes.Embeddings[i],
			Model:    embRes.Model,
		}
	}

	if err := p.chunkRepo.BulkIndex(ctx, chunkDocs); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}

	if err := p.archiveDocuments(ctx, job); err != nil {
		return err
	}

	if err := p.tenantRepo.IncrementDocumentCount(job.TenantID, int64(len(job.Documents))); err != nil {
		log.Errorf("failed to increment document count for tenant %s: %v", job.TenantID, err)
	}

	log.Infof("processed ingestion task %s: %d documents, %d chunks", job.TaskID, len(job.Documents), len(job.Chunks))
	return nil
}

// archiveDocuments stores the raw document texts concurrently through
// the worker pool.
func (p *Processor) archiveDocuments(ctx context.Context, job tasks.IngestionJob) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, doc := range job.Documents {
		doc := doc
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.archive.PutDocument(ctx, job.TenantID, job.Collection, doc.DocumentID, doc.Text); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			return fmt.Errorf("failed to submit archive job: %w", submitErr)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("failed to archive documents: %w", firstErr)
	}
	return nil
}
