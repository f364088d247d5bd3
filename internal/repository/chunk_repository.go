package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"linktree-ai-go/internal/model"
	"linktree-ai-go/pkg/log"
)

// ChunkRepository stores and retrieves embedded chunks in Elasticsearch.
// Every operation is scoped to a tenant; cross-tenant reads are not
// expressible through this interface.
type ChunkRepository interface {
	BulkIndex(ctx context.Context, chunks []model.ChunkDocument) error
	KNNSearch(ctx context.Context, tenantID, collection string, vector []float32, topK int) ([]model.RetrievedChunk, error)
	DeleteByDocumentID(ctx context.Context, tenantID, documentID string) (int64, error)
	DeleteByCollection(ctx context.Context, tenantID, collection string) ([]string, error)
	ListDocuments(ctx context.Context, tenantID, collection string) ([]model.DocumentInfo, error)
	ListCollections(ctx context.Context, tenantID string) ([]model.CollectionStat, error)
}

type chunkRepository struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewChunkRepository creates a new ChunkRepository instance.
func NewChunkRepository(esClient *elasticsearch.Client, indexName string) ChunkRepository {
	return &chunkRepository{esClient: esClient, indexName: indexName}
}

// BulkIndex writes all chunks in a single bulk request, using chunk_id
// as the document id so re-delivered ingestion jobs stay idempotent.
func (r *chunkRepository) BulkIndex(ctx context.Context, chunks []model.ChunkDocument) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, chunk := range chunks {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": r.indexName,
				"_id":    chunk.ChunkID,
			},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(chunk); err != nil {
			return fmt.Errorf("failed to encode chunk document: %w", err)
		}
	}

	res, err := r.esClient.Bulk(
		bytes.NewReader(buf.Bytes()),
		r.esClient.Bulk.WithContext(ctx),
		r.esClient.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch bulk returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var bulkResponse struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResponse.Errors {
		for _, item := range bulkResponse.Items {
			for _, op := range item {
				if op.Status >= 300 {
					return fmt.Errorf("bulk indexing failed: %s: %s", op.Error.Type, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk indexing reported errors")
	}
	return nil
}

// tenantFilter builds the bool filter clauses that pin a query to one
// tenant and, when given, one collection.
func tenantFilter(tenantID, collection string) []map[string]interface{} {
	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": tenantID}},
	}
	if collection != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"metadata.collection": collection},
		})
	}
	return filter
}

// KNNSearch runs a cosine k-NN query restricted to the tenant's chunks
// in the given collection, returning the topK nearest with their scores.
func (r *chunkRepository) KNNSearch(ctx context.Context, tenantID, collection string, vector []float32, topK int) ([]model.RetrievedChunk, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{
					"filter": tenantFilter(tenantID, collection),
				},
			},
		},
		"size": topK,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.indexName),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("elasticsearch knn search returned error, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChunkDocument `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.RetrievedChunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.RetrievedChunk{Chunk: hit.Source, Score: hit.Score})
	}
	return results, nil
}

// deleteByQuery runs a delete_by_query with the given bool filter and
// returns the number of deleted chunks.
func (r *chunkRepository) deleteByQuery(ctx context.Context, filter []map[string]interface{}) (int64, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filter,
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return 0, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.esClient.DeleteByQuery(
		[]string{r.indexName},
		&buf,
		r.esClient.DeleteByQuery.WithContext(ctx),
		r.esClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch delete_by_query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var deleteResponse struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&deleteResponse); err != nil {
		return 0, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return deleteResponse.Deleted, nil
}

// DeleteByDocumentID removes every chunk of one document and returns
// how many chunks were removed.
func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, tenantID, documentID string) (int64, error) {
	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": tenantID}},
		{"term": map[string]interface{}{"metadata.document_id": documentID}},
	}
	return r.deleteByQuery(ctx, filter)
}

// DeleteByCollection removes every chunk in a collection. It returns
// the distinct document ids that were removed so the caller can adjust
// the tenant's document counter.
func (r *chunkRepository) DeleteByCollection(ctx context.Context, tenantID, collection string) ([]string, error) {
	docIDs, err := r.distinctDocumentIDs(ctx, tenantID, collection)
	if err != nil {
		return nil, err
	}
	if len(docIDs) == 0 {
		return nil, nil
	}
	if _, err := r.deleteByQuery(ctx, tenantFilter(tenantID, collection)); err != nil {
		return nil, err
	}
	return docIDs, nil
}

// distinctDocumentIDs aggregates the document ids present in a collection.
func (r *chunkRepository) distinctDocumentIDs(ctx context.Context, tenantID, collection string) ([]string, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": tenantFilter(tenantID, collection),
			},
		},
		"aggs": map[string]interface{}{
			"documents": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "metadata.document_id",
					"size":  10000,
				},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.indexName),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var aggResponse struct {
		Aggregations struct {
			Documents struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"documents"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResponse); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
	}

	ids := make([]string, 0, len(aggResponse.Aggregations.Documents.Buckets))
	for _, bucket := range aggResponse.Aggregations.Documents.Buckets {
		ids = append(ids, bucket.Key)
	}
	return ids, nil
}

// ListDocuments returns one summary per distinct document, built from
// the metadata of each document's first chunk.
func (r *chunkRepository) ListDocuments(ctx context.Context, tenantID, collection string) ([]model.DocumentInfo, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": tenantFilter(tenantID, collection),
			},
		},
		"aggs": map[string]interface{}{
			"documents": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "metadata.document_id",
					"size":  10000,
				},
				"aggs": map[string]interface{}{
					"sample": map[string]interface{}{
						"top_hits": map[string]interface{}{
							"size":    1,
							"_source": []string{"metadata"},
						},
					},
				},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.indexName),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var aggResponse struct {
		Aggregations struct {
			Documents struct {
				Buckets []struct {
					Key    string `json:"key"`
					Sample struct {
						Hits struct {
							Hits []struct {
								Source struct {
									Metadata model.ChunkMetadata `json:"metadata"`
								} `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"sample"`
				} `json:"buckets"`
			} `json:"documents"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResponse); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
	}

	docs := make([]model.DocumentInfo, 0, len(aggResponse.Aggregations.Documents.Buckets))
	for _, bucket := range aggResponse.Aggregations.Documents.Buckets {
		info := model.DocumentInfo{DocumentID: bucket.Key}
		if len(bucket.Sample.Hits.Hits) > 0 {
			meta := bucket.Sample.Hits.Hits[0].Source.Metadata
			info.Source = meta.Source
			info.Author = meta.Author
			info.DocumentType = meta.DocumentType
			info.Collection = meta.Collection
			info.CreatedAt = meta.CreatedAt
		}
		docs = append(docs, info)
	}
	return docs, nil
}

// ListCollections returns each collection a tenant has together with
// its distinct document count.
func (r *chunkRepository) ListCollections(ctx context.Context, tenantID string) ([]model.CollectionStat, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": tenantFilter(tenantID, ""),
			},
		},
		"aggs": map[string]interface{}{
			"collections": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "metadata.collection",
					"size":  1000,
				},
				"aggs": map[string]interface{}{
					"document_count": map[string]interface{}{
						"cardinality": map[string]interface{}{
							"field": "metadata.document_id",
						},
					},
				},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.indexName),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var aggResponse struct {
		Aggregations struct {
			Collections struct {
				Buckets []struct {
					Key           string `json:"key"`
					DocumentCount struct {
						Value int64 `json:"value"`
					} `json:"document_count"`
				} `json:"buckets"`
			} `json:"collections"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResponse); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
	}

	stats := make([]model.CollectionStat, 0, len(aggResponse.Aggregations.Collections.Buckets))
	for _, bucket := range aggResponse.Aggregations.Collections.Buckets {
		stats = append(stats, model.CollectionStat{
			Name:          bucket.Key,
			DocumentCount: bucket.DocumentCount.Value,
		})
	}
	return stats, nil
}
