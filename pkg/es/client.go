// Package es provides the Elasticsearch client used as the vector store.
package es

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"linktree-ai-go/internal/config"
	"linktree-ai-go/pkg/log"
)

// NewClient builds an Elasticsearch client and makes sure the chunk
// index exists with the expected mapping.
func NewClient(esCfg config.ElasticsearchConfig, dimensions int) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := createIndexIfNotExists(client, esCfg.IndexName, dimensions); err != nil {
		return nil, err
	}
	return client, nil
}

// createIndexIfNotExists checks for the chunk index and creates it when absent.
func createIndexIfNotExists(client *elasticsearch.Client, indexName string, dimensions int) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("failed to check whether index exists: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("unexpected status code while checking index '%s': %d", indexName, res.StatusCode)
		return fmt.Errorf("unexpected status code while checking index: %d", res.StatusCode)
	}

	// Metadata fields are keyword-indexed so tenant/collection/document
	// filters and aggregations stay exact-match.
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"tenant_id": { "type": "keyword" },
				"content": { "type": "text" },
				"metadata": {
					"properties": {
						"tenant_id": { "type": "keyword" },
						"source": { "type": "keyword" },
						"author": { "type": "keyword" },
						"created_at": { "type": "keyword" },
						"document_type": { "type": "keyword" },
						"document_id": { "type": "keyword" },
						"collection": { "type": "keyword" }
					}
				},
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model": { "type": "keyword" }
			}
		}
	}`, dimensions)

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("failed to create index '%s': %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("elasticsearch returned an error creating index '%s': %s", indexName, res.String())
		return errors.New("elasticsearch returned an error while creating index")
	}

	log.Infof("index '%s' created successfully", indexName)
	return nil
}
