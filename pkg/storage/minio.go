// Package storage provides the object store used as the raw-document archive.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"linktree-ai-go/internal/config"
	"linktree-ai-go/pkg/log"
)

// Archive stores the original text of ingested documents so sources can
// be re-fetched after chunking.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive builds the MinIO client and makes sure the archive bucket exists.
func NewArchive(cfg config.MinIOConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check minio bucket: %w", err)
	}
	if !exists {
		log.Infof("bucket '%s' does not exist, creating...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create minio bucket: %w", err)
		}
	}

	log.Infof("minio archive ready, bucket '%s'", cfg.BucketName)
	return &Archive{client: client, bucket: cfg.BucketName}, nil
}

// objectName builds the archive key for one document.
func objectName(tenantID, collection, documentID string) string {
	return fmt.Sprintf("%s/%s/%s.txt", tenantID, collection, documentID)
}

// PutDocument archives a document's raw text.
func (a *Archive) PutDocument(ctx context.Context, tenantID, collection, documentID, text string) error {
	reader := strings.NewReader(text)
	_, err := a.client.PutObject(ctx, a.bucket, objectName(tenantID, collection, documentID), reader, int64(len(text)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("failed to archive document %s: %w", documentID, err)
	}
	return nil
}

// PresignedURL generates a temporary download URL for an archived document.
func (a *Archive) PresignedURL(ctx context.Context, tenantID, collection, documentID string, expiry time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, objectName(tenantID, collection, documentID), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}
