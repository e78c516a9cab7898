// Package objectstore archives immutable roster snapshots in S3-compatible
// storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rberts/delibera/internal/config"
	"github.com/rberts/delibera/internal/logger"
)

// Client wraps a MinIO connection scoped to one bucket
type Client struct {
	minio  *minio.Client
	bucket string
}

// New connects to the configured object store and ensures the bucket
// exists. Returns nil without error when archiving is disabled.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	log := logger.Storage()

	mc, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
		Secure: cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Archive.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Archive.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("Created archive bucket", "bucket", cfg.Archive.Bucket)
	}

	log.Info("Object store connected", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	return &Client{minio: mc, bucket: cfg.Archive.Bucket}, nil
}

// ArchiveRoster stores one roster snapshot as a JSON object. The key
// carries a timestamp so an accidental second upload never overwrites
// the original.
func (c *Client) ArchiveRoster(ctx context.Context, tenantID, assemblyID uint, payload []byte) error {
	key := fmt.Sprintf("rosters/tenant-%d/assembly-%d/%s.json", tenantID, assemblyID, time.Now().UTC().Format("20060102T150405Z"))

	_, err := c.minio.PutObject(ctx, c.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload roster snapshot: %w", err)
	}

	logger.Storage().Debug("Roster snapshot stored", "key", key, "bytes", len(payload))
	return nil
}
