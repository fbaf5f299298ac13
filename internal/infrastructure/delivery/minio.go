package delivery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openprocurement/auction-worker/internal/config"
)

// MinioAuditSink archives rendered audit artifacts into an object bucket.
type MinioAuditSink struct {
	client *minio.Client
	bucket string
}

func NewMinioAuditSink(cfg *config.WorkerConfig) (*MinioAuditSink, error) {
	client, err := minio.New(cfg.DocumentService.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.DocumentService.AccessKey, cfg.DocumentService.SecretKey, ""),
		Secure: cfg.DocumentService.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	sink := &MinioAuditSink{client: client, bucket: cfg.DocumentService.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, sink.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, sink.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return sink, nil
}

func (s *MinioAuditSink) Upload(ctx context.Context, auctionID string, artifact []byte) error {
	name := fmt.Sprintf("audit_%s.yaml", auctionID)
	reader := bytes.NewReader(artifact)

	_, err := s.client.PutObject(ctx, s.bucket, name, reader, int64(len(artifact)), minio.PutObjectOptions{
		ContentType: "application/yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit artifact: %w", err)
	}
	return nil
}

func (s *MinioAuditSink) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
