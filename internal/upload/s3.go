// Package upload hands finished captures to the remote analysis
// service. This is the boundary where the wider application (reports,
// OCR, AI analysis) takes over.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// S3 uploads stitched images to an S3 bucket and returns the object key
// as the asset reference. Page URL and title ride along as object
// metadata for the analysis side.
type S3 struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewS3 builds an uploader from the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket not set")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		logger:   slog.Default(),
	}, nil
}

// Upload performs the single hand-off call: one PutObject per finished
// capture. Failures here do not re-trigger capture.
func (u *S3) Upload(ctx context.Context, data []byte, page protocol.PageInfo) (string, error) {
	key := u.objectKey()

	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
		Metadata: map[string]string{
			"page-url":   page.URL,
			"page-title": page.Title,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info("capture.uploaded", "bucket", u.bucket, "key", key, "bytes", len(data))
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

func (u *S3) objectKey() string {
	name := fmt.Sprintf("%s-%s.png", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}
