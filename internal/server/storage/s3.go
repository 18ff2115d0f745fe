// Package storage wraps the object-storage operations the keeper performs.
// The service records bucket names and prefixes as metadata; the one place
// it actually touches the bucket is the garbage-collection sweep, which
// clears a deleted build's prefix.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/edithub/keeper/internal/server/config"
)

// ObjectStore deletes stored artifacts. It is an interface so the sweeper
// can be tested without a bucket.
type ObjectStore interface {
	// DeletePrefix removes every object under prefix in bucket.
	// Deleting an already-empty prefix is not an error.
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}

// DeleteObjects's per-request cap.
const deleteBatchSize = 1000

// S3ObjectStore implements ObjectStore against any S3-compatible backend.
type S3ObjectStore struct {
	client *s3.Client
}

// NewS3ObjectStore builds a client from the server config. A non-empty
// S3BaseEndpoint points the client at a MinIO-style backend.
func NewS3ObjectStore(ctx context.Context, cfg *config.Config) (*S3ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ObjectStore{client: client}, nil
}

func (s *S3ObjectStore) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %s/%s: %w", bucket, prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		for start := 0; start < len(page.Contents); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(page.Contents))

			objects := make([]types.ObjectIdentifier, 0, end-start)
			for _, obj := range page.Contents[start:end] {
				objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
			}

			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: objects},
			})
			if err != nil {
				return fmt.Errorf("deleting %s/%s: %w", bucket, prefix, err)
			}
		}
	}

	return nil
}
