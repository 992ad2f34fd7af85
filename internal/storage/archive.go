package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/danilaloko/eco-bot/internal/config"
)

// MediaArchive keeps copies of participant media outside the chat platform.
type MediaArchive interface {
	Enabled() bool
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	// URL returns a time limited download link for key.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3Archive stores media in an S3-compatible bucket (AWS, R2, MinIO).
type S3Archive struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewS3Archive builds a client from cfg. A custom endpoint switches to
// path-style addressing, which R2 and MinIO expect.
func NewS3Archive(ctx context.Context, cfg config.StorageConfig) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// Enabled reports true.
func (a *S3Archive) Enabled() bool { return true }

// Put uploads body under key.
func (a *S3Archive) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return nil
}

// URL presigns a GET request for key.
func (a *S3Archive) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigned, err := a.presigner.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		},
		func(po *s3.PresignOptions) {
			po.Expires = ttl
		},
	)
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return presigned.URL, nil
}

// NopArchive is used when no bucket is configured.
type NopArchive struct{}

// Enabled reports false.
func (NopArchive) Enabled() bool { return false }

// Put discards the body.
func (NopArchive) Put(context.Context, string, io.Reader, string) error { return nil }

// URL returns an empty link.
func (NopArchive) URL(context.Context, string, time.Duration) (string, error) { return "", nil }

// NewMediaArchive returns an S3Archive when a bucket is configured and a
// NopArchive otherwise.
func NewMediaArchive(ctx context.Context, cfg config.StorageConfig) (MediaArchive, error) {
	if !cfg.Enabled() {
		return NopArchive{}, nil
	}
	return NewS3Archive(ctx, cfg)
}
