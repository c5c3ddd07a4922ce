// Package storage stores receipts and courier documents in an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Ensure S3BlobStorage implements services.BlobStorage
var _ services.BlobStorage = (*S3BlobStorage)(nil)

// Config selects the bucket and how to reach it.
type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

// S3BlobStorage uploads files under a folder prefix and serves them from a
// public base URL. The object key doubles as the blob's public ID.
type S3BlobStorage struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3BlobStorage builds the S3 client. Static credentials are used when an
// access key is given, otherwise the default AWS credential chain applies.
func NewS3BlobStorage(ctx context.Context, cfg Config) (*S3BlobStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3BlobStorage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg, region),
	}, nil
}

func publicBaseURL(cfg Config, region string) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
}

// ObjectKey builds a unique key under folder, keeping the file extension.
func ObjectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}

func (s *S3BlobStorage) Upload(ctx context.Context, file services.BlobFile, folder string) (services.BlobRef, error) {
	if file.Reader == nil {
		return services.BlobRef{}, errors.New("file content is required")
	}
	key := ObjectKey(folder, file.Filename)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file.Reader,
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return services.BlobRef{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	middleware.GetLoggerFromCtx(ctx).Debug("Blob uploaded", slog.String("key", key), slog.Int64("size", file.Size))
	return services.BlobRef{URL: s.baseURL + "/" + key, PublicID: key}, nil
}

func (s *S3BlobStorage) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	return nil
}
