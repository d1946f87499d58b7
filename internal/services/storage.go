package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadPrefix is the key prefix for uploaded workbooks
const UploadPrefix = "uploads"

// StorageService keeps uploaded workbooks and generated reports in S3
type StorageService struct {
	s3Client *s3.Client
	bucket   string
	region   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewStorageService creates a new storage service instance.
// For LocalStack pass endpoint "http://localhost:4566"; leave it empty for AWS.
func NewStorageService(ctx context.Context, bucket, region, endpoint string, logger *slog.Logger) (*StorageService, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}
	if region == "" {
		return nil, fmt.Errorf("region cannot be empty")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		// LocalStack accepts any static credentials
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &StorageService{
		s3Client: client,
		bucket:   bucket,
		region:   region,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// GenerateUploadKey creates a unique key for an uploaded workbook.
// Format: uploads/{timestamp}-{id}-{sanitized name}{ext}
func (s *StorageService) GenerateUploadKey(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	baseName := sanitizeKeyPart(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if baseName == "" {
		baseName = "file"
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	uniqueID := uuid.New().String()[:8]

	return fmt.Sprintf("%s/%d-%s-%s%s", UploadPrefix, now().UTC().Unix(), uniqueID, baseName, ext), nil
}

// sanitizeKeyPart keeps ASCII letters, digits, '-' and '_'; everything else becomes '-'
func sanitizeKeyPart(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

// IsUploadKey reports whether key points into the uploads prefix
func IsUploadKey(key string) bool {
	return strings.HasPrefix(key, UploadPrefix+"/") && !strings.Contains(key, "..")
}

// GeneratePresignedURL generates a presigned PUT URL for a direct browser upload
func (s *StorageService) GeneratePresignedURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if expiry <= 0 {
		return "", fmt.Errorf("expiry must be greater than 0")
	}
	if s.s3Client == nil {
		return "", fmt.Errorf("s3 client is not initialized")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s3.NewPresignClient(s.s3Client).PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return req.URL, nil
}

// UploadFile stores body under key
func (s *StorageService) UploadFile(ctx context.Context, key, contentType string, body io.Reader) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if s.s3Client == nil {
		return fmt.Errorf("s3 client is not initialized")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("Stored object", "bucket", s.bucket, "key", key)
	}
	return nil
}

// DownloadFile downloads a file from S3 and returns a reader
func (s *StorageService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	if s.s3Client == nil {
		return nil, fmt.Errorf("s3 client is not initialized")
	}

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file from S3: %w", err)
	}

	return result.Body, nil
}

// DeleteFile deletes a file from S3
func (s *StorageService) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if s.s3Client == nil {
		return fmt.Errorf("s3 client is not initialized")
	}

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}
