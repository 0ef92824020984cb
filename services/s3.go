package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"autoapply/config"
	"autoapply/utils"
)

// S3Service archives run artifacts: uploaded resumes and confirmation
// screenshots.
type S3Service struct {
	s3Client *s3.S3
	bucket   string
	region   string
	logger   *utils.Logger
}

func NewS3Service(cfg config.AWSConfig, logger *utils.Logger) (*S3Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("AWS S3 not configured")
	}
	if logger == nil {
		logger = utils.GlobalLogger()
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	// Without static keys the default chain (env, profile, instance role) applies.
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	s := &S3Service{
		s3Client: s3.New(sess),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		logger:   logger.Named("s3"),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// UploadBytes stores content under key and returns the object URL.
func (s *S3Service) UploadBytes(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	}
	if _, err := s.s3Client.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	url := s.objectURL(key)
	s.logger.Info("uploaded object", zap.String("key", key), zap.Int("bytes", len(content)))
	return url, nil
}

// UploadFile uploads a local file and returns the object URL.
func (s *S3Service) UploadFile(ctx context.Context, filePath, key, contentType string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return s.UploadBytes(ctx, key, content, contentType)
}

// StoreScreenshot implements ScreenshotStore.
func (s *S3Service) StoreScreenshot(ctx context.Context, runID string, png []byte) (string, error) {
	return s.UploadBytes(ctx, ScreenshotKey(runID), png, "image/png")
}

// ArchiveResume keeps the resume a run was submitted with.
func (s *S3Service) ArchiveResume(ctx context.Context, runID, filePath string) (string, error) {
	return s.UploadFile(ctx, filePath, ResumeKey(runID, filePath), "application/pdf")
}

// ScreenshotKey is the object key of a run's confirmation screenshot.
func ScreenshotKey(runID string) string {
	return path.Join("screenshots", runID+"_confirmation.png")
}

// ResumeKey is the object key of a run's archived resume.
func ResumeKey(runID, filePath string) string {
	return path.Join("resumes", runID, path.Base(filePath))
}

func (s *S3Service) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// GeneratePresignedURL generates a presigned URL for secure downloads
func (s *S3Service) GeneratePresignedURL(key string, ttl time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not initialised")
	}
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

// validate checks if the S3Service configuration is valid
func (s *S3Service) validate() error {
	if s.bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if s.region == "" {
		return fmt.Errorf("region is required")
	}
	return nil
}
