package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"autoapply/utils"
)

// ScreenshotService stores confirmation screenshots in S3 when it is
// configured and in a local directory otherwise.
type ScreenshotService struct {
	S3Service *S3Service
	Dir       string
	logger    *utils.Logger
}

// NewScreenshotService returns nil when neither S3 nor a directory is set,
// which disables capture.
func NewScreenshotService(s3Service *S3Service, dir string, logger *utils.Logger) *ScreenshotService {
	if s3Service == nil && dir == "" {
		return nil
	}
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &ScreenshotService{
		S3Service: s3Service,
		Dir:       dir,
		logger:    logger.Named("screenshots"),
	}
}

// StoreScreenshot implements ScreenshotStore. It returns the S3 URL or the
// local path.
func (s *ScreenshotService) StoreScreenshot(ctx context.Context, runID string, png []byte) (string, error) {
	if s.S3Service != nil {
		url, err := s.S3Service.StoreScreenshot(ctx, runID, png)
		if err == nil {
			return url, nil
		}
		if s.Dir == "" {
			return "", err
		}
		s.logger.Warn("S3 upload failed, keeping screenshot locally", zap.Error(err))
	}

	path := filepath.Join(s.Dir, filepath.FromSlash(ScreenshotKey(runID)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
