package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply/config"
	"autoapply/utils"
)

func TestNewS3Service(t *testing.T) {
	// Missing bucket and region
	service, err := NewS3Service(config.AWSConfig{}, utils.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, service)

	service, err = NewS3Service(config.AWSConfig{
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
		Bucket:          "autoapply-artifacts",
	}, utils.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "https://autoapply-artifacts.s3.us-east-1.amazonaws.com/screenshots/run-1_confirmation.png",
		service.objectURL(ScreenshotKey("run-1")))
}

func TestGeneratePresignedURLWithoutClient(t *testing.T) {
	service := &S3Service{
		bucket: "test-bucket",
		region: "us-east-1",
	}

	url, err := service.GeneratePresignedURL("test-file.pdf", 0)
	assert.Error(t, err)
	assert.Empty(t, url)
}

func TestArtifactKeys(t *testing.T) {
	assert.Equal(t, "screenshots/abc_confirmation.png", ScreenshotKey("abc"))
	assert.Equal(t, "resumes/abc/resume.pdf", ResumeKey("abc", "/tmp/autoapply_123/resume.pdf"))
}

func TestS3ServiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		region  string
		isValid bool
	}{
		{
			name:    "valid configuration",
			bucket:  "my-bucket",
			region:  "us-east-1",
			isValid: true,
		},
		{
			name:    "empty bucket",
			bucket:  "",
			region:  "us-east-1",
			isValid: false,
		},
		{
			name:    "empty region",
			bucket:  "my-bucket",
			region:  "",
			isValid: false,
		},
		{
			name:    "both empty",
			bucket:  "",
			region:  "",
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &S3Service{
				bucket: tt.bucket,
				region: tt.region,
			}

			err := service.validate()
			if tt.isValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
