package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply/models"
	"autoapply/services"
	"autoapply/utils"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJobs(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []BatchJob
		wantErr string
	}{
		{
			name:    "json",
			file:    "jobs.json",
			content: `[{"url": "https://a.example.com/1"}, {"url": "https://b.example.com/2"}]`,
			want:    []BatchJob{{URL: "https://a.example.com/1"}, {URL: "https://b.example.com/2"}},
		},
		{
			name:    "yaml",
			file:    "jobs.yaml",
			content: "- url: https://a.example.com/1\n- url: https://b.example.com/2\n",
			want:    []BatchJob{{URL: "https://a.example.com/1"}, {URL: "https://b.example.com/2"}},
		},
		{
			name:    "not an array",
			file:    "jobs.json",
			content: `{"url": "https://a.example.com/1"}`,
			wantErr: "jobs file must contain an array of job objects",
		},
		{
			name:    "empty",
			file:    "jobs.yml",
			content: "[]\n",
			wantErr: "no jobs found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := loadJobs(writeFile(t, tt.file, tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobs)
		})
	}

	_, err := loadJobs(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "jobs file not found")
}

type scriptedSubmitter struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	status   map[string]string
}

func (s *scriptedSubmitter) Submit(_ context.Context, req services.SubmissionRequest) *models.SubmissionResult {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return models.NewResultRecorder("id", req.JobURL, nil).Finalize(s.status[req.JobURL], time.Now(), "")
}

func TestRunBatch(t *testing.T) {
	sub := &scriptedSubmitter{status: map[string]string{
		"https://a.example.com/1": models.StatusSubmitted,
		"https://b.example.com/2": models.StatusFailed,
		"https://c.example.com/3": models.StatusSubmitted,
		"https://d.example.com/4": models.StatusError,
	}}
	jobs := []BatchJob{
		{URL: "https://a.example.com/1"},
		{URL: "https://b.example.com/2"},
		{URL: ""},
		{URL: "https://c.example.com/3"},
		{URL: "https://d.example.com/4"},
	}

	report := runBatch(context.Background(), sub, jobs, models.Applicant{}, 2, utils.NewNopLogger())

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, BatchStats{Submitted: 2, Failed: 1, Error: 2, Total: 5}, report.Stats)
	require.Len(t, report.Submissions, 5)
	for i, job := range jobs {
		assert.Equal(t, job.URL, report.Submissions[i].JobURL, "results keep job order")
	}
	assert.Equal(t, models.StatusError, report.Submissions[2].Status)
	assert.Equal(t, []string{"job is missing its url"}, report.Submissions[2].Notes)
	assert.LessOrEqual(t, sub.peak, 2)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.json")
	report := runBatch(context.Background(), &scriptedSubmitter{status: map[string]string{
		"https://a.example.com/1": models.StatusSubmitted,
	}}, []BatchJob{{URL: "https://a.example.com/1"}}, models.Applicant{}, 1, utils.NewNopLogger())

	require.NoError(t, writeReport(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.EqualValues(t, 1, got["total"])
	assert.Contains(t, got, "submitted_at")
	assert.Equal(t, map[string]any{"submitted": 1.0, "failed": 0.0, "error": 0.0, "total": 1.0}, got["stats"])
}
