package controllers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply/models"
	"autoapply/parsers"
	"autoapply/services"
	"autoapply/utils"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []services.SubmissionRequest
	status string
	resume bool
}

func (f *fakeSubmitter) Submit(_ context.Context, req services.SubmissionRequest) *models.SubmissionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(req.Applicant.ResumePath)
	f.resume = err == nil
	f.calls = append(f.calls, req)
	rec := models.NewResultRecorder("3f2a0d4e-6c1b-4a57-9f38-0f6f1f0c5a11", req.JobURL, req.Applicant.Requested())
	rec.AddNote("navigating to " + req.JobURL)
	return rec.Finalize(f.status, time.Now(), "")
}

type acceptAll struct{}

func (acceptAll) Validate(string) (*parsers.ResumeInfo, error) {
	return &parsers.ResumeInfo{MIME: "application/pdf", Pages: 1}, nil
}

type rejectAll struct{}

func (rejectAll) Validate(string) (*parsers.ResumeInfo, error) {
	return nil, fmt.Errorf("%w: detected text/plain", parsers.ErrNotPDF)
}

type memoryStore struct {
	records map[string]*models.SubmissionRecord
	created int
}

func (m *memoryStore) Create(r *models.SubmissionResult) (*models.SubmissionRecord, error) {
	m.created++
	rec := &models.SubmissionRecord{ID: r.ID, JobURL: r.JobURL, Status: r.Status, Notes: r.Notes, CreatedAt: time.Now()}
	m.records[r.ID] = rec
	return rec, nil
}

func (m *memoryStore) GetByID(id string) (*models.SubmissionRecord, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) GetRecent(limit, offset int) ([]*models.SubmissionRecord, error) {
	out := make([]*models.SubmissionRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

type archiveRecorder struct{ runs []string }

func (a *archiveRecorder) ArchiveResume(_ context.Context, runID, _ string) (string, error) {
	a.runs = append(a.runs, runID)
	return "resumes/" + runID + "/resume.pdf", nil
}

func submitForm(t *testing.T, fields map[string]string, resumeName string, resume []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if resumeName != "" {
		part, err := w.CreateFormFile("resume", resumeName)
		require.NoError(t, err)
		_, err = part.Write(resume)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/submit", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newRouter(c *SubmissionController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", c.Health)
	r.POST("/submit", c.Submit)
	r.GET("/api/submissions", c.ListSubmissions)
	r.GET("/api/submissions/:id", c.GetSubmission)
	return r
}

var pdfBytes = []byte("%PDF-1.4\n%fake\n")

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		resumeName string
		validator  ResumeValidator
		wantError  string
	}{
		{
			name:       "missing job url",
			fields:     map[string]string{"name": "Ada"},
			resumeName: "resume.pdf",
			validator:  acceptAll{},
			wantError:  "job_url is required",
		},
		{
			name:       "non http job url",
			fields:     map[string]string{"job_url": "ftp://jobs.example.com/1"},
			resumeName: "resume.pdf",
			validator:  acceptAll{},
			wantError:  "job_url must be an http or https URL",
		},
		{
			name:      "missing resume",
			fields:    map[string]string{"job_url": "https://jobs.example.com/1"},
			validator: acceptAll{},
			wantError: "resume file is required",
		},
		{
			name:       "wrong extension",
			fields:     map[string]string{"job_url": "https://jobs.example.com/1"},
			resumeName: "resume.docx",
			validator:  acceptAll{},
			wantError:  "Resume must be a PDF file",
		},
		{
			name:       "content is not a pdf",
			fields:     map[string]string{"job_url": "https://jobs.example.com/1"},
			resumeName: "resume.pdf",
			validator:  rejectAll{},
			wantError:  "Resume must be a PDF file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{status: models.StatusSubmitted}
			c := NewSubmissionController(sub, tt.validator, 1, utils.NewNopLogger())

			w := httptest.NewRecorder()
			newRouter(c).ServeHTTP(w, submitForm(t, tt.fields, tt.resumeName, pdfBytes))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["message"])
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, float64(http.StatusBadRequest), body["code"])
			assert.Empty(t, sub.calls, "no run starts on invalid input")
		})
	}
}

func TestSubmit_ReturnsResultWhateverTheStatus(t *testing.T) {
	for _, status := range []string{models.StatusSubmitted, models.StatusFailed, models.StatusError} {
		t.Run(status, func(t *testing.T) {
			sub := &fakeSubmitter{status: status}
			store := &memoryStore{records: map[string]*models.SubmissionRecord{}}
			archive := &archiveRecorder{}
			c := NewSubmissionController(sub, acceptAll{}, 1, utils.NewNopLogger())
			c.Store = store
			c.Archiver = archive

			w := httptest.NewRecorder()
			newRouter(c).ServeHTTP(w, submitForm(t, map[string]string{
				"job_url": "https://jobs.example.com/1",
				"name":    "  <b>Ada</b> Lovelace ",
				"email":   "ada@example.com",
			}, "resume.pdf", pdfBytes))

			assert.Equal(t, http.StatusOK, w.Code)
			var result models.SubmissionResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, status, result.Status)
			assert.Equal(t, "https://jobs.example.com/1", result.JobURL)

			require.Len(t, sub.calls, 1)
			assert.True(t, sub.resume, "resume is on disk while the run executes")
			got := sub.calls[0].Applicant
			assert.Equal(t, "Ada Lovelace", got.Name)
			assert.Equal(t, "ada@example.com", got.Email)
			assert.True(t, got.AutoConsent)
			_, err := os.Stat(got.ResumePath)
			assert.True(t, os.IsNotExist(err), "temporary resume is removed after the request")

			assert.Equal(t, 1, store.created)
			assert.Equal(t, []string{result.ID}, archive.runs)
		})
	}
}

func TestHealth(t *testing.T) {
	c := NewSubmissionController(&fakeSubmitter{}, nil, 1, utils.NewNopLogger())
	w := httptest.NewRecorder()
	newRouter(c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSubmissionHistory(t *testing.T) {
	id := "3f2a0d4e-6c1b-4a57-9f38-0f6f1f0c5a11"
	store := &memoryStore{records: map[string]*models.SubmissionRecord{
		id: {ID: id, JobURL: "https://jobs.example.com/1", Status: models.StatusSubmitted},
	}}
	c := NewSubmissionController(&fakeSubmitter{}, nil, 1, utils.NewNopLogger())
	c.Store = store
	router := newRouter(c)

	tests := []struct {
		path string
		want int
	}{
		{"/api/submissions", http.StatusOK},
		{"/api/submissions?limit=0", http.StatusBadRequest},
		{"/api/submissions?limit=101", http.StatusBadRequest},
		{"/api/submissions?offset=-1", http.StatusBadRequest},
		{"/api/submissions/" + id, http.StatusOK},
		{"/api/submissions/not-a-uuid", http.StatusNotFound},
		{"/api/submissions/6f1d3c1e-0000-4000-8000-000000000000", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSubmissionHistory_ListEnvelope(t *testing.T) {
	id := "3f2a0d4e-6c1b-4a57-9f38-0f6f1f0c5a11"
	store := &memoryStore{records: map[string]*models.SubmissionRecord{
		id: {ID: id, JobURL: "https://jobs.example.com/1", Status: models.StatusSubmitted},
	}}
	c := NewSubmissionController(&fakeSubmitter{}, nil, 1, utils.NewNopLogger())
	c.Store = store

	w := httptest.NewRecorder()
	newRouter(c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Submissions []models.SubmissionRecord `json:"submissions"`
			Limit       int                       `json:"limit"`
			Offset      int                       `json:"offset"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 5, body.Data.Limit)
	assert.Zero(t, body.Data.Offset)
	require.Len(t, body.Data.Submissions, 1)
	assert.Equal(t, id, body.Data.Submissions[0].ID)
}

func TestSubmissionHistory_NotFoundEnvelope(t *testing.T) {
	c := NewSubmissionController(&fakeSubmitter{}, nil, 1, utils.NewNopLogger())
	c.Store = &memoryStore{records: map[string]*models.SubmissionRecord{}}

	w := httptest.NewRecorder()
	newRouter(c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submissions/6f1d3c1e-0000-4000-8000-000000000000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Submission not found","error":"Submission not found","code":404}`, w.Body.String())
}

func TestSubmissionHistory_NotConfigured(t *testing.T) {
	c := NewSubmissionController(&fakeSubmitter{}, nil, 1, utils.NewNopLogger())
	w := httptest.NewRecorder()
	newRouter(c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submissions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Submission history is not configured"`)
}
