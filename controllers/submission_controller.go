package controllers

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"autoapply/models"
	"autoapply/parsers"
	"autoapply/services"
	"autoapply/utils"
)

// Submitter runs one application.
type Submitter interface {
	Submit(ctx context.Context, req services.SubmissionRequest) *models.SubmissionResult
}

// SubmissionStore persists finished runs.
type SubmissionStore interface {
	Create(result *models.SubmissionResult) (*models.SubmissionRecord, error)
	GetByID(id string) (*models.SubmissionRecord, error)
	GetRecent(limit, offset int) ([]*models.SubmissionRecord, error)
}

// ResumeArchiver keeps a copy of each submitted resume.
type ResumeArchiver interface {
	ArchiveResume(ctx context.Context, runID, filePath string) (string, error)
}

// ResumeValidator rejects uploads that are not real PDFs.
type ResumeValidator interface {
	Validate(path string) (*parsers.ResumeInfo, error)
}

type SubmissionController struct {
	Submitter   Submitter
	Store       SubmissionStore
	Archiver    ResumeArchiver
	Validator   ResumeValidator
	AutoConsent bool

	sem    *semaphore.Weighted
	policy *bluemonday.Policy
	logger *utils.Logger
}

func NewSubmissionController(submitter Submitter, validator ResumeValidator, maxConcurrent int, logger *utils.Logger) *SubmissionController {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &SubmissionController{
		Submitter:   submitter,
		Validator:   validator,
		AutoConsent: true,
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.Named("submissions"),
	}
}

// SubmitRequest is the multipart form of POST /submit.
type SubmitRequest struct {
	JobURL   string `form:"job_url"`
	Name     string `form:"name"`
	Email    string `form:"email"`
	Phone    string `form:"phone"`
	LinkedIn string `form:"linkedin"`
	Website  string `form:"website"`
}

// sanitize strips markup and surrounding whitespace from a form value.
func (c *SubmissionController) sanitize(v string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(v)))
}

func validJobURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Submit handles POST /submit. Validation problems are 400; once a run
// starts the result is returned with 200 whatever its status.
func (c *SubmissionController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.BadRequestError(ctx, "Invalid form data", err)
		return
	}

	jobURL := strings.TrimSpace(req.JobURL)
	if jobURL == "" {
		utils.BadRequestError(ctx, "job_url is required", nil)
		return
	}
	if !validJobURL(jobURL) {
		utils.BadRequestError(ctx, "job_url must be an http or https URL", nil)
		return
	}

	file, err := ctx.FormFile("resume")
	if err != nil {
		utils.BadRequestError(ctx, "resume file is required", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		utils.BadRequestError(ctx, "Resume must be a PDF file", nil)
		return
	}

	tmpDir, err := os.MkdirTemp("", "autoapply_")
	if err != nil {
		c.logger.Error("could not create temp dir", err)
		utils.InternalServerError(ctx, "Failed to store resume", nil)
		return
	}
	defer os.RemoveAll(tmpDir)

	resumePath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := ctx.SaveUploadedFile(file, resumePath); err != nil {
		c.logger.Error("could not save upload", err)
		utils.InternalServerError(ctx, "Failed to store resume", nil)
		return
	}

	if c.Validator != nil {
		if _, err := c.Validator.Validate(resumePath); err != nil {
			if errors.Is(err, parsers.ErrNotPDF) {
				utils.BadRequestError(ctx, "Resume must be a PDF file", err)
				return
			}
			utils.BadRequestError(ctx, "Invalid resume", err)
			return
		}
	}

	applicant := models.Applicant{
		Name:        c.sanitize(req.Name),
		Email:       c.sanitize(req.Email),
		Phone:       c.sanitize(req.Phone),
		LinkedIn:    c.sanitize(req.LinkedIn),
		Website:     c.sanitize(req.Website),
		ResumePath:  resumePath,
		AutoConsent: c.AutoConsent,
	}

	reqCtx := ctx.Request.Context()
	if err := c.sem.Acquire(reqCtx, 1); err != nil {
		utils.ServiceUnavailableError(ctx, "Request cancelled while waiting for a browser", err)
		return
	}
	defer c.sem.Release(1)

	result := c.Submitter.Submit(reqCtx, services.SubmissionRequest{JobURL: jobURL, Applicant: applicant})
	if result == nil {
		utils.InternalServerError(ctx, "Submission produced no result", nil)
		return
	}

	c.persist(reqCtx, result, resumePath)
	ctx.JSON(http.StatusOK, result)
}

// persist stores the result and archives the resume. Neither may fail the
// request.
func (c *SubmissionController) persist(ctx context.Context, result *models.SubmissionResult, resumePath string) {
	if c.Archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if _, err := c.Archiver.ArchiveResume(archiveCtx, result.ID, resumePath); err != nil {
			c.logger.Warn("could not archive resume", zap.String("run_id", result.ID), zap.Error(err))
		}
		cancel()
	}
	if c.Store != nil {
		if _, err := c.Store.Create(result); err != nil {
			c.logger.Warn("could not store submission", zap.String("run_id", result.ID), zap.Error(err))
		}
	}
}

// Health handles GET /health.
func (c *SubmissionController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListSubmissions handles GET /api/submissions.
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	if c.Store == nil {
		utils.ServiceUnavailableError(ctx, "Submission history is not configured", nil)
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		utils.BadRequestError(ctx, "limit must be between 1 and 100", nil)
		return
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		utils.BadRequestError(ctx, "offset must be a non-negative integer", nil)
		return
	}

	records, err := c.Store.GetRecent(limit, offset)
	if err != nil {
		c.logger.Error("could not list submissions", err)
		utils.InternalServerError(ctx, "Failed to fetch submissions", nil)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Submissions retrieved", gin.H{"submissions": records, "limit": limit, "offset": offset})
}

// GetSubmission handles GET /api/submissions/:id.
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	if c.Store == nil {
		utils.ServiceUnavailableError(ctx, "Submission history is not configured", nil)
		return
	}

	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		utils.NotFoundError(ctx, "Submission not found")
		return
	}

	record, err := c.Store.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.NotFoundError(ctx, "Submission not found")
			return
		}
		c.logger.Error("could not fetch submission", err)
		utils.InternalServerError(ctx, "Failed to fetch submission", nil)
		return
	}
	ctx.JSON(http.StatusOK, record)
}
