package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autoapply/models"
	"autoapply/utils"
)

// SubmissionRequest is one job to apply to.
type SubmissionRequest struct {
	JobURL    string
	Applicant models.Applicant
}

// ScreenshotStore keeps the confirmation page capture of a run.
type ScreenshotStore interface {
	StoreScreenshot(ctx context.Context, runID string, png []byte) (string, error)
}

// OrchestratorOptions tunes a SubmissionOrchestrator. Zero values fall back
// to defaults.
type OrchestratorOptions struct {
	StepBudget  int
	StepTimeout time.Duration
	Screenshots ScreenshotStore
	Logger      *utils.Logger
}

// SubmissionOrchestrator runs one job application end to end and always
// produces a result.
type SubmissionOrchestrator struct {
	browser     Browser
	navigator   *StepNavigator
	detector    *SuccessDetector
	screenshots ScreenshotStore
	logger      *utils.Logger
	now         func() time.Time
}

func NewSubmissionOrchestrator(browser Browser, opts OrchestratorOptions) *SubmissionOrchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	navigator := NewStepNavigator(
		NewFieldCatalog(logger),
		NewFieldMatcher(logger),
		NewFormFillerService(logger),
		opts.StepBudget,
		opts.StepTimeout,
		logger,
	)
	return &SubmissionOrchestrator{
		browser:     browser,
		navigator:   navigator,
		detector:    NewSuccessDetector(logger),
		screenshots: opts.Screenshots,
		logger:      logger.Named("orchestrator"),
		now:         time.Now,
	}
}

// Submit applies to req.JobURL. Every failure, including a panic in the
// browser driver, ends up in the returned result.
func (o *SubmissionOrchestrator) Submit(ctx context.Context, req SubmissionRequest) (result *models.SubmissionResult) {
	runID := uuid.NewString()
	rec := models.NewResultRecorder(runID, req.JobURL, req.Applicant.Requested())
	log := o.logger.With(zap.String("run_id", runID), zap.String("job_url", req.JobURL))
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", fmt.Errorf("%v", r))
			rec.AddNote(fmt.Sprintf("unexpected error: %v", r))
			result = rec.Finalize(models.StatusError, time.Time{}, fmt.Sprintf("%v", r))
		}
		log.Info("run finished",
			zap.String("status", result.Status),
			zap.Duration("duration", o.now().Sub(start)))
	}()

	if path := req.Applicant.ResumePath; path != "" {
		if _, err := os.Stat(path); err != nil {
			rec.AddNote(fmt.Sprintf("resume file not found at %s", path))
			return rec.Finalize(models.StatusFailed, time.Time{}, "")
		}
	}

	rec.AddNote(fmt.Sprintf("navigating to %s", req.JobURL))
	page, err := o.browser.Open(ctx, req.JobURL)
	if err != nil {
		log.Warn("could not open job page", zap.Error(err))
		rec.AddNote(fmt.Sprintf("failed to open job page: %v", err))
		return rec.Finalize(models.StatusError, time.Time{}, err.Error())
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("error closing page session", zap.Error(err))
		}
	}()

	outcome, err := o.navigator.Run(ctx, page, req.Applicant, rec)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			rec.AddNote(fmt.Sprintf("run cancelled: %v", err))
		} else {
			rec.AddNote(fmt.Sprintf("run aborted: %v", err))
		}
		return rec.Finalize(models.StatusError, time.Time{}, err.Error())
	}

	if outcome.Final != StateTerminal {
		return rec.Finalize(models.StatusFailed, time.Time{}, "")
	}

	verdict, err := o.detector.Detect(page)
	if err != nil {
		rec.AddNote(fmt.Sprintf("run aborted: %v", err))
		return rec.Finalize(models.StatusError, time.Time{}, err.Error())
	}
	for _, note := range verdict.Notes(page.URL()) {
		rec.AddNote(note)
	}
	o.captureConfirmation(ctx, runID, page, rec, log)

	if !verdict.Submitted {
		return rec.Finalize(models.StatusFailed, time.Time{}, "")
	}
	return rec.Finalize(models.StatusSubmitted, o.now(), "")
}

// captureConfirmation stores a screenshot of the final page when a store is
// configured. Failures are logged and never change the outcome.
func (o *SubmissionOrchestrator) captureConfirmation(ctx context.Context, runID string, page PageSession, rec *models.ResultRecorder, log *utils.Logger) {
	if o.screenshots == nil {
		return
	}
	png, err := page.Screenshot()
	if err != nil {
		log.Warn("could not capture confirmation page", zap.Error(err))
		return
	}
	key, err := o.screenshots.StoreScreenshot(ctx, runID, png)
	if err != nil {
		log.Warn("could not store confirmation screenshot", zap.Error(err))
		return
	}
	rec.AddNote(fmt.Sprintf("confirmation screenshot stored: %s", key))
}
