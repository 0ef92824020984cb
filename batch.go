package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"autoapply/controllers"
	"autoapply/models"
	"autoapply/services"
	"autoapply/utils"
)

// BatchJob is one entry of a jobs file.
type BatchJob struct {
	URL string `json:"url" yaml:"url"`
}

// BatchStats counts results by status.
type BatchStats struct {
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
	Error     int `json:"error"`
	Total     int `json:"total"`
}

// BatchReport is written to the output file.
type BatchReport struct {
	SubmittedAt time.Time                  `json:"submitted_at"`
	Total       int                        `json:"total"`
	Submissions []*models.SubmissionResult `json:"submissions"`
	Stats       BatchStats                 `json:"stats"`
}

var batchFlags struct {
	name        string
	email       string
	phone       string
	linkedin    string
	website     string
	output      string
	concurrency int
}

var batchCmd = &cobra.Command{
	Use:   "batch <jobs-file> <resume.pdf>",
	Short: "Apply to every job in a JSON or YAML jobs file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := loadJobs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(args[1]); err != nil {
			return fmt.Errorf("resume file not found: %s", args[1])
		}

		applicant := models.Applicant{
			Name:        batchFlags.name,
			Email:       batchFlags.email,
			Phone:       batchFlags.phone,
			LinkedIn:    batchFlags.linkedin,
			Website:     batchFlags.website,
			ResumePath:  args[1],
			AutoConsent: appConfig.AutoConsent,
		}

		d, err := openDeps(cmd.Context(), appConfig, logger, false)
		if err != nil {
			return err
		}
		defer d.Close()

		concurrency := batchFlags.concurrency
		if concurrency <= 0 {
			concurrency = appConfig.MaxConcurrentRuns
		}
		report := runBatch(cmd.Context(), d.orchestrator(appConfig, logger), jobs, applicant, concurrency, logger)

		if err := writeReport(batchFlags.output, report); err != nil {
			return err
		}
		logger.Info("batch finished",
			zap.Int("submitted", report.Stats.Submitted),
			zap.Int("failed", report.Stats.Failed),
			zap.Int("error", report.Stats.Error),
			zap.String("output", batchFlags.output))

		if report.Stats.Error > 0 {
			return fmt.Errorf("%d of %d runs ended in error", report.Stats.Error, report.Stats.Total)
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.name, "name", "", "full name")
	f.StringVar(&batchFlags.email, "email", "", "email address")
	f.StringVar(&batchFlags.phone, "phone", "", "phone number")
	f.StringVar(&batchFlags.linkedin, "linkedin", "", "LinkedIn profile URL")
	f.StringVar(&batchFlags.website, "website", "", "personal website URL")
	f.StringVarP(&batchFlags.output, "output", "o", "submissions.json", "file the results are written to")
	f.IntVar(&batchFlags.concurrency, "concurrency", 0, "parallel runs (default max_concurrent_runs)")
}

// loadJobs reads a jobs file. YAML files may use .yaml or .yml; anything else
// is parsed as JSON.
func loadJobs(path string) ([]BatchJob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jobs file not found: %w", err)
	}

	var jobs []BatchJob
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &jobs)
	default:
		err = json.Unmarshal(raw, &jobs)
	}
	if err != nil {
		return nil, fmt.Errorf("jobs file must contain an array of job objects: %w", err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no jobs found in %s", path)
	}
	return jobs, nil
}

// runBatch applies to every job with at most concurrency runs in flight.
// Results keep the order of jobs.
func runBatch(ctx context.Context, submitter controllers.Submitter, jobs []BatchJob, applicant models.Applicant, concurrency int, log *utils.Logger) BatchReport {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*models.SubmissionResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		if strings.TrimSpace(job.URL) == "" {
			log.Warn("job is missing its url", zap.Int("job", i+1))
			results[i] = &models.SubmissionResult{
				JobURL:       "",
				Status:       models.StatusError,
				FieldsFilled: map[models.FieldCategory]bool{},
				Notes:        []string{"job is missing its url"},
				Error:        "missing url",
			}
			continue
		}
		g.Go(func() error {
			log.Info("processing job", zap.Int("job", i+1), zap.Int("of", len(jobs)), zap.String("url", job.URL))
			results[i] = submitter.Submit(gctx, services.SubmissionRequest{JobURL: job.URL, Applicant: applicant})
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{
		SubmittedAt: time.Now().UTC(),
		Total:       len(jobs),
		Submissions: results,
		Stats:       BatchStats{Total: len(jobs)},
	}
	for _, r := range results {
		switch r.Status {
		case models.StatusSubmitted:
			report.Stats.Submitted++
		case models.StatusFailed:
			report.Stats.Failed++
		default:
			report.Stats.Error++
		}
	}
	return report
}

func writeReport(path string, report BatchReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
