package models

import (
	"sync"
	"time"
)

// FieldCategory is the semantic meaning assigned to a form input.
type FieldCategory string

const (
	CategoryName     FieldCategory = "name"
	CategoryEmail    FieldCategory = "email"
	CategoryPhone    FieldCategory = "phone"
	CategoryLinkedIn FieldCategory = "linkedin"
	CategoryWebsite  FieldCategory = "website"
	CategoryResume   FieldCategory = "resume"
	CategoryConsent  FieldCategory = "consent"
)

// CategoryOrder is the fixed claiming priority used by the matcher.
var CategoryOrder = []FieldCategory{
	CategoryName,
	CategoryEmail,
	CategoryPhone,
	CategoryLinkedIn,
	CategoryWebsite,
	CategoryResume,
	CategoryConsent,
}

// IsText reports whether the category is filled by typing a value.
func (c FieldCategory) IsText() bool {
	switch c {
	case CategoryName, CategoryEmail, CategoryPhone, CategoryLinkedIn, CategoryWebsite:
		return true
	}
	return false
}

// Submission statuses
const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// StepAction is what the navigator did at the end of a step.
type StepAction string

const (
	ActionSubmit   StepAction = "submit"
	ActionContinue StepAction = "continue"
	ActionNone     StepAction = "none"
)

// FillOutcome records one attempt to fill a category.
type FillOutcome struct {
	Category   FieldCategory `json:"category"`
	Filled     bool          `json:"filled"`
	MatchedVia *string       `json:"matched_via"`
}

// StepResult summarises one screen of a multi-step application.
type StepResult struct {
	StepIndex int           `json:"step_index"`
	Outcomes  []FillOutcome `json:"outcomes"`
	Action    StepAction    `json:"action_taken"`
	Notes     []string      `json:"notes"`
}

// SubmissionResult is the structured outcome of one run.
type SubmissionResult struct {
	ID           string                 `json:"id,omitempty"`
	JobURL       string                 `json:"job_url"`
	Status       string                 `json:"status"`
	SubmittedAt  *time.Time             `json:"submitted_at"`
	FieldsFilled map[FieldCategory]bool `json:"fields_filled"`
	Notes        []string               `json:"notes"`
	Error        string                 `json:"error,omitempty"`
	Steps        []StepResult           `json:"-"`
}

// ResultRecorder accumulates notes and outcomes during a run and seals them
// into a SubmissionResult. Notes are append-only; once Finalize has been
// called every further mutation is ignored.
type ResultRecorder struct {
	mu        sync.Mutex
	id        string
	jobURL    string
	notes     []string
	filled    map[FieldCategory]bool
	steps     []StepResult
	finalized *SubmissionResult
}

// NewResultRecorder starts a recorder for jobURL. Categories listed in
// requested appear in fields_filled as false until filled.
func NewResultRecorder(id, jobURL string, requested []FieldCategory) *ResultRecorder {
	filled := make(map[FieldCategory]bool, len(requested))
	for _, c := range requested {
		filled[c] = false
	}
	return &ResultRecorder{
		id:     id,
		jobURL: jobURL,
		filled: filled,
	}
}

// AddNote appends a note.
func (r *ResultRecorder) AddNote(note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized != nil {
		return
	}
	r.notes = append(r.notes, note)
}

// RecordStep folds a step's outcomes into fields_filled. A category filled in
// any step stays filled.
func (r *ResultRecorder) RecordStep(step StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized != nil {
		return
	}
	for _, o := range step.Outcomes {
		r.filled[o.Category] = r.filled[o.Category] || o.Filled
	}
	r.steps = append(r.steps, step)
}

// Notes returns a copy of the notes recorded so far.
func (r *ResultRecorder) Notes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

// Finalize seals the recorder. submittedAt is kept only for StatusSubmitted.
// Calling Finalize again returns the first result.
func (r *ResultRecorder) Finalize(status string, submittedAt time.Time, errMsg string) *SubmissionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized != nil {
		return r.finalized
	}

	result := &SubmissionResult{
		ID:           r.id,
		JobURL:       r.jobURL,
		Status:       status,
		FieldsFilled: make(map[FieldCategory]bool, len(r.filled)),
		Notes:        append([]string{}, r.notes...),
		Error:        errMsg,
		Steps:        append([]StepResult(nil), r.steps...),
	}
	for k, v := range r.filled {
		result.FieldsFilled[k] = v
	}
	if status == StatusSubmitted {
		at := submittedAt.UTC()
		result.SubmittedAt = &at
	}
	r.finalized = result
	return result
}
