package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"autoapply/models"
	"autoapply/utils"
)

// uploadTriggerSelector finds styled controls that front a hidden file input.
const uploadTriggerSelector = "button, label, a, [role=button]"

var uploadTriggerWords = []string{"upload", "attach", "choose file", "browse", "select file"}

// FillReport is what one pass of the filler did on the current step.
type FillReport struct {
	Outcomes []models.FillOutcome
	Notes    []string
}

func (r *FillReport) record(c models.FieldCategory, filled bool, via string, note string) {
	outcome := models.FillOutcome{Category: c, Filled: filled}
	if via != "" {
		v := via
		outcome.MatchedVia = &v
	}
	r.Outcomes = append(r.Outcomes, outcome)
	r.Notes = append(r.Notes, note)
}

// FormFillerService writes applicant data into matched fields. Individual
// failures become notes; nothing here aborts a run.
type FormFillerService struct {
	logger *utils.Logger
}

func NewFormFillerService(logger *utils.Logger) *FormFillerService {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &FormFillerService{logger: logger.Named("filler")}
}

// Fill attempts every matched category the applicant has data for, in
// models.CategoryOrder. Categories without a match are not attempted.
func (s *FormFillerService) Fill(page PageSession, matches map[models.FieldCategory]MatchCandidate, applicant models.Applicant) FillReport {
	var report FillReport

	for _, category := range models.CategoryOrder {
		cand, ok := matches[category]
		if !ok {
			continue
		}

		var err error
		switch {
		case category.IsText():
			value, supplied := applicant.TextValue(category)
			if !supplied {
				continue
			}
			err = s.fillText(cand.Field.Handle, value)
		case category == models.CategoryResume:
			if applicant.ResumePath == "" {
				continue
			}
			err = s.uploadResume(page, cand.Field.Handle, applicant.ResumePath)
		case category == models.CategoryConsent:
			if !applicant.AutoConsent {
				continue
			}
			err = s.checkConsent(cand.Field.Handle)
		default:
			continue
		}

		if err != nil {
			s.logger.Debug("fill failed",
				zap.String("category", string(category)),
				zap.String("via", cand.Provenance()),
				zap.Error(err))
			report.record(category, false, cand.Provenance(),
				fmt.Sprintf("failed to fill %s: %v", category, err))
			continue
		}
		report.record(category, true, cand.Provenance(),
			fmt.Sprintf("filled %s: '%s' (matched via: %s)", category, cand.Field.Attrs.Identity(), cand.Provenance()))
	}
	return report
}

func (s *FormFillerService) fillText(el Element, value string) error {
	if enabled, err := el.IsEnabled(); err == nil && !enabled {
		return fmt.Errorf("%w: field is disabled", ErrNotInteractable)
	}
	return el.SetValue(value)
}

// uploadResume tries the input directly. When it is not interactable it
// reveals the input, or clicks a nearby upload control, and retries once.
func (s *FormFillerService) uploadResume(page PageSession, el Element, path string) error {
	err := el.Upload(path)
	if err == nil || !errors.Is(err, ErrNotInteractable) {
		return err
	}

	if rerr := el.Reveal(); rerr != nil {
		trigger := s.findUploadTrigger(page, el)
		if trigger == nil {
			return err
		}
		if cerr := trigger.Click(); cerr != nil {
			return fmt.Errorf("%w (upload trigger: %v)", err, cerr)
		}
	}
	return el.Upload(path)
}

// findUploadTrigger prefers a control next to the input and only then
// searches the whole page.
func (s *FormFillerService) findUploadTrigger(page PageSession, el Element) Element {
	if nearby, err := el.Nearby(uploadTriggerSelector); err == nil {
		if c := firstUploadTrigger(nearby); c != nil {
			return c
		}
	}
	controls, err := page.Query(uploadTriggerSelector)
	if err != nil {
		return nil
	}
	return firstUploadTrigger(controls)
}

func firstUploadTrigger(controls []Element) Element {
	for _, c := range controls {
		if visible, err := c.IsVisible(); err != nil || !visible {
			continue
		}
		text, err := c.Text()
		if err != nil {
			continue
		}
		text = strings.ToLower(text)
		for _, w := range uploadTriggerWords {
			if strings.Contains(text, w) {
				return c
			}
		}
	}
	return nil
}

// checkConsent only ever ticks an unchecked box.
func (s *FormFillerService) checkConsent(el Element) error {
	checked, err := el.IsChecked()
	if err != nil {
		return err
	}
	if checked {
		return nil
	}
	return el.Check()
}
