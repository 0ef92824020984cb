package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"autoapply/models"
	"autoapply/utils"
)

// NavState is a state of the step machine.
type NavState string

const (
	StateScanning  NavState = "SCANNING"
	StateActing    NavState = "ACTING"
	StateAdvancing NavState = "ADVANCING"
	StateTerminal  NavState = "TERMINAL"
	StateDeadEnd   NavState = "DEAD_END"
)

const (
	DefaultStepBudget  = 5
	DefaultStepTimeout = 60 * time.Second

	controlSelector = "button, input[type=submit], input[type=button], a, [role=button]"
)

var (
	submitControlWords   = []string{"submit", "apply", "send application", "complete application", "finish", "send"}
	continueControlWords = []string{"continue", "next", "proceed"}
	// Third-party sign-in, navigation away and back buttons are never clicked.
	ignoredControlWords = []string{
		"linkedin", "indeed", "google", "sign in", "sign up", "log in", "login",
		"cancel", "go back", "previous", "save for later",
	}
)

// NavigationOutcome is where the machine stopped.
type NavigationOutcome struct {
	Final NavState
	Steps []models.StepResult
	// Cause explains a dead end.
	Cause string
}

// StepNavigator drives fill, act and advance across multi-screen forms.
type StepNavigator struct {
	catalog     *FieldCatalog
	matcher     *FieldMatcher
	filler      *FormFillerService
	budget      int
	stepTimeout time.Duration
	logger      *utils.Logger
}

func NewStepNavigator(catalog *FieldCatalog, matcher *FieldMatcher, filler *FormFillerService, budget int, stepTimeout time.Duration, logger *utils.Logger) *StepNavigator {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &StepNavigator{
		catalog:     catalog,
		matcher:     matcher,
		filler:      filler,
		budget:      budget,
		stepTimeout: stepTimeout,
		logger:      logger.Named("navigator"),
	}
}

type control struct {
	el   Element
	text string
}

// Run walks the form until a submit control is clicked or no way forward is
// left. A page is scanned at most budget+1 times. The returned error is set
// only when the session or the context failed; the outcome is still valid.
func (n *StepNavigator) Run(ctx context.Context, page PageSession, applicant models.Applicant, rec *models.ResultRecorder) (NavigationOutcome, error) {
	var (
		out       NavigationOutcome
		state     = StateScanning
		remaining = n.budget
		step      models.StepResult
		recorded  = true
		fields    int
		next      control
	)

	note := func(s string) {
		step.Notes = append(step.Notes, s)
		rec.AddNote(s)
	}
	finishStep := func() {
		if recorded {
			return
		}
		recorded = true
		rec.RecordStep(step)
		out.Steps = append(out.Steps, step)
	}

	for {
		if err := ctx.Err(); err != nil {
			finishStep()
			out.Final = StateDeadEnd
			out.Cause = "run cancelled"
			return out, err
		}

		switch state {
		case StateScanning:
			step = models.StepResult{StepIndex: len(out.Steps) + 1, Action: models.ActionNone}
			recorded = false

			found, err := n.catalog.Scan(page)
			if err != nil {
				finishStep()
				out.Final = StateDeadEnd
				out.Cause = err.Error()
				return out, fmt.Errorf("scan step %d: %w", step.StepIndex, err)
			}
			fields = len(found)
			report := n.filler.Fill(page, n.matcher.Match(found), applicant)
			step.Outcomes = report.Outcomes
			for _, s := range report.Notes {
				note(s)
			}
			state = StateActing

		case StateActing:
			terminal, cont, err := n.findControls(page, fields)
			if err != nil {
				finishStep()
				out.Final = StateDeadEnd
				out.Cause = err.Error()
				return out, fmt.Errorf("find controls on step %d: %w", step.StepIndex, err)
			}
			switch {
			case terminal != nil:
				next, state = *terminal, StateTerminal
			case cont != nil && remaining > 0:
				next, state = *cont, StateAdvancing
			case cont != nil:
				out.Cause = fmt.Sprintf("step budget of %d exhausted", n.budget)
				state = StateDeadEnd
			default:
				out.Cause = "no submit or continue control found"
				state = StateDeadEnd
			}

		case StateAdvancing:
			step.Action = models.ActionContinue
			if err := next.el.Click(); err != nil {
				if errors.Is(err, ErrSessionFault) {
					finishStep()
					out.Final = StateDeadEnd
					return out, err
				}
				out.Cause = fmt.Sprintf("could not click '%s': %v", next.text, err)
				state = StateDeadEnd
				continue
			}
			note(fmt.Sprintf("clicked button: '%s'", next.text))
			remaining--

			if err := page.WaitForSettle(ctx, n.stepTimeout); err != nil {
				if errors.Is(err, ErrStepTimeout) {
					out.Cause = fmt.Sprintf("step %d did not settle within %s", step.StepIndex, n.stepTimeout)
					state = StateDeadEnd
					continue
				}
				finishStep()
				out.Final = StateDeadEnd
				return out, err
			}
			finishStep()
			state = StateScanning

		case StateTerminal:
			step.Action = models.ActionSubmit
			if err := next.el.Click(); err != nil {
				if errors.Is(err, ErrSessionFault) {
					finishStep()
					out.Final = StateDeadEnd
					return out, err
				}
				out.Cause = fmt.Sprintf("could not click '%s': %v", next.text, err)
				state = StateDeadEnd
				continue
			}
			note(fmt.Sprintf("clicked button: '%s'", next.text))

			// The click went through; a slow confirmation page is still judged.
			if err := page.WaitForSettle(ctx, n.stepTimeout); err != nil {
				if !errors.Is(err, ErrStepTimeout) {
					finishStep()
					out.Final = StateTerminal
					return out, err
				}
				note(fmt.Sprintf("page did not settle within %s after submit", n.stepTimeout))
			}
			finishStep()
			out.Final = StateTerminal
			n.logger.Info("submitted form", zap.Int("steps", len(out.Steps)), zap.String("url", page.URL()))
			return out, nil

		case StateDeadEnd:
			note(fmt.Sprintf("dead end at step %d: %s", step.StepIndex, out.Cause))
			finishStep()
			out.Final = StateDeadEnd
			n.logger.Warn("navigation dead end", zap.Int("step", step.StepIndex), zap.String("cause", out.Cause))
			return out, nil
		}
	}
}

// findControls returns the first submit and first continue control in
// document order. On a page with no fields an "apply" control is an entry
// point to the form, not a submit.
func (n *StepNavigator) findControls(page PageSession, fields int) (*control, *control, error) {
	els, err := page.Query(controlSelector)
	if err != nil {
		if errors.Is(err, ErrSessionFault) {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	var terminal, cont *control
	for _, el := range els {
		visible, err := el.IsVisible()
		if err != nil {
			if errors.Is(err, ErrSessionFault) {
				return nil, nil, err
			}
			continue
		}
		if enabled, err := el.IsEnabled(); !visible || err != nil || !enabled {
			continue
		}

		text := controlText(el)
		if text == "" || containsAny(text, ignoredControlWords) || text == "back" {
			continue
		}

		switch {
		case containsAny(text, submitControlWords):
			if fields == 0 && !strings.Contains(text, "submit") {
				if cont == nil {
					cont = &control{el: el, text: displayText(el)}
				}
				continue
			}
			if terminal == nil {
				terminal = &control{el: el, text: displayText(el)}
			}
		case containsAny(text, continueControlWords):
			if cont == nil {
				cont = &control{el: el, text: displayText(el)}
			}
		}
	}
	return terminal, cont, nil
}

// controlText is the lowercased text a control shows or announces.
func controlText(el Element) string {
	return strings.ToLower(displayText(el))
}

func displayText(el Element) string {
	if t, err := el.Text(); err == nil {
		if t = normalizeText(t); t != "" {
			return t
		}
	}
	for _, attr := range []string{"value", "aria-label", "title"} {
		if v, err := el.Attribute(attr); err == nil {
			if v = normalizeText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
