package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"autoapply/utils"
)

// PageSnapshot is the post-submit page state the signals judge.
type PageSnapshot struct {
	URL      string
	Title    string
	BodyText string
	// Markers holds the selectors of confirmation markers present on the page.
	Markers []string
}

// SuccessSignal is one independent check for a confirmation page.
type SuccessSignal interface {
	Name() string
	// Check returns the evidence that fired, if any.
	Check(snap PageSnapshot) (string, bool)
}

// SignalHit is a signal that fired along with what it saw.
type SignalHit struct {
	Signal   string
	Evidence string
}

// Verdict is the detector's conclusion. One positive signal is enough.
type Verdict struct {
	Submitted bool
	Hits      []SignalHit
}

// Notes renders the verdict the way it appears in run notes, one line per
// signal that fired.
func (v Verdict) Notes(url string) []string {
	if !v.Submitted {
		return []string{fmt.Sprintf("could not confirm success: no confirmation signal on %s", url)}
	}
	notes := make([]string, 0, len(v.Hits))
	for _, h := range v.Hits {
		notes = append(notes, fmt.Sprintf("success confirmed by %s signal: '%s'", h.Signal, h.Evidence))
	}
	return notes
}

// SignalNames lists the signals that fired, in evaluation order.
func (v Verdict) SignalNames() []string {
	names := make([]string, 0, len(v.Hits))
	for _, h := range v.Hits {
		names = append(names, h.Signal)
	}
	return names
}

type substringSignal struct {
	name    string
	tokens  []string
	extract func(PageSnapshot) string
}

func (s substringSignal) Name() string { return s.name }

func (s substringSignal) Check(snap PageSnapshot) (string, bool) {
	haystack := strings.ToLower(s.extract(snap))
	if haystack == "" {
		return "", false
	}
	for _, t := range s.tokens {
		if strings.Contains(haystack, t) {
			return t, true
		}
	}
	return "", false
}

type markerSignal struct{}

func (markerSignal) Name() string { return "marker" }

func (markerSignal) Check(snap PageSnapshot) (string, bool) {
	if len(snap.Markers) == 0 {
		return "", false
	}
	return snap.Markers[0], true
}

// Longer phrases come first so the evidence is the most specific one.
var (
	confirmationPhrases = []string{
		"thank you for applying",
		"thank you for your application",
		"application has been submitted",
		"application submitted",
		"successfully submitted",
		"application received",
		"we have received",
		"application complete",
		"we'll be in touch",
		"thank you",
	}
	confirmationURLTokens   = []string{"confirmation", "success", "thank", "submitted"}
	confirmationTitleTokens = []string{"thank you", "confirmation", "success", "submitted", "received", "application complete"}

	confirmationMarkers = []string{
		"[class*='confirmation']",
		"[id*='confirmation']",
		"[class*='application-success']",
		"[class*='success-message']",
		"[class*='submission-success']",
		"[data-testid*='confirmation']",
		"[data-testid*='success']",
		"[data-qa*='success']",
	}
)

// DefaultSignals returns the content, URL, title and marker signals.
func DefaultSignals() []SuccessSignal {
	return []SuccessSignal{
		substringSignal{name: "content", tokens: confirmationPhrases, extract: func(s PageSnapshot) string { return s.BodyText }},
		substringSignal{name: "url", tokens: confirmationURLTokens, extract: func(s PageSnapshot) string { return s.URL }},
		substringSignal{name: "title", tokens: confirmationTitleTokens, extract: func(s PageSnapshot) string { return s.Title }},
		markerSignal{},
	}
}

// SuccessDetector decides whether the page after a submit is a confirmation.
type SuccessDetector struct {
	signals []SuccessSignal
	markers []string
	logger  *utils.Logger
}

func NewSuccessDetector(logger *utils.Logger, signals ...SuccessSignal) *SuccessDetector {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	return &SuccessDetector{
		signals: signals,
		markers: confirmationMarkers,
		logger:  logger.Named("detector"),
	}
}

// Snapshot reads the page state. Unreadable title or body counts as empty;
// only a dead session is an error.
func (d *SuccessDetector) Snapshot(page PageSession) (PageSnapshot, error) {
	snap := PageSnapshot{URL: page.URL()}

	title, err := page.Title()
	if err != nil && errors.Is(err, ErrSessionFault) {
		return snap, err
	}
	snap.Title = title

	body, err := page.BodyText()
	if err != nil && errors.Is(err, ErrSessionFault) {
		return snap, err
	}
	snap.BodyText = body

	for _, sel := range d.markers {
		els, err := page.Query(sel)
		if err != nil {
			if errors.Is(err, ErrSessionFault) {
				return snap, err
			}
			continue
		}
		for _, el := range els {
			if visible, err := el.IsVisible(); err == nil && visible {
				snap.Markers = append(snap.Markers, sel)
				break
			}
		}
	}
	return snap, nil
}

// Evaluate runs every signal over snap.
func (d *SuccessDetector) Evaluate(snap PageSnapshot) Verdict {
	var v Verdict
	for _, s := range d.signals {
		if evidence, ok := s.Check(snap); ok {
			v.Hits = append(v.Hits, SignalHit{Signal: s.Name(), Evidence: evidence})
		}
	}
	v.Submitted = len(v.Hits) > 0
	return v
}

// Detect snapshots the page and evaluates it.
func (d *SuccessDetector) Detect(page PageSession) (Verdict, error) {
	snap, err := d.Snapshot(page)
	if err != nil {
		return Verdict{}, fmt.Errorf("read confirmation page: %w", err)
	}
	v := d.Evaluate(snap)
	d.logger.Info("checked for confirmation",
		zap.String("url", snap.URL),
		zap.String("title", snap.Title),
		zap.Bool("submitted", v.Submitted),
		zap.Strings("signals", v.SignalNames()))
	return v, nil
}
