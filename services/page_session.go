package services

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNavigation means the job URL could not be opened.
	ErrNavigation = errors.New("navigation failed")
	// ErrElementInteraction means a single set/click/upload failed.
	ErrElementInteraction = errors.New("element interaction failed")
	// ErrNotInteractable means the element exists but is hidden or disabled.
	ErrNotInteractable = errors.New("element not interactable")
	// ErrStepTimeout means a settle wait exceeded the per-step timeout.
	ErrStepTimeout = errors.New("step timed out")
	// ErrSessionFault means the browser session itself is gone.
	ErrSessionFault = errors.New("browser session fault")
	// ErrStaleElement means a handle from a previous page state was used.
	ErrStaleElement = errors.New("stale element handle")
)

// Browser opens isolated page sessions. Every Open gets fresh cookies and
// storage; nothing is shared between sessions.
type Browser interface {
	Open(ctx context.Context, url string) (PageSession, error)
}

// PageSession owns one page for the lifetime of a run.
type PageSession interface {
	URL() string
	Title() (string, error)
	BodyText() (string, error)
	// Query returns matching elements in document order.
	Query(selector string) ([]Element, error)
	// WaitForSettle blocks until the page stops loading or timeout elapses,
	// in which case the error wraps ErrStepTimeout.
	WaitForSettle(ctx context.Context, timeout time.Duration) error
	Screenshot() ([]byte, error)
	Close() error
}

// Element is a handle valid only for the page state it was queried from.
type Element interface {
	TagName() string
	Attribute(name string) (string, error)
	// LabelText is the explicit label, wrapping label or nearest preceding text.
	LabelText() (string, error)
	ParentText() (string, error)
	// Text is the visible text of a control, used for buttons and links.
	Text() (string, error)
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	IsChecked() (bool, error)
	SetValue(value string) error
	Upload(path string) error
	// Reveal makes a hidden input interactable where the page allows it.
	Reveal() error
	Click() error
	Check() error
	// Nearby returns elements matching selector around this one: its labels
	// first, then the rest of its parent container. The element itself is
	// never included.
	Nearby(selector string) ([]Element, error)
}
