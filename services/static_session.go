package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StaticSite maps absolute URLs to HTML documents.
type StaticSite map[string]string

// StaticBrowser serves a StaticSite without a real browser. Clicking links and
// submit buttons follows href, data-href and form action; clicking a control
// with aria-controls unhides the element it names. Used by the inspect
// command and in tests.
type StaticBrowser struct {
	site StaticSite

	mu     sync.Mutex
	opened int
	closed int
}

func NewStaticBrowser(site StaticSite) *StaticBrowser {
	return &StaticBrowser{site: site}
}

// Open loads url into a fresh session.
func (b *StaticBrowser) Open(ctx context.Context, url string) (PageSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	s := &StaticSession{browser: b}
	if err := s.load(url); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return s, nil
}

// OpenSessions reports sessions opened but not yet closed.
func (b *StaticBrowser) OpenSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened - b.closed
}

// StaticSession is a PageSession over a goquery document. Every navigation
// bumps the generation, invalidating earlier element handles.
type StaticSession struct {
	browser *StaticBrowser

	mu         sync.Mutex
	url        string
	doc        *goquery.Document
	generation int
	closed     bool
}

func (s *StaticSession) load(target string) error {
	page, ok := s.browser.site[target]
	if !ok {
		return fmt.Errorf("%w: no page at %s", ErrNavigation, target)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrNavigation, target, err)
	}
	s.url = target
	s.doc = doc
	s.generation++
	return nil
}

func (s *StaticSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *StaticSession) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionFault
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *StaticSession) BodyText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionFault
	}
	body := s.doc.Find("body").Clone()
	body.Find("script, style, [hidden]").Remove()
	return strings.Join(strings.Fields(body.Text()), " "), nil
}

func (s *StaticSession) Query(selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionFault
	}
	var out []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &staticElement{session: s, sel: sel, generation: s.generation})
	})
	return out, nil
}

// WaitForSettle returns immediately unless the body carries
// data-never-settles, which simulates a page that keeps loading.
func (s *StaticSession) WaitForSettle(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionFault
	}
	_, hangs := s.doc.Find("body").Attr("data-never-settles")
	s.mu.Unlock()

	if !hangs {
		return ctx.Err()
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("%w: page still loading after %s", ErrStepTimeout, timeout)
	}
}

func (s *StaticSession) Screenshot() ([]byte, error) {
	return nil, fmt.Errorf("static pages cannot be captured: %w", errors.ErrUnsupported)
}

func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browser.mu.Lock()
	s.browser.closed++
	s.browser.mu.Unlock()
	return nil
}

// navigate follows a click. Caller holds s.mu.
func (s *StaticSession) navigate(ref string) error {
	base, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrElementInteraction, err)
	}
	next, err := base.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: bad link %q", ErrElementInteraction, ref)
	}
	if err := s.load(next.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrElementInteraction, err)
	}
	return nil
}

type staticElement struct {
	session    *StaticSession
	sel        *goquery.Selection
	generation int
}

// live locks the session and checks the handle still belongs to the page.
// On success the caller must unlock.
func (e *staticElement) live() error {
	e.session.mu.Lock()
	switch {
	case e.session.closed:
		e.session.mu.Unlock()
		return ErrSessionFault
	case e.generation != e.session.generation:
		e.session.mu.Unlock()
		return ErrStaleElement
	}
	return nil
}

func (e *staticElement) TagName() string {
	return goquery.NodeName(e.sel)
}

func (e *staticElement) Attribute(name string) (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	defer e.session.mu.Unlock()
	return e.sel.AttrOr(name, ""), nil
}

func (e *staticElement) LabelText() (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	defer e.session.mu.Unlock()

	if label := e.labelFor(); label.Length() > 0 {
		return label.First().Text(), nil
	}
	if wrap := e.sel.Closest("label"); wrap.Length() > 0 {
		return wrap.Text(), nil
	}
	return precedingText(e.sel.Get(0)), nil
}

// precedingText returns the nearest non-empty text before n, looking at
// siblings and then at the siblings of up to three ancestors.
func precedingText(n *html.Node) string {
	for depth := 0; n != nil && depth < 3; depth++ {
		for p := n.PrevSibling; p != nil; p = p.PrevSibling {
			if t := strings.TrimSpace(nodeText(p)); t != "" {
				return t
			}
		}
		n = n.Parent
		if n != nil && n.Data == "form" {
			break
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "input" || n.Data == "textarea" || n.Data == "select" || n.Data == "script") {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func (e *staticElement) ParentText() (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	defer e.session.mu.Unlock()
	return e.sel.Parent().Text(), nil
}

func (e *staticElement) Text() (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	defer e.session.mu.Unlock()
	if goquery.NodeName(e.sel) == "input" {
		return e.sel.AttrOr("value", ""), nil
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *staticElement) visible() bool {
	if strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false
	}
	for sel := e.sel; sel.Length() > 0; sel = sel.Parent() {
		if _, hidden := sel.Attr("hidden"); hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(sel.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func (e *staticElement) IsVisible() (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	defer e.session.mu.Unlock()
	return e.visible(), nil
}

func (e *staticElement) IsEnabled() (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	defer e.session.mu.Unlock()
	_, disabled := e.sel.Attr("disabled")
	return !disabled, nil
}

func (e *staticElement) IsChecked() (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	defer e.session.mu.Unlock()
	_, checked := e.sel.Attr("checked")
	return checked, nil
}

func (e *staticElement) interactable() error {
	if !e.visible() {
		return fmt.Errorf("%w: element is hidden", ErrNotInteractable)
	}
	if _, disabled := e.sel.Attr("disabled"); disabled {
		return fmt.Errorf("%w: element is disabled", ErrNotInteractable)
	}
	return nil
}

func (e *staticElement) SetValue(value string) error {
	if err := e.live(); err != nil {
		return err
	}
	defer e.session.mu.Unlock()
	if err := e.interactable(); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText(value)
		return nil
	}
	e.sel.SetAttr("value", value)
	return nil
}

func (e *staticElement) Upload(path string) error {
	if err := e.live(); err != nil {
		return err
	}
	defer e.session.mu.Unlock()
	if err := e.interactable(); err != nil {
		return err
	}
	e.sel.SetAttr("data-uploaded", path)
	return nil
}

func (e *staticElement) Reveal() error {
	if err := e.live(); err != nil {
		return err
	}
	defer e.session.mu.Unlock()
	if _, locked := e.sel.Attr("data-locked"); locked {
		return fmt.Errorf("%w: element cannot be revealed", ErrNotInteractable)
	}
	e.sel.RemoveAttr("hidden")
	e.sel.RemoveAttr("style")
	if strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		e.sel.SetAttr("type", "file")
	}
	return nil
}

func (e *staticElement) Click() error {
	if err := e.live(); err != nil {
		return err
	}
	defer e.session.mu.Unlock()
	if err := e.interactable(); err != nil {
		return err
	}

	if target := e.sel.AttrOr("aria-controls", ""); target != "" {
		e.session.doc.Find("#" + target).RemoveAttr("hidden")
		e.sel.SetAttr("aria-expanded", "true")
		return nil
	}
	if strings.EqualFold(e.sel.AttrOr("type", ""), "checkbox") {
		if _, checked := e.sel.Attr("checked"); checked {
			e.sel.RemoveAttr("checked")
		} else {
			e.sel.SetAttr("checked", "")
		}
		return nil
	}
	if ref := e.sel.AttrOr("data-href", ""); ref != "" {
		return e.session.navigate(ref)
	}
	if goquery.NodeName(e.sel) == "a" {
		if ref := e.sel.AttrOr("href", ""); ref != "" && !strings.HasPrefix(ref, "#") {
			return e.session.navigate(ref)
		}
		return nil
	}
	if e.submits() {
		if action := e.sel.Closest("form").AttrOr("action", ""); action != "" {
			return e.session.navigate(action)
		}
	}
	return nil
}

// submits reports whether clicking submits the enclosing form.
func (e *staticElement) submits() bool {
	typ := strings.ToLower(e.sel.AttrOr("type", ""))
	switch goquery.NodeName(e.sel) {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit"
	}
	return false
}

func (e *staticElement) Check() error {
	if err := e.live(); err != nil {
		return err
	}
	defer e.session.mu.Unlock()
	if !e.visible() {
		// Styled checkboxes hide the native input behind a label.
		if !e.hasLabel() {
			return fmt.Errorf("%w: checkbox is hidden", ErrNotInteractable)
		}
	}
	e.sel.SetAttr("checked", "")
	return nil
}

func (e *staticElement) Nearby(selector string) ([]Element, error) {
	if err := e.live(); err != nil {
		return nil, err
	}
	defer e.session.mu.Unlock()

	self := e.sel.Get(0)
	seen := map[*html.Node]bool{self: true}
	var out []Element
	add := func(sel *goquery.Selection) {
		sel.Each(func(_ int, s *goquery.Selection) {
			if n := s.Get(0); !seen[n] {
				seen[n] = true
				out = append(out, &staticElement{session: e.session, sel: s, generation: e.generation})
			}
		})
	}
	add(e.labelFor().Filter(selector))
	add(e.sel.Closest("label").Filter(selector))
	add(e.sel.Parent().Find(selector))
	return out, nil
}

// labelFor returns the labels whose for attribute names this element.
func (e *staticElement) labelFor() *goquery.Selection {
	id := e.sel.AttrOr("id", "")
	return e.session.doc.Find("label").FilterFunction(func(_ int, l *goquery.Selection) bool {
		return id != "" && l.AttrOr("for", "") == id
	})
}

func (e *staticElement) hasLabel() bool {
	return e.labelFor().Length() > 0 || e.sel.Closest("label").Length() > 0
}
