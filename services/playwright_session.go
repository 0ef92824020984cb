package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autoapply/config"
	"autoapply/utils"
)

const labelScript = `el => {
	const clean = t => (t || '').replace(/\s+/g, ' ').trim();
	if (el.id) {
		const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
		if (l) return clean(l.innerText);
	}
	const wrap = el.closest('label');
	if (wrap) return clean(wrap.innerText);
	let n = el;
	for (let depth = 0; n && depth < 3; depth++, n = n.parentElement) {
		for (let p = n.previousSibling; p; p = p.previousSibling) {
			const t = clean(p.textContent);
			if (t) return t;
		}
		if (n.parentElement && n.parentElement.tagName === 'FORM') break;
	}
	return '';
}`

const nearbyLabelScript = `el => {
	if (el.id) {
		const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
		if (l) return l;
	}
	return el.closest('label');
}`

const revealScript = `el => {
	el.hidden = false;
	el.style.display = 'block';
	el.style.visibility = 'visible';
	el.style.opacity = '1';
}`

// PlaywrightBrowser runs one Chromium for the process and gives every run
// its own browser context.
type PlaywrightBrowser struct {
	pw                *playwright.Playwright
	browser           playwright.Browser
	navigationTimeout time.Duration
	logger            *utils.Logger
}

// NewPlaywrightBrowser starts the driver and launches Chromium.
func NewPlaywrightBrowser(cfg config.BrowserConfig, logger *utils.Logger) (*PlaywrightBrowser, error) {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PlaywrightBrowser{
		pw:                pw,
		browser:           browser,
		navigationTimeout: timeout,
		logger:            logger.Named("playwright"),
	}, nil
}

// Open creates an isolated context and navigates to url. Cancelling ctx
// closes the context, which aborts any pending page operation.
func (b *PlaywrightBrowser) Open(ctx context.Context, url string) (PageSession, error) {
	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not create context: %v", ErrNavigation, mapPlaywrightErr(err))
	}
	stop := context.AfterFunc(ctx, func() { bctx.Close() })

	page, err := bctx.NewPage()
	if err != nil {
		stop()
		bctx.Close()
		return nil, fmt.Errorf("%w: could not create page: %v", ErrNavigation, err)
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(b.navigationTimeout.Milliseconds())),
	}); err != nil {
		stop()
		bctx.Close()
		return nil, fmt.Errorf("%w: could not navigate to %s: %v", ErrNavigation, url, err)
	}

	b.logger.Debug("opened page", zap.String("url", url))
	return &playwrightSession{ctx: bctx, page: page, stop: stop}, nil
}

// Close shuts down Chromium and the driver.
func (b *PlaywrightBrowser) Close() error {
	if err := b.browser.Close(); err != nil {
		b.logger.Warn("error closing browser", zap.Error(err))
	}
	return b.pw.Stop()
}

func mapPlaywrightErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %v", ErrSessionFault, err)
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrStepTimeout, err)
	}
	return err
}

// Actionability checks that never pass report one of these in the error log.
var notInteractableHints = []string{
	"element is not visible",
	"element is not enabled",
	"element is not editable",
}

// interactionErr maps err and tags anything that is not a session fault as
// an element failure. Failed actionability checks become ErrNotInteractable
// even when they surface as timeouts.
func interactionErr(err error) error {
	mapped := mapPlaywrightErr(err)
	if mapped == nil || errors.Is(mapped, ErrSessionFault) {
		return mapped
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range notInteractableHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", ErrNotInteractable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrElementInteraction, err)
}

type playwrightSession struct {
	ctx  playwright.BrowserContext
	page playwright.Page
	stop func() bool
}

func (s *playwrightSession) URL() string {
	return s.page.URL()
}

func (s *playwrightSession) Title() (string, error) {
	t, err := s.page.Title()
	return t, mapPlaywrightErr(err)
}

func (s *playwrightSession) BodyText() (string, error) {
	t, err := s.page.Locator("body").InnerText()
	return t, mapPlaywrightErr(err)
}

func (s *playwrightSession) Query(selector string) ([]Element, error) {
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, mapPlaywrightErr(err)
	}
	return wrapHandles(handles)
}

// wrapHandles resolves each handle's tag name. Handles that detach meanwhile
// are dropped.
func wrapHandles(handles []playwright.ElementHandle) ([]Element, error) {
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		tag, err := h.Evaluate("el => el.tagName.toLowerCase()")
		if err != nil {
			if mapped := mapPlaywrightErr(err); errors.Is(mapped, ErrSessionFault) {
				return nil, mapped
			}
			continue
		}
		name, _ := tag.(string)
		out = append(out, &playwrightElement{handle: h, tag: name})
	}
	return out, nil
}

func (s *playwrightSession) WaitForSettle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return mapPlaywrightErr(err)
}

func (s *playwrightSession) Screenshot() ([]byte, error) {
	b, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	return b, mapPlaywrightErr(err)
}

func (s *playwrightSession) Close() error {
	s.stop()
	return s.ctx.Close()
}

type playwrightElement struct {
	handle playwright.ElementHandle
	tag    string
}

func (e *playwrightElement) TagName() string { return e.tag }

func (e *playwrightElement) Attribute(name string) (string, error) {
	v, err := e.handle.GetAttribute(name)
	return v, mapPlaywrightErr(err)
}

func (e *playwrightElement) evalString(script string) (string, error) {
	v, err := e.handle.Evaluate(script)
	if err != nil {
		return "", mapPlaywrightErr(err)
	}
	s, _ := v.(string)
	return s, nil
}

func (e *playwrightElement) LabelText() (string, error) {
	return e.evalString(labelScript)
}

func (e *playwrightElement) ParentText() (string, error) {
	return e.evalString("el => el.parentElement ? el.parentElement.innerText || '' : ''")
}

func (e *playwrightElement) Text() (string, error) {
	if e.tag == "input" {
		return e.Attribute("value")
	}
	t, err := e.handle.InnerText()
	return t, mapPlaywrightErr(err)
}

func (e *playwrightElement) IsVisible() (bool, error) {
	v, err := e.handle.IsVisible()
	return v, mapPlaywrightErr(err)
}

func (e *playwrightElement) IsEnabled() (bool, error) {
	v, err := e.handle.IsEnabled()
	return v, mapPlaywrightErr(err)
}

func (e *playwrightElement) IsChecked() (bool, error) {
	v, err := e.handle.IsChecked()
	return v, mapPlaywrightErr(err)
}

func (e *playwrightElement) SetValue(value string) error {
	return interactionErr(e.handle.Fill(value))
}

// Upload sets the file directly; Playwright does not check visibility for
// file inputs, so only a disabled input is refused up front.
func (e *playwrightElement) Upload(path string) error {
	enabled, err := e.IsEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%w: file input is disabled", ErrNotInteractable)
	}
	return interactionErr(e.handle.SetInputFiles(path))
}

func (e *playwrightElement) Reveal() error {
	_, err := e.handle.Evaluate(revealScript)
	return interactionErr(err)
}

func (e *playwrightElement) Click() error {
	return interactionErr(e.handle.Click())
}

func (e *playwrightElement) Check() error {
	err := e.handle.Check()
	if err == nil {
		return nil
	}
	// Styled checkboxes cover the input; a forced check goes through them.
	return interactionErr(e.handle.Check(playwright.ElementHandleCheckOptions{
		Force: playwright.Bool(true),
	}))
}

func (e *playwrightElement) Nearby(selector string) ([]Element, error) {
	var candidates []playwright.ElementHandle

	label, err := e.handle.EvaluateHandle(nearbyLabelScript)
	if err != nil {
		return nil, mapPlaywrightErr(err)
	}
	if lh := label.AsElement(); lh != nil {
		if ok, err := lh.Evaluate("(l, sel) => l.matches(sel)", selector); err == nil && ok == true {
			candidates = append(candidates, lh)
		}
	}

	parent, err := e.handle.EvaluateHandle("el => el.parentElement")
	if err != nil {
		return nil, mapPlaywrightErr(err)
	}
	if ph := parent.AsElement(); ph != nil {
		handles, err := ph.QuerySelectorAll(selector)
		if err != nil {
			return nil, mapPlaywrightErr(err)
		}
		candidates = append(candidates, handles...)
	}

	kept := []playwright.ElementHandle{e.handle}
	unique := make([]playwright.ElementHandle, 0, len(candidates))
	for _, h := range candidates {
		dup := false
		for _, k := range kept {
			same, err := h.Evaluate("(n, other) => n === other", k)
			if err != nil {
				return nil, mapPlaywrightErr(err)
			}
			if same == true {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, h)
			unique = append(unique, h)
		}
	}
	return wrapHandles(unique)
}
