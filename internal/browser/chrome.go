package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pagesift/pagesift/internal/logger"
)

// Config holds headless-browser configuration.
type Config struct {
	UserAgent string
	Width     int
	Height    int
}

// DefaultConfig returns the viewport and UA used unless overridden.
func DefaultConfig() Config {
	return Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Width:     1920,
		Height:    1080,
	}
}

// ChromeOpener opens chromedp-backed sessions from a shared allocator.
type ChromeOpener struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeOpener creates the browser allocator. Sessions share the
// allocator but each gets its own browser context.
func NewChromeOpener(cfg Config) *ChromeOpener {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width = DefaultConfig().Width
		cfg.Height = DefaultConfig().Height
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	logger.Debug("browser allocator created", "user_agent", cfg.UserAgent)

	return &ChromeOpener{allocCtx: allocCtx, cancel: cancel}
}

// Open starts a new browser context for one acquisition.
func (o *ChromeOpener) Open(ctx context.Context) (Session, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(o.allocCtx)

	// Start the browser eagerly so Open reports launch failures instead
	// of the first Navigate.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &chromeSession{ctx: browserCtx, cancel: cancelBrowser}, nil
}

// Close releases the allocator and every remaining session.
func (o *ChromeOpener) Close() error {
	if o.cancel != nil {
		o.cancel()
	}
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	logger.Debug("browser navigate", "url", url, "timeout", timeout)
	if err := s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitNetworkIdle polls document.readyState until the page reports
// complete or the timeout elapses. Best-effort only.
func (s *chromeSession) WaitNetworkIdle(ctx context.Context, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var state string
		if err := s.Evaluate(ctx, "document.readyState", &state); err != nil {
			return
		}
		if state == "complete" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
	logger.Debug("network idle wait timed out, continuing")
}

func (s *chromeSession) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var count int
	expr := fmt.Sprintf("document.querySelectorAll(%s).length", strconv.Quote(selector))
	if err := s.Evaluate(ctx, expr, &count); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}

	elements := make([]Element, count)
	for i := 0; i < count; i++ {
		elements[i] = &chromeElement{sess: s, selector: selector, index: i}
	}
	return elements, nil
}

func (s *chromeSession) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (s *chromeSession) Evaluate(ctx context.Context, expr string, out any) error {
	if out == nil {
		// Coerce void results to null so decoding the discarded value
		// cannot fail on undefined.
		expr = "(" + expr + ") ?? null"
		var discard []byte
		out = &discard
	}
	return s.run(ctx, 5*time.Second, chromedp.Evaluate(expr, out))
}

func (s *chromeSession) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// chromeElement addresses a DOM node as a selector+index pair; all
// operations resolve the node fresh via querySelectorAll, so handles
// survive DOM mutations that preserve match order.
type chromeElement struct {
	sess     *chromeSession
	selector string
	index    int
}

// elementExpr builds the script that resolves a selector+index handle
// and applies fn (a single-argument JS arrow function) to it.
func elementExpr(selector string, index int, fn string) string {
	return fmt.Sprintf(
		`(() => { const el = document.querySelectorAll(%s)[%d]; if (!el) { throw new Error("element gone"); } return (%s)(el); })()`,
		strconv.Quote(selector), index, fn,
	)
}

// eval runs fn against the node, decoding the result into out when non-nil.
func (e *chromeElement) eval(ctx context.Context, fn string, out any) error {
	return e.sess.Evaluate(ctx, elementExpr(e.selector, e.index, fn), out)
}

func (e *chromeElement) IsVisible(ctx context.Context) bool {
	var visible bool
	if err := e.eval(ctx, "el => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length)", &visible); err != nil {
		return false
	}
	return visible
}

func (e *chromeElement) IsEnabled(ctx context.Context) bool {
	var enabled bool
	if err := e.eval(ctx, `el => !el.disabled && el.getAttribute("aria-disabled") !== "true"`, &enabled); err != nil {
		return false
	}
	return enabled
}

func (e *chromeElement) Click(ctx context.Context, force bool) error {
	if force {
		return e.Evaluate(ctx, `el => { el.scrollIntoView({block: "center"}); el.click(); }`)
	}
	return e.Evaluate(ctx, `el => el.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true, view: window}))`)
}

func (e *chromeElement) Evaluate(ctx context.Context, fn string) error {
	return e.eval(ctx, fn, nil)
}

func (e *chromeElement) GetAttribute(ctx context.Context, name string) (string, bool) {
	var value *string
	fn := fmt.Sprintf("el => el.getAttribute(%s)", strconv.Quote(name))
	if err := e.eval(ctx, fn, &value); err != nil || value == nil {
		return "", false
	}
	return *value, true
}

func (e *chromeElement) InnerText(ctx context.Context) (string, error) {
	var text string
	if err := e.eval(ctx, "el => el.innerText || ''", &text); err != nil {
		return "", err
	}
	return text, nil
}
