// Package browser defines the rendered-browser collaborator boundary and
// its chromedp implementation. The acquisition state machine talks only
// to the Session and Element interfaces, so it can be exercised without
// a real browser.
package browser

import (
	"context"
	"time"
)

// Opener starts rendered-browser sessions. Each session is exclusively
// owned by one acquisition and must be closed on every exit path.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one live browser page.
type Session interface {
	// Navigate loads url and waits for the body to be visible, bounded
	// by timeout. A navigation failure is fatal for the acquisition.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitNetworkIdle waits, best-effort, for in-flight loading to
	// settle. Timeouts are swallowed: proceed anyway.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration)

	// QuerySelectorAll returns handles for elements matching selector.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	// Content returns the current serialized DOM.
	Content(ctx context.Context) (string, error)

	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)

	// Evaluate runs a JS expression; out receives the JSON-decoded
	// result and may be nil when the result is irrelevant.
	Evaluate(ctx context.Context, expr string, out any) error

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// Element is a handle to one DOM node inside a session.
type Element interface {
	IsVisible(ctx context.Context) bool
	IsEnabled(ctx context.Context) bool

	// Click attempts a synthetic mouse click; force scrolls the element
	// into view first and clicks it directly, bypassing overlays.
	Click(ctx context.Context, force bool) error

	// Evaluate runs a single-argument JS arrow function against the
	// element, e.g. "el => el.remove()".
	Evaluate(ctx context.Context, fn string) error

	GetAttribute(ctx context.Context, name string) (string, bool)
	InnerText(ctx context.Context) (string, error)
}
