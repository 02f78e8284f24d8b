// Package fetcher retrieves raw page markup over plain HTTP.
// Failures are reported as TransportError values with a coarse category
// the orchestrator uses to pick a fallback acquisition strategy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pagesift/pagesift/internal/logger"
)

// Category classifies a transport failure.
type Category string

const (
	CategoryAuthRequired     Category = "auth-required"
	CategoryForbidden        Category = "forbidden"
	CategoryNotFound         Category = "not-found"
	CategoryConnectionFailed Category = "connection-failed"
	CategoryTimeout          Category = "timeout"
	CategoryRedirectLoop     Category = "redirect-loop"
	CategoryOtherHTTP        Category = "other-http-error"
)

// TransportError is a categorized fetch failure.
type TransportError struct {
	URL      string
	Status   int
	Category Category
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: status %d (%s)", e.URL, e.Status, e.Category)
	}
	return fmt.Sprintf("fetch %s: %v (%s)", e.URL, e.Err, e.Category)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CategoryOf extracts the transport category from an error chain.
// Returns CategoryOtherHTTP when the error is not a TransportError.
func CategoryOf(err error) Category {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryOtherHTTP
}

// Page is one fetched HTML snapshot.
type Page struct {
	URL       string
	FinalURL  string
	Status    int
	HTML      string
	FetchedAt time.Time
}

// Config holds fetch client configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// Client fetches pages using Colly.
type Client struct {
	cfg Config
}

// New creates a fetch client.
func New(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{cfg: cfg}
}

// Fetch retrieves the markup at targetURL. On failure it returns a
// *TransportError alongside whatever partial page data was observed.
func (c *Client) Fetch(ctx context.Context, targetURL string) (Page, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	page := Page{
		URL:       targetURL,
		FetchedAt: time.Now().UTC(),
	}

	// A fresh collector per request: no shared cookie jar or cache
	// across concurrent scrapes.
	col := colly.NewCollector(
		colly.UserAgent(c.cfg.UserAgent),
	)
	col.SetRequestTimeout(c.cfg.Timeout)

	var fetchErr error

	col.OnResponse(func(r *colly.Response) {
		page.Status = r.StatusCode
		page.HTML = string(r.Body)
		if r.Request != nil && r.Request.URL != nil {
			page.FinalURL = r.Request.URL.String()
		}
	})

	col.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
			page.Status = status
		}
		fetchErr = categorize(targetURL, status, err)
	})

	if err := col.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = categorize(targetURL, 0, err)
	}

	if fetchErr != nil {
		logger.Debug("static fetch failed", "url", targetURL, "error", fetchErr)
		return page, fetchErr
	}

	if page.FinalURL == "" {
		page.FinalURL = targetURL
	}

	logger.Debug("static fetch complete",
		"url", targetURL,
		"status", page.Status,
		"html_size", len(page.HTML))
	return page, nil
}

// categorize maps an HTTP status or a transport-level error to a Category.
func categorize(url string, status int, err error) *TransportError {
	te := &TransportError{URL: url, Status: status, Err: err}

	switch {
	case status == 401 || status == 407:
		te.Category = CategoryAuthRequired
	case status == 403:
		te.Category = CategoryForbidden
	case status == 404 || status == 410:
		te.Category = CategoryNotFound
	case status >= 400:
		te.Category = CategoryOtherHTTP
	default:
		te.Category = categorizeNetErr(err)
	}
	return te
}

func categorizeNetErr(err error) Category {
	if err == nil {
		return CategoryOtherHTTP
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return CategoryTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(msg, "redirect"):
		return CategoryRedirectLoop
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "unreachable"):
		return CategoryConnectionFailed
	default:
		return CategoryConnectionFailed
	}
}
