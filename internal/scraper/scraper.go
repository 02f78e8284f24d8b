// Package scraper orchestrates the acquisition pipeline: static fetch,
// strategy classification, pagination or rendered acquisition, per-page
// extraction and the final merged document. Every outcome is a Document;
// failures degrade to the best available partial result instead of
// propagating.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/pagesift/pagesift/internal/acquire"
	"github.com/pagesift/pagesift/internal/browser"
	"github.com/pagesift/pagesift/internal/classifier"
	"github.com/pagesift/pagesift/internal/extract"
	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/internal/paginate"
	"github.com/pagesift/pagesift/pkg/document"
)

// Error phases recorded in Document.Errors.
const (
	phaseStaticFetch = "static-fetch"
	phaseRender      = "render"
	phaseExtract     = "extract"
	phaseValidate    = "validate"
)

// Config is the read-only runtime configuration for one scraper.
type Config struct {
	Timeout      time.Duration
	MaxPages     int
	MaxScrolls   int
	MaxClicks    int
	RawHTMLLimit int
	UserAgent    string

	// ForceRender skips classification and always uses the browser,
	// falling back to the static snapshot if rendering fails.
	ForceRender bool
}

// DefaultConfig returns the standard pipeline limits.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxPages:     3,
		MaxScrolls:   5,
		MaxClicks:    8,
		RawHTMLLimit: extract.DefaultRawHTMLLimit,
	}
}

// Fetcher is the static transport used for plain and paginated fetches.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (fetcher.Page, error)
}

// Renderer produces HTML snapshots through a rendered-browser session.
type Renderer interface {
	Acquire(ctx context.Context, targetURL string) ([]string, document.Interactions, error)
}

// Scraper runs the full pipeline for one URL at a time. Instances are
// safe for concurrent use; each call owns its own transport request and
// browser session.
type Scraper struct {
	cfg       Config
	fetch     Fetcher
	render    Renderer
	extractor *extract.Extractor
}

// New builds a production scraper with a colly transport and a headless
// Chrome renderer.
func New(cfg Config) *Scraper {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}

	acquirer := acquire.New(acquire.Config{
		MaxPages:        cfg.MaxPages,
		MaxScrolls:      cfg.MaxScrolls,
		MaxClicks:       cfg.MaxClicks,
		NavigateTimeout: cfg.Timeout,
	})
	opener := browser.NewChromeOpener(browser.Config{UserAgent: cfg.UserAgent})

	return &Scraper{
		cfg:       cfg,
		fetch:     fetcher.New(fetcher.Config{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout}),
		render:    &browserRenderer{opener: opener, acquirer: acquirer},
		extractor: extract.New(cfg.RawHTMLLimit),
	}
}

// Scrape runs the pipeline for one URL. It never returns an error; every
// failure mode ends in a well-formed document whose strategy tag and
// errors list describe what happened.
func (s *Scraper) Scrape(ctx context.Context, targetURL string) *document.Document {
	logger.Info("scrape starting", "url", targetURL)

	var errs []document.Error

	staticPage, fetchErr := s.fetch.Fetch(ctx, targetURL)
	if fetchErr != nil {
		errs = append(errs, document.Error{
			Message:  fetchErr.Error(),
			Phase:    phaseStaticFetch,
			Category: string(fetcher.CategoryOf(fetchErr)),
		})
		logger.Warn("static fetch failed, forcing rendered acquisition",
			"url", targetURL, "category", fetcher.CategoryOf(fetchErr))

		htmls, inter, renderErr := s.render.Acquire(ctx, targetURL)
		if renderErr != nil {
			errs = append(errs, document.Error{Message: renderErr.Error(), Phase: phaseRender})
			logger.Error("all acquisition paths failed", "url", targetURL)
			return document.NewErrorDocument(targetURL, document.NewInteractions(targetURL), errs)
		}
		return s.assemble(targetURL, htmls, inter, document.StrategyJSForced, errs)
	}

	if s.cfg.ForceRender {
		htmls, inter, renderErr := s.render.Acquire(ctx, targetURL)
		if renderErr != nil {
			errs = append(errs, document.Error{Message: renderErr.Error(), Phase: phaseRender})
			return s.assemble(targetURL, []string{staticPage.HTML},
				document.NewInteractions(targetURL), document.StrategyStaticFallback, errs)
		}
		return s.assemble(targetURL, htmls, inter, document.StrategyJSForced, errs)
	}

	decision := classifier.Classify(staticPage.HTML, targetURL)
	logger.Debug("classified",
		"url", targetURL,
		"needsRendering", decision.NeedsRendering,
		"hasStaticPagination", decision.HasStaticPagination)

	// Static pagination wins over rendering: a reachable next link means
	// the content is already in the markup.
	if decision.HasStaticPagination {
		return s.scrapePaginated(ctx, targetURL, staticPage, errs)
	}

	if decision.NeedsRendering {
		htmls, inter, renderErr := s.render.Acquire(ctx, targetURL)
		if renderErr != nil {
			errs = append(errs, document.Error{Message: renderErr.Error(), Phase: phaseRender})
			logger.Warn("rendering failed, using static snapshot", "url", targetURL)
			return s.assemble(targetURL, []string{staticPage.HTML},
				document.NewInteractions(targetURL), document.StrategyStaticFallback, errs)
		}
		return s.assemble(targetURL, htmls, inter, document.StrategyJS, errs)
	}

	return s.assemble(targetURL, []string{staticPage.HTML},
		document.NewInteractions(targetURL), document.StrategyStatic, errs)
}

func (s *Scraper) scrapePaginated(ctx context.Context, targetURL string, first fetcher.Page, errs []document.Error) *document.Document {
	startURL := first.FinalURL
	if startURL == "" {
		startURL = targetURL
	}

	pages := paginate.Follow(ctx, s.fetch, startURL, first.HTML, s.cfg.MaxPages)

	inter := document.NewInteractions(targetURL)
	htmls := make([]string, 0, len(pages))
	for i, page := range pages {
		htmls = append(htmls, page.HTML)
		if i > 0 {
			inter.Pages = append(inter.Pages, page.URL)
		}
	}

	strategy := document.StrategyStatic
	if len(pages) > 1 {
		strategy = document.StrategyStaticPaginated
	}
	return s.assemble(targetURL, htmls, inter, strategy, errs)
}

// assemble extracts every collected page, merges the sections and
// finalizes the document. A page that fails to parse is dropped with a
// recorded error; losing all pages escalates to an error document, as
// does a validation failure.
func (s *Scraper) assemble(targetURL string, htmls []string, inter document.Interactions, strategy document.Strategy, errs []document.Error) *document.Document {
	var pages [][]document.Section
	var meta document.Meta
	haveMeta := false

	for i, markup := range htmls {
		pageURL := targetURL
		if i < len(inter.Pages) {
			pageURL = inter.Pages[i]
		}
		m, sections, err := s.extractor.Extract(markup, pageURL)
		if err != nil {
			errs = append(errs, document.Error{
				Message: fmt.Sprintf("page %d: %v", i+1, err),
				Phase:   phaseExtract,
			})
			continue
		}
		if !haveMeta {
			meta = m
			haveMeta = true
		}
		pages = append(pages, sections)
	}

	if len(pages) == 0 {
		errs = append(errs, document.Error{Message: "no page could be extracted", Phase: phaseExtract})
		return document.NewErrorDocument(targetURL, inter, errs)
	}

	if errs == nil {
		errs = []document.Error{}
	}
	meta.Strategy = strategy

	doc := &document.Document{
		URL:          targetURL,
		ScrapedAt:    time.Now().UTC(),
		Meta:         meta,
		Sections:     extract.Merge(pages),
		Interactions: inter,
		Errors:       errs,
	}

	if err := doc.Validate(); err != nil {
		// The placeholder fallback should make this unreachable; if it
		// fires, the extractor has a defect.
		logger.Error("document failed validation", "url", targetURL, "error", err)
		errs = append(errs, document.Error{Message: err.Error(), Phase: phaseValidate})
		return document.NewErrorDocument(targetURL, inter, errs)
	}

	logger.Info("scrape complete",
		"url", targetURL,
		"strategy", strategy,
		"sections", len(doc.Sections),
		"errors", len(errs))
	return doc
}

// browserRenderer opens one Chrome session per acquisition and guarantees
// it is closed on every exit path.
type browserRenderer struct {
	opener   browser.Opener
	acquirer *acquire.Acquirer
}

func (b *browserRenderer) Acquire(ctx context.Context, targetURL string) ([]string, document.Interactions, error) {
	sess, err := b.opener.Open(ctx)
	if err != nil {
		return nil, document.NewInteractions(targetURL), fmt.Errorf("failed to open browser session: %w", err)
	}
	defer sess.Close()

	return b.acquirer.Acquire(ctx, sess, targetURL)
}
