// Package paginate follows static "next page" links via repeated plain
// fetches, bounded by a page cap. A fetch failure mid-walk returns the
// pages collected so far rather than failing the whole acquisition.
package paginate

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/logger"
)

// Fetcher is the plain-HTTP transport the paginator walks with.
// *fetcher.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Page, error)
}

// Priority-ordered selectors for "next page" constructs. a.morelink is
// the dedicated "More" link some news aggregators use.
var nextSelectors = []string{
	`a[rel="next"]`,
	`a.morelink`,
	`a.next`,
	`li.next > a`,
	`a[class*="next"]`,
	`.pagination a`,
	`a[class*="more"]`,
}

// Link text suggesting a backwards link; these are rejected even when a
// selector matches.
var prevHints = []string{"prev", "previous", "back", "«", "‹"}

// Follow walks "next" links starting from startURL, whose markup was
// already fetched as firstHTML. It returns the ordered pages including
// the first one, at most maxPages long.
func Follow(ctx context.Context, f Fetcher, startURL, firstHTML string, maxPages int) []fetcher.Page {
	pages := []fetcher.Page{{URL: startURL, FinalURL: startURL, HTML: firstHTML}}
	if maxPages <= 1 {
		return pages
	}

	visited := map[string]bool{normalizeURL(startURL): true}
	currentURL := startURL
	currentHTML := firstHTML

	for len(pages) < maxPages {
		nextURL, ok := findNext(currentHTML, currentURL)
		if !ok {
			logger.Debug("pagination: no next link", "url", currentURL)
			break
		}
		if visited[normalizeURL(nextURL)] {
			logger.Debug("pagination: next link already visited", "url", nextURL)
			break
		}

		page, err := f.Fetch(ctx, nextURL)
		if err != nil {
			// Partial success: keep what we have.
			logger.Warn("pagination fetch failed, keeping collected pages",
				"url", nextURL, "pages", len(pages), "error", err)
			break
		}

		visited[normalizeURL(nextURL)] = true
		pages = append(pages, page)
		currentURL = nextURL
		currentHTML = page.HTML
		logger.Info("pagination", "next", nextURL, "page", len(pages))
	}

	return pages
}

// findNext scans the selector priority list and returns the first
// qualifying candidate resolved to an absolute URL.
func findNext(html, baseURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}

	for _, selector := range nextSelectors {
		var result string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, exists := s.Attr("href")
			if !exists || href == "" ||
				strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				return true
			}
			if looksLikePrev(s.Text(), href) {
				return true
			}

			linkURL, err := url.Parse(href)
			if err != nil {
				return true
			}
			if !linkURL.IsAbs() {
				linkURL = base.ResolveReference(linkURL)
			}
			result = linkURL.String()
			return false
		})
		if result != "" {
			return result, true
		}
	}
	return "", false
}

// looksLikePrev rejects backwards links. The broad hints only apply to
// the link text; hrefs get the "prev" token alone, since paths like
// /feedback/page/2 legitimately contain "back".
func looksLikePrev(text, href string) bool {
	lowerText := strings.ToLower(text)
	for _, hint := range prevHints {
		if strings.Contains(lowerText, hint) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(href), "prev")
}

// normalizeURL canonicalizes a URL for visited-set comparison: no
// fragment, no trailing slash (except "/").
func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.Fragment = ""
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
	}
	return parsed.String()
}
