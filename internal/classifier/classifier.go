// Package classifier decides, from raw markup and the target URL alone,
// whether a page needs a rendered browser and whether it exposes static
// "next page" pagination. Pure functions, no I/O, so thresholds can be
// unit-tested without any network or browser dependency.
package classifier

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Decision is the classification outcome for one page.
type Decision struct {
	NeedsRendering      bool
	HasStaticPagination bool
}

// Thresholds tune the low-content heuristics. The values are empirical,
// not invariants.
type Thresholds struct {
	// LowContent: below this many visible-text characters the page is
	// assumed to be rendered client-side.
	LowContent int
	// FrameworkContent: pages carrying a JS-framework marker need this
	// much visible text before static markup is trusted.
	FrameworkContent int
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowContent:       500,
		FrameworkContent: 2000,
	}
}

// URL path fragments that identify known dynamically-populated pages.
var dynamicURLFragments = []string{
	"/scroll",
	"infinite",
	"ajax",
}

// Markers for empty framework mount points: a page whose content lives
// behind one of these is blank without script execution.
var appMountMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	`<div id="__nuxt"></div>`,
	`<app-root></app-root>`,
	`data-reactroot`,
}

// Broader framework fingerprints; these only matter combined with a low
// visible-text count (a server-rendered React page is still static).
var frameworkMarkers = []string{
	"data-react-helmet",
	"_next/static",
	`id="__nuxt"`,
	"ng-app",
	"v-cloak",
	"ng-version",
}

var infiniteScrollMarkers = []string{
	"infinite-scroll",
	"infinitescroll",
	"infinite_scroll",
	"lazy-load",
	"lazyload",
}

// Selectors that identify a static "next page" construct.
var paginationSelectors = []string{
	`a[rel="next"]`,
	`link[rel="next"]`,
	`a.morelink`,
	`a.next`,
	`li.next > a`,
	`a[class*="next"]`,
	`.pagination a`,
	`a[class*="pagination"]`,
}

var pageURLPattern = regexp.MustCompile(`(?i)(?:[?&]p(?:age)?=\d+|/page/\d+)`)

// Classify decides the acquisition strategy inputs for one page using the
// default thresholds. Deterministic: same markup and URL always produce
// the same decision.
func Classify(html, pageURL string) Decision {
	return ClassifyWith(html, pageURL, DefaultThresholds())
}

// ClassifyWith is Classify with explicit thresholds.
func ClassifyWith(html, pageURL string, t Thresholds) Decision {
	return Decision{
		NeedsRendering:      needsRendering(html, pageURL, t),
		HasStaticPagination: hasStaticPagination(html, pageURL),
	}
}

// needsRendering applies the rendering heuristics in priority order;
// the first rule that fires wins.
func needsRendering(html, pageURL string, t Thresholds) bool {
	lowerURL := strings.ToLower(pageURL)
	for _, fragment := range dynamicURLFragments {
		if strings.Contains(lowerURL, fragment) {
			return true
		}
	}

	lowerHTML := strings.ToLower(html)
	for _, marker := range appMountMarkers {
		if strings.Contains(lowerHTML, marker) {
			return true
		}
	}

	for _, marker := range infiniteScrollMarkers {
		if strings.Contains(lowerHTML, marker) {
			return true
		}
	}

	// Malformed or truncated markup: no <body> to judge, assume the
	// worst and render.
	bodyStart := strings.Index(lowerHTML, "<body")
	bodyEnd := strings.Index(lowerHTML, "</body>")
	if bodyStart == -1 || bodyEnd == -1 || bodyEnd < bodyStart {
		return true
	}

	textLen := len(VisibleText(html[bodyStart:bodyEnd]))
	if textLen < t.LowContent {
		return true
	}

	for _, marker := range frameworkMarkers {
		if strings.Contains(lowerHTML, marker) && textLen < t.FrameworkContent {
			return true
		}
	}

	return false
}

// hasStaticPagination reports whether the page exposes a plain-fetch
// "next page" construct.
func hasStaticPagination(html, pageURL string) bool {
	if pageURLPattern.MatchString(pageURL) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	for _, selector := range paginationSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

var (
	scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// VisibleText strips scripts, styles and all tags from a markup fragment
// and collapses whitespace runs to single spaces.
func VisibleText(fragment string) string {
	s := scriptPattern.ReplaceAllString(fragment, " ")
	s = stylePattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
