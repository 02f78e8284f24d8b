// Package acquire drives a rendered-browser session through noise
// removal, reveal clicks and multi-page acquisition (link pagination or
// infinite scroll), collecting one HTML snapshot per page. Step-level
// failures are skipped; only a failed initial navigation aborts the run.
package acquire

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pagesift/pagesift/internal/browser"
	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/document"
)

// Config bounds the acquisition state machine. The delays exist to let
// deferred scripts and lazy loaders run between actions.
type Config struct {
	MaxPages        int
	MaxScrolls      int
	MaxClicks       int
	StagnationLimit int

	NavigateTimeout     time.Duration
	PageTimeout         time.Duration // pagination navigations
	IdleTimeout         time.Duration
	SettleDelay         time.Duration
	ClickSettleDelay    time.Duration
	LoadMoreSettleDelay time.Duration
	ScrollSettleDelay   time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages:            3,
		MaxScrolls:          5,
		MaxClicks:           8,
		StagnationLimit:     2,
		NavigateTimeout:     30 * time.Second,
		PageTimeout:         15 * time.Second,
		IdleTimeout:         10 * time.Second,
		SettleDelay:         3 * time.Second,
		ClickSettleDelay:    2 * time.Second,
		LoadMoreSettleDelay: 3 * time.Second,
		ScrollSettleDelay:   3 * time.Second,
	}
}

// Consent/overlay containers worth inspecting for removal.
var noiseSelectors = []string{
	`[class*="cookie"]`,
	`[id*="cookie"]`,
	`[class*="gdpr"]`,
	`[class*="consent"]`,
	`[class*="banner"]`,
	`[role="dialog"]`,
	`.modal`,
	`[class*="popup"]`,
	`[class*="overlay"]`,
}

var consentKeywords = []string{"cookie", "consent", "privacy", "gdpr", "accept"}

// Inactive-tab patterns, most specific first.
var tabSelectors = []string{
	`[role="tab"]:not([aria-selected="true"])`,
	`button[aria-selected="false"]`,
	`[data-state="inactive"]`,
	`.tab:not(.active):not(.selected)`,
	`.tab-item:not(.active):not(.selected)`,
	`nav button:not(.active)`,
}

var loadMoreSelectors = []string{
	`[class*="load-more"]`,
	`[class*="loadmore"]`,
	`[class*="show-more"]`,
	`[class*="showmore"]`,
	`[class*="view-more"]`,
	`button[class*="more"]`,
}

var loadMoreTexts = []string{"load more", "show more", "see more", "view more"}

var paginationSelectors = []string{
	`a[rel="next"]`,
	`a.next`,
	`li.next > a`,
	`a[class*="next"]`,
	`.pagination a`,
	`a[class*="more"]`,
}

var prevHints = []string{"prev", "previous", "back", "«", "‹"}

// Generic card/item markers used to detect whether scrolling produced
// new content.
const contentCardSelector = `.quote, article, .item, section, [class*="card"], [class*="post"]`

const (
	tabsPerSelector     = 5
	loadMorePerSelector = 3
	maxLoadMoreClicks   = 3
	labelMaxLen         = 40
)

// Acquirer runs the interactive acquisition state machine.
type Acquirer struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an acquirer, zero-filling cfg from DefaultConfig.
func New(cfg Config) *Acquirer {
	def := DefaultConfig()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = def.MaxScrolls
	}
	if cfg.MaxClicks <= 0 {
		cfg.MaxClicks = def.MaxClicks
	}
	if cfg.StagnationLimit <= 0 {
		cfg.StagnationLimit = def.StagnationLimit
	}
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = def.NavigateTimeout
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.ClickSettleDelay <= 0 {
		cfg.ClickSettleDelay = def.ClickSettleDelay
	}
	if cfg.LoadMoreSettleDelay <= 0 {
		cfg.LoadMoreSettleDelay = def.LoadMoreSettleDelay
	}
	if cfg.ScrollSettleDelay <= 0 {
		cfg.ScrollSettleDelay = def.ScrollSettleDelay
	}
	return &Acquirer{cfg: cfg, sleep: contextSleep}
}

func contextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Acquire navigates to startURL and materializes as much content as the
// configured bounds allow. It returns one HTML snapshot per visited page
// plus the record of every automation action performed. The session is
// owned and closed by the caller.
func (a *Acquirer) Acquire(ctx context.Context, sess browser.Session, startURL string) ([]string, document.Interactions, error) {
	interactions := document.NewInteractions(startURL)

	if err := sess.Navigate(ctx, startURL, a.cfg.NavigateTimeout); err != nil {
		return nil, interactions, fmt.Errorf("initial navigation failed: %w", err)
	}
	sess.WaitNetworkIdle(ctx, a.cfg.IdleTimeout)
	a.sleep(ctx, a.cfg.SettleDelay)

	a.removeNoise(ctx, sess)
	a.revealClicks(ctx, sess, &interactions)

	first, err := sess.Content(ctx)
	if err != nil {
		return nil, interactions, fmt.Errorf("failed to capture page content: %w", err)
	}
	htmls := []string{first}

	extra := a.followPagination(ctx, sess, &interactions, &htmls)
	if extra == 0 {
		// Scroll-pagination only when link pagination found nothing.
		a.infiniteScroll(ctx, sess, &interactions)
		if updated, err := sess.Content(ctx); err == nil {
			htmls[0] = updated
		}
	}

	logger.Info("acquisition complete",
		"url", startURL,
		"pages", len(htmls),
		"clicks", len(interactions.Clicks),
		"scrolls", interactions.Scrolls)
	return htmls, interactions, nil
}

// removeNoise strips consent banners and overlay dialogs whose text
// matches consent keywords. Best-effort per element.
func (a *Acquirer) removeNoise(ctx context.Context, sess browser.Session) {
	for _, selector := range noiseSelectors {
		elements, err := sess.QuerySelectorAll(ctx, selector)
		if err != nil {
			continue
		}
		// Reverse order keeps the remaining selector+index handles
		// stable while nodes are removed.
		for i := len(elements) - 1; i >= 0; i-- {
			text, err := elements[i].InnerText(ctx)
			if err != nil {
				continue
			}
			if containsAny(strings.ToLower(text), consentKeywords) {
				if err := elements[i].Evaluate(ctx, "el => el.remove()"); err == nil {
					logger.Debug("removed noise element", "selector", selector, "index", i)
				}
			}
		}
	}
}

// clickStrategy is one way to make a click land. Strategies are tried in
// order until one succeeds; new ones slot in without touching call sites.
type clickStrategy struct {
	name  string
	apply func(ctx context.Context, el browser.Element) error
}

var clickStrategies = []clickStrategy{
	{name: "click", apply: func(ctx context.Context, el browser.Element) error {
		return el.Click(ctx, false)
	}},
	{name: "force-click", apply: func(ctx context.Context, el browser.Element) error {
		return el.Click(ctx, true)
	}},
	{name: "js-click", apply: func(ctx context.Context, el browser.Element) error {
		return el.Evaluate(ctx, "el => el.click()")
	}},
}

func (a *Acquirer) clickWithEscalation(ctx context.Context, el browser.Element) (string, bool) {
	for _, strat := range clickStrategies {
		if err := strat.apply(ctx, el); err == nil {
			return strat.name, true
		}
	}
	return "", false
}

// revealClicks clicks inactive tabs and load-more buttons to materialize
// hidden content, bounded by the global click cap.
func (a *Acquirer) revealClicks(ctx context.Context, sess browser.Session, inter *document.Interactions) {
	clicked := 0

	for _, selector := range tabSelectors {
		if clicked >= a.cfg.MaxClicks {
			break
		}
		elements, err := sess.QuerySelectorAll(ctx, selector)
		if err != nil {
			continue
		}
		if len(elements) > tabsPerSelector {
			elements = elements[:tabsPerSelector]
		}
		for i, el := range elements {
			if clicked >= a.cfg.MaxClicks {
				break
			}
			if !el.IsVisible(ctx) || !el.IsEnabled(ctx) {
				continue
			}
			label := a.elementLabel(ctx, el, i)
			strategy, ok := a.clickWithEscalation(ctx, el)
			if !ok {
				continue
			}
			inter.Clicks = append(inter.Clicks, document.ClickEvent{
				Selector: selector,
				Index:    i,
				Text:     label,
			})
			clicked++
			logger.Debug("clicked tab",
				"selector", selector, "index", i, "label", label, "strategy", strategy)
			a.sleep(ctx, a.cfg.ClickSettleDelay)
			sess.WaitNetworkIdle(ctx, 3*time.Second)
		}
	}

	loadMore := 0
	for _, selector := range loadMoreSelectors {
		if clicked >= a.cfg.MaxClicks || loadMore >= maxLoadMoreClicks {
			break
		}
		elements, err := sess.QuerySelectorAll(ctx, selector)
		if err != nil {
			continue
		}
		if len(elements) > loadMorePerSelector {
			elements = elements[:loadMorePerSelector]
		}
		for i, el := range elements {
			if clicked >= a.cfg.MaxClicks || loadMore >= maxLoadMoreClicks {
				break
			}
			if !a.clickLoadMore(ctx, sess, el, selector, i, inter) {
				continue
			}
			clicked++
			loadMore++
		}
	}

	// Text-based pass for buttons the class selectors missed.
	if clicked < a.cfg.MaxClicks && loadMore < maxLoadMoreClicks {
		elements, err := sess.QuerySelectorAll(ctx, "button, a")
		if err != nil {
			return
		}
		for i, el := range elements {
			if clicked >= a.cfg.MaxClicks || loadMore >= maxLoadMoreClicks {
				break
			}
			text, err := el.InnerText(ctx)
			if err != nil {
				continue
			}
			if !containsAny(strings.ToLower(text), loadMoreTexts) {
				continue
			}
			if !a.clickLoadMore(ctx, sess, el, "button, a", i, inter) {
				continue
			}
			clicked++
			loadMore++
		}
	}
}

// clickLoadMore attempts one load-more click with the escalation chain
// and the longer settle delay such buttons need.
func (a *Acquirer) clickLoadMore(ctx context.Context, sess browser.Session, el browser.Element, selector string, index int, inter *document.Interactions) bool {
	if !el.IsVisible(ctx) || !el.IsEnabled(ctx) {
		return false
	}
	label := a.elementLabel(ctx, el, index)
	strategy, ok := a.clickWithEscalation(ctx, el)
	if !ok {
		return false
	}
	inter.Clicks = append(inter.Clicks, document.ClickEvent{
		Selector: selector,
		Index:    index,
		Text:     label,
	})
	logger.Debug("clicked load-more",
		"selector", selector, "index", index, "label", label, "strategy", strategy)
	a.sleep(ctx, a.cfg.LoadMoreSettleDelay)
	sess.WaitNetworkIdle(ctx, 5*time.Second)
	return true
}

func (a *Acquirer) elementLabel(ctx context.Context, el browser.Element, index int) string {
	text, err := el.InnerText(ctx)
	if err == nil {
		text = strings.TrimSpace(text)
	}
	if text == "" {
		if aria, ok := el.GetAttribute(ctx, "aria-label"); ok {
			text = strings.TrimSpace(aria)
		}
	}
	if text == "" {
		return fmt.Sprintf("element-%d", index)
	}
	if len(text) > labelMaxLen {
		text = truncateOnRune(text, labelMaxLen)
	}
	return text
}

// truncateOnRune cuts s to at most n bytes without splitting a rune.
func truncateOnRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// followPagination walks visible "next" links, capturing a snapshot per
// page. Returns the number of extra pages collected.
func (a *Acquirer) followPagination(ctx context.Context, sess browser.Session, inter *document.Interactions, htmls *[]string) int {
	loc, err := sess.Location(ctx)
	if err != nil || loc == "" {
		loc = inter.Pages[0]
	}

	selectors := paginationSelectors
	if isHackerNews(loc) {
		// HN exposes exactly one dedicated "More" link.
		selectors = []string{"a.morelink"}
	}

	extra := 0
	for len(inter.Pages) < a.cfg.MaxPages {
		next := a.findNextLink(ctx, sess, selectors, loc)
		if next == "" {
			break
		}
		if visited(inter.Pages, next) {
			logger.Debug("pagination target already visited", "url", next)
			break
		}

		if err := sess.Navigate(ctx, next, a.cfg.PageTimeout); err != nil {
			logger.Warn("pagination navigation failed", "url", next, "error", err)
			break
		}
		sess.WaitNetworkIdle(ctx, 5*time.Second)
		a.sleep(ctx, a.cfg.SettleDelay)

		html, err := sess.Content(ctx)
		if err != nil {
			logger.Warn("failed to capture paginated page", "url", next, "error", err)
			break
		}

		*htmls = append(*htmls, html)
		inter.Pages = append(inter.Pages, next)
		loc = next
		extra++
		logger.Info("pagination", "next", next, "page", len(inter.Pages))
	}
	return extra
}

func (a *Acquirer) findNextLink(ctx context.Context, sess browser.Session, selectors []string, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	for _, selector := range selectors {
		elements, err := sess.QuerySelectorAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if !el.IsVisible(ctx) {
				continue
			}
			href, ok := el.GetAttribute(ctx, "href")
			if !ok || href == "" ||
				strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				continue
			}
			text, _ := el.InnerText(ctx)
			if looksLikePrev(text, href) {
				continue
			}
			linkURL, err := url.Parse(href)
			if err != nil {
				continue
			}
			if !linkURL.IsAbs() {
				linkURL = base.ResolveReference(linkURL)
			}
			return linkURL.String()
		}
	}
	return ""
}

// infiniteScroll scrolls to the bottom until neither the page height nor
// the tracked element count grows for StagnationLimit consecutive rounds.
// Every performed scroll counts, including the no-op ones.
func (a *Acquirer) infiniteScroll(ctx context.Context, sess browser.Session, inter *document.Interactions) {
	countExpr := fmt.Sprintf("document.querySelectorAll(%s).length", strconv.Quote(contentCardSelector))

	var prevCount int
	_ = sess.Evaluate(ctx, countExpr, &prevCount)

	stagnant := 0
	for i := 0; i < a.cfg.MaxScrolls; i++ {
		var prevHeight int
		_ = sess.Evaluate(ctx, "document.body.scrollHeight", &prevHeight)

		if err := sess.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)", nil); err != nil {
			logger.Warn("scroll failed", "round", i+1, "error", err)
			break
		}
		inter.Scrolls++

		a.sleep(ctx, a.cfg.ScrollSettleDelay)
		sess.WaitNetworkIdle(ctx, 5*time.Second)
		// Nudge lazy loaders that listen for these instead of
		// IntersectionObserver.
		_ = sess.Evaluate(ctx, "window.dispatchEvent(new Event('scroll')), window.dispatchEvent(new Event('resize'))", nil)

		var newHeight, newCount int
		_ = sess.Evaluate(ctx, "document.body.scrollHeight", &newHeight)
		_ = sess.Evaluate(ctx, countExpr, &newCount)

		logger.Debug("scroll round",
			"round", i+1,
			"height", fmt.Sprintf("%d->%d", prevHeight, newHeight),
			"elements", fmt.Sprintf("%d->%d", prevCount, newCount))

		if newHeight == prevHeight && newCount == prevCount {
			stagnant++
			if stagnant >= a.cfg.StagnationLimit {
				break
			}
		} else {
			stagnant = 0
			prevCount = newCount
		}
	}
}

// looksLikePrev rejects backwards links. The broad hints only apply to
// the link text; hrefs get the "prev" token alone, since paths like
// /feedback/page/2 legitimately contain "back".
func looksLikePrev(text, href string) bool {
	if containsAny(strings.ToLower(text), prevHints) {
		return true
	}
	return strings.Contains(strings.ToLower(href), "prev")
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func visited(pages []string, url string) bool {
	for _, p := range pages {
		if p == url {
			return true
		}
	}
	return false
}

func isHackerNews(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "news.ycombinator.com")
}
