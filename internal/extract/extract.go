// Package extract turns one HTML snapshot into page metadata and labeled
// content sections. Extraction is a pure function over the markup plus its
// source URL; three discovery strategies run in sequence and a placeholder
// guarantees at least one section.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/document"
)

const (
	// Per-section collection caps.
	maxLinks  = 50
	maxImages = 20
	maxLists  = 10
	maxTables = 5

	// Minimum plain-text length for a generic container to count as a
	// content block.
	minBlockText = 50

	labelWordLimit = 7

	// DefaultRawHTMLLimit caps the serialized snippet stored per section.
	DefaultRawHTMLLimit = 2000
)

// Semantic containers scanned first, with their default section types.
var landmarks = []struct {
	tag string
	typ document.SectionType
}{
	{"header", document.TypeHero},
	{"nav", document.TypeNav},
	{"main", document.TypeSection},
	{"article", document.TypeSection},
	{"section", document.TypeSection},
	{"aside", document.TypeSection},
	{"footer", document.TypeFooter},
}

// Generic containers tried when landmarks are sparse. tr.athing matches
// Hacker News story rows, div[class*="quote"] the quotes-site shape.
const contentBlockSelector = `article, div[class*="post"], div[class*="item"], ` +
	`div[class*="card"], div[class*="content"], div[class*="story"], ` +
	`div[class*="quote"], tr.athing`

// Class/id fragments that override the tag-derived section type.
var typeKeywords = []struct {
	fragment string
	typ      document.SectionType
}{
	{"hero", document.TypeHero},
	{"banner", document.TypeHero},
	{"nav", document.TypeNav},
	{"menu", document.TypeNav},
	{"footer", document.TypeFooter},
	{"pricing", document.TypePricing},
	{"price", document.TypePricing},
	{"faq", document.TypeFAQ},
	{"question", document.TypeFAQ},
	{"grid", document.TypeGrid},
	{"cards", document.TypeGrid},
	{"list", document.TypeList},
}

// Extractor derives sections from parsed markup.
type Extractor struct {
	rawHTMLLimit int
}

// New returns an extractor; rawHTMLLimit <= 0 selects DefaultRawHTMLLimit.
func New(rawHTMLLimit int) *Extractor {
	if rawHTMLLimit <= 0 {
		rawHTMLLimit = DefaultRawHTMLLimit
	}
	return &Extractor{rawHTMLLimit: rawHTMLLimit}
}

// Extract parses one page and returns its metadata and sections. The
// section list is never empty; when nothing extractable exists a fixed
// placeholder is returned instead. Only unparseable markup is an error.
func (e *Extractor) Extract(markup, pageURL string) (document.Meta, []document.Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return document.Meta{}, nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}

	meta := e.extractMeta(doc, base)

	processed := make(map[*html.Node]bool)
	sections := e.landmarkSections(doc, base, processed)

	if len(sections) < 5 {
		sections = append(sections, e.contentBlockSections(doc, base, processed)...)
	}
	if len(sections) < 3 {
		sections = append(sections, e.headingSections(doc, base, processed)...)
	}
	if len(sections) == 0 {
		if sec, ok := e.buildSection(doc.Find("body"), base, document.TypeSection); ok {
			sections = append(sections, sec)
		}
	}
	if len(sections) == 0 {
		sections = append(sections, placeholderSection())
	}

	for i := range sections {
		sections[i].ID = fmt.Sprintf("%s-%d", sections[i].Type, i)
		sections[i].SourceURL = pageURL
		sections[i].Page = 1
	}

	logger.Debug("extracted sections", "url", pageURL, "count", len(sections))
	return meta, sections, nil
}

func (e *Extractor) extractMeta(doc *goquery.Document, base *url.URL) document.Meta {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}

	description := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if description == "" {
		description = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}

	language := strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	if language == "" {
		language = "en"
	}

	var canonical string
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if abs, ok := resolveURL(base, href); ok {
			canonical = abs
		}
	}

	return document.Meta{
		Title:       title,
		Description: description,
		Language:    language,
		Canonical:   canonical,
	}
}

func (e *Extractor) landmarkSections(doc *goquery.Document, base *url.URL, processed map[*html.Node]bool) []document.Section {
	var sections []document.Section
	for _, lm := range landmarks {
		doc.Find(lm.tag).Each(func(_ int, sel *goquery.Selection) {
			node := sel.Get(0)
			if isProcessed(node, processed) {
				return
			}
			if sec, ok := e.buildSection(sel, base, lm.typ); ok {
				processed[node] = true
				sections = append(sections, sec)
			}
		})
	}
	return sections
}

func (e *Extractor) contentBlockSections(doc *goquery.Document, base *url.URL, processed map[*html.Node]bool) []document.Section {
	var sections []document.Section
	doc.Find(contentBlockSelector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if isProcessed(node, processed) {
			return
		}
		if len(visibleText(sel)) <= minBlockText {
			return
		}
		if sec, ok := e.buildSection(sel, base, document.TypeSection); ok {
			processed[node] = true
			sections = append(sections, sec)
		}
	})
	return sections
}

// headingSections groups each h1-h3 with its following siblings up to the
// next heading of the same band.
func (e *Extractor) headingSections(doc *goquery.Document, base *url.URL, processed map[*html.Node]bool) []document.Section {
	var sections []document.Section
	doc.Find("h1, h2, h3").Each(func(_ int, heading *goquery.Selection) {
		node := heading.Get(0)
		if isProcessed(node, processed) {
			return
		}
		group := heading.AddSelection(heading.NextUntil("h1, h2, h3"))
		if sec, ok := e.buildSection(group, base, document.TypeSection); ok {
			for _, n := range group.Nodes {
				processed[n] = true
			}
			sections = append(sections, sec)
		}
	})
	return sections
}

// buildSection derives every section field from one selection. Sections
// without visible text are rejected.
func (e *Extractor) buildSection(sel *goquery.Selection, base *url.URL, defaultType document.SectionType) (document.Section, bool) {
	if len(sel.Nodes) == 0 {
		return document.Section{}, false
	}

	text := visibleText(sel)
	if text == "" {
		return document.Section{}, false
	}

	var headings []string
	findWithSelf(sel, "h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		if t := strings.TrimSpace(h.Text()); t != "" {
			headings = append(headings, t)
		}
	})

	links := collectLinks(sel, base)
	images := collectImages(sel, base)
	lists := collectLists(sel)
	tables := collectTables(sel)

	raw := outerHTML(sel)
	truncated := false
	if len(raw) > e.rawHTMLLimit {
		raw = truncateOnRune(raw, e.rawHTMLLimit)
		truncated = true
	}

	return document.Section{
		Type:  sectionType(sel, defaultType),
		Label: sectionLabel(sel, headings, text),
		Content: document.Content{
			Headings: headings,
			Text:     text,
			Links:    links,
			Images:   images,
			Lists:    lists,
			Tables:   tables,
		},
		RawHTML:   raw,
		Truncated: truncated,
	}, true
}

func collectLinks(sel *goquery.Selection, base *url.URL) []document.Link {
	var links []document.Link
	seen := make(map[string]bool)
	findWithSelf(sel, "a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return true
		}
		abs, ok := resolveURL(base, href)
		if !ok || seen[abs] {
			return true
		}
		seen[abs] = true
		text := strings.Join(strings.Fields(a.Text()), " ")
		if text == "" {
			text = "(no text)"
		}
		links = append(links, document.Link{Text: text, Href: abs})
		return len(links) < maxLinks
	})
	return links
}

func collectImages(sel *goquery.Selection, base *url.URL) []document.Image {
	var images []document.Image
	seen := make(map[string]bool)
	findWithSelf(sel, "img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		if src == "" {
			// Lazy loaders park the real URL here.
			src = img.AttrOr("data-src", "")
		}
		if src == "" {
			return true
		}
		abs, ok := resolveURL(base, src)
		if !ok || seen[abs] {
			return true
		}
		seen[abs] = true
		images = append(images, document.Image{Src: abs, Alt: img.AttrOr("alt", "")})
		return len(images) < maxImages
	})
	return images
}

func collectLists(sel *goquery.Selection) [][]string {
	var lists [][]string
	findWithSelf(sel, "ul, ol").EachWithBreak(func(_ int, list *goquery.Selection) bool {
		var items []string
		list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if t := strings.Join(strings.Fields(li.Text()), " "); t != "" {
				items = append(items, t)
			}
		})
		if len(items) > 0 {
			lists = append(lists, items)
		}
		return len(lists) < maxLists
	})
	return lists
}

func collectTables(sel *goquery.Selection) [][][]string {
	var tables [][][]string
	findWithSelf(sel, "table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
		return len(tables) < maxTables
	})
	return tables
}

// sectionLabel picks the first heading, then accessibility attributes,
// then a word-capped text prefix.
func sectionLabel(sel *goquery.Selection, headings []string, text string) string {
	if len(headings) > 0 {
		return headings[0]
	}
	if label := strings.TrimSpace(sel.AttrOr("aria-label", "")); label != "" {
		return label
	}
	if label := strings.TrimSpace(sel.AttrOr("title", "")); label != "" {
		return label
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return "Content"
	}
	if len(words) > labelWordLimit {
		return strings.Join(words[:labelWordLimit], " ") + "..."
	}
	return strings.Join(words, " ")
}

func sectionType(sel *goquery.Selection, defaultType document.SectionType) document.SectionType {
	attrs := strings.ToLower(sel.AttrOr("class", "") + " " + sel.AttrOr("id", ""))
	for _, kw := range typeKeywords {
		if strings.Contains(attrs, kw.fragment) {
			return kw.typ
		}
	}
	return defaultType
}

func placeholderSection() document.Section {
	return document.Section{
		Type:  document.TypeUnknown,
		Label: "Content",
		Content: document.Content{
			Headings: []string{},
			Text:     "No content extracted",
			Links:    []document.Link{},
			Images:   []document.Image{},
			Lists:    [][]string{},
			Tables:   [][][]string{},
		},
	}
}

// Merge flattens per-page section lists into one. Page 1 passes through
// unmodified; later pages get ID and label suffixes so identifiers never
// collide. Content is untouched.
func Merge(pages [][]document.Section) []document.Section {
	var merged []document.Section
	for pi, sections := range pages {
		pageNum := pi + 1
		for _, sec := range sections {
			sec.Page = pageNum
			if pageNum > 1 {
				sec.ID = fmt.Sprintf("%s-page%d", sec.ID, pageNum)
				sec.Label = fmt.Sprintf("%s (Page %d)", sec.Label, pageNum)
			}
			merged = append(merged, sec)
		}
	}
	return merged
}

// visibleText renders the text content of a selection with scripts and
// styles excluded and whitespace collapsed. The DOM is not mutated.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		*parts = append(*parts, n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func outerHTML(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, node := range sel.Nodes {
		_ = html.Render(&sb, node)
	}
	return sb.String()
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

// resolveURL makes raw absolute against base and accepts only http(s)
// results.
func resolveURL(base *url.URL, raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// findWithSelf matches the selection's own nodes as well as descendants.
// Heading-group selections have their content at the root level, where a
// plain Find would miss it.
func findWithSelf(sel *goquery.Selection, selector string) *goquery.Selection {
	return sel.Filter(selector).AddSelection(sel.Find(selector))
}

// isProcessed reports whether the node or any ancestor was already turned
// into a section, preventing nested double counting.
func isProcessed(n *html.Node, processed map[*html.Node]bool) bool {
	for p := n; p != nil; p = p.Parent {
		if processed[p] {
			return true
		}
	}
	return false
}
