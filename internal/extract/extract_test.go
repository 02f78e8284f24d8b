package extract

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pagesift/pagesift/pkg/document"
)

const quoteText = "The greatest glory in living lies not in never falling, but in rising every time we fall."

func TestExtract_ContentBlocks(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><head><title>Quotes</title></head><body>")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&sb, `<div class="quote"><span class="text">%s</span></div>`, quoteText)
	}
	sb.WriteString("</body></html>")

	meta, sections, err := New(0).Extract(sb.String(), "https://quotes.example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Title != "Quotes" {
		t.Errorf("Title = %q, want Quotes", meta.Title)
	}
	if len(sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(sections))
	}
	for i, sec := range sections {
		if sec.Type != document.TypeSection {
			t.Errorf("section %d type = %q, want section", i, sec.Type)
		}
		if want := fmt.Sprintf("section-%d", i); sec.ID != want {
			t.Errorf("section %d id = %q, want %q", i, sec.ID, want)
		}
		if !strings.Contains(sec.Content.Text, "greatest glory") {
			t.Errorf("section %d text = %q", i, sec.Content.Text)
		}
		if sec.Page != 1 {
			t.Errorf("section %d page = %d, want 1", i, sec.Page)
		}
	}
}

func TestExtract_Landmarks(t *testing.T) {
	markup := `<html><body>
		<header><h1>Acme</h1></header>
		<nav><a href="/docs">Docs</a> navigation</nav>
		<main><p>Main body copy that carries the page.</p>
			<section><p>Nested, must not double-count.</p></section></main>
		<footer><p>All rights reserved.</p></footer>
	</body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	types := make(map[document.SectionType]int)
	for _, sec := range sections {
		types[sec.Type]++
	}
	if types[document.TypeHero] != 1 || types[document.TypeNav] != 1 || types[document.TypeFooter] != 1 {
		t.Errorf("type counts = %v", types)
	}
	// main is one section; the nested <section> is skipped.
	if types[document.TypeSection] != 1 {
		t.Errorf("section-typed count = %d, want 1 (nested landmark skipped)", types[document.TypeSection])
	}
}

func TestExtract_TypeKeywordOverride(t *testing.T) {
	markup := `<html><body>
		<section class="pricing-table"><p>Plans start at nine dollars a month.</p></section>
		<section id="faq-block"><p>Commonly asked questions and answers live here.</p></section>
	</body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	got := map[document.SectionType]bool{}
	for _, sec := range sections {
		got[sec.Type] = true
	}
	if !got[document.TypePricing] || !got[document.TypeFAQ] {
		t.Errorf("types = %v, want pricing and faq", got)
	}
}

func TestExtract_Meta(t *testing.T) {
	markup := `<html lang="de"><head>
		<title> Startseite </title>
		<meta name="description" content="Eine Beschreibung">
		<link rel="canonical" href="/home">
	</head><body><main><p>Inhalt der Seite.</p></main></body></html>`

	meta, _, err := New(0).Extract(markup, "https://example.de/x")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Title != "Startseite" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "Eine Beschreibung" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.Language != "de" {
		t.Errorf("Language = %q, want de", meta.Language)
	}
	if meta.Canonical != "https://example.de/home" {
		t.Errorf("Canonical = %q", meta.Canonical)
	}
}

func TestExtract_MetaFallbacks(t *testing.T) {
	markup := `<html><head>
		<meta property="og:title" content="OG Title">
		<meta property="og:description" content="OG description">
	</head><body><main><p>text</p></main></body></html>`

	meta, _, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Title != "OG Title" {
		t.Errorf("Title = %q, want OG Title", meta.Title)
	}
	if meta.Description != "OG description" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.Language != "en" {
		t.Errorf("Language = %q, want default en", meta.Language)
	}
}

func TestExtract_PlaceholderOnEmptyBody(t *testing.T) {
	_, sections, err := New(0).Extract("<html><body></body></html>", "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1 placeholder", len(sections))
	}
	if sections[0].Content.Text != "No content extracted" {
		t.Errorf("placeholder text = %q", sections[0].Content.Text)
	}
	if sections[0].ID != "unknown-0" {
		t.Errorf("placeholder id = %q", sections[0].ID)
	}
}

func TestExtract_LinkRules(t *testing.T) {
	markup := `<html><body><main>
		<p>Some paragraph text to keep the section.</p>
		<a href="#top">Skip</a>
		<a href="javascript:void(0)">Nope</a>
		<a href="/about">About</a>
		<a href="/about">About duplicate</a>
		<a href="https://other.example.com/page"><img src="/i.png"></a>
	</main></body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com/start")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	links := sections[0].Content.Links
	if len(links) != 2 {
		t.Fatalf("links = %v, want 2", links)
	}
	if links[0].Href != "https://example.com/about" {
		t.Errorf("link 0 = %q, want absolute /about", links[0].Href)
	}
	if links[1].Text != "(no text)" {
		t.Errorf("image-only anchor text = %q, want (no text)", links[1].Text)
	}
}

func TestExtract_ImageDataSrcFallback(t *testing.T) {
	markup := `<html><body><main>
		<p>Gallery of lazily loaded pictures below.</p>
		<img data-src="/lazy.jpg" alt="lazy">
		<img src="/eager.jpg" alt="eager">
		<img src="/eager.jpg" alt="dup">
	</main></body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	images := sections[0].Content.Images
	if len(images) != 2 {
		t.Fatalf("images = %v, want 2", images)
	}
	if images[0].Src != "https://example.com/lazy.jpg" || images[0].Alt != "lazy" {
		t.Errorf("lazy image = %+v", images[0])
	}
}

func TestExtract_Caps(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><main><p>Enough text for a section body.</p>")
	for i := 0; i < maxLinks+10; i++ {
		fmt.Fprintf(&sb, `<a href="/l/%d">link</a>`, i)
	}
	for i := 0; i < maxImages+5; i++ {
		fmt.Fprintf(&sb, `<img src="/img/%d.png">`, i)
	}
	sb.WriteString("</main></body></html>")

	_, sections, err := New(0).Extract(sb.String(), "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := len(sections[0].Content.Links); got != maxLinks {
		t.Errorf("links = %d, want %d", got, maxLinks)
	}
	if got := len(sections[0].Content.Images); got != maxImages {
		t.Errorf("images = %d, want %d", got, maxImages)
	}
}

func TestExtract_ListAndTableCaps(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><main><p>Enough text for a section body.</p>")
	for i := 0; i < maxLists+5; i++ {
		fmt.Fprintf(&sb, "<ul><li>item %d</li></ul>", i)
	}
	for i := 0; i < maxTables+5; i++ {
		fmt.Fprintf(&sb, "<table><tr><td>cell %d</td></tr></table>", i)
	}
	sb.WriteString("</main></body></html>")

	_, sections, err := New(0).Extract(sb.String(), "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := len(sections[0].Content.Lists); got != maxLists {
		t.Errorf("lists = %d, want %d", got, maxLists)
	}
	if got := len(sections[0].Content.Tables); got != maxTables {
		t.Errorf("tables = %d, want %d", got, maxTables)
	}
}

func TestExtract_ListsAndTables(t *testing.T) {
	markup := `<html><body><main>
		<p>Intro text for the section to be kept.</p>
		<ul><li>one</li><li>two</li><li></li></ul>
		<table><tr><th>h1</th><th>h2</th></tr><tr><td>a</td><td>b</td></tr></table>
	</main></body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	content := sections[0].Content
	if len(content.Lists) != 1 || len(content.Lists[0]) != 2 {
		t.Errorf("lists = %v", content.Lists)
	}
	if len(content.Tables) != 1 || len(content.Tables[0]) != 2 {
		t.Fatalf("tables = %v", content.Tables)
	}
	if content.Tables[0][0][0] != "h1" || content.Tables[0][1][1] != "b" {
		t.Errorf("table cells = %v", content.Tables[0])
	}
}

func TestExtract_RawHTMLTruncation(t *testing.T) {
	markup := "<html><body><main><p>" + strings.Repeat("expanded content ", 50) + "</p></main></body></html>"

	_, sections, err := New(100).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sections[0].RawHTML) != 100 {
		t.Errorf("rawHtml length = %d, want 100", len(sections[0].RawHTML))
	}
	if !sections[0].Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestExtract_RawHTMLTruncationKeepsValidUTF8(t *testing.T) {
	// 3-byte runes, so a byte-index cut would land mid-rune.
	markup := "<html><body><main><p>" + strings.Repeat("段", 200) + "</p></main></body></html>"

	_, sections, err := New(100).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	raw := sections[0].RawHTML
	if len(raw) > 100 {
		t.Errorf("rawHtml length = %d, want <= 100", len(raw))
	}
	if !utf8.ValidString(raw) {
		t.Errorf("rawHtml is not valid UTF-8: %q", raw)
	}
	if !sections[0].Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestExtract_HeadingGrouping(t *testing.T) {
	markup := `<html><body>
		<h2>Install</h2><p>Download the binary and put it on your PATH.</p>
		<h2>Usage</h2><p>Run it with a URL argument.</p><p>Flags are optional.</p>
	</body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2 heading groups", len(sections))
	}
	if sections[0].Label != "Install" || sections[1].Label != "Usage" {
		t.Errorf("labels = %q, %q", sections[0].Label, sections[1].Label)
	}
	if !strings.Contains(sections[1].Content.Text, "Flags are optional") {
		t.Errorf("second group text = %q", sections[1].Content.Text)
	}
}

func TestExtract_BodyFallback(t *testing.T) {
	markup := `<html><body>just a short line of prose, nothing structured</body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if sections[0].Content.Text != "just a short line of prose, nothing structured" {
		t.Errorf("text = %q", sections[0].Content.Text)
	}
}

func TestSectionLabel_WordCap(t *testing.T) {
	markup := `<html><body>one two three four five six seven eight nine ten</body></html>`

	_, sections, err := New(0).Extract(markup, "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := sections[0].Label; got != "one two three four five six seven..." {
		t.Errorf("label = %q", got)
	}
}

func TestMerge(t *testing.T) {
	pages := [][]document.Section{
		{{ID: "hero-0", Label: "Welcome"}, {ID: "section-1", Label: "Body"}},
		{{ID: "section-0", Label: "Body"}},
		{{ID: "section-0", Label: "Body"}},
	}

	merged := Merge(pages)
	if len(merged) != 4 {
		t.Fatalf("merged = %d, want 4", len(merged))
	}
	if merged[0].ID != "hero-0" || merged[0].Label != "Welcome" || merged[0].Page != 1 {
		t.Errorf("page-1 section modified: %+v", merged[0])
	}
	if merged[2].ID != "section-0-page2" || merged[2].Label != "Body (Page 2)" {
		t.Errorf("page-2 section = %+v", merged[2])
	}
	if merged[3].ID != "section-0-page3" || merged[3].Page != 3 {
		t.Errorf("page-3 section = %+v", merged[3])
	}

	ids := map[string]bool{}
	for _, sec := range merged {
		if ids[sec.ID] {
			t.Errorf("duplicate id %q", sec.ID)
		}
		ids[sec.ID] = true
	}
}
