// Package document defines the structured output model produced by a scrape:
// page metadata, labeled content sections, the interaction record of any
// rendered-browser session, and accumulated non-fatal errors.
package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Strategy identifies the acquisition path that produced a document.
type Strategy string

const (
	StrategyStatic          Strategy = "static"
	StrategyStaticPaginated Strategy = "static-paginated"
	StrategyJS              Strategy = "js"
	StrategyJSForced        Strategy = "js-forced"
	StrategyStaticFallback  Strategy = "static-fallback"
	StrategyError           Strategy = "error"
)

// SectionType classifies a content section semantically.
type SectionType string

const (
	TypeHero    SectionType = "hero"
	TypeNav     SectionType = "nav"
	TypeFooter  SectionType = "footer"
	TypeSection SectionType = "section"
	TypePricing SectionType = "pricing"
	TypeFAQ     SectionType = "faq"
	TypeGrid    SectionType = "grid"
	TypeList    SectionType = "list"
	TypeUnknown SectionType = "unknown"
)

// Document is the final scrape result returned to the caller.
type Document struct {
	URL          string       `json:"url" validate:"required" yaml:"url"`
	ScrapedAt    time.Time    `json:"scrapedAt" validate:"required" yaml:"scrapedAt"`
	Meta         Meta         `json:"meta" yaml:"meta"`
	Sections     []Section    `json:"sections" validate:"min=1,dive" yaml:"sections"`
	Interactions Interactions `json:"interactions" yaml:"interactions"`
	Errors       []Error      `json:"errors" yaml:"errors"`
}

// Meta holds page-level metadata derived from the first page.
type Meta struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Language    string   `json:"language" yaml:"language"`
	Canonical   string   `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Strategy    Strategy `json:"strategy" yaml:"strategy"`
}

// Section is a labeled content block extracted from one page.
type Section struct {
	ID        string      `json:"id" validate:"required" yaml:"id"`
	Type      SectionType `json:"type" yaml:"type"`
	Label     string      `json:"label" yaml:"label"`
	SourceURL string      `json:"sourceUrl" yaml:"sourceUrl"`
	Content   Content     `json:"content" yaml:"content"`
	RawHTML   string      `json:"rawHtml" yaml:"rawHtml"`
	Truncated bool        `json:"truncated" yaml:"truncated"`
	Page      int         `json:"page" yaml:"page"`
}

// Content is the normalized body of a section.
type Content struct {
	Headings []string     `json:"headings" yaml:"headings"`
	Text     string       `json:"text" yaml:"text"`
	Links    []Link       `json:"links" yaml:"links"`
	Images   []Image      `json:"images" yaml:"images"`
	Lists    [][]string   `json:"lists" yaml:"lists"`
	Tables   [][][]string `json:"tables" yaml:"tables"`
}

// Link is an anchor resolved to an absolute URL.
type Link struct {
	Text string `json:"text" yaml:"text"`
	Href string `json:"href" yaml:"href"`
}

// Image is an image reference resolved to an absolute URL.
type Image struct {
	Src string `json:"src" yaml:"src"`
	Alt string `json:"alt" yaml:"alt"`
}

// Interactions records automation actions performed during acquisition.
// Pages always starts with the origin URL; for static-only paths the rest
// of the record stays in its zero state.
type Interactions struct {
	Clicks  []ClickEvent `json:"clicks" yaml:"clicks"`
	Scrolls int          `json:"scrolls" yaml:"scrolls"`
	Pages   []string     `json:"pages" yaml:"pages"`
}

// ClickEvent describes one successful reveal click.
type ClickEvent struct {
	Selector string `json:"selector" yaml:"selector"`
	Index    int    `json:"index" yaml:"index"`
	Text     string `json:"text" yaml:"text"`
}

// Error is a non-fatal failure recorded during a scrape.
type Error struct {
	Message  string `json:"message" yaml:"message"`
	Phase    string `json:"phase" yaml:"phase"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// NewInteractions returns an interaction record seeded with the origin URL.
func NewInteractions(originURL string) Interactions {
	return Interactions{
		Clicks: []ClickEvent{},
		Pages:  []string{originURL},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid document")

// Validate checks the document invariants: required top-level fields,
// non-empty sections, and at least one section with visible text.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i := range d.Sections {
		if strings.TrimSpace(d.Sections[i].Content.Text) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no section has visible text", ErrInvalid)
}

// NewErrorDocument builds the well-formed document returned when every
// acquisition path failed. It carries a single placeholder section so the
// response shape never changes.
func NewErrorDocument(url string, interactions Interactions, errs []Error) *Document {
	msg := "Failed to scrape"
	if len(errs) > 0 {
		msg = "Failed to scrape: " + errs[len(errs)-1].Message
	}
	if len(interactions.Pages) == 0 {
		interactions = NewInteractions(url)
	}
	return &Document{
		URL:       url,
		ScrapedAt: time.Now().UTC(),
		Meta: Meta{
			Language: "en",
			Strategy: StrategyError,
		},
		Sections: []Section{{
			ID:        "error-0",
			Type:      TypeUnknown,
			Label:     "Error",
			SourceURL: url,
			Content: Content{
				Headings: []string{},
				Text:     msg,
				Links:    []Link{},
				Images:   []Image{},
				Lists:    [][]string{},
				Tables:   [][][]string{},
			},
			Page: 1,
		}},
		Interactions: interactions,
		Errors:       errs,
	}
}
