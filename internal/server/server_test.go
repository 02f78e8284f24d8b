package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pagesift/pagesift/pkg/document"
)

type stubScraper struct {
	lastURL string
}

func (s *stubScraper) Scrape(ctx context.Context, targetURL string) *document.Document {
	s.lastURL = targetURL
	return &document.Document{
		URL:       targetURL,
		ScrapedAt: time.Now().UTC(),
		Meta:      document.Meta{Title: "Stub", Language: "en", Strategy: document.StrategyStatic},
		Sections: []document.Section{{
			ID:      "section-0",
			Type:    document.TypeSection,
			Label:   "Body",
			Content: document.Content{Text: "hello"},
			Page:    1,
		}},
		Interactions: document.NewInteractions(targetURL),
		Errors:       []document.Error{},
	}
}

func TestHealthz(t *testing.T) {
	srv := New(&stubScraper{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestScrape_OK(t *testing.T) {
	scraper := &stubScraper{}
	srv := New(scraper)

	req := httptest.NewRequest(http.MethodPost, "/scrape",
		strings.NewReader(`{"url": "https://example.com/page"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if scraper.lastURL != "https://example.com/page" {
		t.Errorf("scraped url = %q", scraper.lastURL)
	}

	var resp ScrapeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result == nil || resp.Result.URL != "https://example.com/page" {
		t.Errorf("result = %+v", resp.Result)
	}
	if len(resp.Result.Sections) != 1 {
		t.Errorf("sections = %d", len(resp.Result.Sections))
	}
}

func TestScrape_BadRequests(t *testing.T) {
	srv := New(&stubScraper{})

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "{{"},
		{"missing url", `{}`},
		{"relative url", `{"url": "/nope"}`},
		{"bad scheme", `{"url": "ftp://example.com"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["detail"] == "" {
				t.Error("missing detail field")
			}
		})
	}
}
