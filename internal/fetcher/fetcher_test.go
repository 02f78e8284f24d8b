package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>hello</p></body></html>")
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if page.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", page.Status)
	}
	if page.HTML == "" {
		t.Error("expected non-empty HTML")
	}
	if page.FinalURL == "" {
		t.Error("expected FinalURL to be set")
	}
}

func TestFetch_StatusCategories(t *testing.T) {
	tests := []struct {
		status int
		want   Category
	}{
		{401, CategoryAuthRequired},
		{403, CategoryForbidden},
		{404, CategoryNotFound},
		{500, CategoryOtherHTTP},
		{503, CategoryOtherHTTP},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(DefaultConfig())
			_, err := c.Fetch(context.Background(), srv.URL)
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TransportError, got %T", err)
			}
			if te.Category != tt.want {
				t.Errorf("category = %s, want %s", te.Category, tt.want)
			}
			if te.Status != tt.status {
				t.Errorf("status = %d, want %d", te.Status, tt.status)
			}
		})
	}
}

func TestFetch_ConnectionFailed(t *testing.T) {
	// Bind and immediately close so the port is known-dead.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	_, err := c.Fetch(context.Background(), deadURL)
	if err == nil {
		t.Fatal("expected error for dead endpoint")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if te.Category != CategoryConnectionFailed && te.Category != CategoryTimeout {
		t.Errorf("category = %s, want connection-failed or timeout", te.Category)
	}
}

func TestCategoryOf(t *testing.T) {
	te := &TransportError{URL: "http://example.com", Category: CategoryForbidden}
	wrapped := fmt.Errorf("outer: %w", te)

	if got := CategoryOf(wrapped); got != CategoryForbidden {
		t.Errorf("CategoryOf(wrapped) = %s, want forbidden", got)
	}
	if got := CategoryOf(errors.New("plain")); got != CategoryOtherHTTP {
		t.Errorf("CategoryOf(plain) = %s, want other-http-error", got)
	}
}
