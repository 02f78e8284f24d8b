package browser

import (
	"strings"
	"testing"
)

func TestElementExpr_QuotesSelector(t *testing.T) {
	expr := elementExpr(`a[class*="next"]`, 2, "el => el.click()")

	if !strings.Contains(expr, `document.querySelectorAll("a[class*=\"next\"]")[2]`) {
		t.Errorf("selector not safely quoted: %s", expr)
	}
	if !strings.Contains(expr, "(el => el.click())(el)") {
		t.Errorf("function not applied to element: %s", expr)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Width != 1920 || cfg.Height != 1080 {
		t.Errorf("unexpected viewport: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.UserAgent == "" {
		t.Error("expected a default user agent")
	}
}
