package engine

import (
	"strings"
	"testing"
)

func TestBrowserHeaders(t *testing.T) {
	h := BrowserHeaders("https://example.com/articles/42?ref=x")

	required := []string{"accept", "accept-language", "user-agent", "sec-fetch-mode", "sec-fetch-dest", "referer"}
	for _, key := range required {
		if _, ok := h[key]; !ok {
			t.Errorf("BrowserHeaders() missing key %q", key)
		}
	}

	if got := h["referer"]; got != "https://example.com/" {
		t.Errorf("referer = %q, want %q", got, "https://example.com/")
	}
	if ua := h["user-agent"]; len(ua) < 20 || !strings.Contains(ua, "Mozilla") {
		t.Errorf("user-agent looks wrong: %q", ua)
	}
}
