package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Coral Reef Survey</title>
<meta property="og:site_name" content="Ocean Notes">
<style>body { color: red; }</style>
<script>var tracking = "should never appear";</script>
</head>
<body>
<header><a href="/">Home</a> | <a href="/about">About</a></header>
<nav><ul><li>Menu item</li></ul></nav>
<article>
<h1>Coral Reef Survey</h1>
<p class="byline">By Dewi Lestari</p>
<p>The 2024 survey of the northern reef system covered forty transects across three islands.
Divers recorded hard coral cover, bleaching prevalence, and fish biomass at every site.
Results show that sheltered lagoons retained substantially more live coral than exposed slopes.</p>
<p>Water temperature loggers deployed at ten meters depth recorded two heat stress events during the
dry season. Bleaching was most severe on branching Acropora colonies, while massive Porites colonies
showed partial recovery within four months of the second event.</p>
<p>The authors recommend expanding the monitoring network and protecting the lagoon habitats that
served as refuges during both heat waves, since they are likely to seed recovery on nearby slopes.</p>
</article>
<aside>Related: advertising partner content</aside>
<div class="ad">Buy now!</div>
<!-- ad slot 42 -->
<footer>Copyright footer text</footer>
</body></html>`

func initTestEngine(t *testing.T) {
	t.Helper()
	prev := cfg
	prevRetry := fetchRetryInitial
	Init(Config{})
	fetchRetryInitial = time.Millisecond
	InitCache("", 0, 0, 0)
	t.Cleanup(func() {
		cfg = prev
		Cfg = &cfg
		fetchRetryInitial = prevRetry
	})
}

func TestExtractWebPageSuccess(t *testing.T) {
	initTestEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("sec-fetch-mode") == "" || r.Header.Get("user-agent") == "" {
			t.Errorf("missing browser headers: %v", r.Header)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	page, err := ExtractWebPage(context.Background(), srv.URL+"/reef")
	if err != nil {
		t.Fatalf("ExtractWebPage() error = %v", err)
	}
	if page.Title == "" {
		t.Error("expected a title")
	}
	if !strings.Contains(page.Text, "forty transects") {
		t.Errorf("text missing article body: %q", page.Text)
	}
	for _, banned := range []string{"should never appear", "Copyright footer", "Buy now!", "Menu item"} {
		if strings.Contains(page.Text, banned) {
			t.Errorf("text contains boilerplate %q", banned)
		}
	}
	if page.Text != NormalizeWhitespace(page.Text) {
		t.Error("text is not normalized")
	}
	if page.SiteName != "Ocean Notes" {
		t.Errorf("SiteName = %q, want %q", page.SiteName, "Ocean Notes")
	}
}

func TestExtractWebPageForbiddenNoRetry(t *testing.T) {
	initTestEngine(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := ExtractWebPage(context.Background(), srv.URL)
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected *ExtractionFailure, got %v", err)
	}
	if f.Kind != KindBlocked {
		t.Errorf("Kind = %v, want %v", f.Kind, KindBlocked)
	}
	if !f.RecommendManualEntry {
		t.Error("RecommendManualEntry = false, want true")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestExtractWebPageNotFound(t *testing.T) {
	initTestEngine(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := ExtractWebPage(context.Background(), srv.URL)
	if f, ok := AsFailure(err); !ok || f.Kind != KindNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestExtractWebPageRetriesServerErrors(t *testing.T) {
	initTestEngine(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	if _, err := ExtractWebPage(context.Background(), srv.URL); err != nil {
		t.Fatalf("ExtractWebPage() error = %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestExtractWebPageTimeout(t *testing.T) {
	initTestEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ExtractWebPage(ctx, srv.URL)
	if f, ok := AsFailure(err); !ok || f.Kind != KindTimeout {
		t.Errorf("expected Timeout, got %v", err)
	}
}

func TestExtractWebPageEmpty(t *testing.T) {
	initTestEngine(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script>only()</script></head><body><nav>menu</nav></body></html>`))
	}))
	defer srv.Close()

	_, err := ExtractWebPage(context.Background(), srv.URL)
	if f, ok := AsFailure(err); !ok || f.Kind != KindParseError {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestExtractWebPageRejectsNonHTTP(t *testing.T) {
	initTestEngine(t)
	_, err := ExtractWebPage(context.Background(), "ftp://example.com/file")
	if f, ok := AsFailure(err); !ok || f.Kind != KindUnsupportedFormat {
		t.Errorf("expected UnsupportedFormat, got %v", err)
	}
}
