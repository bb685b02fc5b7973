package engine

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// WebPage is the readable content of a fetched page.
type WebPage struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Byline    string `json:"byline,omitempty"`
	SiteName  string `json:"siteName,omitempty"`
	Text      string `json:"textContent"`
	Markdown  string `json:"markdown,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// boilerplateSelectors are removed before the readability pass.
var boilerplateSelectors = []string{
	"script", "style", "svg", "noscript", "iframe", "template",
	"nav", "footer", "header", "aside",
	".ad", ".ads", ".advert", ".advertisement", ".sponsored", "[id^=ad-]", "[class^=ad-]",
	".comments", "#comments", ".comment-list", "#disqus_thread",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}

// ExtractWebPage fetches pageURL and returns its main readable content.
// Failures are *ExtractionFailure: Blocked on 403, NotFound on 404, Timeout past the
// fetch deadline, ParseError when no readable text remains.
func ExtractWebPage(ctx context.Context, pageURL string) (page *WebPage, err error) {
	metrics.WebRequests.Add(1)
	defer func() {
		if err != nil {
			recordFailure(err)
		}
	}()

	pageURL = strings.TrimSpace(pageURL)
	if !IsHTTPURL(pageURL) {
		return nil, Unsupported("not an http(s) URL: " + pageURL)
	}

	cacheKey := CacheKey("web", pageURL)
	if cached, ok := CacheLoad[WebPage](ctx, cacheKey); ok {
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	body, err := fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err = parseWebPage(body, pageURL)
	if err != nil {
		return nil, err
	}
	CacheStore(ctx, cacheKey, *page)
	return page, nil
}

// parseWebPage strips boilerplate, runs readability, and normalizes the text.
func parseWebPage(body []byte, pageURL string) (*WebPage, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, ParseFailure("could not parse HTML", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	docTitle := strings.TrimSpace(doc.Find("title").First().Text())
	siteName, _ := doc.Find(`meta[property="og:site_name"]`).Attr("content")

	doc.Find(strings.Join(boilerplateSelectors, ", ")).Remove()
	removeComments(root)

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromDocument(root, parsedURL)
	if err != nil {
		return nil, ParseFailure("readability found no article content", err)
	}

	text := NormalizeWhitespace(article.TextContent)
	if text == "" {
		return nil, ParseFailure("page has no readable text", nil)
	}

	page := &WebPage{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Text:     text,
	}
	if page.Title == "" {
		page.Title = docTitle
	}
	if page.SiteName == "" {
		page.SiteName = strings.TrimSpace(siteName)
	}
	if limit := cfg.MaxContentChars; limit > 0 {
		if cut := TruncateRunes(page.Text, limit, ""); cut != page.Text {
			page.Text, page.Truncated = cut, true
		}
	}

	if md, err := htmltomarkdown.ConvertString(article.Content); err == nil {
		page.Markdown = strings.TrimSpace(md)
	} else {
		slog.Debug("web: markdown conversion failed", slog.String("url", pageURL), slog.Any("error", err))
	}
	return page, nil
}

// removeComments drops HTML comment nodes, which often hold ad markup.
func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
