package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxPageBytes = 8 << 20

// fetchRetryInitial is the first backoff interval between 5xx retries.
var fetchRetryInitial = 1 * time.Second

// newFetchClient creates an HTTP client with proper settings for web scraping.
func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: MaxFetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// fetchPage GETs pageURL with a browser header set and returns the body.
// Only 5xx and 429 are retried; 403 is Blocked, 404/410 are NotFound, a deadline is Timeout.
func fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if cfg.BrowserClient != nil {
		return fetchPageBrowser(ctx, pageURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = newFetchClient()
	}
	headers := BrowserHeaders(pageURL)

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		// Only gzip is decoded by readResponseBody.
		req.Header.Set("accept-encoding", "gzip")

		resp, err := client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if err := statusFailure(resp.StatusCode, pageURL); err != nil {
			if IsRetryableStatus(resp.StatusCode) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		body, err := readResponseBody(resp, pageURL)
		if _, ok := AsFailure(err); ok {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = fetchRetryInitial
	bo.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(cfg.FetchTimeout),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Debug("web fetch: retrying", slog.String("url", pageURL), slog.Duration("wait", wait), slog.Any("error", err))
		}),
	)
	if err != nil {
		return nil, classifyFetchError(err, pageURL)
	}
	return body, nil
}

// fetchPageBrowser uses the TLS-fingerprinted client. It makes exactly one attempt.
func fetchPageBrowser(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyFetchError(err, pageURL)
	}
	body, _, status, err := cfg.BrowserClient.Do(http.MethodGet, pageURL, BrowserHeaders(pageURL), nil)
	if err != nil {
		return nil, classifyFetchError(err, pageURL)
	}
	if err := statusFailure(status, pageURL); err != nil {
		return nil, classifyFetchError(err, pageURL)
	}
	if len(body) > maxPageBytes {
		return nil, tooLarge(pageURL)
	}
	return body, nil
}

// statusFailure converts a non-2xx status into a typed error.
func statusFailure(status int, pageURL string) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusForbidden:
		return Blocked("the site refused automated access (HTTP 403) for "+pageURL, &HTTPStatusError{StatusCode: status})
	case status == http.StatusNotFound || status == http.StatusGone:
		return NotFound("page not found: "+pageURL, false, &HTTPStatusError{StatusCode: status})
	default:
		return &HTTPStatusError{StatusCode: status}
	}
}

func classifyFetchError(err error, pageURL string) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	if IsTimeout(err) {
		return Timeout("timed out fetching "+pageURL, true, err)
	}
	if code := StatusCode(err); code == http.StatusTooManyRequests {
		return Blocked("the site is rate limiting automated access for "+pageURL, err)
	}
	return ParseFailure(fmt.Sprintf("could not fetch %s", pageURL), err)
}

// ErrTooLarge marks a response body over maxPageBytes.
var ErrTooLarge = errors.New("response body exceeds the download limit")

func tooLarge(sourceURL string) *ExtractionFailure {
	return &ExtractionFailure{
		Kind:                 KindUnsupportedFormat,
		Message:              fmt.Sprintf("%s is larger than the %d MiB download limit", sourceURL, maxPageBytes>>20),
		RecommendManualEntry: true,
		Err:                  ErrTooLarge,
	}
}

// readResponseBody reads the whole response body, handling gzip decompression if needed.
// A body over maxPageBytes (after decompression) is an error, never a truncated result.
func readResponseBody(resp *http.Response, sourceURL string) ([]byte, error) {
	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}
	data, err := io.ReadAll(io.LimitReader(body, maxPageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPageBytes {
		return nil, tooLarge(sourceURL)
	}
	return data, nil
}
