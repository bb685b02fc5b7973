package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// RetryConfig controls retry behavior.
type RetryConfig = stealth.RetryConfig

// DefaultRetryConfig keeps retry counts small so a request stays inside its deadline.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  2,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Multiplier:  2.0,
}

// retryVerdict carries isRetryable's decision through stealth.RetryDo, whose own
// predicate would otherwise retry a Blocked failure that wraps a dial error.
// A retry verdict reads as a timeout net.Error; a stop verdict hides its cause.
type retryVerdict struct {
	err   error
	retry bool
}

func (v *retryVerdict) Error() string   { return v.err.Error() }
func (v *retryVerdict) Timeout() bool   { return v.retry }
func (v *retryVerdict) Temporary() bool { return v.retry }

// RetryDo retries fn up to MaxRetries times with exponential backoff.
// Retries only on retryable errors; returns immediately on non-retryable or context cancellation.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	out, err := stealth.RetryDo(ctx, rc, func() (T, error) {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		retry := isRetryable(err)
		if retry {
			slog.Debug("retrying", slog.Any("error", err))
		}
		return out, &retryVerdict{err: err, retry: retry}
	})
	var v *retryVerdict
	if errors.As(err, &v) {
		return out, v.err
	}
	return out, err
}

// RetryHTTP executes an HTTP request function with retry logic.
// Retryable statuses are retried; every other non-2xx status is returned as *HTTPStatusError.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return RetryDo(ctx, rc, func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// HTTPStatusError carries a non-success HTTP status code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// isRetryable returns true for transient errors worth retrying.
// Blocked failures and 403 responses are never retried.
func isRetryable(err error) bool {
	if f, ok := AsFailure(err); ok {
		return f.Kind == KindTimeout
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return IsRetryableStatus(httpErr.StatusCode)
	}

	// Connection errors (dial failures, connection refused, etc.)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsRetryableStatus returns true for HTTP status codes worth retrying.
func IsRetryableStatus(code int) bool {
	return code != http.StatusForbidden && stealth.IsRetryableStatus(code)
}
