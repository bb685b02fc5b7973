// Package ai wraps generative model calls behind a rotating pool of API credentials.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

var (
	// ErrNoCredentials is returned when the pool is empty. No model call is made.
	ErrNoCredentials = errors.New("no model credentials configured")
	// ErrCredentialsExhausted is returned when every credential hit its quota.
	ErrCredentialsExhausted = errors.New("all model credentials exhausted")
)

// CredentialSource supplies the ordered credential list at the start of each call.
type CredentialSource interface {
	Credentials(ctx context.Context) ([]string, error)
}

// StaticCredentials is a fixed credential list.
type StaticCredentials []string

func (s StaticCredentials) Credentials(context.Context) ([]string, error) { return s, nil }

// Rotator runs operations against the credential pool.
type Rotator struct {
	src CredentialSource
}

func NewRotator(src CredentialSource) *Rotator {
	return &Rotator{src: src}
}

// Call runs op with each credential in list order, always starting from the first.
// A quota error moves on to the next credential with no delay; any other error is
// returned as is. Each credential is tried at most once.
func Call[T any](ctx context.Context, r *Rotator, op func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	keys, err := r.src.Credentials(ctx)
	if err != nil {
		return zero, fmt.Errorf("load credentials: %w", err)
	}
	if len(keys) == 0 {
		return zero, ErrNoCredentials
	}

	var lastErr error
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		engine.IncrModelCalls()
		out, err := op(ctx, key)
		if err == nil {
			return out, nil
		}
		if !IsQuotaError(err) {
			return zero, err
		}
		lastErr = err
		if i < len(keys)-1 {
			engine.IncrCredentialRotations()
			slog.Warn("ai: credential quota exhausted, rotating",
				slog.Int("index", i), slog.Int("pool", len(keys)), slog.Any("error", err))
		}
	}
	return zero, fmt.Errorf("%w (%d tried): %s", ErrCredentialsExhausted, len(keys), lastErr.Error())
}

// quotaStatus matches a 429 that is reported as a status code, not one that
// happens to appear inside a larger number such as a token count.
var quotaStatus = regexp.MustCompile(`(?i)\b(?:status|http|code)\W{0,3}429\b`)

// IsQuotaError reports whether err means the credential ran out of quota:
// an API or HTTP 429, a RESOURCE_EXHAUSTED status, or a message about quota or rate limits.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	if engine.StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "too many requests") ||
		quotaStatus.MatchString(msg)
}
