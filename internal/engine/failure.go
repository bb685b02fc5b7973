package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies why an extraction did not produce content.
type FailureKind int

const (
	KindParseError FailureKind = iota
	KindBlocked
	KindNotFound
	KindTimeout
	KindUnsupportedFormat
)

var kindNames = map[FailureKind]string{
	KindParseError:        "parse_error",
	KindBlocked:           "blocked",
	KindNotFound:          "not_found",
	KindTimeout:           "timeout",
	KindUnsupportedFormat: "unsupported_format",
}

func (k FailureKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ExtractionFailure is the only error type extractors return across module boundaries.
type ExtractionFailure struct {
	Kind                 FailureKind
	Message              string
	RecommendManualEntry bool
	Err                  error
}

func (f *ExtractionFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *ExtractionFailure) Unwrap() error { return f.Err }

// MarshalJSON omits the wrapped cause; it is for logs only.
func (f *ExtractionFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind                 FailureKind `json:"kind"`
		Message              string      `json:"message"`
		RecommendManualEntry bool        `json:"recommendManualEntry"`
	}{f.Kind, f.Message, f.RecommendManualEntry})
}

// Blocked reports a source that refused automated access.
func Blocked(msg string, err error) *ExtractionFailure {
	return &ExtractionFailure{Kind: KindBlocked, Message: msg, RecommendManualEntry: true, Err: err}
}

// NotFound reports a source that does not exist or cannot be addressed.
func NotFound(msg string, manual bool, err error) *ExtractionFailure {
	return &ExtractionFailure{Kind: KindNotFound, Message: msg, RecommendManualEntry: manual, Err: err}
}

// Timeout reports a fetch that exceeded its deadline.
func Timeout(msg string, manual bool, err error) *ExtractionFailure {
	return &ExtractionFailure{Kind: KindTimeout, Message: msg, RecommendManualEntry: manual, Err: err}
}

// Unsupported reports an input no route can handle.
func Unsupported(msg string) *ExtractionFailure {
	return &ExtractionFailure{Kind: KindUnsupportedFormat, Message: msg, RecommendManualEntry: true}
}

// ParseFailure reports a recognized input whose content could not be read.
func ParseFailure(msg string, err error) *ExtractionFailure {
	return &ExtractionFailure{Kind: KindParseError, Message: msg, RecommendManualEntry: true, Err: err}
}

// AsFailure returns the *ExtractionFailure in err's chain, if any.
func AsFailure(err error) (*ExtractionFailure, bool) {
	var f *ExtractionFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classify maps any error onto the failure taxonomy.
// Deadlines and network timeouts become Timeout; everything else unclassified is a ParseError.
func Classify(err error, msg string) *ExtractionFailure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	if IsTimeout(err) {
		return Timeout(msg, true, err)
	}
	return ParseFailure(msg, err)
}

// IsTimeout reports deadline expiry or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPStatus maps a failure to the status code the HTTP surface returns.
func HTTPStatus(f *ExtractionFailure) int {
	if f == nil {
		return http.StatusOK
	}
	switch f.Kind {
	case KindBlocked:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnsupportedFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
