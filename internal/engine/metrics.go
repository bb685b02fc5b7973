package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// metrics tracks operational counters across the engine.
var metrics struct {
	FileRequests        atomic.Int64
	WebRequests         atomic.Int64
	VideoRequests       atomic.Int64
	DriveRequests       atomic.Int64
	PersonaAttempts     atomic.Int64
	TranscriptsFetched  atomic.Int64
	ModelCalls          atomic.Int64
	CredentialRotations atomic.Int64
	FailBlocked         atomic.Int64
	FailNotFound        atomic.Int64
	FailTimeout         atomic.Int64
	FailUnsupported     atomic.Int64
	FailParse           atomic.Int64
}

var metricKeys = []string{
	"file_requests", "web_requests", "video_requests", "drive_requests",
	"persona_attempts", "transcripts_fetched",
	"model_calls", "credential_rotations",
	"failures_blocked", "failures_not_found", "failures_timeout",
	"failures_unsupported", "failures_parse",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"file_requests":        metrics.FileRequests.Load(),
		"web_requests":         metrics.WebRequests.Load(),
		"video_requests":       metrics.VideoRequests.Load(),
		"drive_requests":       metrics.DriveRequests.Load(),
		"persona_attempts":     metrics.PersonaAttempts.Load(),
		"transcripts_fetched":  metrics.TranscriptsFetched.Load(),
		"model_calls":          metrics.ModelCalls.Load(),
		"credential_rotations": metrics.CredentialRotations.Load(),
		"failures_blocked":     metrics.FailBlocked.Load(),
		"failures_not_found":   metrics.FailNotFound.Load(),
		"failures_timeout":     metrics.FailTimeout.Load(),
		"failures_unsupported": metrics.FailUnsupported.Load(),
		"failures_parse":       metrics.FailParse.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// recordFailure counts err under its failure kind.
func recordFailure(err error) {
	f, ok := AsFailure(err)
	if !ok {
		metrics.FailParse.Add(1)
		return
	}
	switch f.Kind {
	case KindBlocked:
		metrics.FailBlocked.Add(1)
	case KindNotFound:
		metrics.FailNotFound.Add(1)
	case KindTimeout:
		metrics.FailTimeout.Add(1)
	case KindUnsupportedFormat:
		metrics.FailUnsupported.Add(1)
	default:
		metrics.FailParse.Add(1)
	}
}

// RecordFailure counts a failure produced outside this package.
func RecordFailure(err error) { recordFailure(err) }

// Incrementors for sub-packages.
func IncrFileRequests()        { metrics.FileRequests.Add(1) }
func IncrVideoRequests()       { metrics.VideoRequests.Add(1) }
func IncrDriveRequests()       { metrics.DriveRequests.Add(1) }
func IncrPersonaAttempts()     { metrics.PersonaAttempts.Add(1) }
func IncrTranscriptsFetched()  { metrics.TranscriptsFetched.Add(1) }
func IncrModelCalls()          { metrics.ModelCalls.Add(1) }
func IncrCredentialRotations() { metrics.CredentialRotations.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(name string, start time.Time) {
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
}
