package engine

import (
	"errors"
	"net/url"
	"strings"
)

// SourceMethod says how a source reached the extractor.
type SourceMethod string

const (
	MethodUpload SourceMethod = "upload"
	MethodLink   SourceMethod = "link"
)

// SourceDescriptor describes one source to extract.
type SourceDescriptor struct {
	Method           SourceMethod `json:"method"`
	Value            string       `json:"value"`
	RawBytes         []byte       `json:"rawBytes,omitempty"`
	DeclaredMIMEType string       `json:"mimeType,omitempty"`
	FileName         string       `json:"fileName,omitempty"`
}

// Validate checks that upload sources carry bytes and link sources carry an absolute http(s) URL.
func (d SourceDescriptor) Validate() error {
	switch d.Method {
	case MethodUpload:
		if len(d.RawBytes) == 0 {
			return errors.New("upload source has no bytes")
		}
		return nil
	case MethodLink:
		if !IsHTTPURL(d.Value) {
			return errors.New("link source is not an absolute http(s) URL")
		}
		return nil
	default:
		return errors.New("unknown source method: " + string(d.Method))
	}
}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ExtractionResult is the normalized output of any extractor.
type ExtractionResult struct {
	Title                   string   `json:"title,omitempty"`
	Author                  string   `json:"author,omitempty"`
	SiteName                string   `json:"siteName,omitempty"`
	Source                  string   `json:"source,omitempty"`
	Text                    string   `json:"text"`
	Markdown                string   `json:"markdown,omitempty"`
	HasStructuredTranscript bool     `json:"hasStructuredTranscript"`
	Warnings                []string `json:"warnings,omitempty"`
}

// Warn appends a non-fatal note to the result.
func (r *ExtractionResult) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// VideoMetadata is what a persona learns about a video besides its transcript.
type VideoMetadata struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Description     string   `json:"description"`
	DurationSeconds int      `json:"duration"`
	PublishDate     string   `json:"publishDate,omitempty"`
	ThumbnailURL    string   `json:"thumbnailUrl,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// VideoExtractionResult is the outcome of video metadata and transcript extraction.
// Transcript is empty exactly when HasTranscript is false.
type VideoExtractionResult struct {
	VideoID string `json:"videoId"`
	VideoMetadata
	Transcript        string             `json:"transcript,omitempty"`
	HasTranscript     bool               `json:"hasTranscript"`
	Persona           string             `json:"persona,omitempty"`
	ContentSummary    string             `json:"contentSummary,omitempty"`
	TranscriptFailure *ExtractionFailure `json:"transcriptFailure,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// Partial reports whether metadata was found without a transcript.
func (v *VideoExtractionResult) Partial() bool {
	return !v.HasTranscript
}
