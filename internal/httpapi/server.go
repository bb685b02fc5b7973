// Package httpapi serves the extraction endpoints consumed by the collection UI.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/engine/sources"
	"github.com/anatolykoptev/go_scholar/internal/extract"
)

// Deps wires the handlers to the extractors.
type Deps struct {
	Orchestrator *extract.Orchestrator
	Video        extract.VideoExtractor
	Web          extract.WebFunc
	// MaxUploadBytes bounds multipart uploads. Zero means 32 MiB.
	MaxUploadBytes int64
	// RequestTimeout bounds video and orchestrated extractions. Zero means 90s.
	RequestTimeout time.Duration
	// RateLimit is requests per second across all clients. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

type server struct {
	deps Deps
}

// NewHandler returns the API handler with request ID, access log, CORS and rate limit middleware.
func NewHandler(d Deps) http.Handler {
	if d.Web == nil {
		d.Web = engine.ExtractWebPage
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 90 * time.Second
	}
	s := &server{deps: d}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /extract", s.handleVideo)
	mux.HandleFunc("GET /web_extract", s.handleWeb)
	mux.HandleFunc("POST /file_extract", s.handleFile)
	mux.HandleFunc("POST /source_extract", s.handleSource)
	mux.HandleFunc("POST /manual_entry", s.handleManual)
	mux.HandleFunc("GET /metrics", handleMetrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	})

	var h http.Handler = mux
	if d.RateLimit > 0 {
		burst := d.RateBurst
		if burst <= 0 {
			burst = max(1, int(d.RateLimit))
		}
		h = rateLimit(rate.NewLimiter(rate.Limit(d.RateLimit), burst), h)
	}
	h = cors(h)
	h = accessLog(h)
	return requestID(h)
}

// videoMetadata is the metadata object of the /extract response.
type videoMetadata struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	PublishDate  string `json:"publish_date,omitempty"`
	Year         string `json:"year,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Publisher    string `json:"publisher"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	Summary      string `json:"contentSummary,omitempty"`
	TranscriptBy string `json:"persona,omitempty"`
}

type videoResponse struct {
	Status               string         `json:"status"`
	Metadata             *videoMetadata `json:"metadata,omitempty"`
	Transcript           string         `json:"transcript,omitempty"`
	HasTranscript        *bool          `json:"hasTranscript,omitempty"`
	VideoID              string         `json:"video_id,omitempty"`
	Message              string         `json:"message,omitempty"`
	Kind                 string         `json:"kind,omitempty"`
	RecommendManualEntry bool           `json:"recommendManualEntry"`
	Warnings             []string       `json:"warnings,omitempty"`
}

func (s *server) handleVideo(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, videoResponse{Status: "error", Message: "URL required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.RequestTimeout)
	defer cancel()

	v, err := s.deps.Video.Extract(ctx, raw)
	if err != nil {
		f := engine.Classify(err, "video extraction failed")
		writeJSON(w, statusFor(f), videoResponse{
			Status:               "error",
			Message:              f.Message,
			Kind:                 f.Kind.String(),
			RecommendManualEntry: f.RecommendManualEntry,
		})
		return
	}

	resp := videoResponse{
		Status:        "success",
		Metadata:      metadataOf(v),
		Transcript:    v.Transcript,
		HasTranscript: &v.HasTranscript,
		VideoID:       v.VideoID,
		Warnings:      v.Warnings,
	}
	if v.Partial() {
		resp.Status = "partial_success"
		if f := v.TranscriptFailure; f != nil {
			resp.Message = f.Message
			resp.Kind = f.Kind.String()
			resp.RecommendManualEntry = f.RecommendManualEntry
		} else {
			resp.Message = "This video has no captions."
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func metadataOf(v *engine.VideoExtractionResult) *videoMetadata {
	m := &videoMetadata{
		Title:        v.Title,
		Author:       v.Author,
		Description:  v.Description,
		Duration:     v.DurationSeconds,
		PublishDate:  v.PublishDate,
		Keywords:     strings.Join(v.Keywords, ", "),
		Publisher:    "YouTube",
		Thumbnail:    v.ThumbnailURL,
		Summary:      v.ContentSummary,
		TranscriptBy: v.Persona,
	}
	if len(v.PublishDate) >= 4 {
		m.Year = v.PublishDate[:4]
	}
	return m
}

type webResponse struct {
	Title                string `json:"title"`
	TextContent          string `json:"textContent"`
	Byline               string `json:"byline,omitempty"`
	SiteName             string `json:"siteName,omitempty"`
	Markdown             string `json:"markdown,omitempty"`
	Truncated            bool   `json:"truncated,omitempty"`
	Error                string `json:"error,omitempty"`
	Kind                 string `json:"kind,omitempty"`
	RecommendManualEntry bool   `json:"recommendManualEntry"`
}

func (s *server) handleWeb(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, webResponse{Error: "URL is required"})
		return
	}
	if !engine.IsHTTPURL(raw) {
		writeJSON(w, http.StatusBadRequest, webResponse{Error: "URL must be an absolute http(s) URL", Kind: engine.KindUnsupportedFormat.String(), RecommendManualEntry: true})
		return
	}

	page, err := s.deps.Web(r.Context(), raw)
	if err != nil {
		f := engine.Classify(err, "web extraction failed")
		writeJSON(w, statusFor(f), webResponse{
			Error:                f.Message,
			Kind:                 f.Kind.String(),
			RecommendManualEntry: f.RecommendManualEntry,
		})
		return
	}
	writeJSON(w, http.StatusOK, webResponse{
		Title:       page.Title,
		TextContent: page.Text,
		Byline:      page.Byline,
		SiteName:    page.SiteName,
		Markdown:    page.Markdown,
		Truncated:   page.Truncated,
	})
}

func (s *server) handleFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeOutcome(w, failedOutcome(engine.Unsupported("multipart field \"file\" is required: "+err.Error())))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeOutcome(w, failedOutcome(engine.Unsupported("upload too large or unreadable")))
		return
	}
	s.runOrchestrated(w, r, engine.SourceDescriptor{
		Method:           engine.MethodUpload,
		Value:            header.Filename,
		RawBytes:         data,
		FileName:         header.Filename,
		DeclaredMIMEType: header.Header.Get("Content-Type"),
	})
}

func (s *server) handleSource(w http.ResponseWriter, r *http.Request) {
	var d engine.SourceDescriptor
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)).Decode(&d); err != nil {
		writeOutcome(w, failedOutcome(engine.Unsupported("malformed source descriptor: "+err.Error())))
		return
	}
	s.runOrchestrated(w, r, d)
}

func (s *server) runOrchestrated(w http.ResponseWriter, r *http.Request, d engine.SourceDescriptor) {
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.RequestTimeout)
	defer cancel()
	reqID := RequestIDFrom(r.Context())
	out := s.deps.Orchestrator.Run(ctx, d, func(p files.Progress) {
		slog.Debug("extract progress", slog.String("request_id", reqID), slog.String("stage", p.String()))
	})
	writeOutcome(w, out)
}

func (s *server) handleManual(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	res, err := extract.ManualEntry(body.Title, body.Text)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, extract.Outcome{Result: res})
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, engine.FormatMetrics()) //nolint:errcheck
}

func failedOutcome(f *engine.ExtractionFailure) extract.Outcome {
	return extract.Outcome{Failure: f, OfferManualEntry: f.RecommendManualEntry}
}

func writeOutcome(w http.ResponseWriter, out extract.Outcome) {
	status := http.StatusOK
	if out.Failure != nil {
		status = statusFor(out.Failure)
	}
	writeJSON(w, status, out)
}

// statusFor maps a failure to its HTTP status. An unresolvable video ID is a bad request.
func statusFor(f *engine.ExtractionFailure) int {
	if errors.Is(f, sources.ErrInvalidVideoID) {
		return http.StatusBadRequest
	}
	return engine.HTTPStatus(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("httpapi: encode response", slog.Any("error", err))
	}
}
