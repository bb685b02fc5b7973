// Package extract routes a source descriptor to the matching extractor and
// decides when the caller should fall back to manual text entry.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/spreadsheet"
)

// SourceType is the extraction route chosen for a descriptor.
type SourceType string

const (
	SourceFile  SourceType = "file"
	SourceDrive SourceType = "drive"
	SourceWeb   SourceType = "web"
	SourceVideo SourceType = "video"
)

// FileExtractor pulls text out of uploaded bytes.
type FileExtractor interface {
	Extract(ctx context.Context, raw []byte, fileName, mimeType string, progress files.ProgressFunc) (string, error)
}

// VideoExtractor returns metadata and transcript for a video URL.
type VideoExtractor interface {
	Extract(ctx context.Context, rawURL string) (*engine.VideoExtractionResult, error)
}

// DriveFetcher downloads a Drive file through the spreadsheet web app.
type DriveFetcher interface {
	FetchFileData(ctx context.Context, driveURL string) (*spreadsheet.DriveFile, error)
}

// WebFunc extracts a web page. engine.ExtractWebPage satisfies it.
type WebFunc func(ctx context.Context, pageURL string) (*engine.WebPage, error)

// DownloadFunc fetches a direct document link. engine.FetchFile satisfies it.
type DownloadFunc func(ctx context.Context, fileURL string) (*engine.RemoteFile, error)

// Deps are the extractors the orchestrator dispatches to. Drive may be nil.
type Deps struct {
	Files    FileExtractor
	Web      WebFunc
	Download DownloadFunc
	Video    VideoExtractor
	Drive    DriveFetcher
}

// Orchestrator dispatches descriptors to extractors.
type Orchestrator struct {
	deps Deps
}

func New(d Deps) *Orchestrator {
	if d.Web == nil {
		d.Web = engine.ExtractWebPage
	}
	if d.Download == nil {
		d.Download = engine.FetchFile
	}
	return &Orchestrator{deps: d}
}

// Outcome is the result of one extraction request. Exactly one of Result and
// Failure is set. Video carries the full video result when the route was video.
type Outcome struct {
	Type             SourceType                    `json:"sourceType,omitempty"`
	Result           *engine.ExtractionResult      `json:"result,omitempty"`
	Video            *engine.VideoExtractionResult `json:"video,omitempty"`
	Failure          *engine.ExtractionFailure     `json:"failure,omitempty"`
	OfferManualEntry bool                          `json:"offerManualEntry"`
}

var (
	driveHosts = []string{"drive.google.com", "docs.google.com"}
	videoHosts = []string{"youtube.com", "youtu.be"}
)

// DetectSourceType picks the route by method, then by host substring.
func DetectSourceType(d engine.SourceDescriptor) (SourceType, error) {
	if err := d.Validate(); err != nil {
		return "", engine.Unsupported(err.Error())
	}
	if d.Method == engine.MethodUpload {
		return SourceFile, nil
	}
	lower := strings.ToLower(d.Value)
	for _, h := range driveHosts {
		if strings.Contains(lower, h) {
			return SourceDrive, nil
		}
	}
	for _, h := range videoHosts {
		if strings.Contains(lower, h) {
			return SourceVideo, nil
		}
	}
	return SourceWeb, nil
}

// Run extracts d. It never returns a Go error: every failure is classified in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, d engine.SourceDescriptor, progress files.ProgressFunc) Outcome {
	defer engine.TrackOperation("orchestrate", time.Now())

	typ, err := DetectSourceType(d)
	if err != nil {
		return rejected("", err)
	}

	var out Outcome
	switch typ {
	case SourceFile:
		out = o.runFile(ctx, d.RawBytes, d.FileName, d.DeclaredMIMEType, progress)
	case SourceDrive:
		out = o.runDrive(ctx, d.Value, progress)
	case SourceVideo:
		out = o.runVideo(ctx, d.Value)
	default:
		if isDocumentLink(d.Value) {
			out = o.runDocument(ctx, d.Value, progress)
		} else {
			out = o.runWeb(ctx, d.Value)
		}
	}
	out.Type = typ
	if out.Failure != nil {
		slog.Warn("extract: failed", slog.String("type", string(typ)),
			slog.String("kind", out.Failure.Kind.String()), slog.Any("error", out.Failure))
	}
	return out
}

func (o *Orchestrator) runFile(ctx context.Context, raw []byte, fileName, mimeType string, progress files.ProgressFunc) Outcome {
	type fileResult struct {
		text string
		err  error
	}
	done := make(chan fileResult, 1)
	go func() {
		text, err := o.deps.Files.Extract(ctx, raw, fileName, mimeType, progress)
		done <- fileResult{text, err}
	}()

	var res fileResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return rejected(SourceFile, engine.Timeout("file extraction did not finish in time", true, ctx.Err()))
	}
	if res.err != nil {
		return failed(SourceFile, res.err)
	}

	r := &engine.ExtractionResult{
		Title:  strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)),
		Source: fileName,
		Text:   res.text,
	}
	if r.Title == "." {
		r.Title = ""
	}
	return succeeded(r)
}

func (o *Orchestrator) runDrive(ctx context.Context, driveURL string, progress files.ProgressFunc) Outcome {
	engine.IncrDriveRequests()
	if o.deps.Drive == nil {
		return rejected(SourceDrive, engine.Unsupported("Drive links need the spreadsheet web app to be configured"))
	}
	progress.Report("Downloading from Drive", 1, 2)
	f, err := o.deps.Drive.FetchFileData(ctx, driveURL)
	if err != nil {
		switch {
		case errors.Is(err, spreadsheet.ErrNotConfigured):
			return rejected(SourceDrive, engine.Unsupported("Drive links need the spreadsheet web app to be configured"))
		case engine.IsTimeout(err):
			return rejected(SourceDrive, engine.Timeout("Drive download timed out", true, err))
		}
		return rejected(SourceDrive, engine.Blocked("the Drive file could not be downloaded; check its sharing settings", err))
	}
	progress.Report("Reading file", 2, 2)
	out := o.runFile(ctx, f.Data, f.FileName, f.MIMEType, progress)
	if out.Result != nil {
		out.Result.Source = driveURL
	}
	return out
}

// isDocumentLink reports whether a web link names a file the file extractor reads,
// such as https://example.org/paper.pdf.
func isDocumentLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch files.DetectFormat(path.Base(u.Path), "") {
	case files.FormatUnknown, files.FormatText:
		return false
	}
	return true
}

func (o *Orchestrator) runDocument(ctx context.Context, fileURL string, progress files.ProgressFunc) Outcome {
	progress.Report("Downloading document", 1, 2)
	f, err := o.deps.Download(ctx, fileURL)
	if err != nil {
		return failed(SourceWeb, err)
	}
	progress.Report("Reading file", 2, 2)
	out := o.runFile(ctx, f.Data, f.FileName, f.MIMEType, progress)
	if out.Result != nil {
		out.Result.Source = fileURL
	}
	return out
}

func (o *Orchestrator) runWeb(ctx context.Context, pageURL string) Outcome {
	page, err := o.deps.Web(ctx, pageURL)
	if err != nil {
		return failed(SourceWeb, err)
	}
	return succeeded(&engine.ExtractionResult{
		Title:    page.Title,
		Author:   page.Byline,
		SiteName: page.SiteName,
		Source:   page.URL,
		Text:     page.Text,
		Markdown: page.Markdown,
	})
}

func (o *Orchestrator) runVideo(ctx context.Context, videoURL string) Outcome {
	v, err := o.deps.Video.Extract(ctx, videoURL)
	if err != nil {
		return failed(SourceVideo, err)
	}
	r := &engine.ExtractionResult{
		Title:                   v.Title,
		Author:                  v.Author,
		SiteName:                "YouTube",
		Source:                  videoURL,
		Text:                    v.Transcript,
		HasStructuredTranscript: v.HasTranscript,
		Warnings:                append([]string(nil), v.Warnings...),
	}
	if !v.HasTranscript {
		r.Text = firstNonEmpty(v.ContentSummary, v.Description)
		if r.Text != "" {
			r.Warn("No transcript available; using the video description instead.")
		}
	}
	out := succeeded(r)
	out.Video = v
	if f := v.TranscriptFailure; f != nil && f.RecommendManualEntry {
		out.OfferManualEntry = true
	}
	return out
}

// ManualEntry builds a result from text the user pasted by hand.
func ManualEntry(title, text string) (*engine.ExtractionResult, error) {
	text = engine.NormalizeWhitespace(text)
	if text == "" {
		return nil, errors.New("manual entry text is empty")
	}
	return &engine.ExtractionResult{Title: strings.TrimSpace(title), Source: "manual", Text: text}, nil
}

func succeeded(r *engine.ExtractionResult) Outcome {
	out := Outcome{Result: r}
	if strings.TrimSpace(r.Text) == "" {
		r.Warn("No text could be extracted from this source; paste it manually.")
		out.OfferManualEntry = true
	}
	return out
}

// failed wraps an error an extractor already counted.
func failed(typ SourceType, err error) Outcome {
	f := engine.Classify(err, fmt.Sprintf("%s extraction failed", typ))
	return Outcome{Type: typ, Failure: f, OfferManualEntry: f.RecommendManualEntry}
}

// rejected is failed for errors raised here, which no extractor has counted.
func rejected(typ SourceType, err error) Outcome {
	engine.RecordFailure(err)
	return failed(typ, err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
