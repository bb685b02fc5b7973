package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// Enrichment backfills metadata the personas could not provide.
type Enrichment struct {
	Year           string
	Keywords       []string
	Author         string
	ContentSummary string
}

// Enricher looks up missing video metadata, typically through a search-grounded model.
type Enricher interface {
	EnrichVideo(ctx context.Context, videoURL string, meta engine.VideoMetadata) (*Enrichment, error)
}

// VideoExtractor resolves a video URL and walks the persona chain.
type VideoExtractor struct {
	personas    []Persona
	maxPersonas int
	enricher    Enricher
}

// NewVideoExtractor tries at most maxPersonas personas per request, in order.
// enricher may be nil.
func NewVideoExtractor(personas []Persona, maxPersonas int, enricher Enricher) *VideoExtractor {
	if maxPersonas <= 0 {
		maxPersonas = 2
	}
	return &VideoExtractor{personas: personas, maxPersonas: maxPersonas, enricher: enricher}
}

// Extract returns metadata and, when reachable, the transcript of the video at rawURL.
// Metadata without a transcript is a partial success. Only a total lack of metadata
// is a failure, always with manual entry recommended.
func (x *VideoExtractor) Extract(ctx context.Context, rawURL string) (result *engine.VideoExtractionResult, err error) {
	engine.IncrVideoRequests()
	defer engine.TrackOperation("video_extract", time.Now())
	defer func() {
		if err != nil {
			engine.RecordFailure(err)
		}
	}()

	id, err := ResolveVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	cacheKey := engine.CacheKey("video", id)
	if cached, ok := engine.CacheLoad[engine.VideoExtractionResult](ctx, cacheKey); ok {
		return &cached, nil
	}

	var (
		errs        *multierror.Error
		meta        engine.VideoMetadata
		haveMeta    bool
		segments    []TranscriptSegment
		trackErr    error
		tracksKnown bool
		used        []string
	)
	for i, p := range x.personas {
		if i >= x.maxPersonas || ctx.Err() != nil {
			break
		}
		engine.IncrPersonaAttempts()
		res, perr := p.FetchVideo(ctx, id)
		if perr != nil {
			slog.Warn("youtube: persona failed", slog.String("persona", p.Name()), slog.String("id", id), slog.Any("error", perr))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), perr))
			continue
		}
		used = append(used, p.Name())
		meta = mergeMetadata(meta, res.Metadata)
		haveMeta = true
		if len(res.Segments) > 0 {
			segments = res.Segments
			break
		}
		if res.TrackCount == 0 {
			break
		}
		tracksKnown = true
		trackErr = res.TranscriptErr
		slog.Warn("youtube: captions unreachable, trying next persona",
			slog.String("persona", p.Name()), slog.String("id", id), slog.Any("error", res.TranscriptErr))
	}

	if !haveMeta {
		return nil, personaChainFailure(id, errs, ctx.Err())
	}

	out := &engine.VideoExtractionResult{VideoID: id, VideoMetadata: meta}
	if len(used) > 0 {
		out.Persona = used[len(used)-1]
	}
	switch {
	case len(segments) > 0:
		out.Transcript = FormatTranscript(segments)
		out.HasTranscript = out.Transcript != ""
		engine.IncrTranscriptsFetched()
	case tracksKnown:
		f, ok := engine.AsFailure(trackErr)
		if !ok {
			f = engine.Blocked("captions exist but could not be downloaded", trackErr)
		}
		out.TranscriptFailure = f
		out.Warnings = append(out.Warnings, "Captions exist but could not be downloaded; paste the transcript manually or try again later.")
	default:
		out.Warnings = append(out.Warnings, "This video has no captions.")
	}

	x.enrich(ctx, rawURL, out)

	if out.HasTranscript {
		engine.CacheStore(ctx, cacheKey, *out)
	}
	return out, nil
}

// enrich backfills publish date, keywords, and author. Errors become warnings.
func (x *VideoExtractor) enrich(ctx context.Context, rawURL string, out *engine.VideoExtractionResult) {
	if x.enricher == nil || (out.PublishDate != "" && len(out.Keywords) > 0 && out.Author != "") {
		return
	}
	e, err := x.enricher.EnrichVideo(ctx, WatchURL(out.VideoID), out.VideoMetadata)
	if err != nil {
		slog.Warn("youtube: enrichment failed", slog.String("url", rawURL), slog.Any("error", err))
		out.Warnings = append(out.Warnings, "Additional metadata lookup failed.")
		return
	}
	if out.PublishDate == "" {
		out.PublishDate = e.Year
	}
	if len(out.Keywords) == 0 {
		out.Keywords = e.Keywords
	}
	if out.Author == "" {
		out.Author = e.Author
	}
	out.ContentSummary = e.ContentSummary
}

// mergeMetadata keeps fields already known and fills the gaps from next.
func mergeMetadata(have, next engine.VideoMetadata) engine.VideoMetadata {
	have.Title = firstNonEmpty(have.Title, next.Title)
	have.Author = firstNonEmpty(have.Author, next.Author)
	have.Description = firstNonEmpty(have.Description, next.Description)
	have.PublishDate = firstNonEmpty(have.PublishDate, next.PublishDate)
	have.ThumbnailURL = firstNonEmpty(have.ThumbnailURL, next.ThumbnailURL)
	if have.DurationSeconds == 0 {
		have.DurationSeconds = next.DurationSeconds
	}
	if len(have.Keywords) == 0 {
		have.Keywords = slices.Clone(next.Keywords)
	}
	return have
}

// personaChainFailure classifies the case where no persona produced metadata.
// NotFound wins over Blocked, which wins over Timeout.
func personaChainFailure(id string, errs *multierror.Error, ctxErr error) error {
	var cause error
	if errs != nil {
		cause = errs.ErrorOrNil()
	}
	if cause == nil {
		if ctxErr != nil {
			return engine.Timeout("video lookup for "+id+" ran out of time", true, ctxErr)
		}
		return engine.Blocked("no video personas are configured", nil)
	}

	sawBlocked, allTimeout := false, true
	for _, e := range errs.Errors {
		f, ok := engine.AsFailure(e)
		switch {
		case ok && f.Kind == engine.KindNotFound:
			return engine.NotFound("video "+id+" was not found", true, cause)
		case ok && f.Kind == engine.KindBlocked:
			sawBlocked = true
			allTimeout = false
		case ok && f.Kind == engine.KindTimeout, errors.Is(e, context.DeadlineExceeded):
		default:
			allTimeout = false
		}
	}
	if !sawBlocked && allTimeout {
		return engine.Timeout("video lookup for "+id+" timed out", true, cause)
	}
	return engine.Blocked("the video site blocked every client persona for "+id, cause)
}
