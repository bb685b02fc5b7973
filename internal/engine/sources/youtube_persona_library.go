package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// LibraryPersona delegates client emulation to the kkdai/youtube library,
// which rotates its own set of Innertube client profiles.
type LibraryPersona struct {
	client *youtube.Client
	langs  []string
}

func NewLibraryPersona(deps PersonaDeps) *LibraryPersona {
	return &LibraryPersona{client: &youtube.Client{HTTPClient: deps.HTTPClient}, langs: deps.Languages}
}

func (p *LibraryPersona) Name() string { return "library" }

func (p *LibraryPersona) FetchVideo(ctx context.Context, videoID string) (*PersonaResult, error) {
	video, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, libraryFailure(videoID, err)
	}

	meta := engine.VideoMetadata{
		Title:           video.Title,
		Author:          video.Author,
		Description:     video.Description,
		DurationSeconds: int(video.Duration.Seconds()),
	}
	if !video.PublishDate.IsZero() {
		meta.PublishDate = video.PublishDate.Format("2006-01-02")
	}
	var bestWidth uint
	for _, t := range video.Thumbnails {
		if meta.ThumbnailURL == "" || t.Width > bestWidth {
			meta.ThumbnailURL, bestWidth = t.URL, t.Width
		}
	}

	tracks := make([]captionTrack, 0, len(video.CaptionTracks))
	for _, t := range video.CaptionTracks {
		tracks = append(tracks, captionTrack{BaseURL: t.BaseURL, LanguageCode: t.LanguageCode, Kind: t.Kind})
	}
	res := &PersonaResult{Metadata: meta, TrackCount: len(tracks)}
	if len(tracks) == 0 {
		return res, nil
	}

	track, ok := pickTrack(tracks, p.langs)
	if !ok {
		track = tracks[0]
	}
	transcript, err := p.client.GetTranscriptCtx(ctx, video, track.LanguageCode)
	applyLibraryTranscript(res, transcript, err)
	return res, nil
}

// applyLibraryTranscript fills res from a transcript download. res.TrackCount is
// left alone: tracks were listed, so a disabled or empty download is Blocked, not absent.
func applyLibraryTranscript(res *PersonaResult, transcript youtube.VideoTranscript, err error) {
	if err != nil {
		msg := "captions exist but could not be downloaded"
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			msg = "captions are listed but the transcript endpoint reports them disabled"
		}
		res.TranscriptErr = engine.Blocked(msg, err)
		return
	}
	for _, seg := range transcript {
		res.Segments = append(res.Segments, TranscriptSegment{StartMs: int64(seg.StartMs), Text: seg.Text})
	}
	if len(res.Segments) == 0 {
		res.TranscriptErr = engine.Blocked("caption track returned no segments", nil)
	}
}

func libraryFailure(videoID string, err error) error {
	msg := "video " + videoID + ": " + err.Error()
	if errors.Is(err, youtube.ErrLoginRequired) || errors.Is(err, youtube.ErrVideoPrivate) {
		return engine.Blocked(msg, err)
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return engine.NotFound(msg, true, err)
	case strings.Contains(lower, "403") || strings.Contains(lower, "429") || strings.Contains(lower, "bot"):
		return engine.Blocked(msg, err)
	}
	return engine.Classify(err, msg)
}
