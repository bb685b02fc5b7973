package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// DataAPIPersona reads metadata from the official YouTube Data API v3.
// The API cannot download captions with an API key, so it never yields a transcript.
type DataAPIPersona struct {
	svc *ytapi.Service
}

func NewDataAPIPersona(ctx context.Context, apiKey string) (*DataAPIPersona, error) {
	svc, err := ytapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube data api: %w", err)
	}
	return &DataAPIPersona{svc: svc}, nil
}

func (p *DataAPIPersona) Name() string { return "dataapi" }

func (p *DataAPIPersona) FetchVideo(ctx context.Context, videoID string) (*PersonaResult, error) {
	resp, err := p.svc.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusTooManyRequests) {
			return nil, engine.Blocked("data api refused the request", err)
		}
		return nil, engine.Classify(err, "data api request failed")
	}
	if len(resp.Items) == 0 {
		return nil, engine.NotFound("video "+videoID+" does not exist", true, nil)
	}

	item := resp.Items[0]
	meta := engine.VideoMetadata{}
	if s := item.Snippet; s != nil {
		meta.Title = s.Title
		meta.Author = s.ChannelTitle
		meta.Description = s.Description
		meta.Keywords = s.Tags
		if len(s.PublishedAt) >= 10 {
			meta.PublishDate = s.PublishedAt[:10]
		}
		meta.ThumbnailURL = bestThumbnail(s.Thumbnails)
	}
	if cd := item.ContentDetails; cd != nil {
		meta.DurationSeconds = parseISODuration(cd.Duration)
	}
	return &PersonaResult{Metadata: meta}, nil
}

func bestThumbnail(t *ytapi.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*ytapi.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration converts an ISO 8601 duration such as PT1H2M3S to seconds.
func parseISODuration(s string) int {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] != "" {
			n, _ := strconv.Atoi(m[i+1])
			total += n * mult
		}
	}
	return total
}
