package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// Persona is one simulated client identity for fetching a video.
type Persona interface {
	Name() string
	// FetchVideo returns metadata and, when available, transcript segments.
	// An error means no metadata could be retrieved.
	FetchVideo(ctx context.Context, videoID string) (*PersonaResult, error)
}

// PersonaResult is what a single persona retrieved.
type PersonaResult struct {
	Metadata engine.VideoMetadata
	// TrackCount is the number of caption tracks the persona saw.
	TrackCount int
	Segments   []TranscriptSegment
	// TranscriptErr is set when tracks exist but no segments could be downloaded.
	TranscriptErr error
}

// PersonaDeps carries what persona constructors need.
type PersonaDeps struct {
	HTTPClient    *http.Client
	Languages     []string
	YouTubeAPIKey string
}

// BuildPersonas constructs personas by registry name, preserving order.
// Names: android, ios, tv, watchpage, library, dataapi.
func BuildPersonas(ctx context.Context, names []string, deps PersonaDeps) ([]Persona, error) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	personas := make([]Persona, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "android":
			personas = append(personas, newInnertubePersona(profileAndroid, deps))
		case "ios":
			personas = append(personas, newInnertubePersona(profileIOS, deps))
		case "tv":
			personas = append(personas, newInnertubePersona(profileTV, deps))
		case "watchpage":
			personas = append(personas, NewWatchPagePersona(deps))
		case "library":
			personas = append(personas, NewLibraryPersona(deps))
		case "dataapi":
			if deps.YouTubeAPIKey == "" {
				slog.Warn("youtube: dataapi persona skipped, no API key")
				continue
			}
			p, err := NewDataAPIPersona(ctx, deps.YouTubeAPIKey)
			if err != nil {
				return nil, err
			}
			personas = append(personas, p)
		default:
			return nil, fmt.Errorf("unknown video persona %q", raw)
		}
	}
	return personas, nil
}

// InnertubePersona calls the player API as a mobile or TV client.
type InnertubePersona struct {
	profile clientProfile
	client  *http.Client
	langs   []string
}

func newInnertubePersona(p clientProfile, deps PersonaDeps) *InnertubePersona {
	return &InnertubePersona{profile: p, client: deps.HTTPClient, langs: deps.Languages}
}

func (p *InnertubePersona) Name() string { return p.profile.persona }

func (p *InnertubePersona) FetchVideo(ctx context.Context, videoID string) (*PersonaResult, error) {
	resp, err := postPlayer(ctx, p.client, p.profile, videoID)
	if err != nil {
		return nil, err
	}
	return resultFromPlayer(ctx, p.client, resp, videoID, p.langs)
}

// resultFromPlayer turns a player response into metadata plus transcript.
func resultFromPlayer(ctx context.Context, client *http.Client, resp *innertubePlayerResp, videoID string, langs []string) (*PersonaResult, error) {
	meta, ok := resp.metadata()
	if !ok {
		return nil, resp.playabilityFailure(videoID)
	}
	tracks := resp.captionTracks()
	res := &PersonaResult{Metadata: meta, TrackCount: len(tracks)}
	res.Segments, res.TranscriptErr = transcriptFromTracks(ctx, client, tracks, langs)
	return res, nil
}

// WatchPagePersona scrapes ytInitialPlayerResponse from the desktop watch page.
type WatchPagePersona struct {
	client *http.Client
	langs  []string
}

func NewWatchPagePersona(deps PersonaDeps) *WatchPagePersona {
	return &WatchPagePersona{client: deps.HTTPClient, langs: deps.Languages}
}

func (p *WatchPagePersona) Name() string { return "watchpage" }

var playerResponseMarkers = []string{"var ytInitialPlayerResponse = ", "ytInitialPlayerResponse = "}

func (p *WatchPagePersona) FetchVideo(ctx context.Context, videoID string) (*PersonaResult, error) {
	pageURL := ytWatchURL + "?v=" + videoID + "&hl=en"
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range engine.BrowserHeaders(pageURL) {
			req.Header.Set(k, v)
		}
		req.Header.Del("accept-encoding")
		req.Header.Set("Cookie", "CONSENT=YES+1")
		return p.client.Do(req)
	})
	if err != nil {
		return nil, httpFailure("watch page", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, engine.Classify(err, "read watch page")
	}
	page := string(body)

	var jsonData []byte
	for _, marker := range playerResponseMarkers {
		if idx := strings.Index(page, marker); idx >= 0 {
			jsonData = extractJSON(body[idx+len(marker):])
			break
		}
	}
	if jsonData == nil {
		if strings.Contains(page, "g-recaptcha") || strings.Contains(page, "Sign in to confirm") {
			return nil, engine.Blocked("the video site asked for a captcha or sign-in", nil)
		}
		return nil, engine.ParseFailure("ytInitialPlayerResponse not found in watch page", nil)
	}
	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return nil, engine.ParseFailure("decode ytInitialPlayerResponse", err)
	}
	return resultFromPlayer(ctx, p.client, &playerResp, videoID, p.langs)
}
