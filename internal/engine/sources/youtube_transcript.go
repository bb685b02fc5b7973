package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// TranscriptSegment is one timed caption line.
type TranscriptSegment struct {
	StartMs int64
	Text    string
}

// FormatTranscript renders segments as "[m:ss] text" lines in chronological order.
// Minutes and seconds are integer floor divisions of the start time in milliseconds.
func FormatTranscript(segs []TranscriptSegment) string {
	sorted := slices.Clone(segs)
	slices.SortStableFunc(sorted, func(a, b TranscriptSegment) int {
		switch {
		case a.StartMs < b.StartMs:
			return -1
		case a.StartMs > b.StartMs:
			return 1
		}
		return 0
	})

	var sb strings.Builder
	for _, s := range sorted {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%d:%02d] %s", s.StartMs/60000, (s.StartMs/1000)%60, text)
	}
	return sb.String()
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack selects a caption track by language preference: each preferred language
// in order (manual before auto-generated), then the first usable track.
// ok is false when every track requires a PoToken.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		var auto *captionTrack
		for i, t := range usable {
			if !langMatches(t.LanguageCode, lang) {
				continue
			}
			if t.Kind != "asr" {
				return t, true
			}
			if auto == nil {
				auto = &usable[i]
			}
		}
		if auto != nil {
			return *auto, true
		}
	}
	return usable[0], true
}

// langMatches treats regional variants as the base language: "en-GB" matches "en".
func langMatches(code, lang string) bool {
	code, lang = strings.ToLower(code), strings.ToLower(lang)
	return code == lang || strings.HasPrefix(code, lang+"-")
}

type timedTextJSON3 struct {
	Events []struct {
		TStartMs int64 `json:"tStartMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// fetchTimedText downloads a caption track in json3 format.
func fetchTimedText(ctx context.Context, client *http.Client, baseURL string) ([]TranscriptSegment, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("caption url: %w", err)
	}
	q := u.Query()
	q.Set("fmt", "json3")
	u.RawQuery = q.Encode()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty timedtext response")
	}

	var tt timedTextJSON3
	if err := json.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext json3: %w", err)
	}

	segs := make([]TranscriptSegment, 0, len(tt.Events))
	for _, ev := range tt.Events {
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text != "" {
			segs = append(segs, TranscriptSegment{StartMs: ev.TStartMs, Text: text})
		}
	}
	if len(segs) == 0 {
		return nil, errors.New("caption track has no segments")
	}
	return segs, nil
}

// transcriptFromTracks picks a track and downloads it. With no tracks it returns
// (nil, nil); with tracks that cannot be downloaded it returns a Blocked failure.
func transcriptFromTracks(ctx context.Context, client *http.Client, tracks []captionTrack, langs []string) ([]TranscriptSegment, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	track, ok := pickTrack(tracks, langs)
	if !ok {
		return nil, engine.Blocked("every caption track requires a browser token", nil)
	}
	segs, err := fetchTimedText(ctx, client, track.BaseURL)
	if err != nil {
		return nil, engine.Blocked("captions exist but could not be downloaded", err)
	}
	return segs, nil
}
