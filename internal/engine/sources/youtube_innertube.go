package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// YouTube Innertube API: constants, wire types, and low-level HTTP primitives.
// Device personas built on these live in youtube_persona.go.

// Endpoints are variables so tests can point them at a local server.
var (
	ytPlayerURL = "https://www.youtube.com/youtubei/v1/player"
	ytWatchURL  = "https://www.youtube.com/watch"
)

const (
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
	ytIOSVersion     = "20.10.4"
	ytIOSUA          = "com.google.ios.youtube/" + ytIOSVersion + " (iPhone16,2; U; CPU iOS 18_3_2 like Mac OS X;)"
	ytTVVersion      = "2.0"
	ytTVUA           = "Mozilla/5.0 (PlayStation; PlayStation 4/12.00) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.4 Safari/605.1.15"
)

// clientProfile is the device identity an Innertube persona presents.
type clientProfile struct {
	persona       string
	clientName    string
	clientVersion string
	clientID      string // X-Youtube-Client-Name
	userAgent     string
	androidSDK    int
	deviceModel   string
	osName        string
	osVersion     string
	embedded      bool
}

var (
	profileAndroid = clientProfile{
		persona: "android", clientName: "ANDROID", clientVersion: ytAndroidVersion, clientID: "3",
		userAgent: ytAndroidUA, androidSDK: 30, osName: "Android", osVersion: "11",
	}
	profileIOS = clientProfile{
		persona: "ios", clientName: "IOS", clientVersion: ytIOSVersion, clientID: "5",
		userAgent: ytIOSUA, deviceModel: "iPhone16,2", osName: "iPhone", osVersion: "18.3.2.22D82",
	}
	profileTV = clientProfile{
		persona: "tv", clientName: "TVHTML5_SIMPLY_EMBEDDED_PLAYER", clientVersion: ytTVVersion, clientID: "85",
		userAgent: ytTVUA, embedded: true,
	}
)

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client     innertubeClient      `json:"client"`
	ThirdParty *innertubeThirdParty `json:"thirdParty,omitempty"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	OSName            string `json:"osName,omitempty"`
	OSVersion         string `json:"osVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubeThirdParty struct {
	EmbedURL string `json:"embedUrl"`
}

type innertubePlayerResp struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		VideoID          string   `json:"videoId"`
		Title            string   `json:"title"`
		Author           string   `json:"author"`
		ShortDescription string   `json:"shortDescription"`
		LengthSeconds    string   `json:"lengthSeconds"`
		Keywords         []string `json:"keywords"`
		Thumbnail        struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	Microformat *struct {
		PlayerMicroformatRenderer struct {
			PublishDate string `json:"publishDate"`
			UploadDate  string `json:"uploadDate"`
		} `json:"playerMicroformatRenderer"`
	} `json:"microformat"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// captionTracks returns the caption track list, possibly empty.
func (r *innertubePlayerResp) captionTracks() []captionTrack {
	if r.Captions == nil {
		return nil
	}
	return r.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// metadata converts videoDetails and microformat into engine metadata.
// ok is false when the response carries no video details.
func (r *innertubePlayerResp) metadata() (engine.VideoMetadata, bool) {
	d := r.VideoDetails
	if d == nil || (d.Title == "" && d.Author == "") {
		return engine.VideoMetadata{}, false
	}
	meta := engine.VideoMetadata{
		Title:       d.Title,
		Author:      d.Author,
		Description: d.ShortDescription,
		Keywords:    d.Keywords,
	}
	meta.DurationSeconds, _ = strconv.Atoi(d.LengthSeconds)
	bestWidth := -1
	for _, t := range d.Thumbnail.Thumbnails {
		if t.Width > bestWidth {
			meta.ThumbnailURL, bestWidth = t.URL, t.Width
		}
	}
	if r.Microformat != nil {
		mf := r.Microformat.PlayerMicroformatRenderer
		meta.PublishDate = firstNonEmpty(mf.PublishDate, mf.UploadDate)
	}
	return meta, true
}

// playabilityFailure explains a response without video details.
func (r *innertubePlayerResp) playabilityFailure(id string) error {
	status, reason := "", ""
	if r.PlayabilityStatus != nil {
		status, reason = r.PlayabilityStatus.Status, r.PlayabilityStatus.Reason
	}
	msg := fmt.Sprintf("video %s: %s %s", id, status, reason)
	lower := strings.ToLower(reason)
	switch {
	case status == "ERROR" || strings.Contains(lower, "unavailable") || strings.Contains(lower, "does not exist"):
		return engine.NotFound(msg, true, nil)
	default:
		return engine.Blocked(msg, nil)
	}
}

// postPlayer POSTs to /player presenting the given device profile.
func postPlayer(ctx context.Context, client *http.Client, p clientProfile, videoID string) (*innertubePlayerResp, error) {
	ictx := innertubeCtx{Client: innertubeClient{
		ClientName:        p.clientName,
		ClientVersion:     p.clientVersion,
		AndroidSdkVersion: p.androidSDK,
		DeviceModel:       p.deviceModel,
		OSName:            p.osName,
		OSVersion:         p.osVersion,
		Hl:                "en",
		Gl:                "US",
	}}
	if p.embedded {
		ictx.ThirdParty = &innertubeThirdParty{EmbedURL: "https://www.youtube.com/embed/" + videoID}
	}
	reqBody, err := json.Marshal(innertubeReq{
		VideoID:        videoID,
		Context:        ictx,
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytPlayerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("X-Youtube-Client-Name", p.clientID)
		req.Header.Set("X-Youtube-Client-Version", p.clientVersion)
		return client.Do(req)
	})
	if err != nil {
		return nil, httpFailure(fmt.Sprintf("%s player", p.persona), err)
	}
	defer resp.Body.Close()

	var playerResp innertubePlayerResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&playerResp); err != nil {
		return nil, engine.ParseFailure("decode player response", err)
	}
	return &playerResp, nil
}

// httpFailure classifies an HTTP-level error from a video endpoint.
func httpFailure(what string, err error) error {
	switch code := engine.StatusCode(err); {
	case code == http.StatusForbidden || code == http.StatusTooManyRequests:
		return engine.Blocked(what+" refused the request", err)
	case code == http.StatusNotFound:
		return engine.NotFound(what+" returned 404", true, err)
	}
	return engine.Classify(err, what+" failed")
}

// extractJSON returns the balanced JSON object at the start of b.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
