package sources

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// VideoIDLength is the length of every canonical video identifier.
const VideoIDLength = 11

// ErrInvalidVideoID is wrapped by the NotFound failure ResolveVideoID returns.
var ErrInvalidVideoID = errors.New("invalid video id")

// ResolveVideoID extracts the canonical 11-character ID from any supported URL shape:
// watch?v=, youtu.be/<id>, /shorts/<id>, /live/<id>, /embed/<id>, /v/<id>, or a bare ID.
// The only validity check is the length.
func ResolveVideoID(raw string) (string, error) {
	id := videoToken(strings.TrimSpace(raw))
	if len(id) != VideoIDLength {
		return "", engine.NotFound(fmt.Sprintf("could not resolve a video ID from %q", raw), true, ErrInvalidVideoID)
	}
	return id, nil
}

func videoToken(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "/") && !strings.Contains(raw, "?") {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, p)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtu.be":
		return segs[0]
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "live", "embed", "v", "e":
				return segs[1]
			}
		}
	}
	return ""
}

// WatchURL returns the canonical watch page URL for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
