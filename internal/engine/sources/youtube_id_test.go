package sources

import (
	"errors"
	"testing"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

func TestResolveVideoID(t *testing.T) {
	const want = "dQw4w9WgXcQ"
	tests := []struct {
		name string
		in   string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch extra params", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42s"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ"},
		{"short link with time", "https://youtu.be/dQw4w9WgXcQ?t=10"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{"live", "https://youtube.com/live/dQw4w9WgXcQ?feature=share"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"nocookie embed", "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ"},
		{"surrounding space", "  https://youtu.be/dQw4w9WgXcQ  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVideoID(tt.in)
			if err != nil {
				t.Fatalf("ResolveVideoID(%q) error: %v", tt.in, err)
			}
			if got != want {
				t.Errorf("ResolveVideoID(%q) = %q, want %q", tt.in, got, want)
			}
		})
	}
}

func TestResolveVideoIDRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"ten chars", "https://youtu.be/dQw4w9WgXc"},
		{"twelve chars", "https://www.youtube.com/watch?v=dQw4w9WgXcQQ"},
		{"channel page", "https://www.youtube.com/@somechannel"},
		{"other host", "https://vimeo.com/dQw4w9WgXcQ"},
		{"watch without v", "https://www.youtube.com/watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveVideoID(tt.in)
			if err == nil {
				t.Fatalf("ResolveVideoID(%q) succeeded, want error", tt.in)
			}
			f, ok := engine.AsFailure(err)
			if !ok || f.Kind != engine.KindNotFound {
				t.Fatalf("error = %v, want NotFound failure", err)
			}
			if !f.RecommendManualEntry {
				t.Error("invalid ID should recommend manual entry")
			}
			if !errors.Is(err, ErrInvalidVideoID) {
				t.Error("error should wrap ErrInvalidVideoID")
			}
		})
	}
}

func TestWatchURL(t *testing.T) {
	if got := WatchURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("WatchURL = %q", got)
	}
}
