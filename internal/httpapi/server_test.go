package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/engine/sources"
	"github.com/anatolykoptev/go_scholar/internal/extract"
)

type stubVideo struct {
	res *engine.VideoExtractionResult
	err error
	got string
}

func (s *stubVideo) Extract(_ context.Context, u string) (*engine.VideoExtractionResult, error) {
	s.got = u
	return s.res, s.err
}

type stubFiles struct{ text string }

func (s stubFiles) Extract(context.Context, []byte, string, string, files.ProgressFunc) (string, error) {
	return s.text, nil
}

func newTestHandler(v *stubVideo, web extract.WebFunc) http.Handler {
	return NewHandler(Deps{
		Orchestrator: extract.New(extract.Deps{Files: stubFiles{text: "uploaded text"}, Web: web, Video: v}),
		Video:        v,
		Web:          web,
	})
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestVideoNoCaptionsIsPartialSuccess(t *testing.T) {
	v := &stubVideo{res: &engine.VideoExtractionResult{
		VideoID: "dQw4w9WgXcQ",
		VideoMetadata: engine.VideoMetadata{
			Title: "Reef Survey", Author: "Ocean Lab", DurationSeconds: 212,
			PublishDate: "2009-10-25", Keywords: []string{"reef", "survey"},
		},
	}}
	h := newTestHandler(v, nil)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/extract?url=https://youtu.be/dQw4w9WgXcQ", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", v.got)
	assert.Equal(t, "partial_success", body["status"])
	assert.Equal(t, false, body["hasTranscript"])
	assert.Equal(t, "dQw4w9WgXcQ", body["video_id"])

	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "Reef Survey", meta["title"])
	assert.Equal(t, "2009", meta["year"])
	assert.Equal(t, "reef, survey", meta["keywords"])
	assert.Equal(t, "YouTube", meta["publisher"])
	assert.EqualValues(t, 212, meta["duration"])
}

func TestVideoWithTranscript(t *testing.T) {
	v := &stubVideo{res: &engine.VideoExtractionResult{
		VideoID: "dQw4w9WgXcQ", HasTranscript: true, Transcript: "[0:00] hello",
		VideoMetadata: engine.VideoMetadata{Title: "T"},
	}}
	rec, body := do(t, newTestHandler(v, nil), httptest.NewRequest(http.MethodGet, "/extract?url=dQw4w9WgXcQ", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "[0:00] hello", body["transcript"])
	assert.Equal(t, true, body["hasTranscript"])
}

func TestVideoErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantManual bool
	}{
		{"missing url", "", nil, http.StatusBadRequest, false},
		{"invalid id", "url=https://example.org/x", engine.NotFound("no video ID", true, sources.ErrInvalidVideoID), http.StatusBadRequest, true},
		{"blocked", "url=dQw4w9WgXcQ", engine.Blocked("bot check", nil), http.StatusForbidden, true},
		{"not found", "url=dQw4w9WgXcQ", engine.NotFound("video unavailable", true, nil), http.StatusNotFound, true},
		{"timeout", "url=dQw4w9WgXcQ", engine.Timeout("slow", true, context.DeadlineExceeded), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubVideo{err: tt.err}, nil)
			rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/extract?"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, tt.wantManual, body["recommendManualEntry"])
		})
	}
}

func TestWebExtract(t *testing.T) {
	web := func(_ context.Context, u string) (*engine.WebPage, error) {
		if strings.Contains(u, "wall") {
			return nil, engine.Blocked("403 from example.org", nil)
		}
		return &engine.WebPage{URL: u, Title: "Reef", Byline: "A. Writer", Text: "Body."}, nil
	}
	h := newTestHandler(&stubVideo{}, web)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/web_extract?url=https://example.org/reef", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Reef", body["title"])
	assert.Equal(t, "Body.", body["textContent"])
	assert.Equal(t, "A. Writer", body["byline"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/web_extract?url=https://example.org/wall", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "blocked", body["kind"])
	assert.Equal(t, true, body["recommendManualEntry"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/web_extract", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "URL is required", body["error"])
}

func TestFileExtract(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	fmt.Fprint(fw, "ignored by stub")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/file_extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, body := do(t, newTestHandler(&stubVideo{}, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file", body["sourceType"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "notes", result["title"])
	assert.Equal(t, "uploaded text", result["text"])
}

func TestFileExtractMissingField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/file_extract", strings.NewReader(""))
	rec, body := do(t, newTestHandler(&stubVideo{}, nil), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, true, body["offerManualEntry"])
}

func TestSourceExtractRoutesVideo(t *testing.T) {
	v := &stubVideo{res: &engine.VideoExtractionResult{VideoID: "dQw4w9WgXcQ", HasTranscript: true, Transcript: "[0:01] hi"}}
	req := httptest.NewRequest(http.MethodPost, "/source_extract",
		strings.NewReader(`{"method":"link","value":"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))
	rec, body := do(t, newTestHandler(v, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", body["sourceType"])
	assert.Equal(t, "[0:01] hi", body["result"].(map[string]any)["text"])
}

func TestManualEntryEndpoint(t *testing.T) {
	h := newTestHandler(&stubVideo{}, nil)
	rec, body := do(t, h, httptest.NewRequest(http.MethodPost, "/manual_entry", strings.NewReader(`{"title":"Notes","text":"pasted  text"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pasted text", body["result"].(map[string]any)["text"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPost, "/manual_entry", strings.NewReader(`{"text":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware(t *testing.T) {
	h := newTestHandler(&stubVideo{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/extract", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(Deps{Orchestrator: extract.New(extract.Deps{}), Video: &stubVideo{}, RateLimit: 1, RateBurst: 1})
	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubVideo{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "video_requests ")
}
