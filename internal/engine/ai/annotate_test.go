package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

type fakeBackend struct {
	reqs    []Request
	keys    []string
	respond func(req Request) (*Response, error)
}

func (f *fakeBackend) Generate(_ context.Context, key string, req Request) (*Response, error) {
	f.reqs = append(f.reqs, req)
	f.keys = append(f.keys, key)
	return f.respond(req)
}

func annotationFor(lang string) string {
	b, _ := json.Marshal(Annotation{
		Title:      "Coral Bleaching",
		AuthorName: "A. Author",
		Year:       "2021",
		Summary:    "summary-" + lang,
		Abstract:   "abstract-" + lang,
		UnfamiliarTerms: []Term{
			{Term: "zooxanthellae", Explanation: "algae-" + lang},
		},
	})
	return "```json\n" + string(b) + "\n```"
}

func TestAnnotatorAnalyzeLocalized(t *testing.T) {
	fb := &fakeBackend{respond: func(req Request) (*Response, error) {
		lang := "en"
		if strings.Contains(req.System, "INDONESIAN") {
			lang = "id"
		}
		return &Response{Text: annotationFor(lang)}, nil
	}}
	a := NewAnnotator(NewClient(StaticCredentials{"k"}, fb))

	out, err := a.AnalyzeLocalized(context.Background(), AnalyzeInput{
		Method: engine.MethodLink,
		Value:  "https://example.org/paper",
		Text:   "Extracted paper text.",
	}, []string{"en", "id"})
	require.NoError(t, err)

	assert.Equal(t, "Coral Bleaching", out.Title)
	assert.Equal(t, "2021", out.Year)
	assert.Equal(t, map[string]string{"en": "summary-en", "id": "summary-id"}, out.Summary)
	assert.Equal(t, "abstract-id", out.Abstract["id"])
	assert.Equal(t, "algae-id", out.UnfamiliarTerms["id"][0].Explanation)

	require.Len(t, fb.reqs, 2)
	assert.NotNil(t, fb.reqs[0].Schema)
	assert.Contains(t, fb.reqs[0].Prompt, "Extracted paper text.")
	assert.Empty(t, fb.reqs[0].Blobs)
}

func TestAnnotatorSendsFileWithoutText(t *testing.T) {
	fb := &fakeBackend{respond: func(Request) (*Response, error) {
		return &Response{Text: annotationFor("en")}, nil
	}}
	a := NewAnnotator(NewClient(StaticCredentials{"k"}, fb))

	_, err := a.Analyze(context.Background(), AnalyzeInput{
		Method: engine.MethodUpload,
		Value:  "scan.pdf",
		File:   &Blob{MIMEType: "application/pdf", Data: []byte("%PDF-1.4")},
	}, "en")
	require.NoError(t, err)
	require.Len(t, fb.reqs[0].Blobs, 1)
	assert.Equal(t, "application/pdf", fb.reqs[0].Blobs[0].MIMEType)
	assert.Contains(t, fb.reqs[0].Prompt, "Source link: scan.pdf")
}

func TestAnnotatorRotatesCredentials(t *testing.T) {
	fb := &fakeBackend{}
	fb.respond = func(Request) (*Response, error) {
		if len(fb.keys) == 1 {
			return nil, errors.New("RESOURCE_EXHAUSTED: quota exceeded")
		}
		return &Response{Text: annotationFor("en")}, nil
	}
	a := NewAnnotator(NewClient(StaticCredentials{"k1", "k2"}, fb))

	_, err := a.Analyze(context.Background(), AnalyzeInput{Method: engine.MethodLink, Text: "x"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, fb.keys)
}

func TestAnnotatorBadJSON(t *testing.T) {
	fb := &fakeBackend{respond: func(Request) (*Response, error) {
		return &Response{Text: "I cannot help with that."}, nil
	}}
	a := NewAnnotator(NewClient(StaticCredentials{"k"}, fb))
	_, err := a.Analyze(context.Background(), AnalyzeInput{Method: engine.MethodLink, Text: "x"}, "en")
	assert.ErrorContains(t, err, "parse annotation")
}

func TestResearcher(t *testing.T) {
	fb := &fakeBackend{respond: func(req Request) (*Response, error) {
		return &Response{Text: "## Findings", Sources: []Source{{URI: "https://a.example"}}}, nil
	}}
	r := NewResearcher(NewClient(StaticCredentials{"k"}, fb))

	out, err := r.Research(context.Background(), "  coral reef resilience ")
	require.NoError(t, err)
	assert.Equal(t, "## Findings", out.Text)
	assert.Equal(t, "Reference", out.Sources[0].Title)
	assert.True(t, fb.reqs[0].Search)
	assert.Contains(t, fb.reqs[0].Prompt, `"coral reef resilience"`)

	_, err = r.Research(context.Background(), " ")
	assert.Error(t, err)
}

func TestVideoEnricher(t *testing.T) {
	fb := &fakeBackend{respond: func(req Request) (*Response, error) {
		return &Response{Text: `{"year":"2019","keywords":"reef, coral ,, ocean","contentSummary":"Talk about reefs.","author":"Ocean Lab"}`}, nil
	}}
	e := NewVideoEnricher(NewClient(StaticCredentials{"k"}, fb))

	out, err := e.EnrichVideo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		engine.VideoMetadata{Title: "Reef Talk"})
	require.NoError(t, err)
	assert.Equal(t, "2019", out.Year)
	assert.Equal(t, []string{"reef", "coral", "ocean"}, out.Keywords)
	assert.Equal(t, "Ocean Lab", out.Author)
	assert.True(t, fb.reqs[0].Search)
	assert.NotNil(t, fb.reqs[0].Schema)
	assert.Contains(t, fb.reqs[0].Prompt, "Reef Talk")
}

func TestCompletionBackendRejectsBinary(t *testing.T) {
	b := &CompletionBackend{BaseURL: "http://127.0.0.1:0", Model: "m"}
	_, err := b.Generate(context.Background(), "k", Request{Prompt: "x", Blobs: []Blob{{MIMEType: "image/png"}}})
	assert.ErrorIs(t, err, errBinaryUnsupported)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", stripFences("  plain "))
}
