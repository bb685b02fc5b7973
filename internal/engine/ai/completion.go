package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// CompletionBackend calls an OpenAI-compatible chat endpoint. Text only:
// binary parts are rejected and search grounding is ignored.
type CompletionBackend struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

var errBinaryUnsupported = errors.New("completion backend cannot take binary content")

func (b *CompletionBackend) Generate(ctx context.Context, key string, req Request) (*Response, error) {
	if len(req.Blobs) > 0 {
		return nil, errBinaryUnsupported
	}
	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	client := llm.NewClient(b.BaseURL, key, b.Model,
		llm.WithMaxTokens(b.MaxTokens),
		llm.WithTemperature(b.Temperature),
		llm.WithHTTPClient(hc),
	)

	prompt := req.Prompt
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, err
		}
		prompt += "\n\nRespond with a single JSON object matching this schema, no prose:\n" + string(schema)
	}
	var raw string
	var err error
	if req.Temperature != nil {
		raw, err = client.Complete(ctx, req.System, prompt, llm.WithChatTemperature(float64(*req.Temperature)))
	} else {
		raw, err = client.Complete(ctx, req.System, prompt)
	}
	if err != nil {
		return nil, err
	}
	text := raw
	if req.Schema != nil {
		text = stripFences(raw)
	}
	return &Response{Text: strings.TrimSpace(text)}, nil
}
