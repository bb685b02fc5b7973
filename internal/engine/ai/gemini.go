package ai

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API. It supports inline binary parts,
// response schemas and Google Search grounding.
type GeminiBackend struct {
	Model      string
	HTTPClient *http.Client
}

func (g *GeminiBackend) Generate(ctx context.Context, key string, req Request) (*Response, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, b := range req.Blobs {
		parts = append(parts, genai.NewPartFromBytes(b.Data, b.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	conf := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		conf.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		conf.ResponseMIMEType = "application/json"
		conf.ResponseSchema = req.Schema
	}
	if req.Search {
		conf.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, contents, conf)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	out := &Response{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			out.Sources = append(out.Sources, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return out, nil
}
