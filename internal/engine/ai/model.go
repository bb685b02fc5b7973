package ai

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// Blob is inline binary content sent alongside the prompt.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Request is a single generative call.
type Request struct {
	System string
	Prompt string
	Blobs  []Blob
	// Schema requests JSON output matching the schema when set.
	Schema *genai.Schema
	// Search enables web-search grounding where the backend supports it.
	Search      bool
	Temperature *float32
}

// Source is a web reference the model grounded its answer on.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Response is the model output.
type Response struct {
	Text    string
	Sources []Source
}

// Backend performs one model call with one credential.
type Backend interface {
	Generate(ctx context.Context, key string, req Request) (*Response, error)
}

// Client pairs a backend with the credential rotator.
type Client struct {
	rot     *Rotator
	backend Backend
}

func NewClient(src CredentialSource, backend Backend) *Client {
	return &Client{rot: NewRotator(src), backend: backend}
}

// Generate runs req, rotating credentials on quota errors.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	return Call(ctx, c.rot, func(ctx context.Context, key string) (*Response, error) {
		return c.backend.Generate(ctx, key, req)
	})
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
