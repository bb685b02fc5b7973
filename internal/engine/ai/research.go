package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/sources"
)

// Research is a grounded summary for a research query.
type Research struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Researcher answers research queries with web-search grounding.
type Researcher struct {
	client *Client
}

func NewResearcher(c *Client) *Researcher {
	return &Researcher{client: c}
}

const researchPrompt = `You are an academic research assistant for a scholarly library. Today is %s.
Provide a deep, structured summary for the research query: %q.
Include key concepts, recent developments, and potential areas for further study. Use Markdown.`

func (r *Researcher) Research(ctx context.Context, query string) (*Research, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("research: empty query")
	}
	resp, err := r.client.Generate(ctx, Request{
		Prompt: fmt.Sprintf(researchPrompt, time.Now().UTC().Format("2006-01-02"), query),
		Search: true,
	})
	if err != nil {
		return nil, err
	}
	out := &Research{Text: resp.Text, Sources: resp.Sources}
	if out.Text == "" {
		out.Text = "No response received."
	}
	for i := range out.Sources {
		if out.Sources[i].Title == "" {
			out.Sources[i].Title = "Reference"
		}
	}
	return out, nil
}

// VideoEnricher backfills video metadata through a search-grounded model call.
type VideoEnricher struct {
	client *Client
}

func NewVideoEnricher(c *Client) *VideoEnricher {
	return &VideoEnricher{client: c}
}

var _ sources.Enricher = (*VideoEnricher)(nil)

var enrichmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"year":           {Type: genai.TypeString},
		"keywords":       {Type: genai.TypeString, Description: "Comma separated keywords"},
		"contentSummary": {Type: genai.TypeString, Description: "A transcript-like detailed summary"},
		"author":         {Type: genai.TypeString},
	},
	Required: []string{"year", "keywords", "contentSummary"},
}

type enrichmentJSON struct {
	Year           string `json:"year"`
	Keywords       string `json:"keywords"`
	ContentSummary string `json:"contentSummary"`
	Author         string `json:"author"`
}

const enrichPrompt = `Analyze this video link: %s
Known title: %q
Find the following information using Google Search:
1. Exact upload year.
2. Keywords or tags used by the creator.
3. A detailed content overview or transcript-like summary of what is discussed in the video.
4. The creator or author.

Return the data as clean JSON.`

func (e *VideoEnricher) EnrichVideo(ctx context.Context, videoURL string, meta engine.VideoMetadata) (*sources.Enrichment, error) {
	resp, err := e.client.Generate(ctx, Request{
		Prompt: fmt.Sprintf(enrichPrompt, videoURL, meta.Title),
		Schema: enrichmentSchema,
		Search: true,
	})
	if err != nil {
		return nil, err
	}
	var raw enrichmentJSON
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &raw); err != nil {
		return nil, fmt.Errorf("parse enrichment: %w", err)
	}
	out := &sources.Enrichment{
		Year:           strings.TrimSpace(raw.Year),
		Author:         strings.TrimSpace(raw.Author),
		ContentSummary: strings.TrimSpace(raw.ContentSummary),
	}
	for _, k := range strings.Split(raw.Keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out.Keywords = append(out.Keywords, k)
		}
	}
	return out, nil
}
