// Package scholarserver exposes extraction, annotation and research as MCP tools.
package scholarserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/ai"
	"github.com/anatolykoptev/go_scholar/internal/extract"
)

// Tools holds the collaborators behind the MCP tools. Annotator and Researcher may be nil
// when no model backend is configured; their tools are then not registered.
type Tools struct {
	Orchestrator *extract.Orchestrator
	Annotator    *ai.Annotator
	Researcher   *ai.Researcher
	Languages    []string
}

// ExtractSourceInput is the input of extract_source.
type ExtractSourceInput struct {
	URL string `json:"url" jsonschema:"Web page, YouTube or Google Drive link to extract"`
}

// AnalyzeSourceInput is the input of analyze_source.
type AnalyzeSourceInput struct {
	URL       string   `json:"url,omitempty" jsonschema:"Link to extract and annotate"`
	Text      string   `json:"text,omitempty" jsonschema:"Already extracted text; skips extraction when set"`
	Languages []string `json:"languages,omitempty" jsonschema:"Annotation languages, e.g. en, id"`
}

// FailureInfo is a classified extraction failure.
type FailureInfo struct {
	Kind                 string `json:"kind"`
	Message              string `json:"message"`
	RecommendManualEntry bool   `json:"recommendManualEntry"`
}

// ExtractOutput is the tool view of an orchestrator outcome.
type ExtractOutput struct {
	SourceType       string                   `json:"sourceType,omitempty"`
	Result           *engine.ExtractionResult `json:"result,omitempty"`
	VideoID          string                   `json:"videoId,omitempty"`
	Failure          *FailureInfo             `json:"failure,omitempty"`
	OfferManualEntry bool                     `json:"offerManualEntry"`
}

func toExtractOutput(o extract.Outcome) ExtractOutput {
	out := ExtractOutput{SourceType: string(o.Type), Result: o.Result, OfferManualEntry: o.OfferManualEntry}
	if o.Video != nil {
		out.VideoID = o.Video.VideoID
	}
	if f := o.Failure; f != nil {
		out.Failure = &FailureInfo{Kind: f.Kind.String(), Message: f.Message, RecommendManualEntry: f.RecommendManualEntry}
	}
	return out
}

// AnalyzeSourceOutput pairs the extraction with its annotation.
type AnalyzeSourceOutput struct {
	Extraction *ExtractOutput          `json:"extraction,omitempty"`
	Annotation *ai.LocalizedAnnotation `json:"annotation"`
}

// ResearchQueryInput is the input of research_query.
type ResearchQueryInput struct {
	Query string `json:"query" jsonschema:"Research question or topic"`
}

// RegisterTools registers the scholar tools on server and returns how many were added.
func RegisterTools(server *mcp.Server, t Tools) int {
	n := 0
	if t.Orchestrator != nil {
		t.registerExtractSource(server)
		n++
	}
	if t.Annotator != nil {
		t.registerAnalyzeSource(server)
		n++
	}
	if t.Researcher != nil {
		t.registerResearchQuery(server)
		n++
	}
	return n
}

func (t Tools) registerExtractSource(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_source",
		Description: "Extract readable text from a research source link: a web article, a YouTube video (metadata and timestamped transcript) or a shared Google Drive file. Failures are classified (blocked, not_found, timeout, unsupported_format, parse_error) and say whether manual text entry is recommended.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ExtractSourceInput) (*mcp.CallToolResult, ExtractOutput, error) {
		if strings.TrimSpace(input.URL) == "" {
			return nil, ExtractOutput{}, fmt.Errorf("url is required")
		}
		return nil, toExtractOutput(t.Orchestrator.Run(ctx, link(input.URL), nil)), nil
	})
}

func (t Tools) registerAnalyzeSource(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_source",
		Description: "Produce a scholarly annotation of a source: bibliographic facts, APA and Harvard citations, methodology, abstract, summary, strengths, weaknesses, unfamiliar terms and supporting references, with descriptive fields in each requested language.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeSourceInput) (*mcp.CallToolResult, AnalyzeSourceOutput, error) {
		var out AnalyzeSourceOutput
		if strings.TrimSpace(input.URL) == "" && strings.TrimSpace(input.Text) == "" {
			return nil, out, fmt.Errorf("url or text is required")
		}
		langs := input.Languages
		if len(langs) == 0 {
			langs = t.Languages
		}

		in := ai.AnalyzeInput{Method: engine.MethodLink, Value: input.URL, Text: input.Text}
		if in.Text == "" && t.Orchestrator != nil {
			res := t.Orchestrator.Run(ctx, link(input.URL), nil)
			ext := toExtractOutput(res)
			out.Extraction = &ext
			if res.Result != nil {
				in.Text = engine.TruncateRunes(res.Result.Text, engine.Cfg.MaxContentChars, "...")
			} else {
				slog.Warn("analyze_source: extraction failed, annotating from link only",
					slog.String("url", input.URL), slog.Any("error", res.Failure))
			}
		}

		key := engine.CacheKey("analyze_source", input.URL, in.Text, strings.Join(langs, ","))
		if cached, ok := engine.CacheLoad[ai.LocalizedAnnotation](ctx, key); ok {
			out.Annotation = &cached
			return nil, out, nil
		}
		ann, err := t.Annotator.AnalyzeLocalized(ctx, in, langs)
		if err != nil {
			return nil, out, err
		}
		engine.CacheStore(ctx, key, ann)
		out.Annotation = ann
		return nil, out, nil
	})
}

func (t Tools) registerResearchQuery(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_query",
		Description: "Answer a research question with a structured Markdown summary grounded in web search. Returns the summary and the cited sources.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ResearchQueryInput) (*mcp.CallToolResult, *ai.Research, error) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, nil, fmt.Errorf("query is required")
		}
		return researchCached(ctx, t.Researcher, input.Query)
	})
}

func researchCached(ctx context.Context, r *ai.Researcher, query string) (*mcp.CallToolResult, *ai.Research, error) {
	key := engine.CacheKey("research_query", strings.ToLower(strings.TrimSpace(query)))
	if cached, ok := engine.CacheLoad[ai.Research](ctx, key); ok {
		return nil, &cached, nil
	}
	res, err := r.Research(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	engine.CacheStore(ctx, key, res)
	return nil, res, nil
}

func link(u string) engine.SourceDescriptor {
	return engine.SourceDescriptor{Method: engine.MethodLink, Value: strings.TrimSpace(u)}
}
