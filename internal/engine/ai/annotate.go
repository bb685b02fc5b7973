package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// Citation holds one citation in two styles.
type Citation struct {
	APA     string `json:"apa"`
	Harvard string `json:"harvard"`
}

// Term is a difficult term with a plain explanation.
type Term struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
}

// Reference is a related work the model suggests.
type Reference struct {
	Citation  string `json:"citation"`
	Relevance string `json:"relevance"`
	Link      string `json:"link"`
}

// Annotation is the scholarly analysis of one source in one language.
type Annotation struct {
	Title                string      `json:"title"`
	AuthorName           string      `json:"authorName"`
	Year                 string      `json:"year"`
	Publisher            string      `json:"publisher"`
	Keyword              string      `json:"keyword"`
	TagLabel             string      `json:"tagLabel"`
	InTextCitation       Citation    `json:"inTextCitation"`
	InReferenceCitation  Citation    `json:"inReferenceCitation"`
	ResearchMethodology  string      `json:"researchMethodology"`
	Abstract             string      `json:"abstract"`
	Summary              string      `json:"summary"`
	Strength             string      `json:"strength"`
	Weakness             string      `json:"weakness"`
	UnfamiliarTerms      []Term      `json:"unfamiliarTerminology"`
	SupportingReferences []Reference `json:"supportingReferences"`
	TipsForYou           string      `json:"tipsForYou"`
}

// LocalizedAnnotation keeps source facts once and language-dependent text per language code.
type LocalizedAnnotation struct {
	Title                string            `json:"title"`
	AuthorName           string            `json:"authorName"`
	Year                 string            `json:"year"`
	Publisher            string            `json:"publisher"`
	Keyword              string            `json:"keyword"`
	TagLabel             string            `json:"tagLabel"`
	InTextCitation       Citation          `json:"inTextCitation"`
	InReferenceCitation  Citation          `json:"inReferenceCitation"`
	SupportingReferences []Reference       `json:"supportingReferences"`
	ResearchMethodology  map[string]string `json:"researchMethodology"`
	Abstract             map[string]string `json:"abstract"`
	Summary              map[string]string `json:"summary"`
	Strength             map[string]string `json:"strength"`
	Weakness             map[string]string `json:"weakness"`
	TipsForYou           map[string]string `json:"tipsForYou"`
	UnfamiliarTerms      map[string][]Term `json:"unfamiliarTerminology"`
}

// AnalyzeInput is the source handed to the annotator.
type AnalyzeInput struct {
	Method engine.SourceMethod
	Value  string
	// Text is the extracted content. When empty, File is sent inline instead.
	Text string
	File *Blob
}

var languageNames = map[string]string{
	"en": "English",
	"id": "Indonesian",
}

func languageName(code string) string {
	if n, ok := languageNames[strings.ToLower(code)]; ok {
		return n
	}
	return code
}

const annotateSystem = `You are a senior academic researcher and data analyst for a scholarly library.
Perform a high-level academic audit of the provided content.

OUTPUT LANGUAGE: %[1]s only. All summaries and evaluations must be written in %[1]s.
Title, author, publisher, year, keywords and citations follow the source's original facts. Keywords and tags are in English.

Rules:
1. SUMMARY: a comprehensive scholarly summary.
2. ABSTRACT: a concise academic abstract.
3. STRENGTH and WEAKNESS: scholarly value and limitations.
4. TERMINOLOGY: difficult terms explained simply.
5. CITATIONS: APA and Harvard.

Use only basic HTML tags for styling (<b>, <i>). Do not use markdown.
Return a raw JSON object that follows the provided schema.`

func stringSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func citationSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{
		"apa":     stringSchema(),
		"harvard": stringSchema(),
	}}
}

var annotationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":               stringSchema(),
		"authorName":          stringSchema(),
		"year":                stringSchema(),
		"publisher":           stringSchema(),
		"keyword":             stringSchema(),
		"tagLabel":            stringSchema(),
		"inTextCitation":      citationSchema(),
		"inReferenceCitation": citationSchema(),
		"researchMethodology": stringSchema(),
		"abstract":            stringSchema(),
		"summary":             stringSchema(),
		"strength":            stringSchema(),
		"weakness":            stringSchema(),
		"unfamiliarTerminology": {Type: genai.TypeArray, Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"term":        stringSchema(),
				"explanation": stringSchema(),
			},
		}},
		"supportingReferences": {Type: genai.TypeArray, Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"citation":  stringSchema(),
				"relevance": stringSchema(),
				"link":      stringSchema(),
			},
		}},
		"tipsForYou": stringSchema(),
	},
	Required: []string{
		"title", "authorName", "year", "publisher", "keyword", "tagLabel",
		"inTextCitation", "inReferenceCitation", "researchMethodology",
		"abstract", "summary", "strength", "weakness",
		"unfamiliarTerminology", "supportingReferences", "tipsForYou",
	},
}

// Annotator produces scholarly annotations from extracted text.
type Annotator struct {
	client *Client
}

func NewAnnotator(c *Client) *Annotator {
	return &Annotator{client: c}
}

// Analyze annotates the source in one language.
func (a *Annotator) Analyze(ctx context.Context, in AnalyzeInput, lang string) (*Annotation, error) {
	name := languageName(lang)
	content := in.Text
	if content == "" {
		content = "Source link: " + in.Value
	}
	req := Request{
		System: fmt.Sprintf(annotateSystem, strings.ToUpper(name)),
		Prompt: fmt.Sprintf("Perform a deep academic audit of this source.\nSource method: %s\nLanguage preference: %s\n\nCONTENT TO ANALYZE:\n%s",
			in.Method, name, content),
		Schema: annotationSchema,
	}
	if in.Text == "" && in.Method == engine.MethodUpload && in.File != nil {
		req.Blobs = []Blob{*in.File}
	}

	resp, err := a.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	var out Annotation
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &out); err != nil {
		return nil, fmt.Errorf("parse annotation: %w", err)
	}
	return &out, nil
}

// AnalyzeLocalized annotates the source once per language and merges the results.
// Source facts come from the first language; descriptive text is kept per language.
func (a *Annotator) AnalyzeLocalized(ctx context.Context, in AnalyzeInput, langs []string) (*LocalizedAnnotation, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("analyze: no languages requested")
	}
	out := &LocalizedAnnotation{
		ResearchMethodology: map[string]string{},
		Abstract:            map[string]string{},
		Summary:             map[string]string{},
		Strength:            map[string]string{},
		Weakness:            map[string]string{},
		TipsForYou:          map[string]string{},
		UnfamiliarTerms:     map[string][]Term{},
	}
	for i, lang := range langs {
		ann, err := a.Analyze(ctx, in, lang)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", lang, err)
		}
		if i == 0 {
			out.Title = ann.Title
			out.AuthorName = ann.AuthorName
			out.Year = ann.Year
			out.Publisher = ann.Publisher
			out.Keyword = ann.Keyword
			out.TagLabel = ann.TagLabel
			out.InTextCitation = ann.InTextCitation
			out.InReferenceCitation = ann.InReferenceCitation
			out.SupportingReferences = ann.SupportingReferences
		}
		out.ResearchMethodology[lang] = ann.ResearchMethodology
		out.Abstract[lang] = ann.Abstract
		out.Summary[lang] = ann.Summary
		out.Strength[lang] = ann.Strength
		out.Weakness[lang] = ann.Weakness
		out.TipsForYou[lang] = ann.TipsForYou
		out.UnfamiliarTerms[lang] = ann.UnfamiliarTerms
	}
	return out, nil
}
