// Package files turns uploaded document bytes into plain text.
//
// Dispatch is by file extension first; the declared MIME type only decides
// when the extension is missing or unknown. Unknown formats yield empty text
// without error. A recognized format that fails to parse yields a ParseError.
package files

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// Format is a recognized document type.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatCSV     Format = "csv"
	FormatPPTX    Format = "pptx"
	FormatImage   Format = "image"
	FormatText    Format = "txt"
)

var extFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".xlsx": FormatXLSX,
	".xls":  FormatXLS,
	".csv":  FormatCSV,
	".pptx": FormatPPTX,
	".txt":  FormatText,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".gif":  FormatImage,
	".webp": FormatImage,
	".bmp":  FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
}

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   FormatDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         FormatXLSX,
	"application/vnd.ms-excel":                                                  FormatXLS,
	"text/csv":                                                                  FormatCSV,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": FormatPPTX,
	"text/plain": FormatText,
}

// DetectFormat picks the format for a file by extension, then by MIME type.
func DetectFormat(fileName, mimeType string) Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(fileName))]; ok {
		return f
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if strings.HasPrefix(mt, "image/") {
		return FormatImage
	}
	return mimeFormats[mt]
}

// Progress is one step of a long-running extraction.
type Progress struct {
	Stage   string
	Current int
	Total   int
}

func (p Progress) String() string {
	if p.Total > 0 {
		return fmt.Sprintf("%s %d of %d", p.Stage, p.Current, p.Total)
	}
	return p.Stage
}

// ProgressFunc receives progress notifications. It may be nil.
type ProgressFunc func(Progress)

func (fn ProgressFunc) Report(stage string, current, total int) {
	if fn != nil {
		fn(Progress{Stage: stage, Current: current, Total: total})
	}
}

// Extractor converts file bytes into plain text.
type Extractor struct {
	ocr OCR
}

// New creates an Extractor. A nil ocr disables image extraction with a ParseError.
func New(ocr OCR) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract returns the plain text of raw. It never returns partial text alongside an error.
func (e *Extractor) Extract(ctx context.Context, raw []byte, fileName, mimeType string, progress ProgressFunc) (text string, err error) {
	engine.IncrFileRequests()
	defer engine.TrackOperation("file_extract", time.Now())

	format := DetectFormat(fileName, mimeType)
	if format == FormatUnknown {
		slog.Debug("files: no extractor for format", slog.String("file", fileName), slog.String("mime", mimeType))
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = engine.ParseFailure(fmt.Sprintf("could not read %s file %q", format, fileName), fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			engine.RecordFailure(err)
		}
	}()

	switch format {
	case FormatPDF:
		text, err = extractPDF(raw, progress)
	case FormatDOCX:
		text, err = extractDOCX(raw)
	case FormatXLSX:
		text, err = extractXLSX(raw)
	case FormatXLS:
		text, err = extractXLS(raw)
	case FormatCSV:
		text, err = extractCSV(raw)
	case FormatPPTX:
		text, err = extractPPTX(raw, progress)
	case FormatImage:
		text, err = e.extractImage(ctx, raw, progress)
	case FormatText:
		text, err = extractText(raw)
	}
	if err != nil {
		if _, ok := engine.AsFailure(err); !ok {
			err = engine.ParseFailure(fmt.Sprintf("could not read %s file %q", format, fileName), err)
		}
		return "", err
	}
	return text, nil
}
