package files

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF joins each page's text tokens with single spaces and pages with a blank line.
func extractPDF(raw []byte, progress ProgressFunc) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		progress.Report("Reading page", i, total)
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if tokens := strings.Fields(pageText); len(tokens) > 0 {
			pages = append(pages, strings.Join(tokens, " "))
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
