package files

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const maxPartBytes = 64 << 20

func openZip(raw []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	return zr, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxPartBytes))
}

// extractDOCX returns word/document.xml paragraph text, one paragraph per line.
func extractDOCX(raw []byte) (string, error) {
	zr, err := openZip(raw)
	if err != nil {
		return "", err
	}
	idx := slices.IndexFunc(zr.File, func(f *zip.File) bool { return f.Name == "word/document.xml" })
	if idx < 0 {
		return "", errors.New("word/document.xml not found")
	}
	data, err := readPart(zr.File[idx])
	if err != nil {
		return "", err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		paragraphs []string
		para       strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, para.String())
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if para.Len() > 0 {
		paragraphs = append(paragraphs, para.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slidePart struct {
	num  int
	file *zip.File
}

// extractPPTX returns one line per slide with that slide's a:t runs joined by spaces.
// Slides are read in slide-number order, so slide10 follows slide9.
func extractPPTX(raw []byte, progress ProgressFunc) (string, error) {
	zr, err := openZip(raw)
	if err != nil {
		return "", err
	}

	var slides []slidePart
	for _, f := range zr.File {
		if m := slidePartRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slidePart{num: n, file: f})
		}
	}
	if len(slides) == 0 {
		if !slices.ContainsFunc(zr.File, func(f *zip.File) bool { return path.Dir(f.Name) == "ppt" }) {
			return "", errors.New("not a presentation package")
		}
		return "", nil
	}
	slices.SortFunc(slides, func(a, b slidePart) int { return a.num - b.num })

	lines := make([]string, 0, len(slides))
	for i, s := range slides {
		progress.Report("Reading slide", i+1, len(slides))
		data, err := readPart(s.file)
		if err != nil {
			return "", err
		}
		runs, err := slideTextRuns(data)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		lines = append(lines, strings.Join(runs, " "))
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
}

// slideTextRuns collects the text of every DrawingML a:t element.
func slideTextRuns(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		runs   []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return runs, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				cur.Reset()
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inText {
				inText = false
				if s := strings.TrimSpace(cur.String()); s != "" {
					runs = append(runs, s)
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}
