package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// OCR recognizes text in an image.
type OCR interface {
	Recognize(ctx context.Context, img []byte, langs []string) (string, error)
}

// TesseractOCR shells out to the tesseract CLI, reading the image from stdin.
type TesseractOCR struct {
	Path string
}

// NewTesseractOCR returns an OCR backed by the tesseract binary at path.
func NewTesseractOCR(path string) *TesseractOCR {
	if path == "" {
		path = "tesseract"
	}
	return &TesseractOCR{Path: path}
}

// Available reports whether the tesseract binary can be found.
func (t *TesseractOCR) Available() bool {
	_, err := exec.LookPath(t.Path)
	return err == nil
}

func (t *TesseractOCR) Recognize(ctx context.Context, img []byte, langs []string) (string, error) {
	args := []string{"stdin", "stdout"}
	if len(langs) > 0 {
		args = append(args, "-l", strings.Join(langs, "+"))
	}
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Stdin = bytes.NewReader(img)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// extractImage validates the image header for decodable formats, then runs OCR.
func (e *Extractor) extractImage(ctx context.Context, raw []byte, progress ProgressFunc) (string, error) {
	if e.ocr == nil {
		return "", errors.New("no OCR engine configured")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil && !errors.Is(err, image.ErrFormat) {
		return "", fmt.Errorf("decode image: %w", err)
	}

	progress.Report("Recognizing text", 0, 0)
	text, err := e.ocr.Recognize(ctx, raw, engine.Cfg.OCRLanguages)
	if err != nil {
		if engine.IsTimeout(err) {
			return "", engine.Timeout("OCR timed out", true, err)
		}
		return "", err
	}
	progress.Report("Recognizing text", 1, 1)
	return engine.NormalizeWhitespace(text), nil
}

// extractText returns raw verbatim when it is valid UTF-8.
func extractText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("text file is not valid UTF-8")
	}
	return string(raw), nil
}
