package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	FetchTimeout         time.Duration
	MaxContentChars      int
	Languages            []string // caption preference: primary UI language first
	PersonaOrder         []string
	MaxPersonas          int
	OCRLanguages         []string
	TesseractPath        string
	YouTubeAPIKey        string
	GeminiModel          string
	LLMAPIBase           string
	LLMModel             string
	LLMTemperature       float64
	LLMMaxTokens         int
	SpreadsheetURL       string
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	HTTPClient           *http.Client
	BrowserClient        *BrowserClient // nil = plain net/http page fetches
}

// Fetch timeout bounds for web page extraction.
const (
	MinFetchTimeout = 15 * time.Second
	MaxFetchTimeout = 30 * time.Second
)

var cfg = defaults()

// Cfg exposes the engine configuration for sub-packages (files, sources, ai).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Zero fields fall back to defaults; the fetch timeout is clamped to 15-30s.
func Init(c Config) {
	d := defaults()
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	c.FetchTimeout = min(max(c.FetchTimeout, MinFetchTimeout), MaxFetchTimeout)
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = d.MaxContentChars
	}
	if len(c.Languages) == 0 {
		c.Languages = d.Languages
	}
	if len(c.PersonaOrder) == 0 {
		c.PersonaOrder = d.PersonaOrder
	}
	if c.MaxPersonas <= 0 {
		c.MaxPersonas = d.MaxPersonas
	}
	if len(c.OCRLanguages) == 0 {
		c.OCRLanguages = d.OCRLanguages
	}
	if c.TesseractPath == "" {
		c.TesseractPath = d.TesseractPath
	}
	if c.GeminiModel == "" {
		c.GeminiModel = d.GeminiModel
	}
	if c.HTTPClient == nil {
		c.HTTPClient = d.HTTPClient
	}
	cfg = c
	Cfg = &cfg
}

func defaults() Config {
	return Config{
		FetchTimeout:    20 * time.Second,
		MaxContentChars: 200000,
		Languages:       []string{"en", "id"},
		PersonaOrder:    []string{"android", "library"},
		MaxPersonas:     2,
		OCRLanguages:    []string{"eng", "ind"},
		TesseractPath:   "tesseract",
		GeminiModel:     "gemini-2.5-flash",
		HTTPClient:      newFetchClient(),
	}
}
