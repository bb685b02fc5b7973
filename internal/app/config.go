// Package app reads configuration from the environment and wires the extractors,
// the model client and the credential store into the HTTP and MCP surfaces.
package app

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"

	"github.com/anatolykoptev/go_scholar/internal/engine"
)

// Model backends.
const (
	BackendGemini     = "gemini"
	BackendCompletion = "completion"
)

// Config is everything main needs to start the service.
type Config struct {
	Engine engine.Config

	APIPort string
	MCPPort string

	// ModelBackend selects gemini (native API, file uploads, search grounding)
	// or completion (OpenAI-compatible chat endpoint, text only).
	ModelBackend string
	// ModelKeys seed the credential pool when the store is empty or read-only.
	ModelKeys []string

	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	CacheTTL    time.Duration
	UseBrowser  bool
	// WebshareAPIKey enables the rotating proxy pool for browser fetches.
	WebshareAPIKey string

	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// LoadConfig reads Config from the environment.
func LoadConfig() Config {
	return Config{
		Engine: engine.Config{
			FetchTimeout:         env.Duration("FETCH_TIMEOUT", 20*time.Second),
			MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 200000),
			Languages:            env.List("CAPTION_LANGUAGES", "en,id"),
			PersonaOrder:         env.List("VIDEO_PERSONAS", "android,library"),
			MaxPersonas:          env.Int("VIDEO_MAX_PERSONAS", 2),
			OCRLanguages:         env.List("OCR_LANGUAGES", "eng,ind"),
			TesseractPath:        env.Str("TESSERACT_PATH", "tesseract"),
			YouTubeAPIKey:        env.Str("YOUTUBE_API_KEY", ""),
			GeminiModel:          env.Str("GEMINI_MODEL", "gemini-2.5-flash"),
			LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
			LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
			LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.2),
			LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 8192),
			SpreadsheetURL:       env.Str("SPREADSHEET_URL", ""),
			CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
			CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
			HTTPClient: &http.Client{
				Timeout: 30 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        20,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     60 * time.Second,
				},
			},
		},
		APIPort:        env.Str("API_PORT", "8892"),
		MCPPort:        env.Str("MCP_PORT", "8893"),
		ModelBackend:   env.Str("MODEL_BACKEND", BackendGemini),
		ModelKeys:      env.List("GEMINI_KEYS", ""),
		DatabaseURL:    env.Str("DATABASE_URL", ""),
		SQLitePath:     env.Str("SQLITE_PATH", ""),
		RedisURL:       env.Str("REDIS_URL", ""),
		CacheTTL:       env.Duration("CACHE_TTL", 6*time.Hour),
		UseBrowser:     env.Str("BROWSER_FETCH", "true") != "false",
		WebshareAPIKey: env.Str("WEBSHARE_API_KEY", ""),
		RateLimit:      env.Float("RATE_LIMIT", 5),
		RateBurst:      env.Int("RATE_BURST", 10),
		RequestTimeout: env.Duration("REQUEST_TIMEOUT", 90*time.Second),
		MaxUploadBytes: int64(env.Int("MAX_UPLOAD_MB", 32)) << 20,
	}
}
