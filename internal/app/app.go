package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/ai"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/engine/sources"
	"github.com/anatolykoptev/go_scholar/internal/extract"
	"github.com/anatolykoptev/go_scholar/internal/httpapi"
	"github.com/anatolykoptev/go_scholar/internal/scholarserver"
	"github.com/anatolykoptev/go_scholar/internal/settings"
	"github.com/anatolykoptev/go_scholar/internal/spreadsheet"
)

// newBrowserClient builds the Chrome-fingerprinted fetch client, routed through a
// Webshare proxy pool when WEBSHARE_API_KEY is set.
func newBrowserClient(c Config) (*engine.BrowserClient, error) {
	timeout := int(c.Engine.FetchTimeout.Seconds())
	if timeout <= 0 {
		timeout = 15
	}
	opts := []stealth.ClientOption{stealth.WithTimeout(timeout)}

	if c.WebshareAPIKey != "" {
		pool, err := proxypool.NewWebshare(c.WebshareAPIKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	return stealth.NewClient(opts...)
}

// App is the wired service.
type App struct {
	cfg Config

	Credentials  *settings.Pool
	Spreadsheet  *spreadsheet.Client
	Files        *files.Extractor
	Video        *sources.VideoExtractor
	Orchestrator *extract.Orchestrator
	Annotator    *ai.Annotator
	Researcher   *ai.Researcher

	closers []func()
}

// Build initializes the engine and constructs every component from c.
func Build(ctx context.Context, c Config) (*App, error) {
	if c.UseBrowser {
		bc, err := newBrowserClient(c)
		if err != nil {
			slog.Warn("stealth client init failed, using plain http", slog.Any("error", err))
		} else {
			c.Engine.BrowserClient = bc
			slog.Info("stealth browser client initialized")
		}
	}
	engine.Init(c.Engine)
	engine.InitCache(c.RedisURL, c.CacheTTL, engine.Cfg.CacheMaxEntries, engine.Cfg.CacheCleanupInterval)

	a := &App{cfg: c}
	a.Spreadsheet = spreadsheet.NewClient(engine.Cfg.SpreadsheetURL, engine.Cfg.HTTPClient)

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Credentials = settings.NewPool(store)
	a.seedCredentials(ctx)

	model := a.modelClient()
	a.Annotator = ai.NewAnnotator(model)
	a.Researcher = ai.NewResearcher(model)

	personas, err := sources.BuildPersonas(ctx, engine.Cfg.PersonaOrder, sources.PersonaDeps{
		HTTPClient:    engine.Cfg.HTTPClient,
		Languages:     engine.Cfg.Languages,
		YouTubeAPIKey: engine.Cfg.YouTubeAPIKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("video personas: %w", err)
	}
	a.Video = sources.NewVideoExtractor(personas, engine.Cfg.MaxPersonas, ai.NewVideoEnricher(model))

	ocr := files.NewTesseractOCR(engine.Cfg.TesseractPath)
	if !ocr.Available() {
		slog.Warn("tesseract not found, image OCR will fail", slog.String("path", ocr.Path))
	}
	a.Files = files.New(ocr)

	deps := extract.Deps{Files: a.Files, Video: a.Video}
	if engine.Cfg.SpreadsheetURL != "" {
		deps.Drive = a.Spreadsheet
	}
	a.Orchestrator = extract.New(deps)

	slog.Info("components ready",
		slog.Any("personas", engine.Cfg.PersonaOrder),
		slog.String("model_backend", c.ModelBackend),
		slog.Bool("drive", deps.Drive != nil),
	)
	return a, nil
}

// openStore picks the credential store: Postgres, then SQLite, then the spreadsheet
// web app, then the static key list.
func (a *App) openStore(ctx context.Context) (settings.Store, error) {
	switch {
	case a.cfg.DatabaseURL != "":
		pg, err := settings.ConnectPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		slog.Info("credential store: postgres")
		return pg, nil
	case a.cfg.SQLitePath != "":
		lite, err := settings.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		a.closers = append(a.closers, func() { lite.Close() })
		slog.Info("credential store: sqlite", slog.String("path", a.cfg.SQLitePath))
		return lite, nil
	case engine.Cfg.SpreadsheetURL != "":
		slog.Info("credential store: spreadsheet web app")
		return a.Spreadsheet, nil
	default:
		slog.Info("credential store: static", slog.Int("keys", len(a.cfg.ModelKeys)))
		return settings.StaticStore(a.cfg.ModelKeys), nil
	}
}

// seedCredentials writes the configured keys into an empty writable store.
func (a *App) seedCredentials(ctx context.Context) {
	if len(a.cfg.ModelKeys) == 0 {
		return
	}
	have, err := a.Credentials.Credentials(ctx)
	if err != nil {
		slog.Warn("credential pool load failed", slog.Any("error", err))
		return
	}
	if len(have) > 0 {
		return
	}
	if err := a.Credentials.Save(ctx, a.cfg.ModelKeys); err != nil {
		slog.Warn("credential seed failed", slog.Any("error", err))
	}
}

func (a *App) modelClient() *ai.Client {
	hc := &http.Client{Timeout: 120 * time.Second}
	var backend ai.Backend
	switch a.cfg.ModelBackend {
	case BackendCompletion:
		backend = &ai.CompletionBackend{
			BaseURL:     engine.Cfg.LLMAPIBase,
			Model:       engine.Cfg.LLMModel,
			MaxTokens:   engine.Cfg.LLMMaxTokens,
			Temperature: engine.Cfg.LLMTemperature,
			HTTPClient:  hc,
		}
	default:
		if a.cfg.ModelBackend != BackendGemini {
			slog.Warn("unknown model backend, using gemini", slog.String("backend", a.cfg.ModelBackend))
		}
		backend = &ai.GeminiBackend{Model: engine.Cfg.GeminiModel, HTTPClient: hc}
	}
	return ai.NewClient(a.Credentials, backend)
}

// HTTPHandler returns the extraction API.
func (a *App) HTTPHandler() http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Orchestrator:   a.Orchestrator,
		Video:          a.Video,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
		RequestTimeout: a.cfg.RequestTimeout,
		RateLimit:      a.cfg.RateLimit,
		RateBurst:      a.cfg.RateBurst,
	})
}

// RegisterTools adds the MCP tools and returns how many were registered.
func (a *App) RegisterTools(server *mcp.Server) int {
	return scholarserver.RegisterTools(server, scholarserver.Tools{
		Orchestrator: a.Orchestrator,
		Annotator:    a.Annotator,
		Researcher:   a.Researcher,
		Languages:    engine.Cfg.Languages,
	})
}

// Close releases stores opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
