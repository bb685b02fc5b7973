// go_scholar extracts text from research sources (files, web pages, YouTube videos,
// shared Drive files) and annotates them with a key-rotating model client.
//
// Serves the extraction HTTP API on API_PORT and MCP tools on MCP_PORT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_scholar/internal/app"
	"github.com/anatolykoptev/go_scholar/internal/engine"
)

var version = "dev"

func main() {
	cfg := app.LoadConfig()

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	slog.Info("starting go_scholar",
		slog.String("api_port", cfg.APIPort),
		slog.String("mcp_port", cfg.MCPPort),
	)

	api := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           a.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
	}
	go func() {
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", slog.Any("error", err))
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_scholar",
		Version: version,
	}, nil)
	slog.Info("tools registered", slog.Int("count", a.RegisterTools(server)))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_scholar",
		Version:      version,
		Port:         cfg.MCPPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		slog.Warn("api shutdown", slog.Any("error", err))
	}
}
