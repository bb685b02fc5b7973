// Command scholar-extract runs one extraction locally and prints the outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_scholar/internal/app"
	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/extract"
)

var (
	flagTimeout  time.Duration
	flagProgress bool
	flagCompact  bool
)

var rootCmd = &cobra.Command{
	Use:   "scholar-extract",
	Short: "Extract text from research sources",
	Long: `scholar-extract pulls readable text out of a local file, a web page or a
YouTube video and prints the extraction outcome as JSON.

Configuration is read from the same environment variables as the server.

Examples:
  scholar-extract file ./paper.pdf
  scholar-extract web https://example.org/article
  scholar-extract video https://youtu.be/dQw4w9WgXcQ`,
	SilenceUsage: true,
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Extract text from a PDF, DOCX, PPTX, XLSX, XLS, CSV, image or text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return run(cmd, engine.SourceDescriptor{
			Method:           engine.MethodUpload,
			Value:            args[0],
			RawBytes:         raw,
			FileName:         filepath.Base(args[0]),
			DeclaredMIMEType: mime.TypeByExtension(filepath.Ext(args[0])),
		})
	},
}

var webCmd = &cobra.Command{
	Use:   "web <url>",
	Short: "Extract the main article text of a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, engine.SourceDescriptor{Method: engine.MethodLink, Value: args[0]})
	},
}

var videoCmd = &cobra.Command{
	Use:   "video <url>",
	Short: "Extract metadata and the timestamped transcript of a YouTube video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, engine.SourceDescriptor{Method: engine.MethodLink, Value: args[0]})
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Overall extraction deadline")
	rootCmd.PersistentFlags().BoolVar(&flagProgress, "progress", false, "Print progress stages to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "Print JSON on one line")
	rootCmd.AddCommand(fileCmd, webCmd, videoCmd)
}

func run(cmd *cobra.Command, d engine.SourceDescriptor) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	a, err := app.Build(ctx, app.LoadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	var progress files.ProgressFunc
	if flagProgress {
		progress = func(p files.Progress) { fmt.Fprintln(cmd.ErrOrStderr(), p.String()) }
	}
	out := a.Orchestrator.Run(ctx, d, progress)
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if out.Failure != nil {
		return fmt.Errorf("%s extraction failed: %s", out.Type, out.Failure.Kind)
	}
	return nil
}

func printJSON(w io.Writer, out extract.Outcome) error {
	enc := json.NewEncoder(w)
	if !flagCompact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
