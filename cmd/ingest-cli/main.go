// Command ingest-cli runs one extraction against a product page URL
// and prints the normalized record as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/config"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/extract"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/fetcher"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

var (
	flagConfig   string
	flagSelector string
	flagWaitMS   int
	flagTimeout  int
	flagMode     string
	flagMinPx    int
	flagNoPNG    bool
	flagMarkdown bool
	flagSanitize bool
	flagMainOnly bool
	flagDebug    bool
	flagPretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest-cli <url>",
	Short: "Extract a normalized product record from one page",
	Long: `ingest-cli fetches a rendered product page, runs the extraction
pipeline, and prints the resulting record as JSON.

Examples:
  ingest-cli https://example.com/products/drv-880
  ingest-cli https://example.com/p/123 --selector "#main" --markdown --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to the ingest configuration file")
	rootCmd.Flags().StringVar(&flagSelector, "selector", "", "CSS selector to wait for before capture")
	rootCmd.Flags().IntVar(&flagWaitMS, "wait", 0, "Extra render wait in milliseconds")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Per-attempt render timeout in milliseconds")
	rootCmd.Flags().StringVar(&flagMode, "mode", "", "Render mode (fast or full)")
	rootCmd.Flags().IntVar(&flagMinPx, "minpx", 0, "Minimum inferred image dimension in pixels")
	rootCmd.Flags().BoolVar(&flagNoPNG, "excludepng", false, "Drop PNG image candidates")
	rootCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Render the description as Markdown")
	rootCmd.Flags().BoolVar(&flagSanitize, "sanitize", false, "Strip ad and tracking markup before harvesting")
	rootCmd.Flags().BoolVar(&flagMainOnly, "mainonly", false, "Reject candidates outside the main product scope")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "Include extraction warnings in the output")
	rootCmd.Flags().BoolVar(&flagPretty, "pretty", false, "Indent the JSON output")
}

func runIngest(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url %q (must include scheme, e.g. https://example.com)", rawURL)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	renderer, err := buildRenderer(cfg)
	if err != nil {
		return err
	}
	// One-shot invocation: no render cache.
	client := fetcher.NewClient(renderer, nil, fetcher.Options{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		InitialBackoff: cfg.Fetch.InitialBackoff.Duration,
		BackoffFactor:  cfg.Fetch.BackoffFactor,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		UserAgent:      cfg.Fetch.UserAgent,
		SSRFGuard:      cfg.Fetch.SSRFGuard,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := client.FetchRenderedHTML(ctx, types.RenderRequest{
		URL:       rawURL,
		Selector:  flagSelector,
		WaitMS:    flagWaitMS,
		TimeoutMS: flagTimeout,
		Mode:      flagMode,
	})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	minPx := cfg.Extract.MinImagePx
	if flagMinPx > 0 {
		minPx = flagMinPx
	}
	record, err := extract.Extract(result.HTML, rawURL, extract.Options{
		MinImagePx: minPx,
		ExcludePNG: flagNoPNG || cfg.Extract.ExcludePNG,
		Sanitize:   flagSanitize,
		Markdown:   flagMarkdown,
		MainOnly:   flagMainOnly,
		Debug:      flagDebug,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if flagPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(record)
}

func buildRenderer(cfg *config.Config) (fetcher.Renderer, error) {
	switch cfg.Render.Engine {
	case "chromedp", "chrome":
		return fetcher.NewChromedpRenderer(fetcher.ChromedpOptions{
			Timeout:            cfg.Render.Timeout.Duration,
			UserAgent:          cfg.Fetch.UserAgent,
			MaxBodyBytes:       cfg.Fetch.MaxBodyBytes,
			ConcurrentSessions: cfg.Render.Sessions,
		}), nil
	default:
		return fetcher.NewRemoteRenderer(fetcher.RemoteOptions{
			BaseURL:      cfg.Render.BaseURL,
			Token:        cfg.Render.Token,
			Timeout:      cfg.Render.Timeout.Duration,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
