package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/extractor"
	"github.com/use-agent/gamedeck/pipeline"
	"github.com/use-agent/gamedeck/scraper"
	"github.com/use-agent/gamedeck/snapshot"
)

var rootCmd = &cobra.Command{
	Use:           "gamedeck",
	Short:         "gamedeck scrapes the Xbox store catalog into a JSON price list.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig reads configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogger(cfg.Log)
	return cfg, nil
}

// app is everything a run needs, wired from configuration.
type app struct {
	runner  *pipeline.Runner
	browser *scraper.Browser
}

func (a *app) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
}

// newApp validates selectors and the proxy, launches the browser when
// enabled and wires the pipeline.
func newApp(cfg *config.Config) (*app, error) {
	sel := extractor.DefaultSelectors()
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	loader, err := scraper.NewDocumentLoader(cfg.Browser.DefaultProxy, cfg.Browser.AcceptLanguage, cfg.Scraper.FetchTimeout)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var opener pipeline.PageOpener = scraper.StaticOpener{}
	if cfg.Browser.Enabled {
		b, err := scraper.NewBrowser(cfg.Browser, cfg.Scraper)
		if err != nil {
			return nil, err
		}
		a.browser = b
		opener = b
	} else {
		slog.Warn("browser disabled: only document views run, and no load-more control is followed")
	}

	switch cfg.Scraper.ExtractMode {
	case pipeline.ModeSnapshot, pipeline.ModeLive:
	default:
		a.Close()
		return nil, fmt.Errorf("unknown extract mode %q", cfg.Scraper.ExtractMode)
	}

	a.runner = pipeline.New(
		opener,
		loader,
		scraper.NewDriver(sel, cfg.Scraper),
		extractor.New(sel),
		snapshot.New(cfg.Catalog.SnapshotDir),
		pipeline.Options{
			OutputDir:   cfg.Catalog.OutputDir,
			ExtractMode: cfg.Scraper.ExtractMode,
		},
	)
	return a, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
