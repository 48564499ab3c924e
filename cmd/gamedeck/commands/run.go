package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/models"
	"github.com/use-agent/gamedeck/pipeline"
	"github.com/use-agent/gamedeck/webhook"
)

var (
	runViews     string
	runDocuments string
	runOut       string
)

func init() {
	rootCmd.Flags().StringVar(&runViews, "views", "", `catalog URLs to scrape, "Platform=url,..."; a comma starts a new view only before "Label=http(s)://" (overrides GAMEDECK_VIEWS)`)
	rootCmd.Flags().StringVar(&runDocuments, "documents", "", `pre-fetched documents, "Platform=path-or-url,..."; a comma starts a new view only before "Label=" (overrides GAMEDECK_DOCUMENTS)`)
	rootCmd.Flags().StringVar(&runOut, "out", "", "output directory (overrides GAMEDECK_OUTPUT_DIR)")
	rootCmd.RunE = runOnce
}

// runOnce scrapes every view once and writes the merged file. Only a run
// that produced no output exits non-zero.
func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg); err != nil {
		return err
	}
	if err := pipeline.Validate(cfg.Catalog.Views); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.runner.SetNotifier(&webhook.Notifier{URL: cfg.Webhook.URL, Secret: cfg.Webhook.Secret})

	slog.Info("gamedeck run starting", "views", len(cfg.Catalog.Views), "out", cfg.Catalog.OutputDir)
	report := a.runner.Run(cmd.Context(), uuid.NewString()[:8], cfg.Catalog.Views)

	switch report.Status {
	case models.RunStatusFailed:
		return fmt.Errorf("run failed: %s", report.Error.Message)
	case models.RunStatusPartial:
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d games to %q; some views failed, see the log.\n", report.Total, report.OutputFile)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d games to %q.\n", report.Total, report.OutputFile)
	}
	return nil
}

// applyRunFlags lets command-line views and output dir replace the
// configured ones.
func applyRunFlags(cfg *config.Config) error {
	urls, err := config.ParseViews(runViews, false)
	if err != nil {
		return fmt.Errorf("--views: %w", err)
	}
	docs, err := config.ParseViews(runDocuments, true)
	if err != nil {
		return fmt.Errorf("--documents: %w", err)
	}
	if views := append(urls, docs...); len(views) > 0 {
		cfg.Catalog.Views = views
	}
	if runOut != "" {
		cfg.Catalog.OutputDir = runOut
	}
	return nil
}
