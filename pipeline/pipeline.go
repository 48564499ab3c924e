// Package pipeline runs catalog views one after another through
// render → paginate → capture → extract → merge, then writes the merged
// catalog once all views are done.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/gamedeck/catalog"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/exporter"
	"github.com/use-agent/gamedeck/extractor"
	"github.com/use-agent/gamedeck/models"
	"github.com/use-agent/gamedeck/scraper"
	"github.com/use-agent/gamedeck/snapshot"
)

// Extract modes.
const (
	ModeSnapshot = "snapshot" // parse the captured HTML
	ModeLive     = "live"     // query the page in place
)

// PageOpener hands out one fresh page per view.
type PageOpener interface {
	OpenPage(ctx context.Context) (scraper.Page, error)
}

// DocumentLoader reads pre-fetched markup for document views.
type DocumentLoader interface {
	Load(ctx context.Context, source string) (string, error)
}

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, report *models.RunReport)
}

// Options are the per-runner settings.
type Options struct {
	OutputDir   string
	ExtractMode string
}

// Runner executes runs. A Runner is not safe for concurrent Run calls;
// callers serialize runs.
type Runner struct {
	opener    PageOpener
	loader    DocumentLoader
	driver    *scraper.Driver
	extractor *extractor.Extractor
	snapshots *snapshot.Store
	notifier  Notifier
	opts      Options
}

// New creates a Runner.
func New(
	opener PageOpener,
	loader DocumentLoader,
	driver *scraper.Driver,
	ext *extractor.Extractor,
	snapshots *snapshot.Store,
	opts Options,
) *Runner {
	if opts.ExtractMode == "" {
		opts.ExtractMode = ModeSnapshot
	}
	return &Runner{
		opener:    opener,
		loader:    loader,
		driver:    driver,
		extractor: ext,
		snapshots: snapshots,
		opts:      opts,
	}
}

// SetNotifier installs the run-completion hook.
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// Run processes views in order and writes the merged result. It always
// returns a report; Status tells completed, partial (some view failed) and
// failed (no output written) apart. A run whose every view failed without
// yielding a record is failed and writes nothing. Captured documents are removed before
// Run returns, whatever happened.
func (r *Runner) Run(ctx context.Context, id string, views []config.View) *models.RunReport {
	start := time.Now()
	report := &models.RunReport{
		ID:        id,
		Status:    models.RunStatusRunning,
		StartedAt: start.Unix(),
		Views:     make([]models.ViewReport, 0, len(views)),
	}
	logger := slog.With("run_id", id)

	defer func() {
		if err := r.snapshots.Cleanup(); err != nil {
			logger.Warn("snapshot cleanup incomplete", "error", err)
		}
	}()

	merger := catalog.NewMerger()
	for _, view := range views {
		vr := r.runView(ctx, view, merger)
		report.Views = append(report.Views, vr)
	}

	report.Records = merger.Records()
	report.Total = len(report.Records)

	if report.Total == 0 && allFailed(report.Views) {
		first := report.Views[0].Error
		report.Status = models.RunStatusFailed
		report.Error = &models.ErrorDetail{
			Code:    first.Code,
			Message: fmt.Sprintf("every view failed, first: %s", first.Message),
		}
		logger.Error("run failed: every view failed", "first_code", first.Code)
		r.finish(ctx, logger, report, start)
		return report
	}

	path, err := exporter.WriteFile(r.opts.OutputDir, report.Records)
	switch {
	case err != nil:
		report.Status = models.RunStatusFailed
		report.Error = models.DetailOf(err)
		logger.Error("run failed: output not written", "error", err)
	case anyFailed(report.Views):
		report.Status = models.RunStatusPartial
		report.OutputFile = path
	default:
		report.Status = models.RunStatusCompleted
		report.OutputFile = path
	}
	r.finish(ctx, logger, report, start)
	return report
}

// finish stamps the report, logs the outcome and notifies.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, report *models.RunReport, start time.Time) {
	report.FinishedAt = time.Now().Unix()

	logger.Info("run finished",
		"status", report.Status,
		"records", report.Total,
		"views", len(report.Views),
		"file", report.OutputFile,
		"durationMs", time.Since(start).Milliseconds(),
	)

	if r.notifier != nil {
		r.notifier.Notify(ctx, report)
	}
}

// runView takes one view through the pipeline. The page is closed on
// every path. An initialisation failure skips the view; a pagination
// failure still extracts whatever was rendered.
func (r *Runner) runView(ctx context.Context, view config.View, merger *catalog.Merger) (vr models.ViewReport) {
	start := time.Now()
	vr = models.ViewReport{Platform: view.Platform, Source: view.Source()}
	logger := slog.With("platform", view.Platform, "source", vr.Source)

	defer func() {
		vr.DurationMs = time.Since(start).Milliseconds()
		if vr.Error != nil {
			logger.Warn("view failed", "code", vr.Error.Code, "error", vr.Error.Message)
		} else {
			logger.Info("view done",
				"steps", vr.Steps,
				"extracted", vr.Extracted,
				"added", vr.Added,
				"duplicates", vr.Duplicates,
			)
		}
	}()

	page, err := r.opener.OpenPage(ctx)
	if err != nil {
		vr.Error = models.DetailOf(err)
		return vr
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("page close failed", "error", err)
		}
	}()

	if err := r.load(ctx, page, view); err != nil {
		vr.Error = models.DetailOf(err)
		return vr
	}
	if err := r.driver.WaitRendered(ctx, page); err != nil {
		vr.Error = models.DetailOf(err)
		return vr
	}

	exp, err := r.driver.Expand(ctx, page)
	vr.Steps = exp.Steps
	if err != nil {
		vr.Error = models.DetailOf(err)
		logger.Warn("pagination incomplete, extracting rendered cards", "steps", exp.Steps, "error", err)
	}

	doc, err := r.document(ctx, page, view.Platform)
	if err != nil {
		if vr.Error == nil {
			vr.Error = models.DetailOf(err)
		}
		return vr
	}

	res, err := r.extractor.Extract(doc, view.Platform)
	if err != nil {
		if vr.Error == nil {
			vr.Error = models.DetailOf(err)
		}
		return vr
	}
	vr.Extracted = len(res.Records)
	vr.Skipped = len(res.Skipped)
	vr.PriceAnomalies = res.PriceAnomalies

	stats := merger.Merge(res.Records)
	vr.Added, vr.Duplicates = stats.Added, stats.Duplicates
	return vr
}

func (r *Runner) load(ctx context.Context, page scraper.Page, view config.View) error {
	if view.URL != "" {
		return page.Navigate(ctx, view.URL)
	}
	if view.Document == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("view %q has neither url nor document", view.Platform), nil)
	}
	if r.loader == nil {
		return models.NewScrapeError(models.ErrCodeViewInit, "no document loader configured", nil)
	}
	markup, err := r.loader.Load(ctx, view.Document)
	if err != nil {
		return err
	}
	return page.SetDocument(ctx, markup)
}

// document captures the settled page and returns what to extract from.
func (r *Runner) document(ctx context.Context, page scraper.Page, platform string) (extractor.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to capture rendered document", err)
	}
	path, err := r.snapshots.Save(platform, html)

	if r.opts.ExtractMode == ModeLive {
		if err != nil {
			slog.Warn("snapshot not saved", "platform", platform, "error", err)
		}
		return page.Document(ctx), nil
	}

	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to save snapshot", err)
	}
	f, err := r.snapshots.Load(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to reopen snapshot", err)
	}
	defer f.Close()
	doc, err := extractor.ParseDocument(f)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse snapshot", err)
	}
	return doc, nil
}

func allFailed(views []models.ViewReport) bool {
	for _, v := range views {
		if !v.Failed() {
			return false
		}
	}
	return len(views) > 0
}

func anyFailed(views []models.ViewReport) bool {
	for _, v := range views {
		if v.Failed() {
			return true
		}
	}
	return false
}

// ErrNoViews is returned by Validate for an empty view list.
var ErrNoViews = errors.New("pipeline: no views configured")

// Validate checks that every view names a platform and exactly one source.
func Validate(views []config.View) error {
	if len(views) == 0 {
		return ErrNoViews
	}
	for i, v := range views {
		if v.Platform == "" {
			return fmt.Errorf("pipeline: view %d has no platform", i)
		}
		if (v.URL == "") == (v.Document == "") {
			return fmt.Errorf("pipeline: view %q must set exactly one of url and document", v.Platform)
		}
	}
	return nil
}
