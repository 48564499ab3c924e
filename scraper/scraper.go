package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/models"
)

// Browser manages the Chrome process that renders catalog views.
// Each view gets its own page; the browser outlives all of them.
type Browser struct {
	browser     *rod.Browser
	browserCfg  config.BrowserConfig
	scraperCfg  config.ScraperConfig
	activePages atomic.Int32
}

// NewBrowser launches a browser with automation-detection flags removed.
func NewBrowser(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Browser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserLaunch,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserLaunch,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser:    browser,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}, nil
}

// OpenPage creates a fresh tab prepared for catalog scraping: stealth
// evasions, locale headers and resource blocking are installed before
// anything is loaded into it. The caller must Close the page.
func (b *Browser) OpenPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeViewInit,
			"failed to create page",
			err,
		)
	}
	// Drop the creation context; per-operation contexts are bound later.
	page = page.Context(context.Background())

	if b.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	if b.browserCfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Accept-Language": b.browserCfg.AcceptLanguage,
			}),
		}.Call(page)
	}

	router := setupHijack(page, b.scraperCfg.BlockedResourceTypes)

	b.activePages.Add(1)
	return &rodPage{
		page:    page,
		router:  router,
		cfg:     b.scraperCfg,
		release: func() { b.activePages.Add(-1) },
	}, nil
}

// ActivePages reports how many pages are currently open.
func (b *Browser) ActivePages() int {
	return int(b.activePages.Load())
}

// Close kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("closing browser", "activePages", b.ActivePages())
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}
