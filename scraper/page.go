package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/extractor"
	"github.com/use-agent/gamedeck/models"
	"github.com/ysmood/gson"
)

// Page is the rendering capability a single catalog view needs.
// Implementations are not safe for concurrent use.
type Page interface {
	// Navigate loads url and waits for the DOM to settle.
	Navigate(ctx context.Context, url string) error

	// SetDocument replaces the page content with markup.
	SetDocument(ctx context.Context, markup string) error

	// WaitVisible blocks until an element matching selector is visible
	// or ctx ends.
	WaitVisible(ctx context.Context, selector string) error

	// Count returns how many elements currently match selector.
	Count(ctx context.Context, selector string) (int, error)

	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error

	// HTML returns the serialized current document.
	HTML(ctx context.Context) (string, error)

	// Document exposes the current document for record extraction.
	Document(ctx context.Context) extractor.Document

	// Close releases the page. It is safe to call more than once.
	Close() error
}

// rodPage is a Page backed by a browser tab.
type rodPage struct {
	page    *rod.Page
	router  *rod.HijackRouter
	cfg     config.ScraperConfig
	release func()
	once    sync.Once
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	timeout := p.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return categorizeError(err, "navigation to catalog URL failed")
	}
	if err := pg.WaitLoad(); err != nil {
		return categorizeError(err, "catalog page did not finish loading")
	}
	if stableErr := pg.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}
	return nil
}

func (p *rodPage) SetDocument(ctx context.Context, markup string) error {
	if err := p.page.Context(ctx).SetDocumentContent(markup); err != nil {
		return categorizeError(err, "failed to load static document")
	}
	return nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string) error {
	pg := p.page.Context(ctx)
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (p *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	pg := p.page.Context(ctx)
	has, el, err := pg.Has(selector)
	if err != nil {
		return err
	}
	if !has {
		return errors.New("no element matches " + selector)
	}
	if err := el.ScrollIntoView(); err != nil {
		slog.Debug("scroll into view failed", "selector", selector, "error", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to capture page HTML")
	}
	return html, nil
}

func (p *rodPage) Document(ctx context.Context) extractor.Document {
	return rodDocument{page: p.page.Context(ctx)}
}

func (p *rodPage) Close() error {
	var err error
	p.once.Do(func() {
		if p.router != nil {
			_ = p.router.Stop()
		}
		err = p.page.Close()
		if p.release != nil {
			p.release()
		}
	})
	return err
}

// rodDocument queries the live page. Every lookup is a round trip to the
// browser, so it is used only by the live extract mode.
type rodDocument struct {
	page *rod.Page
}

func (d rodDocument) Cards(selector string) ([]extractor.Card, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	cards := make([]extractor.Card, len(els))
	for i, el := range els {
		cards[i] = rodCard{el: el}
	}
	return cards, nil
}

type rodCard struct {
	el *rod.Element
}

func (c rodCard) Text(selector string) (string, bool, error) {
	has, el, err := c.el.Has(selector)
	if err != nil || !has {
		return "", false, err
	}
	text, err := el.Text()
	if err != nil {
		return "", true, err
	}
	return text, true, nil
}

func (c rodCard) Attr(selector, name string) (string, bool, error) {
	has, el, err := c.el.Has(selector)
	if err != nil || !has {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", true, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so reports and
// the API layer can tell timeouts from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
