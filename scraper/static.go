package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/gamedeck/extractor"
	"github.com/use-agent/gamedeck/models"
)

// ErrStaticPage is returned for operations a static page cannot perform.
var ErrStaticPage = errors.New("scraper: static page does not execute scripts")

// StaticPage is a Page over markup parsed without a browser. Scripts never
// run, so it suits only documents whose catalog is already complete.
type StaticPage struct {
	doc    *extractor.GoqueryDocument
	markup string
}

// NewStaticPage returns an empty static page.
func NewStaticPage() *StaticPage {
	return &StaticPage{}
}

func (p *StaticPage) Navigate(context.Context, string) error {
	return models.NewScrapeError(models.ErrCodeNavigation, "cannot navigate without a browser", ErrStaticPage)
}

func (p *StaticPage) SetDocument(_ context.Context, markup string) error {
	doc, err := extractor.ParseString(markup)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeViewInit, "failed to parse static document", err)
	}
	p.doc, p.markup = doc, markup
	return nil
}

// WaitVisible succeeds only if selector already matches; nothing else will
// ever appear.
func (p *StaticPage) WaitVisible(ctx context.Context, selector string) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no element matches %s in static document", selector)
	}
	return nil
}

func (p *StaticPage) Count(_ context.Context, selector string) (int, error) {
	if p.doc == nil {
		return 0, nil
	}
	return p.doc.Selection().Find(selector).Length(), nil
}

func (p *StaticPage) Click(context.Context, string) error {
	return ErrStaticPage
}

func (p *StaticPage) HTML(context.Context) (string, error) {
	return p.markup, nil
}

func (p *StaticPage) Document(context.Context) extractor.Document {
	if p.doc == nil {
		doc, _ := extractor.ParseString("")
		return doc
	}
	return p.doc
}

func (p *StaticPage) Close() error { return nil }

// StaticOpener hands out StaticPages; it stands in for a Browser when
// browser rendering is disabled.
type StaticOpener struct{}

func (StaticOpener) OpenPage(context.Context) (Page, error) {
	return NewStaticPage(), nil
}
