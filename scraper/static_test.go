package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/use-agent/gamedeck/extractor"
)

const staticCatalog = `<html><body><ul>
<li class="ProductCard-module__cardWrapper___6Ls86"><a href="/a">A</a></li>
<li class="ProductCard-module__cardWrapper___6Ls86"><a href="/b">B</a></li>
</ul></body></html>`

func TestStaticPage(t *testing.T) {
	ctx := context.Background()
	page := NewStaticPage()
	if err := page.SetDocument(ctx, staticCatalog); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}

	n, err := page.Count(ctx, extractor.DefaultSelectors().Card)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}
	if err := page.WaitVisible(ctx, extractor.DefaultSelectors().Card); err != nil {
		t.Errorf("WaitVisible: %v", err)
	}
	if err := page.WaitVisible(ctx, extractor.DefaultSelectors().LoadMore); err == nil {
		t.Error("WaitVisible on absent selector should fail")
	}
	if err := page.Click(ctx, extractor.DefaultSelectors().LoadMore); !errors.Is(err, ErrStaticPage) {
		t.Errorf("Click err = %v", err)
	}
	if html, _ := page.HTML(ctx); html != staticCatalog {
		t.Error("HTML should return the loaded markup")
	}

	cards, err := page.Document(ctx).Cards(extractor.DefaultSelectors().Card)
	if err != nil || len(cards) != 2 {
		t.Errorf("Cards = %d, %v", len(cards), err)
	}
}

func TestStaticPage_ExpandSettlesImmediately(t *testing.T) {
	page := NewStaticPage()
	_ = page.SetDocument(context.Background(), staticCatalog)

	exp, err := testDriver().Expand(context.Background(), page)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if exp.State != Settled || exp.Steps != 0 {
		t.Errorf("expansion = %+v", exp)
	}
}
