package extractor

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Selectors is the markup contract of the storefront's catalog listing.
// Class names are hashed by the site's build; a rename breaks extraction.
type Selectors struct {
	Card        string
	Price       string
	DiscountTag string
	Title       string
	AltTitle    string
	Link        string
	BoxArt      string
	LoadMore    string
}

// DefaultSelectors returns the selector set for the current catalog markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:        ".ProductCard-module__cardWrapper___6Ls86",
		Price:       ".ProductCard-module__price___cs1xr",
		DiscountTag: ".ProductCard-module__discountTag___OjGFy",
		Title:       ".ProductCard-module__title___nHGIp",
		AltTitle:    ".ProductCard-module__singleLineTitle___32jUF",
		Link:        ".commonStyles-module__basicButton___go-bX",
		BoxArt:      ".ProductCard-module__boxArt___-2vQY",
		LoadMore:    "button.commonStyles-module__basicButton___go-bX",
	}
}

// Validate compiles every selector so a typo fails at startup rather than
// silently matching nothing.
func (s Selectors) Validate() error {
	for _, f := range []struct{ name, sel string }{
		{"card", s.Card},
		{"price", s.Price},
		{"discount tag", s.DiscountTag},
		{"title", s.Title},
		{"alternate title", s.AltTitle},
		{"link", s.Link},
		{"box art", s.BoxArt},
		{"load more", s.LoadMore},
	} {
		if f.sel == "" {
			return fmt.Errorf("extractor: %s selector is empty", f.name)
		}
		if _, err := cascadia.Parse(f.sel); err != nil {
			return fmt.Errorf("extractor: invalid %s selector %q: %w", f.name, f.sel, err)
		}
	}
	return nil
}
