package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/gamedeck/models"
	"github.com/use-agent/gamedeck/pricing"
)

// Extractor turns catalog cards into records. It is a pure read over the
// document's current state and never triggers pagination.
type Extractor struct {
	sel Selectors
}

// New creates an Extractor for the given selector set.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// Selectors returns the selector set in use.
func (x *Extractor) Selectors() Selectors {
	return x.sel
}

// CardError records a card that was skipped.
type CardError struct {
	Index int
	Err   error
}

// Result is the outcome of one extraction pass.
type Result struct {
	Records []models.Record
	Skipped []CardError

	// PriceAnomalies counts cards whose price text was present but did not
	// parse; their price is stored as zero.
	PriceAnomalies int
}

// Extract produces one record per card present in doc, stamped with
// platform. Cards missing their link or artwork are skipped and reported in
// Result.Skipped. A document-level query failure returns an
// EXTRACTION_FAILED error and no records; an empty catalog is not an error.
func (x *Extractor) Extract(doc Document, platform string) (*Result, error) {
	cards, err := doc.Cards(x.sel.Card)
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeExtraction,
			"failed to query catalog cards",
			err,
		)
	}

	res := &Result{Records: make([]models.Record, 0, len(cards))}
	for i, card := range cards {
		rec, anomaly, err := x.extractCard(card, platform)
		if err != nil {
			slog.Warn("skipping malformed card",
				"platform", platform,
				"index", i,
				"error", err,
			)
			res.Skipped = append(res.Skipped, CardError{Index: i, Err: err})
			continue
		}
		if anomaly != "" {
			res.PriceAnomalies++
			slog.Warn("unparseable price stored as zero",
				"platform", platform,
				"title", rec.Title,
				"text", anomaly,
			)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// extractCard reads a single card. anomaly carries the raw price text when it
// was present but unparseable.
func (x *Extractor) extractCard(card Card, platform string) (models.Record, string, error) {
	var anomaly string

	// ── 1. Current price ────────────────────────────────────────────
	priceText, hasPrice, err := card.Text(x.sel.Price)
	if err != nil {
		return models.Record{}, "", cardError("price", err)
	}
	current := 0.0
	if hasPrice {
		v, ok := pricing.ParseAmount(priceText)
		switch {
		case ok:
			current = v
		case strings.TrimSpace(priceText) != "":
			anomaly = priceText
		}
	}

	// ── 2-3. Discount tag presence decides the game type ────────────
	tagText, onOffer, err := card.Text(x.sel.DiscountTag)
	if err != nil {
		return models.Record{}, "", cardError("discount tag", err)
	}
	gameType := models.ClassifyGameType(onOffer, current)

	// ── 4-5. Discount value → pricing variant ───────────────────────
	var percent *float64
	if onOffer {
		if d, ok := pricing.ParseDiscount(tagText); ok && pricing.ValidDiscount(d) {
			percent = &d
		}
	}

	// ── 6. Title with single-line fallback ──────────────────────────
	title, found, err := card.Text(x.sel.Title)
	if err != nil {
		return models.Record{}, "", cardError("title", err)
	}
	if !found {
		title, _, err = card.Text(x.sel.AltTitle)
		if err != nil {
			return models.Record{}, "", cardError("alternate title", err)
		}
	}

	// ── 7. Navigational data is mandatory ───────────────────────────
	href, err := requiredAttr(card, x.sel.Link, "href")
	if err != nil {
		return models.Record{}, "", err
	}
	src, err := requiredAttr(card, x.sel.BoxArt, "src")
	if err != nil {
		return models.Record{}, "", err
	}

	return models.Record{
		Title:    strings.ToUpper(title),
		Pricing:  models.NewPricing(current, percent),
		GameType: gameType,
		URL:      href,
		ImgURL:   src,
		Platform: platform,
	}, anomaly, nil
}

func requiredAttr(card Card, selector, name string) (string, error) {
	v, found, err := card.Attr(selector, name)
	if err != nil {
		return "", cardError(name, err)
	}
	if !found || strings.TrimSpace(v) == "" {
		return "", models.NewScrapeError(
			models.ErrCodeMalformedCard,
			fmt.Sprintf("missing %s on %s", name, selector),
			nil,
		)
	}
	return v, nil
}

func cardError(field string, err error) error {
	return models.NewScrapeError(
		models.ErrCodeMalformedCard,
		"failed to read "+field,
		err,
	)
}
