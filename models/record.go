package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/use-agent/gamedeck/pricing"
)

// GameType classifies a catalog entry. Exactly one value holds per record.
type GameType string

const (
	GameTypeOffer GameType = "Offer"
	GameTypeFree  GameType = "Free"
	GameTypeAll   GameType = "All"
)

// ClassifyGameType applies the catalog rule: a discount tag wins over the
// zero-price rule, and anything else is a regular listing.
func ClassifyGameType(onOffer bool, price float64) GameType {
	switch {
	case onOffer:
		return GameTypeOffer
	case price == 0:
		return GameTypeFree
	default:
		return GameTypeAll
	}
}

// Pricing is either WithoutDiscount or WithDiscount.
type Pricing interface {
	Current() float64
	isPricing()
}

// WithoutDiscount is a plain listed price.
type WithoutDiscount struct {
	Price float64
}

// WithDiscount carries the reconstructed pre-discount price.
type WithDiscount struct {
	Price    float64
	OldPrice float64
	Percent  float64
}

func (p WithoutDiscount) Current() float64 { return p.Price }
func (p WithDiscount) Current() float64    { return p.Price }

func (WithoutDiscount) isPricing() {}
func (WithDiscount) isPricing()    {}

// NewPricing builds the pricing variant for a card. A discount outside
// (0, 100) falls back to WithoutDiscount.
func NewPricing(current float64, percent *float64) Pricing {
	if percent == nil {
		return WithoutDiscount{Price: current}
	}
	old, ok := pricing.PreDiscount(current, *percent)
	if !ok {
		return WithoutDiscount{Price: current}
	}
	return WithDiscount{Price: current, OldPrice: old, Percent: *percent}
}

// Record is one normalized catalog entry.
//
// Records are built once by the extractor and never updated in place.
type Record struct {
	Title    string
	Pricing  Pricing
	GameType GameType
	URL      string
	ImgURL   string
	Platform string
}

// Price returns the current price in output format ("1234,56").
func (r Record) Price() string {
	if r.Pricing == nil {
		return pricing.Format(0)
	}
	return pricing.Format(r.Pricing.Current())
}

// Key is the identity of a catalog entry across views.
type Key struct {
	Title  string
	Price  string
	URL    string
	ImgURL string
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s-%s-%s", k.Title, k.Price, k.URL, k.ImgURL)
}

// Key returns the record's identity key.
func (r Record) Key() Key {
	return Key{Title: r.Title, Price: r.Price(), URL: r.URL, ImgURL: r.ImgURL}
}

// recordJSON is the wire shape consumed downstream. discountPercentage is
// always present (null without discount); oldPrice is omitted entirely.
type recordJSON struct {
	Price              string   `json:"price"`
	GameType           GameType `json:"gameType"`
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	ImgURL             string   `json:"imgUrl"`
	Platform           string   `json:"platform"`
	DiscountPercentage *string  `json:"discountPercentage"`
	OldPrice           *string  `json:"oldPrice,omitempty"`
}

// MarshalJSON flattens the pricing variant into the optional-field shape.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Price:    r.Price(),
		GameType: r.GameType,
		Title:    r.Title,
		URL:      r.URL,
		ImgURL:   r.ImgURL,
		Platform: r.Platform,
	}
	if d, ok := r.Pricing.(WithDiscount); ok {
		pct := pricing.FormatPercent(d.Percent)
		old := pricing.Format(d.OldPrice)
		out.DiscountPercentage = &pct
		out.OldPrice = &old
	}

	// URLs carry query strings; keep '&' readable instead of \u0026.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
