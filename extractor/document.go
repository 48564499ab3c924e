package extractor

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is read access to a rendered catalog document.
type Document interface {
	// Cards returns every element matching selector, in document order.
	// An error means the document itself could not be queried.
	Cards(selector string) ([]Card, error)
}

// Card is read access to a single product card subtree.
type Card interface {
	// Text returns the rendered text of the first descendant matching
	// selector. found is false when no descendant matches.
	Text(selector string) (text string, found bool, err error)

	// Attr returns attribute name of the first descendant matching selector.
	Attr(selector, name string) (value string, found bool, err error)
}

// GoqueryDocument is a Document over parsed static markup.
type GoqueryDocument struct {
	doc *goquery.Document
}

// NewGoqueryDocument wraps an already parsed goquery document.
func NewGoqueryDocument(doc *goquery.Document) *GoqueryDocument {
	return &GoqueryDocument{doc: doc}
}

// ParseDocument parses markup into a GoqueryDocument.
func ParseDocument(r io.Reader) (*GoqueryDocument, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &GoqueryDocument{doc: goquery.NewDocumentFromNode(node)}, nil
}

// ParseString is ParseDocument for in-memory markup.
func ParseString(markup string) (*GoqueryDocument, error) {
	return ParseDocument(strings.NewReader(markup))
}

// Selection exposes the underlying goquery document root.
func (d *GoqueryDocument) Selection() *goquery.Selection {
	return d.doc.Selection
}

func (d *GoqueryDocument) Cards(selector string) ([]Card, error) {
	sel := d.doc.Find(selector)
	cards := make([]Card, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		cards = append(cards, goqueryCard{s: s})
	})
	return cards, nil
}

type goqueryCard struct {
	s *goquery.Selection
}

func (c goqueryCard) Text(selector string) (string, bool, error) {
	el := c.s.Find(selector).First()
	if el.Length() == 0 {
		return "", false, nil
	}
	return collapseSpace(el.Text()), true, nil
}

func (c goqueryCard) Attr(selector, name string) (string, bool, error) {
	el := c.s.Find(selector).First()
	if el.Length() == 0 {
		return "", false, nil
	}
	v, ok := el.Attr(name)
	return v, ok, nil
}

// collapseSpace approximates rendered text: runs of whitespace become a
// single space and the ends are trimmed.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
