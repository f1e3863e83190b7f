// Package sites holds the per-catalog knowledge the core treats as pluggable:
// where the listing lives, how to read it, and how to extract a detail page.
package sites

import (
	"github.com/PuerkitoBio/goquery"

	"harvest/internal/models"
)

// Options are the site-independent knobs passed to URL builders.
type Options struct {
	BaseURL string
	Lang    string
}

// Item is one entry read from a listing page.
type Item struct {
	Code string
	Name string
}

// Extraction is the raw result of querying one detail page.
type Extraction struct {
	HatchingTimes models.TextList
	ImageURLs     models.TextList
}

// Extractor queries a loaded detail document. It must not mutate doc.
type Extractor interface {
	Extract(doc *goquery.Document) (Extraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(doc *goquery.Document) (Extraction, error)

func (f ExtractorFunc) Extract(doc *goquery.Document) (Extraction, error) {
	return f(doc)
}

// Site describes one catalog layout.
type Site interface {
	Extractor

	Name() string
	ListingURL(opts Options) string
	DetailURL(opts Options, t models.Target) string

	// ParseListing returns the entries on a listing page in document order.
	ParseListing(doc *goquery.Document) []Item
	// NextSelector is the selector of the next-page control.
	NextSelector() string
	// HasNext reports whether the next-page control exists and is enabled.
	HasNext(doc *goquery.Document) bool
}
