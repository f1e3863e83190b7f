// Package ditlep reads the ditlep.com dragon catalog.
package ditlep

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/models"
	"harvest/internal/sites"
)

func init() {
	sites.Register(&Site{name: "ditlep", extract: ExtractHatchingTokens})
	sites.Register(&Site{name: "ditlep.table", extract: ExtractHatchingRow})
}

const (
	listingContainer = "div.dragon-info-container"
	listingCode      = "div.dragon-info div.ng-binding b.text-danger.ng-binding"
	listingName      = "div.dragon-info div b.text-success.ng-binding"
	nextControl      = "li.pagination-next.ng-scope a.ng-binding"

	hatchingText = ".ng-binding"
	imageSource  = "div.top10.m-scroll.m-left-negative-10.m-right-negative-10.dragon-image.box-view div.ng-scope img[ng-src]"

	// HatchingRowLabel is the label cell of the hatching-time table row.
	HatchingRowLabel = "Tempo de incubação:"
)

// Site is a ditlep layout with a pluggable detail extractor.
type Site struct {
	name    string
	extract func(doc *goquery.Document) sites.Extraction
}

func (s *Site) Name() string { return s.name }

// ListingURL returns the code listing page.
func (s *Site) ListingURL(opts sites.Options) string {
	return strings.TrimRight(opts.BaseURL, "/") + "/code?lang=" + opts.Lang
}

// DetailURL returns the dragon page for t.
func (s *Site) DetailURL(opts sites.Options, t models.Target) string {
	return strings.TrimRight(opts.BaseURL, "/") + "/dragons/" + strings.Trim(t.URL, "/") + "?lang=" + opts.Lang
}

func (s *Site) ParseListing(doc *goquery.Document) []sites.Item {
	var items []sites.Item
	doc.Find(listingContainer).Each(func(_ int, c *goquery.Selection) {
		items = append(items, sites.Item{
			Code: strings.TrimSpace(c.Find(listingCode).First().Text()),
			Name: strings.TrimSpace(c.Find(listingName).First().Text()),
		})
	})
	return items
}

func (s *Site) NextSelector() string { return nextControl }

func (s *Site) HasNext(doc *goquery.Document) bool {
	next := doc.Find(nextControl).First()
	if next.Length() == 0 {
		return false
	}
	return !next.Parent().HasClass("disabled")
}

func (s *Site) Extract(doc *goquery.Document) (sites.Extraction, error) {
	return s.extract(doc), nil
}
