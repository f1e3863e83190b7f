package ditlep

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/models"
	"harvest/internal/sites"
)

var timeUnits = []string{"day", "days", "hour", "hours", "minute", "minutes", "second", "seconds"}

// FilterHatchingTimes keeps texts mentioning a time unit, minus creation dates
// and descriptions. Order is preserved.
func FilterHatchingTimes(texts []string) []string {
	var out []string
	for _, text := range texts {
		if !containsUnit(text) {
			continue
		}
		if strings.HasPrefix(text, "Created:") || strings.HasPrefix(text, "Description") {
			continue
		}
		out = append(out, text)
	}
	return out
}

func containsUnit(text string) bool {
	for _, unit := range timeUnits {
		if strings.Contains(text, unit) {
			return true
		}
	}
	return false
}

// ExtractHatchingTokens scans every bound text element for time values.
func ExtractHatchingTokens(doc *goquery.Document) sites.Extraction {
	var texts []string
	doc.Find(hatchingText).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return sites.Extraction{
		HatchingTimes: models.List(FilterHatchingTimes(texts), models.HatchingNotFound),
		ImageURLs:     extractImages(doc),
	}
}

// ExtractHatchingRow reads the value cell of the labelled hatching-time row.
// When the label appears more than once the last row wins.
func ExtractHatchingRow(doc *goquery.Document) sites.Extraction {
	value := ""
	found := false
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() > 1 && strings.TrimSpace(cells.Eq(0).Text()) == HatchingRowLabel {
			value = strings.TrimSpace(cells.Eq(1).Text())
			found = true
		}
	})

	hatching := models.Missing(models.HatchingNotFound)
	if found {
		hatching = models.TextList{Items: []string{value}}
	}
	return sites.Extraction{
		HatchingTimes: hatching,
		ImageURLs:     extractImages(doc),
	}
}

func extractImages(doc *goquery.Document) models.TextList {
	var urls []string
	doc.Find(imageSource).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("ng-src"); ok {
			urls = append(urls, src)
		}
	})
	return models.List(urls, models.NoImages)
}
