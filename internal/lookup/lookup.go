// Package lookup answers per-name questions over a scraped record set.
package lookup

import (
	"strings"

	"harvest/internal/models"
)

// Index finds records by name, ignoring case. When a name occurs more than
// once the first record wins.
type Index struct {
	byName map[string]models.Record
}

func NewIndex(records []models.Record) *Index {
	idx := &Index{byName: make(map[string]models.Record, len(records))}
	for _, r := range records {
		key := strings.ToLower(r.Name)
		if _, ok := idx.byName[key]; !ok {
			idx.byName[key] = r
		}
	}
	return idx
}

func (i *Index) Record(name string) (models.Record, bool) {
	r, ok := i.byName[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// FirstHatchingTime returns the first hatching entry of name, or "" when the
// record is missing or has none.
func (i *Index) FirstHatchingTime(name string) string {
	r, ok := i.Record(name)
	if !ok {
		return ""
	}
	return r.HatchingTimes.First()
}

// GoldPerLevel returns the hatching entries of name that describe gold income
// per level.
func (i *Index) GoldPerLevel(name string) []string {
	r, ok := i.Record(name)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range r.HatchingTimes.Items {
		if strings.HasPrefix(entry, "Level") && strings.HasSuffix(entry, "gold per minutes") {
			out = append(out, entry)
		}
	}
	return out
}
