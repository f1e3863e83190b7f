// Package dedup reports duplicate values across a record set.
package dedup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"harvest/internal/models"
)

// Keying selects how list-valued fields are compared.
type Keying string

const (
	// Coarse flattens a list by joining its items with commas, so distinct
	// lists that print the same collide, and a sentinel equals a one-item
	// list holding the same text.
	Coarse Keying = "coarse"
	// Canonical encodes the kind and the sorted items, so only lists with the
	// same elements match.
	Canonical Keying = "canonical"
)

func ParseKeying(s string) (Keying, error) {
	switch k := Keying(strings.ToLower(strings.TrimSpace(s))); k {
	case Coarse, Canonical:
		return k, nil
	case "":
		return Coarse, nil
	}
	return "", fmt.Errorf("unknown dedup keying %q (want coarse or canonical)", s)
}

// Report lists the keys seen more than once per field, in first-seen order.
type Report struct {
	DuplicateNames         []string `json:"duplicateNames"`
	DuplicateIDs           []string `json:"duplicateIds"`
	DuplicateHatchingTimes []string `json:"duplicateHatchingTimes"`
	DuplicateImageURLs     []string `json:"duplicateImageUrls"`
}

// Empty reports whether no duplicates were found.
func (r Report) Empty() bool {
	return len(r.DuplicateNames) == 0 && len(r.DuplicateIDs) == 0 &&
		len(r.DuplicateHatchingTimes) == 0 && len(r.DuplicateImageURLs) == 0
}

// Key returns the report key of a list under k.
func (k Keying) Key(l models.TextList) string {
	if k != Canonical {
		return l.String()
	}
	if l.IsSentinel() {
		b, _ := json.Marshal([]string{"sentinel", l.Sentinel})
		return string(b)
	}
	items := append([]string(nil), l.Items...)
	sort.Strings(items)
	b, _ := json.Marshal(append([]string{"list"}, items...))
	return string(b)
}

// counter counts keys and remembers their first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter(n int) *counter {
	return &counter{counts: make(map[string]int, n)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) duplicates() []string {
	out := []string{}
	for _, key := range c.order {
		if c.counts[key] > 1 {
			out = append(out, key)
		}
	}
	return out
}

// Build scans records and returns their duplicate report. records is not
// modified.
func Build(records []models.Record, keying Keying) Report {
	names := newCounter(len(records))
	ids := newCounter(len(records))
	hatching := newCounter(len(records))
	images := newCounter(len(records))

	for _, r := range records {
		names.add(r.Name)
		ids.add(strconv.Itoa(r.ID))
		hatching.add(keying.Key(r.HatchingTimes))
		images.add(keying.Key(r.ImageURLs))
	}

	return Report{
		DuplicateNames:         names.duplicates(),
		DuplicateIDs:           ids.duplicates(),
		DuplicateHatchingTimes: hatching.duplicates(),
		DuplicateImageURLs:     images.duplicates(),
	}
}
