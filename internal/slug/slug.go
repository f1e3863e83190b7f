// Package slug builds URL-safe identifiers from catalog display names.
package slug

import (
	"strings"
	"unicode"
)

// Format lower-cases name and collapses every run of whitespace into a single
// hyphen. All other characters, diacritics included, are kept as they are.
func Format(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	inSpace := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		b.WriteRune(r)
		inSpace = false
	}
	return b.String()
}

// Composite returns the key used to deduplicate listing entries: code + "-" + slug.
func Composite(code, name string) string {
	return code + "-" + Format(name)
}

// Path returns the detail path fragment for a listing entry: code + "/" + slug.
func Path(code, name string) string {
	return code + "/" + Format(name)
}
