package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"harvest/internal/dedup"
)

// ReportContent renders a duplicate report over a record set.
type ReportContent struct {
	report  dedup.Report
	records int
}

func NewReportContent(report dedup.Report, records int) *ReportContent {
	return &ReportContent{report: report, records: records}
}

type reportSection struct {
	title string
	field string
	keys  []string
}

func (r *ReportContent) sections() []reportSection {
	return []reportSection{
		{"Duplicate names", "name", r.report.DuplicateNames},
		{"Duplicate ids", "id", r.report.DuplicateIDs},
		{"Duplicate hatching times", "hatchingTimes", r.report.DuplicateHatchingTimes},
		{"Duplicate image urls", "imageUrls", r.report.DuplicateImageURLs},
	}
}

func (r *ReportContent) ToText() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Records: %d\n", r.records)
	for _, s := range r.sections() {
		fmt.Fprintf(&sb, "\n%s (%d)\n", s.title, len(s.keys))
		for _, k := range s.keys {
			fmt.Fprintf(&sb, "  %s\n", k)
		}
	}
	return sb.String(), nil
}

func (r *ReportContent) ToHTML() (string, error) {
	var sb strings.Builder
	sb.WriteString("<h1>Duplicate report</h1>\n")
	fmt.Fprintf(&sb, "<p>Records: %d</p>\n", r.records)
	for _, s := range r.sections() {
		fmt.Fprintf(&sb, "<h2>%s</h2>\n", html.EscapeString(s.title))
		if len(s.keys) == 0 {
			sb.WriteString("<p>None</p>\n")
			continue
		}
		sb.WriteString("<ul>\n")
		for _, k := range s.keys {
			fmt.Fprintf(&sb, "<li><code>%s</code></li>\n", html.EscapeString(k))
		}
		sb.WriteString("</ul>\n")
	}
	return sb.String(), nil
}

func (r *ReportContent) ToMarkdown() (string, error) {
	h, err := r.ToHTML()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(h)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return markdown, nil
}

func (r *ReportContent) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r.report, "", "  ")
}

// ToCSV writes one row per duplicate key.
func (r *ReportContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"field", "key"})
	for _, s := range r.sections() {
		for _, k := range s.keys {
			_ = w.Write([]string{s.field, k})
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
