package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"harvest/internal/models"
)

// RecordsContent renders a record set as a table.
type RecordsContent struct {
	records []models.Record
}

func NewRecordsContent(records []models.Record) *RecordsContent {
	return &RecordsContent{records: records}
}

func (c *RecordsContent) ToText() (string, error) {
	var sb strings.Builder
	for _, r := range c.records {
		fmt.Fprintf(&sb, "%d\t%s\t%s\t%s", r.ID, r.Name, r.HatchingTimes.String(), r.ImageURLs.String())
		if r.Error != "" {
			fmt.Fprintf(&sb, "\t%s", r.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *RecordsContent) ToHTML() (string, error) {
	var sb strings.Builder
	sb.WriteString("<table>\n<thead><tr><th>id</th><th>name</th><th>hatching times</th><th>images</th></tr></thead>\n<tbody>\n")
	for _, r := range c.records {
		fmt.Fprintf(&sb, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			r.ID,
			html.EscapeString(r.Name),
			html.EscapeString(strings.Join(listOrSentinel(r.HatchingTimes), "; ")),
			html.EscapeString(strings.Join(listOrSentinel(r.ImageURLs), " ")),
		)
	}
	sb.WriteString("</tbody>\n</table>\n")
	return sb.String(), nil
}

func (c *RecordsContent) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString("| id | name | hatching times | images |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")
	for _, r := range c.records {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n",
			r.ID,
			cell(r.Name),
			cell(strings.Join(listOrSentinel(r.HatchingTimes), "; ")),
			cell(strings.Join(listOrSentinel(r.ImageURLs), " ")),
		)
	}
	return sb.String(), nil
}

func (c *RecordsContent) ToJSON() ([]byte, error) {
	if c.records == nil {
		return []byte("[]"), nil
	}
	return json.MarshalIndent(c.records, "", "  ")
}

func (c *RecordsContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "name", "hatchingTimes", "imageUrls", "error"})
	for _, r := range c.records {
		_ = w.Write([]string{
			strconv.Itoa(r.ID),
			r.Name,
			strings.Join(listOrSentinel(r.HatchingTimes), "|"),
			strings.Join(listOrSentinel(r.ImageURLs), "|"),
			r.Error,
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

func listOrSentinel(l models.TextList) []string {
	if l.IsSentinel() {
		return []string{l.Sentinel}
	}
	return l.Items
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
