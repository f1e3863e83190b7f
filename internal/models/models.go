// Package models defines the data passed between discovery, scheduling and storage.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Sentinel values stored in place of an empty extraction result.
const (
	HatchingNotFound = "not found"
	NoImages         = "no images"
	ErrorSentinel    = "error"
)

// Target is one catalog entry awaiting detail-page extraction.
type Target struct {
	Code string `json:"code"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TargetFromName builds a Target for raw-name input, where the name doubles as
// the detail path.
func TargetFromName(name string) Target {
	return Target{Name: name, URL: name}
}

// TextList is an ordered list of strings or, when nothing was found, a sentinel.
// It encodes to a JSON array or to a JSON string respectively. A non-nil empty
// Items is a list with no entries and encodes as [].
type TextList struct {
	Items    []string
	Sentinel string
}

// List returns a TextList holding items, or the sentinel when items is empty.
func List(items []string, sentinel string) TextList {
	if len(items) == 0 {
		return TextList{Sentinel: sentinel}
	}
	return TextList{Items: items}
}

// Missing returns a sentinel-only TextList.
func Missing(sentinel string) TextList {
	return TextList{Sentinel: sentinel}
}

// IsSentinel reports whether the list carries a sentinel instead of items.
func (l TextList) IsSentinel() bool {
	return l.Items == nil
}

// First returns the first item, or "" for a sentinel list.
func (l TextList) First() string {
	if len(l.Items) == 0 {
		return ""
	}
	return l.Items[0]
}

// String flattens the list the way a loosely typed runtime prints an array:
// items joined by commas. A sentinel prints as itself.
func (l TextList) String() string {
	if l.IsSentinel() {
		return l.Sentinel
	}
	return strings.Join(l.Items, ",")
}

func (l TextList) MarshalJSON() ([]byte, error) {
	if l.IsSentinel() {
		return json.Marshal(l.Sentinel)
	}
	return json.Marshal(l.Items)
}

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = TextList{Items: []string{}}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = TextList{Sentinel: s}
	case '[':
		items := []string{}
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = TextList{Items: items}
	default:
		return fmt.Errorf("text list: unexpected JSON %s", data)
	}
	return nil
}

// Fragment is what one fetch-and-extract task yields for a target, before an
// id is assigned.
type Fragment struct {
	Name          string   `json:"name"`
	HatchingTimes TextList `json:"hatchingTimes"`
	ImageURLs     TextList `json:"imageUrls"`
	Error         string   `json:"error,omitempty"`
}

// Placeholder returns the fragment recorded for a failed target when failed
// targets are kept in the output.
func Placeholder(name string, err error) Fragment {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Fragment{
		Name:          name,
		HatchingTimes: Missing(ErrorSentinel),
		ImageURLs:     Missing(ErrorSentinel),
		Error:         msg,
	}
}

// Record is a completed fragment with its sequential id.
type Record struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	HatchingTimes TextList `json:"hatchingTimes"`
	ImageURLs     TextList `json:"imageUrls"`
	Error         string   `json:"error,omitempty"`
}
