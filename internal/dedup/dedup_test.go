package dedup

import (
	"reflect"
	"testing"

	"harvest/internal/models"
)

func record(id int, name string, hatching []string, images []string) models.Record {
	return models.Record{
		ID:            id,
		Name:          name,
		HatchingTimes: models.List(hatching, models.HatchingNotFound),
		ImageURLs:     models.List(images, models.NoImages),
	}
}

func TestBuildDuplicateNames(t *testing.T) {
	records := []models.Record{
		record(1, "Lava Dragon", []string{"3 hours"}, []string{"a.png"}),
		record(2, "Ice Dragon", []string{"5 hours"}, []string{"b.png"}),
		record(3, "Lava Dragon", []string{"6 hours"}, []string{"c.png"}),
		record(4, "Lava Dragon", []string{"7 hours"}, []string{"d.png"}),
	}
	report := Build(records, Coarse)

	if !reflect.DeepEqual(report.DuplicateNames, []string{"Lava Dragon"}) {
		t.Errorf("DuplicateNames = %q, want [Lava Dragon]", report.DuplicateNames)
	}
	if len(report.DuplicateIDs) != 0 || len(report.DuplicateHatchingTimes) != 0 || len(report.DuplicateImageURLs) != 0 {
		t.Errorf("unexpected duplicates: %+v", report)
	}
}

func TestBuildFirstSeenOrder(t *testing.T) {
	records := []models.Record{
		record(1, "B", nil, nil),
		record(1, "A", nil, nil),
		record(2, "A", nil, nil),
		record(2, "B", nil, nil),
	}
	report := Build(records, Coarse)

	if !reflect.DeepEqual(report.DuplicateNames, []string{"B", "A"}) {
		t.Errorf("DuplicateNames = %q", report.DuplicateNames)
	}
	if !reflect.DeepEqual(report.DuplicateIDs, []string{"1", "2"}) {
		t.Errorf("DuplicateIDs = %q", report.DuplicateIDs)
	}
	if !reflect.DeepEqual(report.DuplicateHatchingTimes, []string{models.HatchingNotFound}) {
		t.Errorf("DuplicateHatchingTimes = %q", report.DuplicateHatchingTimes)
	}
	if !reflect.DeepEqual(report.DuplicateImageURLs, []string{models.NoImages}) {
		t.Errorf("DuplicateImageURLs = %q", report.DuplicateImageURLs)
	}
}

func TestKeyingCollisions(t *testing.T) {
	records := []models.Record{
		record(1, "A", []string{"a,b"}, []string{"no images"}),
		record(2, "B", []string{"a", "b"}, nil),
		record(3, "C", []string{"x", "y"}, []string{"i.png"}),
		record(4, "D", []string{"y", "x"}, []string{"i.png"}),
	}

	coarse := Build(records, Coarse)
	if !reflect.DeepEqual(coarse.DuplicateHatchingTimes, []string{"a,b"}) {
		t.Errorf("coarse hatching = %q, want [a,b]", coarse.DuplicateHatchingTimes)
	}
	if !reflect.DeepEqual(coarse.DuplicateImageURLs, []string{"no images", "i.png"}) {
		t.Errorf("coarse images = %q", coarse.DuplicateImageURLs)
	}

	canonical := Build(records, Canonical)
	if !reflect.DeepEqual(canonical.DuplicateHatchingTimes, []string{`["list","x","y"]`}) {
		t.Errorf("canonical hatching = %q", canonical.DuplicateHatchingTimes)
	}
	if !reflect.DeepEqual(canonical.DuplicateImageURLs, []string{`["list","i.png"]`}) {
		t.Errorf("canonical images = %q", canonical.DuplicateImageURLs)
	}
}

func TestKeyEmptyListVersusSentinel(t *testing.T) {
	empty := models.TextList{Items: []string{}}
	blank := models.Missing("")

	if got, want := Canonical.Key(empty), `["list"]`; got != want {
		t.Errorf("canonical key of [] = %s, want %s", got, want)
	}
	if got, want := Canonical.Key(blank), `["sentinel",""]`; got != want {
		t.Errorf("canonical key of blank sentinel = %s, want %s", got, want)
	}
	if Coarse.Key(empty) != Coarse.Key(blank) {
		t.Errorf("coarse keys differ: %q vs %q", Coarse.Key(empty), Coarse.Key(blank))
	}
}

func TestBuildDoesNotMutate(t *testing.T) {
	records := []models.Record{
		record(1, "A", []string{"b", "a"}, nil),
		record(2, "A", []string{"b", "a"}, nil),
	}
	Build(records, Canonical)
	if records[0].HatchingTimes.Items[0] != "b" {
		t.Error("canonical keying reordered the record's items")
	}
}

func TestParseKeying(t *testing.T) {
	if k, err := ParseKeying(""); err != nil || k != Coarse {
		t.Errorf("ParseKeying(\"\") = %q, %v", k, err)
	}
	if k, err := ParseKeying("Canonical"); err != nil || k != Canonical {
		t.Errorf("ParseKeying(Canonical) = %q, %v", k, err)
	}
	if _, err := ParseKeying("deep"); err == nil {
		t.Error("expected error for unknown keying")
	}
}
