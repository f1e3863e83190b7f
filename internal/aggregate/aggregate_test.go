package aggregate

import (
	"errors"
	"testing"

	"harvest/internal/models"
)

func TestAssembleNumbersContiguously(t *testing.T) {
	frags := []models.Fragment{
		{Name: "A", HatchingTimes: models.List([]string{"1 hour"}, models.HatchingNotFound)},
		models.Placeholder("B", errors.New("timeout")),
		{Name: "C"},
	}
	agg := New()
	records := agg.Assemble(frags)

	for i, r := range records {
		if r.ID != i+1 {
			t.Errorf("record %d id = %d, want %d", i, r.ID, i+1)
		}
		if r.Name != frags[i].Name {
			t.Errorf("record %d name = %q, want %q", i, r.Name, frags[i].Name)
		}
	}
	if records[1].Error != "timeout" || records[1].HatchingTimes.Sentinel != models.ErrorSentinel {
		t.Errorf("placeholder record = %+v", records[1])
	}

	more := agg.Assemble([]models.Fragment{{Name: "D"}})
	if more[0].ID != 4 {
		t.Errorf("second assemble id = %d, want 4", more[0].ID)
	}
}

func TestSequence(t *testing.T) {
	s := NewSequence(0)
	if s.Peek() != 1 {
		t.Fatalf("Peek = %d, want 1", s.Peek())
	}
	if a, b := s.Next(), s.Next(); a != 1 || b != 2 {
		t.Errorf("Next = %d, %d", a, b)
	}
}
