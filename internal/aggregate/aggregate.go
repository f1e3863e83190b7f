// Package aggregate turns scheduler fragments into numbered records.
package aggregate

import "harvest/internal/models"

// Sequence hands out record ids. It starts at 1 and advances once per id.
type Sequence struct {
	next int
}

// NewSequence returns a sequence whose first id is start. Values below 1
// start at 1.
func NewSequence(start int) *Sequence {
	if start < 1 {
		start = 1
	}
	return &Sequence{next: start}
}

// Next returns the next id.
func (s *Sequence) Next() int {
	id := s.next
	s.next++
	return id
}

// Peek returns the id the next call to Next will return.
func (s *Sequence) Peek() int {
	return s.next
}

// Aggregator assigns ids to fragments in the order it receives them.
type Aggregator struct {
	seq *Sequence
}

func New() *Aggregator {
	return &Aggregator{seq: NewSequence(1)}
}

// Assemble numbers fragments and returns the records in the same order.
func (a *Aggregator) Assemble(fragments []models.Fragment) []models.Record {
	records := make([]models.Record, 0, len(fragments))
	for _, f := range fragments {
		records = append(records, models.Record{
			ID:            a.seq.Next(),
			Name:          f.Name,
			HatchingTimes: f.HatchingTimes,
			ImageURLs:     f.ImageURLs,
			Error:         f.Error,
		})
	}
	return records
}
