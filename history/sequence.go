// Package history records the crash points observed by a caller. A Sequence only grows and every
// value it holds is a finite observation at or above MinObservation.
package history

import (
	"errors"
	"fmt"
	"math"
)

// MinObservation is the smallest crash point the game can produce.
const MinObservation = 1.0

var (
	ErrBelowMinimum = errors.New("observation below minimum crash point")
	ErrNotFinite    = errors.New("observation is not a finite number")
)

// Validate checks a single observation
func Validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNotFinite
	}
	if v < MinObservation {
		return fmt.Errorf("got %.4f, minimum is %.2f, %w", v, MinObservation, ErrBelowMinimum)
	}
	return nil
}

// Sequence is an append-only, ordered list of observations.
type Sequence struct {
	values []float64
}

// NewSequence returns a Sequence seeded with the provided observations. The input slice is copied.
func NewSequence(values ...float64) (*Sequence, error) {
	s := &Sequence{values: make([]float64, 0, len(values))}
	for i, v := range values {
		if err := s.Append(v); err != nil {
			return nil, fmt.Errorf("observation %d, %w", i, err)
		}
	}
	return s, nil
}

// Append validates and records the next observation. Rejected values leave the sequence untouched.
func (s *Sequence) Append(v float64) error {
	if err := Validate(v); err != nil {
		return err
	}
	s.values = append(s.values, v)
	return nil
}

func (s *Sequence) Len() int {
	return len(s.values)
}

// Values returns a copy of every observation in arrival order
func (s *Sequence) Values() []float64 {
	res := make([]float64, len(s.values))
	copy(res, s.values)
	return res
}

// Last returns a copy of the trailing n observations. If fewer than n have been recorded all of
// them are returned.
func (s *Sequence) Last(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	start := len(s.values) - n
	if start < 0 {
		start = 0
	}
	res := make([]float64, len(s.values)-start)
	copy(res, s.values[start:])
	return res
}
