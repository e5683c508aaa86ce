// Package window turns an ordered series of observations into supervised (window, target) pairs.
// Each pair uses Size consecutive values as input and the value immediately after them as target,
// so no pair ever sees a value later than its own target.
package window

import (
	"errors"
	"fmt"

	mat_ "github.com/aouyang1/go-crashcast/mat"
	"gonum.org/v1/gonum/mat"
)

// DefaultSize is the number of trailing observations a prediction is made from
const DefaultSize = 5

var (
	ErrInvalidSize         = errors.New("window size must be positive")
	ErrInsufficientHistory = errors.New("insufficient history for window size")
	ErrEmptyTrainingSet    = errors.New("training set has no pairs")
)

// Pair is a single supervised example
type Pair struct {
	Window []float64 `json:"window"`
	Target float64   `json:"target"`
}

// TrainingSet is an ordered list of pairs sharing the same window size
type TrainingSet struct {
	Size  int    `json:"size"`
	Pairs []Pair `json:"pairs"`
}

// Build slides a window of the given size across history producing one pair per start index i in
// [0, len(history)-size-1], ordered by i. A history with size or fewer values yields an empty set
// since there is no value after the last full window. history is never modified.
func Build(history []float64, size int) (*TrainingSet, error) {
	if size <= 0 {
		return nil, fmt.Errorf("got window size %d, %w", size, ErrInvalidSize)
	}

	numPairs := len(history) - size
	if numPairs < 0 {
		numPairs = 0
	}

	ts := &TrainingSet{
		Size:  size,
		Pairs: make([]Pair, 0, numPairs),
	}
	for i := 0; i < numPairs; i++ {
		w := make([]float64, size)
		copy(w, history[i:i+size])
		ts.Pairs = append(ts.Pairs, Pair{
			Window: w,
			Target: history[i+size],
		})
	}
	return ts, nil
}

// Latest returns a copy of the trailing window of history, the input used to predict the value that
// follows it.
func Latest(history []float64, size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("got window size %d, %w", size, ErrInvalidSize)
	}
	if len(history) < size {
		return nil, fmt.Errorf("have %d observations, need %d, %w", len(history), size, ErrInsufficientHistory)
	}
	w := make([]float64, size)
	copy(w, history[len(history)-size:])
	return w, nil
}

func (ts *TrainingSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Pairs)
}

// Inputs returns the windows of every pair. Rows are shared with the training set.
func (ts *TrainingSet) Inputs() [][]float64 {
	x := make([][]float64, 0, ts.Len())
	for _, p := range ts.Pairs {
		x = append(x, p.Window)
	}
	return x
}

// Targets returns the target of every pair in order
func (ts *TrainingSet) Targets() []float64 {
	y := make([]float64, 0, ts.Len())
	for _, p := range ts.Pairs {
		y = append(y, p.Target)
	}
	return y
}

// Matrix packs the inputs into a pairs x size matrix
func (ts *TrainingSet) Matrix() (*mat.Dense, error) {
	if ts.Len() == 0 {
		return nil, ErrEmptyTrainingSet
	}
	return mat_.NewDenseFromWindows(ts.Inputs(), ts.Size)
}
