package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrTooFewRows     = errors.New("need more rows than window features to fit a linear baseline")
	ErrSingularDesign = errors.New("design matrix is singular")
)

// Baseline is an ordinary least squares fit of the next value on the window with an intercept. It
// gives the network something to be compared against.
type Baseline struct {
	inputDim  int
	intercept float64
	coef      []float64
}

// FitBaseline solves the least squares problem through a QR factorization of the window matrix
// with a leading column of ones. It needs more rows than columns.
func FitBaseline(x [][]float64, y []float64) (*Baseline, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d windows and %d targets, %w", len(x), len(y), ErrTargetLenMismatch)
	}
	inputDim := len(x[0])
	n := inputDim + 1
	if len(x) <= n {
		return nil, fmt.Errorf("got %d rows for %d columns, %w", len(x), n, ErrTooFewRows)
	}

	design := mat.NewDense(len(x), n, nil)
	for i, row := range x {
		if len(row) != inputDim {
			return nil, fmt.Errorf("row %d has length %d, expected %d, %w", i, len(row), inputDim, ErrShapeMismatch)
		}
		design.Set(i, 0, 1.0)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	qr := new(mat.QR)
	qr.Factorize(design)

	var c mat.Dense
	if err := qr.SolveTo(&c, false, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("%s, %w", err.Error(), ErrSingularDesign)
	}

	b := &Baseline{
		inputDim:  inputDim,
		intercept: c.At(0, 0),
		coef:      make([]float64, inputDim),
	}
	for j := range b.coef {
		b.coef[j] = c.At(j+1, 0)
	}
	return b, nil
}

// Predict returns the intercept plus the weighted window
func (b *Baseline) Predict(window []float64) (float64, error) {
	if len(window) != b.inputDim {
		return 0, fmt.Errorf("got window of length %d, expected %d, %w", len(window), b.inputDim, ErrShapeMismatch)
	}
	res := b.intercept
	for j, v := range window {
		res += b.coef[j] * v
	}
	return res, nil
}

// Score compares baseline predictions against y
func (b *Baseline) Score(x [][]float64, y []float64) (*Scores, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d windows and %d targets, %w", len(x), len(y), ErrTargetLenMismatch)
	}
	predicted := make([]float64, 0, len(x))
	for _, row := range x {
		p, err := b.Predict(row)
		if err != nil {
			return nil, err
		}
		predicted = append(predicted, p)
	}
	return NewScores(predicted, y)
}

func (b *Baseline) Intercept() float64 {
	return b.intercept
}

func (b *Baseline) Coef() []float64 {
	c := make([]float64, len(b.coef))
	copy(c, b.coef)
	return c
}
