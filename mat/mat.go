// Package mat holds the small gonum helpers used to move windows in and out of dense matrices.
package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoRows         = errors.New("no rows to build matrix from")
	ErrColMismatch    = errors.New("column size mismatch")
	ErrRowOutOfBounds = errors.New("row is out of bounds")
	ErrDstShape       = errors.New("destination has the wrong shape")
)

// NewDenseFromWindows packs equally sized windows into a row major matrix, one window per row.
// Every row must have exactly width values.
func NewDenseFromWindows(x [][]float64, width int) (*mat.Dense, error) {
	if len(x) == 0 || width <= 0 {
		return nil, ErrNoRows
	}

	data := make([]float64, 0, len(x)*width)
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d, %w", i, len(row), width, ErrColMismatch)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(x), width, data), nil
}

// GatherRows copies the rows of src listed in idx into dst, in order. dst is reused when it already
// has len(idx) rows and the same number of columns as src, otherwise a new matrix is allocated.
func GatherRows(dst *mat.Dense, src mat.RawMatrixer, idx []int) (*mat.Dense, error) {
	if len(idx) == 0 {
		return nil, ErrNoRows
	}
	raw := src.RawMatrix()

	if dst == nil {
		dst = mat.NewDense(len(idx), raw.Cols, nil)
	}
	if r, c := dst.Dims(); r != len(idx) || c != raw.Cols {
		return nil, fmt.Errorf("destination is %dx%d, need %dx%d, %w", r, c, len(idx), raw.Cols, ErrDstShape)
	}

	for i, r := range idx {
		if r < 0 || r >= raw.Rows {
			return nil, fmt.Errorf("row %d of %d, %w", r, raw.Rows, ErrRowOutOfBounds)
		}
		dst.SetRow(i, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols])
	}
	return dst, nil
}

// GatherValues is the vector counterpart of GatherRows.
func GatherValues(dst, src []float64, idx []int) ([]float64, error) {
	if cap(dst) < len(idx) {
		dst = make([]float64, len(idx))
	}
	dst = dst[:len(idx)]
	for i, r := range idx {
		if r < 0 || r >= len(src) {
			return nil, fmt.Errorf("index %d of %d, %w", r, len(src), ErrRowOutOfBounds)
		}
		dst[i] = src[r]
	}
	return dst, nil
}
