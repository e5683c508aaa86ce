package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var ErrResLenMismatch = errors.New("predicted and actual have different lengths")

// Scores tracks the fit scores
type Scores struct {
	MSE float64 `json:"mean_squared_error"`
	MAE float64 `json:"mean_absolute_error"`
	R2  float64 `json:"r_squared"`
}

// NewScores calculates the fit scores given the predicted and actual input slice values. R2 is
// left at 0 when the actual values have no variance.
func NewScores(predicted, actual []float64) (*Scores, error) {
	mse, err := MSE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean squared error, %w", err)
	}
	mae, err := MAE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean absolute error, %w", err)
	}

	s := &Scores{
		MSE: mse,
		MAE: mae,
	}
	if len(actual) > 1 && stat.Variance(actual, nil) > 0 {
		s.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return s, nil
}

// MSE computes the mean squared error. A score of 0 means a perfect match with no errors.
func MSE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}
	mse, _ := lossMAE(predicted, actual)
	return mse, nil
}

// MAE computes the mean absolute error. A score of 0 means a perfect match with no errors.
func MAE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}
	_, mae := lossMAE(predicted, actual)
	return mae, nil
}

// lossMAE returns both means in one pass. Inputs must have equal length.
func lossMAE(predicted, actual []float64) (float64, float64) {
	if len(actual) == 0 {
		return 0, 0
	}
	var sq, abs float64
	for i := range actual {
		diff := actual[i] - predicted[i]
		sq += diff * diff
		abs += math.Abs(diff)
	}
	n := float64(len(actual))
	return sq / n, abs / n
}
