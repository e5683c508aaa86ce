// Package models implements the feed-forward regression network used to predict the next crash
// point from a fixed width window of prior observations.
package models

// Model is a trainable regressor mapping a fixed width window to a single value
type Model interface {
	Initialize() error
	Fit(x [][]float64, y []float64, opt *TrainOptions) (*History, error)
	Predict(window []float64) (float64, error)
	Score(x [][]float64, y []float64) (*Scores, error)
}

var _ Model = (*MLP)(nil)
