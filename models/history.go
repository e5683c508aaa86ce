package models

import "math"

// History records per epoch training metrics of a single Fit call. Validation slices are empty when
// no rows were held out.
type History struct {
	Epochs         int       `json:"epochs"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	Loss           []float64 `json:"loss"`
	MAE            []float64 `json:"mae"`
	ValLoss        []float64 `json:"val_loss,omitempty"`
	ValMAE         []float64 `json:"val_mae,omitempty"`
}

func newHistory(epochs, trainRows, valRows int) *History {
	h := &History{
		Epochs:         epochs,
		TrainRows:      trainRows,
		ValidationRows: valRows,
		Loss:           make([]float64, 0, epochs),
		MAE:            make([]float64, 0, epochs),
	}
	if valRows > 0 {
		h.ValLoss = make([]float64, 0, epochs)
		h.ValMAE = make([]float64, 0, epochs)
	}
	return h
}

// FinalLoss is the training loss of the last epoch or NaN if nothing ran
func (h *History) FinalLoss() float64 {
	return last(h.Loss)
}

// FinalValLoss is the validation loss of the last epoch or NaN if no rows were held out
func (h *History) FinalValLoss() float64 {
	return last(h.ValLoss)
}

func last(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return x[len(x)-1]
}
