package models

import (
	"errors"
)

var (
	ErrNoOptions         = errors.New("no initialized model options")
	ErrInvalidOptions    = errors.New("invalid model options")
	ErrDropoutLen        = errors.New("dropout rates must match the number of hidden layers")
	ErrNotInitialized    = errors.New("model not initialized")
	ErrShapeMismatch     = errors.New("window length does not match model input dimension")
	ErrEmptyTrainingSet  = errors.New("no training rows")
	ErrTargetLenMismatch = errors.New("target length does not match training rows")
)
