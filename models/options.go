package models

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultInputDim        = 5
	DefaultEpochs          = 150
	DefaultBatchSize       = 32
	DefaultLearningRate    = 0.001
	DefaultBeta1           = 0.9
	DefaultBeta2           = 0.999
	DefaultEpsilon         = 1e-7
	DefaultValidationSplit = 0.2
	DefaultDropoutRate     = 0.2
)

var validate = validator.New()

// MLPOptions describes the network topology. Each hidden layer is followed by a rectifier and
// optionally by dropout with the rate at the same index in Dropout.
type MLPOptions struct {
	// InputDim is the window width the network accepts
	InputDim int `yaml:"input_dim" default:"5" validate:"gt=0"`

	// Hidden lists the width of every hidden layer from input to output
	Hidden []int `yaml:"hidden" default:"[128,64,32]" validate:"min=1,dive,gt=0"`

	// Dropout holds the training time drop rate applied after each hidden layer. 0 disables dropout
	// for that layer.
	Dropout []float64 `yaml:"dropout" default:"[0.2,0.2,0]" validate:"dive,gte=0,lt=1"`

	// Seed makes weight initialization, shuffling and dropout reproducible. 0 picks a random seed.
	Seed uint64 `yaml:"seed"`
}

// NewDefaultMLPOptions returns the 128-64-32 network with dropout after the first two hidden layers
func NewDefaultMLPOptions() *MLPOptions {
	return &MLPOptions{
		InputDim: DefaultInputDim,
		Hidden:   []int{128, 64, 32},
		Dropout:  []float64{DefaultDropoutRate, DefaultDropoutRate, 0},
	}
}

// Copy returns a deep copy of the options. A nil receiver returns nil.
func (o *MLPOptions) Copy() *MLPOptions {
	if o == nil {
		return nil
	}
	c := *o
	c.Hidden = append([]int(nil), o.Hidden...)
	c.Dropout = append([]float64(nil), o.Dropout...)
	return &c
}

// Validate fills in unset fields with their defaults and checks the result
func (o *MLPOptions) Validate() (*MLPOptions, error) {
	if o == nil {
		o = NewDefaultMLPOptions()
	}
	if err := defaults.Set(o); err != nil {
		return nil, fmt.Errorf("unable to set model option defaults, %w", err)
	}
	if err := validateStruct(o); err != nil {
		return nil, err
	}
	if len(o.Dropout) != len(o.Hidden) {
		return nil, fmt.Errorf("got %d dropout rates for %d hidden layers, %w", len(o.Dropout), len(o.Hidden), ErrDropoutLen)
	}
	return o, nil
}

// TrainOptions controls the optimization schedule of a single Fit call
type TrainOptions struct {
	Epochs    int `yaml:"epochs" default:"150" validate:"gt=0"`
	BatchSize int `yaml:"batch_size" default:"32" validate:"gt=0"`

	// LearningRate, Beta1, Beta2 and Epsilon configure the Adam optimizer
	LearningRate float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	Beta1        float64 `yaml:"beta1" default:"0.9" validate:"gt=0,lt=1"`
	Beta2        float64 `yaml:"beta2" default:"0.999" validate:"gt=0,lt=1"`
	Epsilon      float64 `yaml:"epsilon" default:"1e-7" validate:"gt=0"`

	// ValidationSplit is the trailing fraction of rows kept out of weight updates and only used to
	// report validation loss.
	ValidationSplit float64 `yaml:"validation_split" validate:"gte=0,lt=1"`
}

func NewDefaultTrainOptions() *TrainOptions {
	return &TrainOptions{
		Epochs:          DefaultEpochs,
		BatchSize:       DefaultBatchSize,
		LearningRate:    DefaultLearningRate,
		Beta1:           DefaultBeta1,
		Beta2:           DefaultBeta2,
		Epsilon:         DefaultEpsilon,
		ValidationSplit: DefaultValidationSplit,
	}
}

// Copy returns a copy of the options. A nil receiver returns nil.
func (o *TrainOptions) Copy() *TrainOptions {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// Validate fills in unset fields with their defaults and checks the result. ValidationSplit has no
// default since 0 is a meaningful value; start from NewDefaultTrainOptions to hold out 20%.
func (o *TrainOptions) Validate() (*TrainOptions, error) {
	if o == nil {
		o = NewDefaultTrainOptions()
	}
	if err := defaults.Set(o); err != nil {
		return nil, fmt.Errorf("unable to set train option defaults, %w", err)
	}
	if err := validateStruct(o); err != nil {
		return nil, err
	}
	return o, nil
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%s failed on %s=%s, %w", fe.Namespace(), fe.Tag(), fe.Param(), ErrInvalidOptions)
	}
	return fmt.Errorf("%s, %w", err.Error(), ErrInvalidOptions)
}
