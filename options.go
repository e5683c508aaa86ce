package crashcast

import (
	"errors"
	"fmt"
	"os"

	"github.com/aouyang1/go-crashcast/models"
	"github.com/aouyang1/go-crashcast/window"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidOptions    = models.ErrInvalidOptions
	ErrInputDimMismatch  = errors.New("model input dimension does not match window size")
	ErrUnreadableOptions = errors.New("unable to read options file")
)

var validate = validator.New()

// Options configures a Predictor
type Options struct {
	// WindowSize is the number of trailing observations used to predict the next one. It is fixed
	// for the life of a Predictor.
	WindowSize int `yaml:"window_size" default:"5" validate:"gt=0"`

	Model *models.MLPOptions   `yaml:"model" default:"-"`
	Train *models.TrainOptions `yaml:"train" default:"-"`
}

// NewDefaultOptions returns a window of 5 feeding the default network and training schedule. The
// model input dimension is left unset so it follows WindowSize.
func NewDefaultOptions() *Options {
	model := models.NewDefaultMLPOptions()
	model.InputDim = 0
	return &Options{
		WindowSize: window.DefaultSize,
		Model:      model,
		Train:      models.NewDefaultTrainOptions(),
	}
}

// Copy returns a deep copy of the options. A nil receiver returns nil.
func (o *Options) Copy() *Options {
	if o == nil {
		return nil
	}
	c := *o
	c.Model = o.Model.Copy()
	c.Train = o.Train.Copy()
	return &c
}

// Validate fills in defaults and checks the options. The model input dimension follows the window
// size when it is not set explicitly.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if err := defaults.Set(o); err != nil {
		return nil, fmt.Errorf("unable to set option defaults, %w", err)
	}

	if o.Model == nil {
		o.Model = models.NewDefaultMLPOptions()
		o.Model.InputDim = o.WindowSize
	}
	if o.Model.InputDim == 0 {
		o.Model.InputDim = o.WindowSize
	}
	modelOpt, err := o.Model.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to validate model options, %w", err)
	}
	o.Model = modelOpt

	trainOpt, err := o.Train.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to validate train options, %w", err)
	}
	o.Train = trainOpt

	if err := validate.Struct(o); err != nil {
		return nil, fmt.Errorf("%s, %w", err.Error(), ErrInvalidOptions)
	}
	if o.Model.InputDim != o.WindowSize {
		return nil, fmt.Errorf("input dimension %d, window size %d, %w", o.Model.InputDim, o.WindowSize, ErrInputDimMismatch)
	}
	return o, nil
}

// LoadOptions reads YAML options from path on top of NewDefaultOptions. Keys missing from the file
// keep their default values.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err.Error(), ErrUnreadableOptions)
	}

	opt := NewDefaultOptions()
	if err := yaml.Unmarshal(data, opt); err != nil {
		return nil, fmt.Errorf("unable to parse %s, %w", path, err)
	}
	return opt.Validate()
}
