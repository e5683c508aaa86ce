// Package crashcast predicts the next crash point of a series from its most recent observations.
// Observations are cut into fixed width windows, each paired with the value that followed it, and a
// small feed-forward network is trained on those pairs. Train and Predict run asynchronously and
// return a Task the caller can wait on or poll.
package crashcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/aouyang1/go-crashcast/models"
	"github.com/aouyang1/go-crashcast/window"
	"github.com/rs/zerolog/log"
)

var (
	ErrModelNotInitialized = models.ErrNotInitialized
	ErrShapeMismatch       = models.ErrShapeMismatch
	ErrInsufficientHistory = window.ErrInsufficientHistory
	ErrInvalidWindowSize   = window.ErrInvalidSize
	ErrCallInFlight        = errors.New("another train or predict call is in flight")
	ErrCallPanicked        = errors.New("call panicked")
)

// Recorder receives call outcomes. metrics.Recorder is the Prometheus implementation.
type Recorder interface {
	ObserveTrain(d time.Duration, pairs int, hist *models.History)
	ObservePredict(d time.Duration)
	ObserveError(op string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTrain(time.Duration, int, *models.History) {}
func (noopRecorder) ObservePredict(time.Duration) {}
func (noopRecorder) ObserveError(string) {}

// Predictor owns one network and its window size. At most one Train or Predict call runs at a time;
// a call made while another is in flight completes immediately with ErrCallInFlight.
type Predictor struct {
	opt      *Options
	model    *models.MLP
	recorder Recorder

	inFlight atomic.Bool
}

// New returns an uninitialized predictor. If no options are provided the defaults are used. The
// predictor keeps its own copy of opt so later changes to opt do not affect it.
func New(opt *Options) (*Predictor, error) {
	opt, err := opt.Copy().Validate()
	if err != nil {
		return nil, err
	}
	model, err := models.NewMLP(opt.Model)
	if err != nil {
		return nil, fmt.Errorf("unable to create model, %w", err)
	}
	return &Predictor{
		opt:      opt,
		model:    model,
		recorder: noopRecorder{},
	}, nil
}

// SetRecorder replaces the recorder notified after every call. A nil recorder disables recording.
// It fails with ErrCallInFlight while a Train or Predict call is running.
func (p *Predictor) SetRecorder(r Recorder) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrCallInFlight
	}
	defer p.inFlight.Store(false)

	if r == nil {
		r = noopRecorder{}
	}
	p.recorder = r
	return nil
}

// WindowSize is the number of trailing observations a prediction consumes
func (p *Predictor) WindowSize() int {
	return p.opt.WindowSize
}

// Options returns a copy of the validated options the predictor was built with
func (p *Predictor) Options() *Options {
	return p.opt.Copy()
}

// Initialize builds the network with fresh random weights. Calling it again discards everything
// learned so far. It fails with ErrCallInFlight while a Train or Predict call is running.
func (p *Predictor) Initialize() error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrCallInFlight
	}
	defer p.inFlight.Store(false)

	if err := p.model.Initialize(); err != nil {
		return fmt.Errorf("unable to initialize model, %w", err)
	}
	log.Debug().
		Int("window_size", p.opt.WindowSize).
		Int("params", p.model.NumParams()).
		Msg("initialized predictor")
	return nil
}

// Initialized reports whether Initialize has completed
func (p *Predictor) Initialized() bool {
	return p.model.Initialized()
}

// Train fits the network on the given pairs, continuing from the current weights. inputs holds one
// window per row and targets the value that followed each window. An empty set fails with
// ErrInsufficientHistory.
func (p *Predictor) Train(ctx context.Context, inputs [][]float64, targets []float64) *Task[*TrainReport] {
	return run(ctx, p, "train", func() (*TrainReport, error) {
		return p.train(inputs, targets)
	})
}

// TrainHistory builds the training set from an observation history and trains on it
func (p *Predictor) TrainHistory(ctx context.Context, history []float64) *Task[*TrainReport] {
	inputs, targets, err := BuildTrainingSet(history, p.opt.WindowSize)
	if err != nil {
		return failedTask[*TrainReport](err)
	}
	return p.Train(ctx, inputs, targets)
}

func (p *Predictor) train(inputs [][]float64, targets []float64) (*TrainReport, error) {
	if !p.model.Initialized() {
		return nil, ErrModelNotInitialized
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no training pairs for window size %d, %w", p.opt.WindowSize, ErrInsufficientHistory)
	}

	start := time.Now()
	hist, err := p.model.Fit(inputs, targets, p.opt.Train)
	if err != nil {
		return nil, fmt.Errorf("unable to fit model, %w", err)
	}
	scores, err := p.model.Score(inputs, targets)
	if err != nil {
		return nil, fmt.Errorf("unable to score model, %w", err)
	}

	report := &TrainReport{
		Pairs:    len(inputs),
		Duration: time.Since(start),
		History:  hist,
		Scores:   scores,
	}
	if baseline, err := models.FitBaseline(inputs, targets); err != nil {
		log.Debug().Err(err).Msg("skipping linear baseline")
	} else if report.Baseline, err = baseline.Score(inputs, targets); err != nil {
		log.Debug().Err(err).Msg("unable to score linear baseline")
	}
	p.recorder.ObserveTrain(report.Duration, report.Pairs, hist)
	return report, nil
}

// Predict returns the network output for a single window of WindowSize observations. The value is
// not clamped to the minimum crash point.
func (p *Predictor) Predict(ctx context.Context, w []float64) *Task[float64] {
	return run(ctx, p, "predict", func() (float64, error) {
		return p.predict(w)
	})
}

// PredictNext predicts the value following the last WindowSize observations of history. It fails
// with ErrInsufficientHistory when history is shorter than the window.
func (p *Predictor) PredictNext(ctx context.Context, history []float64) *Task[float64] {
	w, err := window.Latest(history, p.opt.WindowSize)
	if err != nil {
		return failedTask[float64](err)
	}
	return p.Predict(ctx, w)
}

func (p *Predictor) predict(w []float64) (float64, error) {
	start := time.Now()
	res, err := p.model.Predict(w)
	if err != nil {
		return 0, fmt.Errorf("unable to predict, %w", err)
	}
	p.recorder.ObservePredict(time.Since(start))
	return res, nil
}

// TablePrint prints the network layout. It must not be called while a Train call is in flight.
func (p *Predictor) TablePrint(w io.Writer, prefix, indent string) error {
	return p.model.TablePrint(w, prefix, indent)
}

// run starts fn on its own goroutine unless ctx is already done or another call holds the
// predictor. The in flight flag is released before the task completes so a caller woken by the
// task can start the next call right away.
func run[T any](ctx context.Context, p *Predictor, op string, fn func() (T, error)) *Task[T] {
	if err := ctx.Err(); err != nil {
		return failedTask[T](fmt.Errorf("%s not started, %w", op, err))
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return failedTask[T](ErrCallInFlight)
	}

	t := newTask[T]()
	go func() {
		res, err := call(op, fn)
		if err != nil {
			p.recorder.ObserveError(op)
			log.Error().Err(err).Str("op", op).Msg("call failed")
		}
		p.inFlight.Store(false)
		t.complete(res, err)
	}()
	return t
}

func call[T any](op string, fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = zero
			err = fmt.Errorf("%s: %v, %w", op, r, ErrCallPanicked)
		}
	}()
	return fn()
}

// BuildTrainingSet turns an observation history into model inputs and targets using windows of
// the given size. A history of size or fewer observations yields empty slices.
func BuildTrainingSet(history []float64, size int) ([][]float64, []float64, error) {
	ts, err := window.Build(history, size)
	if err != nil {
		return nil, nil, err
	}
	return ts.Inputs(), ts.Targets(), nil
}
