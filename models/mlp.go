package models

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"text/tabwriter"

	mat_ "github.com/aouyang1/go-crashcast/mat"
	"github.com/aouyang1/go-crashcast/util"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// MLP is a feed-forward regression network. A new MLP is uninitialized; Initialize builds the
// layers with random weights. Fit and Predict fail until then.
//
// MLP holds no lock. Callers must not run Fit or Predict concurrently on the same instance.
type MLP struct {
	opt *MLPOptions
	rng *rand.Rand

	layers []*dense
	steps  int // optimizer steps taken since Initialize
}

// NewMLP returns an uninitialized network with the given topology. If no options are provided a
// default is used.
func NewMLP(opt *MLPOptions) (*MLP, error) {
	opt, err := opt.Copy().Validate()
	if err != nil {
		return nil, err
	}
	return &MLP{opt: opt}, nil
}

// Initialize builds the layers and draws fresh weights, discarding any previous weights and
// optimizer state.
func (m *MLP) Initialize() error {
	if m == nil || m.opt == nil {
		return ErrNoOptions
	}

	seed := m.opt.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	m.rng = rand.New(rand.NewPCG(seed, seed>>1|1))

	layers := make([]*dense, 0, len(m.opt.Hidden)+1)
	in := m.opt.InputDim
	for _, units := range m.opt.Hidden {
		layers = append(layers, newDense(in, units, ActivationReLU, m.rng))
		in = units
	}
	layers = append(layers, newDense(in, 1, ActivationLinear, m.rng))

	m.layers = layers
	m.steps = 0
	return nil
}

// Initialized reports whether Initialize has been called
func (m *MLP) Initialized() bool {
	return m != nil && len(m.layers) > 0
}

// InputDim is the window width accepted by Fit and Predict
func (m *MLP) InputDim() int {
	return m.opt.InputDim
}

// trace keeps what a training forward pass needs for backpropagation
type trace struct {
	inputs []*mat.Dense
	pre    []*mat.Dense
	masks  []*mat.Dense
}

func (m *MLP) forward(x *mat.Dense, training bool) (*mat.Dense, *trace) {
	var tr *trace
	if training {
		tr = &trace{
			inputs: make([]*mat.Dense, len(m.layers)),
			pre:    make([]*mat.Dense, len(m.layers)),
			masks:  make([]*mat.Dense, len(m.layers)),
		}
	}

	h := x
	for l, layer := range m.layers {
		z, a := layer.forward(h)
		if training {
			tr.inputs[l] = h
			tr.pre[l] = z
			if l < len(m.opt.Dropout) && m.opt.Dropout[l] > 0 {
				mask := m.dropoutMask(a, m.opt.Dropout[l])
				a.MulElem(a, mask)
				tr.masks[l] = mask
			}
		}
		h = a
	}
	return h, tr
}

// dropoutMask zeros units with probability rate and scales the kept ones by 1/(1-rate) so the
// expected activation matches inference.
func (m *MLP) dropoutMask(a *mat.Dense, rate float64) *mat.Dense {
	r, c := a.Dims()
	keep := 1.0 / (1.0 - rate)
	data := make([]float64, r*c)
	for i := range data {
		if m.rng.Float64() >= rate {
			data[i] = keep
		}
	}
	return mat.NewDense(r, c, data)
}

// trainBatch runs one forward/backward pass on the batch, applies an optimizer step and returns
// the batch mean squared error and mean absolute error measured before the update.
func (m *MLP) trainBatch(x *mat.Dense, y []float64, optimizer *adam) (float64, float64) {
	g := m.backprop(x, y)
	optimizer.step(m.layers, g.w, g.b)
	return g.loss, g.mae
}

type gradients struct {
	w         []*mat.Dense
	b         [][]float64
	loss, mae float64
}

// backprop computes the mean squared error gradient of every layer for the batch
func (m *MLP) backprop(x *mat.Dense, y []float64) *gradients {
	out, tr := m.forward(x, true)

	n := len(y)
	g := &gradients{
		w: make([]*mat.Dense, len(m.layers)),
		b: make([][]float64, len(m.layers)),
	}
	dA := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		diff := out.At(i, 0) - y[i]
		g.loss += diff * diff
		g.mae += math.Abs(diff)
		dA.Set(i, 0, 2.0*diff/float64(n))
	}
	g.loss /= float64(n)
	g.mae /= float64(n)

	for l := len(m.layers) - 1; l >= 0; l-- {
		if tr.masks[l] != nil {
			dA.MulElem(dA, tr.masks[l])
		}
		g.w[l], g.b[l], dA = m.layers[l].backward(tr.inputs[l], tr.pre[l], dA, l > 0)
	}
	return g
}

func (m *MLP) designMatrix(x [][]float64) (*mat.Dense, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	X, err := mat_.NewDenseFromWindows(x, m.opt.InputDim)
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err.Error(), ErrShapeMismatch)
	}
	return X, nil
}

// Fit runs the optimization schedule in opt over the rows of x and targets y, continuing from the
// current weights. The trailing ValidationSplit fraction of rows never updates the weights and is
// only used to report validation loss. If no options are provided a default is used.
func (m *MLP) Fit(x [][]float64, y []float64, opt *TrainOptions) (*History, error) {
	if !m.Initialized() {
		return nil, ErrNotInitialized
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d targets, %w, %w", len(x), len(y), ErrTargetLenMismatch, ErrShapeMismatch)
	}
	X, err := m.designMatrix(x)
	if err != nil {
		return nil, err
	}

	n := len(y)
	split := int(math.Floor(float64(n) * (1.0 - opt.ValidationSplit)))
	if split <= 0 {
		log.Warn().
			Int("rows", n).
			Float64("validation_split", opt.ValidationSplit).
			Msg("too few rows to hold out a validation set, training on all rows")
		split = n
	}

	var xVal *mat.Dense
	var yVal []float64
	if split < n {
		xVal = X.Slice(split, n, 0, m.opt.InputDim).(*mat.Dense)
		yVal = y[split:]
	}

	order := make([]int, split)
	for i := range order {
		order[i] = i
	}

	hist := newHistory(opt.Epochs, split, n-split)
	optimizer := newAdam(opt, m.steps)
	defer func() {
		m.steps = optimizer.t
	}()

	var xBuf *mat.Dense
	yBuf := make([]float64, 0, opt.BatchSize)
	for epoch := 0; epoch < opt.Epochs; epoch++ {
		m.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var lossSum, maeSum float64
		for start := 0; start < split; start += opt.BatchSize {
			idx := order[start:min(start+opt.BatchSize, split)]

			dst := xBuf
			if len(idx) != opt.BatchSize {
				dst = nil
			}
			xb, err := mat_.GatherRows(dst, X, idx)
			if err != nil {
				return nil, fmt.Errorf("unable to gather batch at epoch %d, %w", epoch, err)
			}
			if len(idx) == opt.BatchSize {
				xBuf = xb
			}
			yBuf, err = mat_.GatherValues(yBuf, y, idx)
			if err != nil {
				return nil, fmt.Errorf("unable to gather batch targets at epoch %d, %w", epoch, err)
			}

			loss, mae := m.trainBatch(xb, yBuf, optimizer)
			lossSum += loss * float64(len(idx))
			maeSum += mae * float64(len(idx))
		}
		hist.Loss = append(hist.Loss, lossSum/float64(split))
		hist.MAE = append(hist.MAE, maeSum/float64(split))

		evt := log.Debug().
			Int("epoch", epoch+1).
			Float64("loss", hist.Loss[epoch]).
			Float64("mae", hist.MAE[epoch])
		if xVal != nil {
			out, _ := m.forward(xVal, false)
			valLoss, valMAE := lossMAE(mat.Col(nil, 0, out), yVal)
			hist.ValLoss = append(hist.ValLoss, valLoss)
			hist.ValMAE = append(hist.ValMAE, valMAE)
			evt = evt.Float64("val_loss", valLoss)
		}
		evt.Msg("epoch complete")
	}

	log.Info().
		Int("epochs", opt.Epochs).
		Int("train_rows", split).
		Int("validation_rows", n-split).
		Float64("loss", hist.FinalLoss()).
		Msg("fit complete")
	return hist, nil
}

// Predict runs a single inference pass over one window. The output is not clamped to any range.
func (m *MLP) Predict(window []float64) (float64, error) {
	if !m.Initialized() {
		return 0, ErrNotInitialized
	}
	if len(window) != m.opt.InputDim {
		return 0, fmt.Errorf("got window of length %d, expected %d, %w", len(window), m.opt.InputDim, ErrShapeMismatch)
	}

	x := make([]float64, len(window))
	copy(x, window)
	out, _ := m.forward(mat.NewDense(1, len(x), x), false)
	return out.At(0, 0), nil
}

// PredictBatch runs inference over every row of x
func (m *MLP) PredictBatch(x [][]float64) ([]float64, error) {
	if !m.Initialized() {
		return nil, ErrNotInitialized
	}
	X, err := m.designMatrix(x)
	if err != nil {
		return nil, err
	}
	out, _ := m.forward(X, false)
	return mat.Col(nil, 0, out), nil
}

// Score computes fit scores of the current weights against the provided rows and targets
func (m *MLP) Score(x [][]float64, y []float64) (*Scores, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d targets, %w, %w", len(x), len(y), ErrTargetLenMismatch, ErrShapeMismatch)
	}
	predicted, err := m.PredictBatch(x)
	if err != nil {
		return nil, err
	}
	return NewScores(predicted, y)
}

// NumParams is the number of trainable weights and biases
func (m *MLP) NumParams() int {
	var total int
	for _, layer := range m.layers {
		total += layer.numParams()
	}
	return total
}

// TablePrint writes the network layout to w
func (m *MLP) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sNetwork:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sInput: %d\n", prefix, util.IndentExpand(indent, 1), m.opt.InputDim); err != nil {
		return err
	}
	if !m.Initialized() {
		_, err := fmt.Fprintf(w, "%s%sLayers: uninitialized\n", prefix, util.IndentExpand(indent, 1))
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sLayers:\n", prefix, util.IndentExpand(indent, 1)); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sUnits\tActivation\tDropout\tParams\t\n", prefix, util.IndentExpand(indent, 2)); err != nil {
		return err
	}
	for l, layer := range m.layers {
		rate := "..."
		if l < len(m.opt.Dropout) && m.opt.Dropout[l] > 0 {
			rate = fmt.Sprintf("%.2f", m.opt.Dropout[l])
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%d\t%s\t%s\t%d\t\n",
			prefix, util.IndentExpand(indent, 2),
			layer.out, layer.act, rate, layer.numParams()); err != nil {
			return err
		}
	}
	if err := tbl.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s%sParams: %d    Optimizer Steps: %d\n",
		prefix, util.IndentExpand(indent, 1), m.NumParams(), m.steps)
	return err
}
