package models

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestMLP(t *testing.T, opt *MLPOptions) *MLP {
	t.Helper()
	m, err := NewMLP(opt)
	require.Nil(t, err)
	require.Nil(t, m.Initialize())
	return m
}

// cycleData slides a window of 5 over a repeating pattern of crash points
func cycleData(n int) ([][]float64, []float64) {
	pattern := []float64{1.2, 1.5, 2.0, 1.1, 3.0, 1.8, 2.2}
	series := make([]float64, n+5)
	for i := range series {
		series[i] = pattern[i%len(pattern)]
	}
	x := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x = append(x, series[i:i+5])
		y = append(y, series[i+5])
	}
	return x, y
}

func TestMLPUninitialized(t *testing.T) {
	m, err := NewMLP(nil)
	require.Nil(t, err)
	assert.False(t, m.Initialized())

	_, err = m.Predict([]float64{1.5, 2.0, 1.1, 3.0, 1.8})
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = m.PredictBatch([][]float64{{1.5, 2.0, 1.1, 3.0, 1.8}})
	require.ErrorIs(t, err, ErrNotInitialized)

	x, y := cycleData(4)
	_, err = m.Fit(x, y, nil)
	require.ErrorIs(t, err, ErrNotInitialized)

	var nilMLP *MLP
	require.ErrorIs(t, nilMLP.Initialize(), ErrNoOptions)
	assert.False(t, nilMLP.Initialized())
}

func TestMLPInitialize(t *testing.T) {
	m := newTestMLP(t, nil)
	assert.True(t, m.Initialized())
	assert.Equal(t, 5, m.InputDim())
	require.Len(t, m.layers, 4)

	dims := [][2]int{{5, 128}, {128, 64}, {64, 32}, {32, 1}}
	acts := []Activation{ActivationReLU, ActivationReLU, ActivationReLU, ActivationLinear}
	for l, layer := range m.layers {
		r, c := layer.w.Dims()
		assert.Equal(t, dims[l][0], r, "layer %d rows", l)
		assert.Equal(t, dims[l][1], c, "layer %d cols", l)
		assert.Equal(t, acts[l], layer.act, "layer %d activation", l)
		assert.Equal(t, make([]float64, c), layer.b, "layer %d bias", l)

		limit := math.Sqrt(6.0 / float64(r+c))
		for _, w := range layer.w.RawMatrix().Data {
			require.LessOrEqual(t, math.Abs(w), limit)
		}
	}
	assert.Equal(t, 5*128+128+128*64+64+64*32+32+32+1, m.NumParams())
}

func TestMLPReinitializeDiscardsWeights(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 3})
	probe := []float64{1.5, 2.0, 1.1, 3.0, 1.8}

	before, err := m.Predict(probe)
	require.Nil(t, err)

	x, y := cycleData(10)
	opt := NewDefaultTrainOptions()
	opt.Epochs = 5
	_, err = m.Fit(x, y, opt)
	require.Nil(t, err)
	assert.Positive(t, m.steps)

	trained, err := m.Predict(probe)
	require.Nil(t, err)
	assert.NotEqual(t, before, trained)

	// same seed draws the same initial weights
	require.Nil(t, m.Initialize())
	assert.Equal(t, 0, m.steps)
	after, err := m.Predict(probe)
	require.Nil(t, err)
	assert.Equal(t, before, after)
}

func TestMLPPredict(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 11})

	testData := map[string]struct {
		window []float64
		err    error
	}{
		"empty":        {[]float64{}, ErrShapeMismatch},
		"short":        {[]float64{1.5, 2.0, 1.1, 3.0}, ErrShapeMismatch},
		"long":         {[]float64{1.5, 2.0, 1.1, 3.0, 1.8, 2.2}, ErrShapeMismatch},
		"valid":        {[]float64{1.5, 2.0, 1.1, 3.0, 1.8}, nil},
		"large values": {[]float64{1e6, 1, 1, 1e3, 250}, nil},
		"minimums":     {[]float64{1, 1, 1, 1, 1}, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := m.Predict(td.window)
			if td.err != nil {
				require.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.False(t, math.IsNaN(res), "NaN prediction")
			assert.False(t, math.IsInf(res, 0), "infinite prediction")
		})
	}
}

func TestMLPPredictIsDeterministic(t *testing.T) {
	m := newTestMLP(t, nil)
	window := []float64{1.5, 2.0, 1.1, 3.0, 1.8}

	first, err := m.Predict(window)
	require.Nil(t, err)
	for i := 0; i < 10; i++ {
		res, err := m.Predict(window)
		require.Nil(t, err)
		require.Equal(t, first, res, "dropout must not apply at inference")
	}
	assert.Equal(t, []float64{1.5, 2.0, 1.1, 3.0, 1.8}, window)

	batch, err := m.PredictBatch([][]float64{window, window})
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{first, first}, batch, 1e-12)
}

func TestMLPFitErrors(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 1})
	x, y := cycleData(6)

	testData := map[string]struct {
		x   [][]float64
		y   []float64
		opt *TrainOptions
		err error
	}{
		"empty": {
			x:   [][]float64{},
			y:   []float64{},
			err: ErrEmptyTrainingSet,
		},
		"target mismatch": {
			x:   x,
			y:   y[:3],
			err: ErrTargetLenMismatch,
		},
		"target mismatch is a shape mismatch": {
			x:   x,
			y:   y[:3],
			err: ErrShapeMismatch,
		},
		"wrong width": {
			x:   [][]float64{{1, 2, 3}},
			y:   []float64{1},
			err: ErrShapeMismatch,
		},
		"ragged": {
			x:   [][]float64{{1, 2, 3, 4, 5}, {1, 2}},
			y:   []float64{1, 2},
			err: ErrShapeMismatch,
		},
		"invalid options": {
			x:   x,
			y:   y,
			opt: &TrainOptions{LearningRate: -1},
			err: ErrInvalidOptions,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := m.Fit(td.x, td.y, td.opt)
			require.ErrorIs(t, err, td.err)
		})
	}
	assert.Equal(t, 0, m.steps)
}

func TestMLPScoreTargetMismatch(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 1})
	x, y := cycleData(6)

	_, err := m.Score(x, y[:2])
	assert.ErrorIs(t, err, ErrTargetLenMismatch)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMLPOptionsOwnedByModel(t *testing.T) {
	opt := &MLPOptions{InputDim: 5, Hidden: []int{16, 8}, Dropout: []float64{0, 0}, Seed: 1}
	m := newTestMLP(t, opt)
	params := m.NumParams()

	opt.InputDim = 3
	opt.Hidden[0] = 7
	require.Nil(t, m.Initialize())

	assert.Equal(t, 5, m.InputDim())
	assert.Equal(t, params, m.NumParams())
	_, err := m.Predict([]float64{1.2, 1.5, 2.0, 1.1, 3.0})
	require.Nil(t, err)
	_, err = m.Predict([]float64{1.2, 1.5, 2.0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMLPFitReducesLoss(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 42})
	x, y := cycleData(60)

	probe := x[0]
	untrained, err := m.Predict(probe)
	require.Nil(t, err)

	hist, err := m.Fit(x, y, nil)
	require.Nil(t, err)

	assert.Equal(t, DefaultEpochs, hist.Epochs)
	assert.Equal(t, 48, hist.TrainRows)
	assert.Equal(t, 12, hist.ValidationRows)
	require.Len(t, hist.Loss, DefaultEpochs)
	require.Len(t, hist.MAE, DefaultEpochs)
	require.Len(t, hist.ValLoss, DefaultEpochs)
	require.Len(t, hist.ValMAE, DefaultEpochs)

	assert.Less(t, hist.FinalLoss(), hist.Loss[0])
	assert.Less(t, hist.FinalValLoss(), hist.ValLoss[0])

	// 48 training rows is 2 batches per epoch
	assert.Equal(t, 2*DefaultEpochs, m.steps)

	trained, err := m.Predict(probe)
	require.Nil(t, err)
	assert.NotEqual(t, untrained, trained)

	scores, err := m.Score(x, y)
	require.Nil(t, err)
	assert.False(t, math.IsNaN(scores.MSE))
}

func TestMLPFitContinuesFromCurrentWeights(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 5})
	x, y := cycleData(10)

	opt := NewDefaultTrainOptions()
	opt.Epochs = 60

	first, err := m.Fit(x, y, opt)
	require.Nil(t, err)
	assert.Equal(t, 60, m.steps)

	second, err := m.Fit(x, y, opt)
	require.Nil(t, err)
	assert.Equal(t, 120, m.steps)

	// the second call starts where the first left off rather than from random weights
	assert.Less(t, second.Loss[0], first.Loss[0])
}

func TestMLPFitValidationSplit(t *testing.T) {
	testData := map[string]struct {
		rows      int
		split     float64
		trainRows int
		valRows   int
	}{
		"single row trains on everything": {1, 0.2, 1, 0},
		"two rows":                        {2, 0.2, 1, 1},
		"ten rows":                        {10, 0.2, 8, 2},
		"no split":                        {10, 0, 10, 0},
		"half":                            {7, 0.5, 3, 4},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			m := newTestMLP(t, &MLPOptions{Seed: 9})
			x, y := cycleData(td.rows)

			opt := NewDefaultTrainOptions()
			opt.Epochs = 2
			opt.ValidationSplit = td.split

			hist, err := m.Fit(x, y, opt)
			require.Nil(t, err)
			assert.Equal(t, td.trainRows, hist.TrainRows)
			assert.Equal(t, td.valRows, hist.ValidationRows)
			if td.valRows == 0 {
				assert.Empty(t, hist.ValLoss)
				assert.True(t, math.IsNaN(hist.FinalValLoss()))
			} else {
				assert.Len(t, hist.ValLoss, 2)
			}
		})
	}
}

func TestMLPFitDoesNotMutateInputs(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 2})
	x, y := cycleData(8)
	xCopy := make([][]float64, len(x))
	for i := range x {
		xCopy[i] = append([]float64(nil), x[i]...)
	}
	yCopy := append([]float64(nil), y...)

	opt := NewDefaultTrainOptions()
	opt.Epochs = 3
	_, err := m.Fit(x, y, opt)
	require.Nil(t, err)

	assert.Equal(t, xCopy, x)
	assert.Equal(t, yCopy, y)
}

// lossAt evaluates the batch mean squared error without dropout or optimizer updates
func lossAt(m *MLP, x *mat.Dense, y []float64) float64 {
	out, _ := m.forward(x, false)
	loss, _ := lossMAE(mat.Col(nil, 0, out), y)
	return loss
}

func TestMLPBackpropMatchesFiniteDifference(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{
		InputDim: 3,
		Hidden:   []int{4, 3},
		Dropout:  []float64{0, 0},
		Seed:     17,
	})
	x := mat.NewDense(4, 3, []float64{
		1.2, 1.5, 2.0,
		1.1, 3.0, 1.8,
		2.2, 1.3, 1.0,
		4.5, 1.1, 1.6,
	})
	y := []float64{1.8, 2.2, 1.4, 1.9}

	g := m.backprop(x, y)
	assert.InDelta(t, lossAt(m, x, y), g.loss, 1e-12)

	eps := 1e-6
	for l, layer := range m.layers {
		w := layer.w.RawMatrix().Data
		grad := g.w[l].RawMatrix().Data
		for i := range w {
			orig := w[i]
			w[i] = orig + eps
			up := lossAt(m, x, y)
			w[i] = orig - eps
			down := lossAt(m, x, y)
			w[i] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, grad[i], 1e-5, "layer %d weight %d", l, i)
		}
		for i := range layer.b {
			orig := layer.b[i]
			layer.b[i] = orig + eps
			up := lossAt(m, x, y)
			layer.b[i] = orig - eps
			down := lossAt(m, x, y)
			layer.b[i] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, g.b[l][i], 1e-5, "layer %d bias %d", l, i)
		}
	}
}

func TestDropoutMask(t *testing.T) {
	m := newTestMLP(t, &MLPOptions{Seed: 4})
	a := mat.NewDense(100, 50, nil)
	mask := m.dropoutMask(a, 0.2)

	var kept int
	for _, v := range mask.RawMatrix().Data {
		if v == 0 {
			continue
		}
		kept++
		assert.InDelta(t, 1.25, v, 1e-12)
	}
	// roughly 80% of 5000 units survive
	assert.InDelta(t, 4000, kept, 200)
}

func TestMLPTablePrint(t *testing.T) {
	m, err := NewMLP(&MLPOptions{InputDim: 3, Hidden: []int{4}, Dropout: []float64{0.2}, Seed: 1})
	require.Nil(t, err)

	var buf bytes.Buffer
	require.Nil(t, m.TablePrint(&buf, "", "  "))
	assert.Equal(t, "Network:\n  Input: 3\n  Layers: uninitialized\n", buf.String())

	require.Nil(t, m.Initialize())
	buf.Reset()
	require.Nil(t, m.TablePrint(&buf, "", "  "))
	out := buf.String()
	assert.Contains(t, out, "Layers:\n")
	assert.Contains(t, out, "relu")
	assert.Contains(t, out, "linear")
	assert.Contains(t, out, "0.20")
	assert.Contains(t, out, "Params: 21    Optimizer Steps: 0\n")
}
