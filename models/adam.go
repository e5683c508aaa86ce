package models

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam keeps the step count of the optimizer. The moment estimates live on each layer so they
// survive across Fit calls together with the weights.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
}

func newAdam(opt *TrainOptions, t int) *adam {
	return &adam{
		lr:    opt.LearningRate,
		beta1: opt.Beta1,
		beta2: opt.Beta2,
		eps:   opt.Epsilon,
		t:     t,
	}
}

// update applies one bias corrected Adam step to param in place
func (o *adam) update(param, grad, m, v []float64) {
	b1Corr := 1.0 - math.Pow(o.beta1, float64(o.t))
	b2Corr := 1.0 - math.Pow(o.beta2, float64(o.t))
	for i, g := range grad {
		m[i] = o.beta1*m[i] + (1-o.beta1)*g
		v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
		mhat := m[i] / b1Corr
		vhat := v[i] / b2Corr
		param[i] -= o.lr * mhat / (math.Sqrt(vhat) + o.eps)
	}
}

func (o *adam) step(layers []*dense, gradW []*mat.Dense, gradB [][]float64) {
	o.t++
	for l, layer := range layers {
		o.update(layer.w.RawMatrix().Data, gradW[l].RawMatrix().Data, layer.mW, layer.vW)
		o.update(layer.b, gradB[l], layer.mB, layer.vB)
	}
}
