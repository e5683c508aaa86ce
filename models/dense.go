package models

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer computing act(x*W + b) for a batch x of shape n x in
type dense struct {
	in, out int
	act     Activation

	w *mat.Dense // in x out
	b []float64

	// first and second moment estimates for Adam
	mW, vW []float64
	mB, vB []float64
}

// newDense draws the kernel from a Glorot uniform distribution and zeros the bias
func newDense(in, out int, act Activation, rng *rand.Rand) *dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (2.0*rng.Float64() - 1.0) * limit
	}
	return &dense{
		in:  in,
		out: out,
		act: act,
		w:   mat.NewDense(in, out, w),
		b:   make([]float64, out),
		mW:  make([]float64, in*out),
		vW:  make([]float64, in*out),
		mB:  make([]float64, out),
		vB:  make([]float64, out),
	}
}

// forward returns the pre-activation z and the activation a. For a linear layer they are the same
// matrix.
func (d *dense) forward(x mat.Matrix) (*mat.Dense, *mat.Dense) {
	n, _ := x.Dims()
	z := mat.NewDense(n, d.out, nil)
	z.Mul(x, d.w)
	for i := 0; i < n; i++ {
		floats.Add(z.RawRowView(i), d.b)
	}
	if d.act == ActivationLinear {
		return z, z
	}

	a := mat.NewDense(n, d.out, nil)
	a.Apply(func(_, _ int, v float64) float64 {
		return d.act.apply(v)
	}, z)
	return z, a
}

// backward takes the loss gradient with respect to this layer's activation and returns the kernel
// and bias gradients along with the gradient with respect to the layer input. The input gradient
// is skipped when withInput is false.
func (d *dense) backward(x, z, dA *mat.Dense, withInput bool) (*mat.Dense, []float64, *mat.Dense) {
	n, _ := dA.Dims()

	dZ := dA
	if d.act != ActivationLinear {
		dZ = mat.NewDense(n, d.out, nil)
		dZ.Apply(func(i, j int, v float64) float64 {
			return v * d.act.derivative(z.At(i, j))
		}, dA)
	}

	gradW := mat.NewDense(d.in, d.out, nil)
	gradW.Mul(x.T(), dZ)

	gradB := make([]float64, d.out)
	for i := 0; i < n; i++ {
		floats.Add(gradB, dZ.RawRowView(i))
	}

	if !withInput {
		return gradW, gradB, nil
	}
	dX := mat.NewDense(n, d.in, nil)
	dX.Mul(dZ, d.w.T())
	return gradW, gradB, dX
}

func (d *dense) numParams() int {
	return d.in*d.out + d.out
}
