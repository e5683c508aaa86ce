package models

// Activation is the element-wise nonlinearity applied to a dense layer's output
type Activation string

const (
	ActivationLinear Activation = "linear"
	ActivationReLU   Activation = "relu"
)

func (a Activation) apply(v float64) float64 {
	if a == ActivationReLU && v < 0 {
		return 0
	}
	return v
}

// derivative is evaluated at the pre-activation value
func (a Activation) derivative(z float64) float64 {
	if a == ActivationReLU && z < 0 {
		return 0
	}
	return 1
}
