package history

import (
	"math"
	"math/rand/v2"
)

type Series []float64

// Clip raises every value below floor up to floor
func (s Series) Clip(floor float64) Series {
	for i, v := range s {
		if v < floor {
			s[i] = floor
		}
	}
	return s
}

// Scale multiplies every value by factor
func (s Series) Scale(factor float64) Series {
	for i := range s {
		s[i] *= factor
	}
	return s
}

// GenerateCrashPoints draws n crash points from the usual provably-fair distribution where the
// house keeps houseEdge of every round: P(crash >= x) = (1-houseEdge)/x, floored to cents.
func GenerateCrashPoints(n int, houseEdge float64, rng *rand.Rand) Series {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		// 1 - Float64() lies in (0, 1]
		u := 1.0 - rng.Float64()
		val := math.Floor(100.0*(1.0-houseEdge)/u) / 100.0
		y = append(y, val)
	}
	return Series(y).Clip(MinObservation)
}

// GenerateCycle repeats pattern until n values are produced
func GenerateCycle(n int, pattern []float64) Series {
	y := make([]float64, 0, n)
	if len(pattern) == 0 {
		return Series(y)
	}
	for i := 0; i < n; i++ {
		y = append(y, pattern[i%len(pattern)])
	}
	return Series(y)
}
