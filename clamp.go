package crashcast

import "math"

// Clamp raises v to floor when it falls below it. A NaN prediction is reported as floor.
func Clamp(v, floor float64) float64 {
	if math.IsNaN(v) || v < floor {
		return floor
	}
	return v
}
