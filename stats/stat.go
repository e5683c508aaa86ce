// Package stats summarizes an observation history for display next to a prediction.
package stats

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/aouyang1/go-crashcast/util"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultLowerPercentile = 0.1
	DefaultUpperPercentile = 0.9
	DefaultTukeyFactor     = 1.0
)

var ErrTooFewObservations = errors.New("need at least 2 observations to summarize")

type Trend string

const (
	TrendIncreasing Trend = "Increasing"
	TrendDecreasing Trend = "Decreasing"
)

// Summary describes a history at a glance
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Trend    Trend   `json:"trend"`
	Outliers []int   `json:"outliers,omitempty"`
}

// Summarize computes the mean, spread and the direction of the last step. A last step that is not
// strictly higher than the one before it counts as decreasing.
func Summarize(y []float64) (*Summary, error) {
	if len(y) < 2 {
		return nil, fmt.Errorf("got %d, %w", len(y), ErrTooFewObservations)
	}
	mean, std := stat.MeanStdDev(y, nil)

	trend := TrendDecreasing
	if y[len(y)-1] > y[len(y)-2] {
		trend = TrendIncreasing
	}
	return &Summary{
		Count:    len(y),
		Mean:     mean,
		StdDev:   std,
		Min:      floats.Min(y),
		Max:      floats.Max(y),
		Trend:    trend,
		Outliers: DetectOutliers(y, DefaultLowerPercentile, DefaultUpperPercentile, DefaultTukeyFactor),
	}, nil
}

// DetectOutliers returns the indexes of values falling outside the percentile range widened by
// tukeyFactor times its width on each side
func DetectOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) []int {
	if len(y) == 0 {
		return nil
	}
	lowerPerc = math.Max(lowerPerc, 0.0)
	upperPerc = math.Min(upperPerc, 1.0)
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	yCopy := make([]float64, len(y))
	copy(yCopy, y)
	sort.Float64s(yCopy)

	lower := stat.Quantile(lowerPerc, stat.Empirical, yCopy, nil)
	upper := stat.Quantile(upperPerc, stat.Empirical, yCopy, nil)
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor

	var outlierIdx []int
	for i := 0; i < len(y); i++ {
		if y[i] > upper || y[i] < lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}

// TablePrint writes the summary in the same layout as the network table
func (s *Summary) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sHistory:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sCount: %d    Average: %.2fx    StdDev: %.2f\n",
		prefix, util.IndentExpand(indent, 1), s.Count, s.Mean, s.StdDev); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sMin: %.2fx    Max: %.2fx    Trend: %s\n",
		prefix, util.IndentExpand(indent, 1), s.Min, s.Max, s.Trend); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s%sOutliers: %d\n", prefix, util.IndentExpand(indent, 1), len(s.Outliers))
	return err
}
