package crashcast

import (
	"errors"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoTrainReport = errors.New("no train report to plot")

// LineSeries generates an echart multi-line chart indexed by position. Every series must have the
// same length as x. NaN values are left as gaps.
func LineSeries(title string, seriesName []string, x []int, y [][]float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	line = line.SetXAxis(x)
	for i, series := range seriesName {
		lineData := make([]opts.LineData, 0, len(y[i]))
		for _, v := range y[i] {
			if math.IsNaN(v) {
				lineData = append(lineData, opts.LineData{Value: "-"})
				continue
			}
			lineData = append(lineData, opts.LineData{Value: v})
		}
		line = line.AddSeries(series, lineData)
	}
	return line
}

// LineLoss charts the per epoch training and validation loss of a train report
func LineLoss(report *TrainReport) *charts.Line {
	hist := report.History
	epochs := make([]int, len(hist.Loss))
	for i := range epochs {
		epochs[i] = i + 1
	}

	names := []string{"Loss"}
	series := [][]float64{hist.Loss}
	if len(hist.ValLoss) > 0 {
		names = append(names, "Val Loss")
		series = append(series, hist.ValLoss)
	}
	return LineSeries("Training Loss", names, epochs, series)
}

// LineHistory charts the observed crash points followed by the predicted next value
func LineHistory(history []float64, prediction float64) *charts.Line {
	n := len(history) + 1
	idx := make([]int, n)
	observed := make([]float64, n)
	predicted := make([]float64, n)
	for i := range n {
		idx[i] = i
		observed[i] = math.NaN()
		predicted[i] = math.NaN()
	}
	copy(observed, history)
	if len(history) > 0 {
		// join the prediction to the last observation
		predicted[n-2] = history[n-2]
	}
	predicted[n-1] = prediction

	return LineSeries(
		"Crash Points",
		[]string{"Observed", "Predicted"},
		idx,
		[][]float64{observed, predicted},
	)
}

// PlotTraining renders an html page with the training loss and the history with its prediction
func PlotTraining(w io.Writer, report *TrainReport, history []float64, prediction float64) error {
	if report == nil || report.History == nil {
		return ErrNoTrainReport
	}

	page := components.NewPage()
	page.AddCharts(
		LineLoss(report),
		LineHistory(history, prediction),
	)
	return page.Render(w)
}
