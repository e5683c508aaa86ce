package crashcast

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-crashcast/models"
)

// TrainReport summarizes a completed Train call
type TrainReport struct {
	Pairs    int             `json:"pairs"`
	Duration time.Duration   `json:"duration_ns"`
	History  *models.History `json:"history"`
	Scores   *models.Scores  `json:"scores"`

	// Baseline scores an ordinary least squares fit on the same pairs. It is nil when there are too
	// few pairs or the windows are collinear.
	Baseline *models.Scores `json:"baseline,omitempty"`
}

// TablePrint prints the training summary in tabular form
func (r *TrainReport) TablePrint(w io.Writer, prefix, indent string) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tbl, "%sTraining:\n", prefix)
	if r == nil || r.History == nil {
		fmt.Fprintf(tbl, "%s%sno training run\n", prefix, indent)
		return tbl.Flush()
	}
	fmt.Fprintf(tbl, "%s%sPairs: %d\tEpochs: %d\tDuration: %s\t\n",
		prefix, indent, r.Pairs, r.History.Epochs, r.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(tbl, "%s%sLoss: %.5f\tVal Loss: %.5f\t\n",
		prefix, indent, r.History.FinalLoss(), r.History.FinalValLoss(),
	)
	if r.Scores != nil {
		fmt.Fprintf(tbl, "%s%sMSE: %.5f\tMAE: %.5f\tR2: %.5f\t\n",
			prefix, indent, r.Scores.MSE, r.Scores.MAE, r.Scores.R2,
		)
	}
	if r.Baseline != nil {
		fmt.Fprintf(tbl, "%s%sBaseline MSE: %.5f\tBaseline MAE: %.5f\tBaseline R2: %.5f\t\n",
			prefix, indent, r.Baseline.MSE, r.Baseline.MAE, r.Baseline.R2,
		)
	}
	return tbl.Flush()
}
