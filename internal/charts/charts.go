// Package charts renders the baseline-vs-logic comparison charts from
// simulation metrics, as static PNG files and as one interactive HTML page.
package charts

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/banshee-data/signal.report/internal/simulation"
)

// Output file names, written into the chart directory.
const (
	WaitingTimeFile = "waiting_time_comparison.png"
	QueueLengthFile = "queue_length_comparison.png"
	ThroughputFile  = "throughput_comparison.png"
)

// Series labels.
const (
	BaselineLabel = "Baseline"
	LogicLabel    = "Logic Engine"
)

var (
	baselineColor = color.RGBA{R: 255, A: 255}
	logicColor    = color.RGBA{G: 128, A: 255}
)

// ErrEmptyMode is returned when one of the two modes has no rows.
var ErrEmptyMode = errors.New("no metrics for mode")

// Split separates records by mode, preserving order. Both modes must be
// present.
func Split(records []simulation.MetricsRecord) (baseline, logic []simulation.MetricsRecord, err error) {
	for _, r := range records {
		switch r.Mode {
		case simulation.Baseline:
			baseline = append(baseline, r)
		case simulation.Logic:
			logic = append(logic, r)
		}
	}
	if len(baseline) == 0 {
		return nil, nil, fmt.Errorf("%w %q", ErrEmptyMode, simulation.Baseline)
	}
	if len(logic) == 0 {
		return nil, nil, fmt.Errorf("%w %q", ErrEmptyMode, simulation.Logic)
	}
	return baseline, logic, nil
}

// FinalThroughput returns the last throughput of each mode, baseline first.
func FinalThroughput(baseline, logic []simulation.MetricsRecord) []float64 {
	return []float64{
		float64(baseline[len(baseline)-1].Throughput),
		float64(logic[len(logic)-1].Throughput),
	}
}

// metric selects one plotted column of a record.
type metric struct {
	title  string
	yLabel string
	file   string
	value  func(simulation.MetricsRecord) float64
}

var lineMetrics = []metric{
	{
		title:  "Average Waiting Time Over Time",
		yLabel: "Average Waiting Time (s)",
		file:   WaitingTimeFile,
		value:  func(r simulation.MetricsRecord) float64 { return r.AvgWaitingTime },
	},
	{
		title:  "Average Queue Length Over Time",
		yLabel: "Average Queue Length (vehicles)",
		file:   QueueLengthFile,
		value:  func(r simulation.MetricsRecord) float64 { return r.AvgQueueLength },
	},
}

const (
	stepLabel       = "Simulation Step"
	throughputTitle = "Total Throughput Comparison"
	throughputLabel = "Vehicles Arrived"
)
