package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/signal.report/internal/simulation"
)

// RenderPNG writes the three comparison charts into dir and returns their
// paths.
func RenderPNG(records []simulation.MetricsRecord, dir string) ([]string, error) {
	baseline, logic, err := Split(records)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart directory: %w", err)
	}

	var files []string
	for _, m := range lineMetrics {
		p, err := linePlot(m, baseline, logic)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.file, err)
		}
		path := filepath.Join(dir, m.file)
		if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", m.file, err)
		}
		files = append(files, path)
	}

	p, err := throughputPlot(FinalThroughput(baseline, logic))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ThroughputFile, err)
	}
	path := filepath.Join(dir, ThroughputFile)
	if err := p.Save(6*vg.Inch, 5*vg.Inch, path); err != nil {
		return nil, fmt.Errorf("save %s: %w", ThroughputFile, err)
	}
	return append(files, path), nil
}

func xys(records []simulation.MetricsRecord, value func(simulation.MetricsRecord) float64) plotter.XYs {
	pts := make(plotter.XYs, len(records))
	for i, r := range records {
		pts[i] = plotter.XY{X: float64(r.Step), Y: value(r)}
	}
	return pts
}

func linePlot(m metric, baseline, logic []simulation.MetricsRecord) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = m.title
	p.X.Label.Text = stepLabel
	p.Y.Label.Text = m.yLabel
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		label   string
		records []simulation.MetricsRecord
		color   color.Color
	}{
		{BaselineLabel, baseline, baselineColor},
		{LogicLabel, logic, logicColor},
	} {
		line, err := plotter.NewLine(xys(s.records, m.value))
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(1.5)
		line.Color = s.color
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func throughputPlot(values []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = throughputTitle
	p.Y.Label.Text = throughputLabel
	p.Y.Min = 0

	width := vg.Points(60)
	for i, c := range []color.Color{baselineColor, logicColor} {
		bar, err := plotter.NewBarChart(plotter.Values{values[i]}, width)
		if err != nil {
			return nil, err
		}
		bar.XMin = float64(i)
		bar.LineStyle.Width = 0
		bar.Color = c
		p.Add(bar)
	}
	p.NominalX(BaselineLabel, LogicLabel)
	return p, nil
}
