package charts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/signal.report/internal/simulation"
)

const (
	baselineHex = "#ff0000"
	logicHex    = "#008000"
)

// RenderHTML writes an interactive page with the three comparison charts.
func RenderHTML(records []simulation.MetricsRecord, path string) error {
	if _, _, err := Split(records); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteHTML(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteHTML renders the comparison page to w.
func WriteHTML(w io.Writer, records []simulation.MetricsRecord) error {
	baseline, logic, err := Split(records)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = "Signal Controller Comparison"
	for _, m := range lineMetrics {
		page.AddCharts(lineChart(m, baseline, logic))
	}
	page.AddCharts(throughputChart(FinalThroughput(baseline, logic)))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func lineData(records []simulation.MetricsRecord, value func(simulation.MetricsRecord) float64) []opts.LineData {
	data := make([]opts.LineData, len(records))
	for i, r := range records {
		data[i] = opts.LineData{Value: []interface{}{r.Step, value(r)}}
	}
	return data
}

func lineChart(m metric, baseline, logic []simulation.MetricsRecord) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: m.title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:         "value",
			Name:         stepLabel,
			NameLocation: "middle",
			NameGap:      25,
			SplitLine:    &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:         m.yLabel,
			NameLocation: "middle",
			NameGap:      40,
			SplitLine:    &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.AddSeries(BaselineLabel, lineData(baseline, m.value),
		charts.WithLineStyleOpts(opts.LineStyle{Color: baselineHex}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: baselineHex}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.AddSeries(LogicLabel, lineData(logic, m.value),
		charts.WithLineStyleOpts(opts.LineStyle{Color: logicHex}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: logicHex}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func throughputChart(values []float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: throughputTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: throughputLabel}),
	)
	bar.SetXAxis([]string{BaselineLabel, LogicLabel}).
		AddSeries("throughput", []opts.BarData{
			{Value: values[0], ItemStyle: &opts.ItemStyle{Color: baselineHex}},
			{Value: values[1], ItemStyle: &opts.ItemStyle{Color: logicHex}},
		},
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
