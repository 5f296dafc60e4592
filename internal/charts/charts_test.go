package charts

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/signal.report/internal/simulation"
)

func sampleRecords() []simulation.MetricsRecord {
	var out []simulation.MetricsRecord
	for i := 0; i < 5; i++ {
		out = append(out, simulation.MetricsRecord{
			Step: i, Mode: simulation.Baseline,
			AvgWaitingTime: float64(i) * 1.5, AvgQueueLength: float64(i), Throughput: i * 10,
		})
	}
	out[4].Throughput = 42
	for i := 0; i < 5; i++ {
		out = append(out, simulation.MetricsRecord{
			Step: i, Mode: simulation.Logic,
			AvgWaitingTime: float64(i), AvgQueueLength: float64(i) / 2, Throughput: i * 12,
		})
	}
	out[9].Throughput = 50
	return out
}

func TestSplit(t *testing.T) {
	baseline, logic, err := Split(sampleRecords())
	require.NoError(t, err)
	assert.Len(t, baseline, 5)
	assert.Len(t, logic, 5)
	for _, r := range baseline {
		assert.Equal(t, simulation.Baseline, r.Mode)
	}
	assert.Equal(t, 3, logic[3].Step)
}

func TestSplit_EmptyMode(t *testing.T) {
	onlyBaseline := []simulation.MetricsRecord{{Step: 0, Mode: simulation.Baseline}}
	_, _, err := Split(onlyBaseline)
	assert.ErrorIs(t, err, ErrEmptyMode)

	onlyLogic := []simulation.MetricsRecord{{Step: 0, Mode: simulation.Logic}}
	_, _, err = Split(onlyLogic)
	assert.ErrorIs(t, err, ErrEmptyMode)

	_, _, err = Split(nil)
	assert.ErrorIs(t, err, ErrEmptyMode)
}

func TestFinalThroughput(t *testing.T) {
	baseline, logic, err := Split(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 50}, FinalThroughput(baseline, logic))
}

func TestRenderPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	files, err := RenderPNG(sampleRecords(), dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, WaitingTimeFile),
		filepath.Join(dir, QueueLengthFile),
		filepath.Join(dir, ThroughputFile),
	}
	assert.Equal(t, want, files)
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(data))
		assert.NoError(t, err, f)
	}
}

func TestRenderPNG_EmptyMode(t *testing.T) {
	dir := t.TempDir()
	_, err := RenderPNG([]simulation.MetricsRecord{{Mode: simulation.Logic}}, dir)
	assert.ErrorIs(t, err, ErrEmptyMode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleRecords()))

	html := buf.String()
	for _, s := range []string{
		"Average Waiting Time Over Time",
		"Average Queue Length Over Time",
		"Total Throughput Comparison",
		BaselineLabel,
		LogicLabel,
	} {
		assert.True(t, strings.Contains(html, s), "page is missing %q", s)
	}
}

func TestRenderHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "comparison.html")
	require.NoError(t, RenderHTML(sampleRecords(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.ErrorIs(t, RenderHTML(nil, path), ErrEmptyMode)
}
