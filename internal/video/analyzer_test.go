package video

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/signal.report/internal/geometry"
	"github.com/banshee-data/signal.report/internal/testutil"
	"github.com/banshee-data/signal.report/internal/vision"
)

type fakeSource struct {
	info   vision.StreamInfo
	frames int
	next   int
	failAt int // 1-based frame that fails to decode; 0 disables
	closed bool
}

func (s *fakeSource) Info() vision.StreamInfo { return s.info }

func (s *fakeSource) Next() (image.Image, error) {
	if s.failAt > 0 && s.next+1 == s.failAt {
		return nil, errors.New("corrupt frame")
	}
	if s.next >= s.frames {
		return nil, io.EOF
	}
	s.next++
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeDetector struct {
	byFrame map[int][]vision.Detection
	fail    map[int]error
	calls   int
}

func (d *fakeDetector) Detect(_ context.Context, frame int, _ image.Image) ([]vision.Detection, error) {
	d.calls++
	if err := d.fail[frame]; err != nil {
		return nil, err
	}
	return d.byFrame[frame], nil
}

// square returns a region covering [x0,x1]x[y0,y1] in resized pixels.
func square(name string, x0, y0, x1, y1 int) geometry.Region {
	return geometry.Region{Name: name, Points: []geometry.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}}
}

func testConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		Resize:         geometry.Size{Width: 640, Height: 360},
		Reference:      geometry.Size{Width: 640, Height: 360},
		AllowedClasses: []string{"car", "bus", "truck"},
		Threshold:      0.25,
		Regions: []geometry.Region{
			square("lane_a", 0, 0, 100, 100),
			square("junction", 50, 50, 300, 300),
		},
		BufferRadius: geometry.DefaultBufferRadius,
	}
}

func car(x1, y1, x2, y2 float64) vision.Detection {
	return vision.Detection{ClassID: 2, Confidence: 0.9, Box: vision.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func TestAnalyze_BucketsAndLanes(t *testing.T) {
	testutil.SilenceLogs(t)
	src := &fakeSource{info: vision.StreamInfo{Width: 640, Height: 360, FPS: 1}, frames: 7}
	det := &fakeDetector{byFrame: map[int][]vision.Detection{
		2: {car(70, 70, 90, 90)},                                                         // overlap: first region wins
		3: {{ClassID: 0, Confidence: 0.99, Box: vision.Box{X1: 1, Y1: 1, X2: 3, Y2: 3}}}, // person, filtered
		5: {{ClassID: 7, Confidence: 0.5, Box: vision.Box{X1: 200, Y1: 200, X2: 220, Y2: 220}}},
		6: {car(500, 300, 520, 320), {ClassID: 5, Confidence: 0.1, Box: vision.Box{X1: 10, Y1: 10, X2: 12, Y2: 12}}},
	}}

	a := &Analyzer{Config: testConfig(), Source: src, Detector: det}
	summary, report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.True(t, src.closed)

	assert.Equal(t, []int{0, 1}, summary.Indexes())
	want0 := &Bucket{
		VehicleCounts: map[string]int{"car": 1},
		VehicleDepartures: []VehicleRecord{
			{VehicleID: "car_2", Type: "car", Lane: "lane_a", Depart: 2},
		},
	}
	want1 := &Bucket{
		VehicleCounts: map[string]int{"truck": 1, "car": 1},
		VehicleDepartures: []VehicleRecord{
			{VehicleID: "truck_5", Type: "truck", Lane: "junction", Depart: 5},
			{VehicleID: "car_6", Type: "car", Lane: geometry.Unknown, Depart: 6},
		},
	}
	if diff := cmp.Diff(want0, summary.Buckets[0]); diff != "" {
		t.Errorf("bucket 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want1, summary.Buckets[1]); diff != "" {
		t.Errorf("bucket 1 mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 7, report.Frames)
	assert.Equal(t, 3, report.Vehicles)
	assert.Empty(t, report.Skips)
}

func TestAnalyze_DepartWithinBucket(t *testing.T) {
	testutil.SilenceLogs(t)
	const frames = 400
	byFrame := map[int][]vision.Detection{}
	for i := 0; i < frames; i++ {
		byFrame[i] = []vision.Detection{car(10, 10, 20, 20)}
	}
	src := &fakeSource{info: vision.StreamInfo{FPS: 29.97}, frames: frames}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: &fakeDetector{byFrame: byFrame}}

	summary, report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frames, report.Vehicles)

	width := summary.Interval.Seconds()
	for idx, b := range summary.Buckets {
		start := float64(idx) * width
		for _, rec := range b.VehicleDepartures {
			assert.GreaterOrEqual(t, rec.Depart, start, rec.VehicleID)
			assert.Less(t, rec.Depart, start+width, rec.VehicleID)
		}
	}
}

func TestAnalyze_RoundedDepartOpensNextBucket(t *testing.T) {
	testutil.SilenceLogs(t)
	// At 29.97 fps frame 899 is at 29.9966s, which rounds to 30.00.
	src := &fakeSource{info: vision.StreamInfo{FPS: 30000.0 / 1001.0}, frames: 901}
	det := &fakeDetector{byFrame: map[int][]vision.Detection{899: {car(10, 10, 20, 20)}}}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: det}

	summary, _, err := a.Analyze(context.Background())
	require.NoError(t, err)

	require.Contains(t, summary.Buckets, 6)
	recs := summary.Buckets[6].VehicleDepartures
	require.Len(t, recs, 1)
	assert.Equal(t, 30.0, recs[0].Depart)
	assert.Equal(t, "car_899", recs[0].VehicleID)
	assert.Equal(t, "00:00:30 - 00:00:35", summary.Key(6))
	assert.Empty(t, summary.Buckets[5].VehicleDepartures)
}

func TestAnalyze_DefaultFPS(t *testing.T) {
	testutil.SilenceLogs(t)
	src := &fakeSource{frames: 31}
	det := &fakeDetector{byFrame: map[int][]vision.Detection{30: {car(10, 10, 20, 20)}}}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: det}

	summary, _, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, summary.Buckets[0].VehicleDepartures[0].Depart)
}

func TestAnalyze_BucketCreatedPerInterval(t *testing.T) {
	testutil.SilenceLogs(t)
	src := &fakeSource{info: vision.StreamInfo{FPS: 1}, frames: 12}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: &fakeDetector{}}

	summary, _, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, summary.Indexes())
	for _, b := range summary.Buckets {
		assert.Empty(t, b.VehicleCounts)
		assert.NotNil(t, b.VehicleDepartures)
	}
}

func TestAnalyze_DetectorFailureSkipsFrame(t *testing.T) {
	testutil.SilenceLogs(t)
	src := &fakeSource{info: vision.StreamInfo{FPS: 1}, frames: 3}
	det := &fakeDetector{
		byFrame: map[int][]vision.Detection{0: {car(10, 10, 20, 20)}, 1: {car(10, 10, 20, 20)}, 2: {car(10, 10, 20, 20)}},
		fail:    map[int]error{1: vision.ErrDetection},
	}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: det}

	summary, report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, det.calls)
	assert.Equal(t, 2, report.Vehicles)
	assert.Equal(t, 1, report.SkippedFrames())
	require.Len(t, report.Skips, 1)
	assert.Equal(t, Skip{Frame: 1, Box: -1, Reason: vision.ErrDetection.Error()}, report.Skips[0])

	ids := []string{}
	for _, rec := range summary.Buckets[0].VehicleDepartures {
		ids = append(ids, rec.VehicleID)
	}
	assert.Equal(t, []string{"car_0", "car_2"}, ids)
}

func TestAnalyze_MalformedBoxesSkipped(t *testing.T) {
	testutil.SilenceLogs(t)
	src := &fakeSource{info: vision.StreamInfo{FPS: 1}, frames: 1}
	det := &fakeDetector{byFrame: map[int][]vision.Detection{0: {
		{ClassID: 99, Confidence: 0.9},
		{ClassID: 2, Confidence: 0.9, Box: vision.Box{X1: math.NaN(), Y1: 1, X2: 2, Y2: 2}},
		car(10, 10, 20, 20),
	}}}
	a := &Analyzer{Config: testConfig(), Source: src, Detector: det}

	summary, report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Vehicles)
	require.Len(t, report.Skips, 2)
	assert.Equal(t, 0, report.Skips[0].Box)
	assert.Equal(t, 1, report.Skips[1].Box)
	assert.Zero(t, report.SkippedFrames())
	assert.Equal(t, map[string]int{"car": 1}, summary.Buckets[0].VehicleCounts)
}

func TestAnalyze_Aborts(t *testing.T) {
	testutil.SilenceLogs(t)

	t.Run("decode error", func(t *testing.T) {
		src := &fakeSource{info: vision.StreamInfo{FPS: 1}, frames: 5, failAt: 3}
		_, _, err := (&Analyzer{Config: testConfig(), Source: src, Detector: &fakeDetector{}}).Analyze(context.Background())
		assert.Error(t, err)
		assert.True(t, src.closed)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := &fakeSource{frames: 5}
		_, _, err := (&Analyzer{Config: testConfig(), Source: src, Detector: &fakeDetector{}}).Analyze(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("bad interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.Interval = 0
		_, _, err := (&Analyzer{Config: cfg, Source: &fakeSource{}, Detector: &fakeDetector{}}).Analyze(context.Background())
		assert.Error(t, err)
	})

	t.Run("bad reference", func(t *testing.T) {
		cfg := testConfig()
		cfg.Reference = geometry.Size{}
		_, _, err := (&Analyzer{Config: cfg, Source: &fakeSource{}, Detector: &fakeDetector{}}).Analyze(context.Background())
		assert.Error(t, err)
	})
}

func TestAnalyze_ScalesRegions(t *testing.T) {
	testutil.SilenceLogs(t)
	cfg := testConfig()
	cfg.Reference = geometry.Size{Width: 1280, Height: 720}
	cfg.Regions = []geometry.Region{square("far", 400, 400, 600, 600)}

	src := &fakeSource{info: vision.StreamInfo{FPS: 1}, frames: 1}
	// (250, 250) in resized space is (500, 500) in reference space.
	det := &fakeDetector{byFrame: map[int][]vision.Detection{0: {car(240, 240, 260, 260)}}}
	summary, _, err := (&Analyzer{Config: cfg, Source: src, Detector: det}).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "far", summary.Buckets[0].VehicleDepartures[0].Lane)
}

func TestAnalyze_ScalesRegionsFromNativeSize(t *testing.T) {
	testutil.SilenceLogs(t)
	cfg := testConfig()
	cfg.Reference = geometry.Size{}
	cfg.Regions = []geometry.Region{square("far", 400, 400, 600, 600)}

	src := &fakeSource{info: vision.StreamInfo{Width: 1280, Height: 720, FPS: 1}, frames: 1}
	det := &fakeDetector{byFrame: map[int][]vision.Detection{0: {car(240, 240, 260, 260)}}}
	summary, _, err := (&Analyzer{Config: cfg, Source: src, Detector: det}).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "far", summary.Buckets[0].VehicleDepartures[0].Lane)
}
