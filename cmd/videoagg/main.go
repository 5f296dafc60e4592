// Command videoagg counts vehicles per lane and per time interval in drone
// footage and writes the summary as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/signal.report/internal/config"
	"github.com/banshee-data/signal.report/internal/geometry"
	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/store"
	"github.com/banshee-data/signal.report/internal/version"
	"github.com/banshee-data/signal.report/internal/video"
	"github.com/banshee-data/signal.report/internal/vision"
	"github.com/banshee-data/signal.report/internal/vision/opencv"
)

// yoloInputSize is the square input edge of the stock YOLOv8 ONNX exports.
const yoloInputSize = 640

func main() {
	var (
		configPath   string
		videoPath    string
		outputPath   string
		detectorKind string
		dbPath       string
		showVersion  bool
	)
	flag.StringVar(&configPath, "config", "", "path to analysis config JSON (defaults are built in)")
	flag.StringVar(&videoPath, "video", "", "input video path")
	flag.StringVar(&outputPath, "out", "", "summary JSON output path")
	flag.StringVar(&detectorKind, "detector", "", "detector: yolo, http or replay")
	flag.StringVar(&dbPath, "db", "", "optional SQLite results database")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("videoagg"))
		return
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if videoPath == "" {
		videoPath = cfg.GetVideoPath()
	}
	if outputPath == "" {
		outputPath = cfg.GetSummaryPath()
	}
	if detectorKind == "" {
		detectorKind = cfg.GetDetectorKind()
	}
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	regions, err := cfg.GetRegions()
	if err != nil {
		log.Fatalf("load regions: %v", err)
	}
	resize := geometry.Size{Width: cfg.GetResizeWidth(), Height: cfg.GetResizeHeight()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detector, closeDetector, err := newDetector(ctx, cfg, detectorKind)
	if err != nil {
		log.Fatalf("create %s detector: %v", detectorKind, err)
	}
	defer closeDetector()

	source, err := openSource(videoPath, resize)
	if err != nil {
		closeDetector()
		os.Exit(1)
	}

	analyzer := &video.Analyzer{
		Config: video.Config{
			Interval:       cfg.GetInterval(),
			Resize:         resize,
			Reference:      geometry.Size{Width: cfg.GetReferenceWidth(), Height: cfg.GetReferenceHeight()},
			AllowedClasses: cfg.GetAllowedClasses(),
			Threshold:      cfg.GetDetectionThreshold(),
			Regions:        regions,
			BufferRadius:   cfg.GetBufferRadius(),
		},
		Source:   source,
		Detector: detector,
	}

	summary, report, err := analyzer.Analyze(ctx)
	if err != nil {
		log.Fatalf("analyze %s: %v", videoPath, err)
	}
	if n := len(report.Skips); n > 0 {
		monitoring.Warnf("%d frame(s) and %d box(es) were skipped", report.SkippedFrames(), n-report.SkippedFrames())
	}

	if err := writeSummary(outputPath, summary); err != nil {
		log.Fatalf("write summary: %v", err)
	}
	monitoring.Infof("Saved results to %s", outputPath)

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("open results database: %v", err)
		}
		defer st.Close()
		id, err := st.SaveSummary(videoPath, summary)
		if err != nil {
			log.Fatalf("store summary: %v", err)
		}
		monitoring.Infof("Stored run %s in %s", id, dbPath)
	}
}

// openSource opens the video at path, reporting failure on the error log.
func openSource(path string, resize geometry.Size) (vision.FrameSource, error) {
	source, err := opencv.OpenVideo(path, image.Pt(resize.Width, resize.Height))
	if err != nil {
		monitoring.Errorf("Cannot open video: %s: %v", path, err)
		return nil, err
	}
	return source, nil
}

// newDetector builds the configured detector and a function that releases it.
func newDetector(ctx context.Context, cfg *config.Config, kind string) (vision.Detector, func(), error) {
	noop := func() {}
	switch kind {
	case config.DetectorYOLO:
		d, err := opencv.NewYOLODetector(cfg.GetModelPath(), yoloInputSize, cfg.GetDetectionThreshold())
		if err != nil {
			return nil, noop, err
		}
		return d, func() { d.Close() }, nil
	case config.DetectorHTTP:
		d := vision.NewHTTPDetector(cfg.GetDetectorURL(), cfg.GetDetectorTimeout())
		if err := d.Health(ctx); err != nil {
			monitoring.Warnf("%v", err)
		}
		return d, noop, nil
	case config.DetectorReplay:
		d, err := vision.LoadReplay(cfg.GetReplayPath())
		if err != nil {
			return nil, noop, err
		}
		return d, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown detector kind %q", kind)
}

func writeSummary(path string, summary *video.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := summary.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
