// Package video counts vehicles in drone footage per time interval and per
// lane or intersection region.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/banshee-data/signal.report/internal/geometry"
	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/vision"
)

// Config parameterises an Analyzer.
type Config struct {
	// Interval is the bucket width.
	Interval time.Duration
	// Resize is the frame size the source delivers to the detector; box
	// coordinates are in this space.
	Resize geometry.Size
	// Reference is the resolution Regions were drawn at. The zero value means
	// the source's native resolution.
	Reference geometry.Size
	// AllowedClasses are the labels counted as vehicles.
	AllowedClasses []string
	// Threshold is the minimum detector confidence.
	Threshold float64
	// Regions are matched in order.
	Regions      []geometry.Region
	BufferRadius float64
	// Labels maps class ids to names; defaults to vision.COCOLabels.
	Labels []string
}

// Skip records a frame or box that was left out of the summary. Box is -1
// when the whole frame was skipped.
type Skip struct {
	Frame  int
	Box    int
	Reason string
}

// Report summarises a run: frames read, vehicles counted and every skip.
type Report struct {
	Frames   int
	Vehicles int
	Skips    []Skip
}

// SkippedFrames returns the number of frames the detector failed on.
func (r *Report) SkippedFrames() int {
	n := 0
	for _, s := range r.Skips {
		if s.Box < 0 {
			n++
		}
	}
	return n
}

// Analyzer reads every frame from Source, runs Detector on it and buckets the
// vehicle detections.
type Analyzer struct {
	Config   Config
	Source   vision.FrameSource
	Detector vision.Detector
}

// Analyze processes the whole stream and closes Source. A detector failure
// skips its frame and a malformed box skips that box; both are listed in the
// report. Decode errors and cancellation abort the run.
func (a *Analyzer) Analyze(ctx context.Context) (summary *Summary, report *Report, err error) {
	defer func() {
		if cerr := a.Source.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close video: %w", cerr)
		}
	}()

	cfg := a.Config
	if cfg.Interval <= 0 {
		return nil, nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	labels := cfg.Labels
	if labels == nil {
		labels = vision.COCOLabels
	}
	info := a.Source.Info()
	fps := info.EffectiveFPS()
	monitoring.Infof("FPS: %.2f, Frames: %d, Size: %dx%d", fps, info.FrameCount, info.Width, info.Height)

	reference := cfg.Reference
	if reference == (geometry.Size{}) {
		reference = geometry.Size{Width: info.Width, Height: info.Height}
	}
	scaled, err := geometry.Scale(cfg.Regions, reference, cfg.Resize)
	if err != nil {
		return nil, nil, fmt.Errorf("scale regions: %w", err)
	}
	regions, err := geometry.NewRegionSet(scaled, cfg.BufferRadius)
	if err != nil {
		return nil, nil, err
	}

	summary = NewSummary(cfg.Interval)
	report = &Report{}
	width := cfg.Interval.Seconds()

	for frame := 0; ; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		img, err := a.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read frame %d: %w", frame, err)
		}
		report.Frames++

		// The bucket is chosen from the rounded time so every record's
		// depart lies inside its own interval.
		depart := math.Round(float64(frame)/fps*100) / 100
		bucket := summary.Bucket(int(math.Floor(depart / width)))

		dets, err := a.Detector.Detect(ctx, frame, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			monitoring.Warnf("Detector failed at frame %d: %v", frame, err)
			report.Skips = append(report.Skips, Skip{Frame: frame, Box: -1, Reason: err.Error()})
			continue
		}

		for i, det := range dets {
			rec, ok, reason := a.classify(det, labels, regions, frame, depart)
			if reason != "" {
				monitoring.Warnf("Skipping box %d at frame %d: %s", i, frame, reason)
				report.Skips = append(report.Skips, Skip{Frame: frame, Box: i, Reason: reason})
				continue
			}
			if !ok {
				continue
			}
			bucket.Add(rec)
			report.Vehicles++
		}
	}

	monitoring.Infof("Processed %d frames, counted %d vehicles, %d skips", report.Frames, report.Vehicles, len(report.Skips))
	return summary, report, nil
}

// classify turns one detection into a vehicle record. ok is false for
// detections that are filtered out; reason is set for malformed ones.
func (a *Analyzer) classify(det vision.Detection, labels []string, regions *geometry.RegionSet, frame int, depart float64) (rec VehicleRecord, ok bool, reason string) {
	label, err := vision.ResolveLabel(det, labels)
	if err != nil {
		return rec, false, fmt.Sprintf("%v %d", err, det.ClassID)
	}
	if !slices.Contains(a.Config.AllowedClasses, label) || det.Confidence < a.Config.Threshold {
		return rec, false, ""
	}
	if !det.Box.Valid() {
		return rec, false, fmt.Sprintf("non-finite box %+v", det.Box)
	}

	cx, cy := det.Box.Centroid()
	return VehicleRecord{
		VehicleID: label + "_" + strconv.Itoa(frame),
		Type:      label,
		Lane:      regions.Locate(cx, cy),
		Depart:    depart,
	}, true, ""
}
