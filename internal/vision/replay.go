package vision

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/signal.report/internal/monitoring"
)

// replayColumns are the columns a detection log must carry.
var replayColumns = []string{"frame_number", "class_name", "confidence", "bbox_x1", "bbox_y1", "bbox_x2", "bbox_y2"}

// ReplayDetector serves detections recorded by an earlier run, keyed by frame
// index. Frames with no rows have no detections.
type ReplayDetector struct {
	frames map[int][]Detection
}

// LoadReplay reads a detection log from path.
func LoadReplay(path string) (*ReplayDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log: %w", err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReadReplay parses a detection log. Malformed rows fail the whole load.
func ReadReplay(r io.Reader) (*ReplayDetector, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read detection log header: %w", err)
	}
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[col] = i
	}
	for _, col := range replayColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("detection log is missing column %q", col)
		}
	}

	rd := &ReplayDetector{frames: make(map[int][]Detection)}
	rows := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("detection log line %d: %w", line, err)
		}
		frame, det, err := parseReplayRow(row, colMap)
		if err != nil {
			return nil, fmt.Errorf("detection log line %d: %w", line, err)
		}
		rd.frames[frame] = append(rd.frames[frame], det)
		rows++
	}
	monitoring.Logf("Loaded %d recorded detections across %d frames", rows, len(rd.frames))
	return rd, nil
}

func parseReplayRow(row []string, colMap map[string]int) (int, Detection, error) {
	frame, err := strconv.Atoi(row[colMap["frame_number"]])
	if err != nil {
		return 0, Detection{}, fmt.Errorf("invalid frame_number: %w", err)
	}
	label := row[colMap["class_name"]]
	det := Detection{ClassID: ClassID(COCOLabels, label), Label: label}
	if det.Confidence, err = strconv.ParseFloat(row[colMap["confidence"]], 64); err != nil {
		return 0, Detection{}, fmt.Errorf("invalid confidence: %w", err)
	}
	coords := make([]float64, 4)
	for i, col := range replayColumns[3:] {
		if coords[i], err = strconv.ParseFloat(row[colMap[col]], 64); err != nil {
			return 0, Detection{}, fmt.Errorf("invalid %s: %w", col, err)
		}
	}
	det.Box = Box{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
	return frame, det, nil
}

// Detect implements Detector.
func (r *ReplayDetector) Detect(ctx context.Context, frameIndex int, _ image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dets := r.frames[frameIndex]
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// Frames returns the number of frames with at least one recorded detection.
func (r *ReplayDetector) Frames() int {
	return len(r.frames)
}
