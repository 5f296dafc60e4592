// Package vision defines the frame and detector interfaces the video
// aggregator consumes, plus detectors that need no native libraries.
package vision

import (
	"context"
	"errors"
	"image"
	"math"
)

// DefaultFPS is assumed when a stream does not report its frame rate.
const DefaultFPS = 30.0

// StreamInfo describes a decoded video stream.
type StreamInfo struct {
	// Width and Height are the native frame dimensions.
	Width, Height int
	FPS           float64
	// FrameCount is the container's estimate; 0 when unknown.
	FrameCount int
}

// EffectiveFPS returns FPS, or DefaultFPS when the stream reported none.
func (s StreamInfo) EffectiveFPS() float64 {
	if s.FPS <= 0 || math.IsNaN(s.FPS) || math.IsInf(s.FPS, 0) {
		return DefaultFPS
	}
	return s.FPS
}

// FrameSource yields decoded frames in order. Next returns io.EOF after the
// last frame.
type FrameSource interface {
	Info() StreamInfo
	Next() (image.Image, error)
	Close() error
}

// Box is an axis-aligned bounding box in frame pixels.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Centroid returns the box centre truncated to integer pixels.
func (b Box) Centroid() (int, int) {
	return int((b.X1 + b.X2) / 2), int((b.Y1 + b.Y2) / 2)
}

// Valid reports whether every coordinate is finite.
func (b Box) Valid() bool {
	for _, v := range [...]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Detection is one object found in a frame. ClassID is -1 when the detector
// reports only a label.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        Box
}

// Detector finds objects in a single frame.
type Detector interface {
	Detect(ctx context.Context, frameIndex int, img image.Image) ([]Detection, error)
}

// ErrVideoOpen is returned when a video cannot be opened.
var ErrVideoOpen = errors.New("cannot open video")

// ErrDetection wraps failures of a detector on a single frame.
var ErrDetection = errors.New("detection failed")

// ErrUnknownClass is returned when a class id has no label.
var ErrUnknownClass = errors.New("unknown class id")

// ResolveLabel returns the detection's label, looking the class id up in
// labels when the detector did not name it.
func ResolveLabel(d Detection, labels []string) (string, error) {
	if d.Label != "" {
		return d.Label, nil
	}
	if d.ClassID < 0 || d.ClassID >= len(labels) {
		return "", ErrUnknownClass
	}
	return labels[d.ClassID], nil
}
