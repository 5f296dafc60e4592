package vision

import (
	"fmt"
	"sort"
)

// DecodeYOLOv8 turns a YOLOv8 detection head into candidate detections. The
// output is row-major with shape [4+numClasses, N]: rows 0-3 hold the box
// centre and size, the remaining rows hold per-class scores. Candidates whose
// best score is below threshold are dropped. Boxes are in model input pixels.
func DecodeYOLOv8(output []float32, numClasses int, threshold float64) ([]Detection, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("yolo: invalid class count %d", numClasses)
	}
	rows := 4 + numClasses
	if len(output) == 0 || len(output)%rows != 0 {
		return nil, fmt.Errorf("yolo: output of %d values is not a multiple of %d rows", len(output), rows)
	}
	n := len(output) / rows

	var out []Detection
	for j := 0; j < n; j++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := output[(4+c)*n+j]; best < 0 || s > bestScore {
				best, bestScore = c, s
			}
		}
		if float64(bestScore) < threshold {
			continue
		}
		cx, cy := float64(output[j]), float64(output[n+j])
		w, h := float64(output[2*n+j]), float64(output[3*n+j])
		out = append(out, Detection{
			ClassID:    best,
			Confidence: float64(bestScore),
			Box:        Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2},
		})
	}
	return out, nil
}

// ScaleBoxes maps boxes from model input pixels to frame pixels.
func ScaleBoxes(dets []Detection, sx, sy float64) {
	for i := range dets {
		b := &dets[i].Box
		b.X1 *= sx
		b.X2 *= sx
		b.Y1 *= sy
		b.Y2 *= sy
	}
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b Box) float64 {
	ix := min(a.X2, b.X2) - max(a.X1, b.X1)
	iy := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NonMaxSuppression keeps the highest-confidence box of each overlapping
// group of the same class. The result is ordered by descending confidence.
func NonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []Detection
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k.Box, d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
