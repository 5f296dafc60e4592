package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// VehicleRecord is one counted vehicle detection.
type VehicleRecord struct {
	VehicleID string `json:"vehicle_id"`
	Type      string `json:"type"`
	Lane      string `json:"lane"`
	// Depart is the frame time in seconds, rounded to 2 decimals.
	Depart float64 `json:"depart"`
}

// Bucket aggregates the detections of one interval.
type Bucket struct {
	VehicleCounts     map[string]int  `json:"vehicle_counts"`
	VehicleDepartures []VehicleRecord `json:"vehicle_departures"`
}

func newBucket() *Bucket {
	return &Bucket{VehicleCounts: map[string]int{}, VehicleDepartures: []VehicleRecord{}}
}

// Add counts rec and appends it to the departures.
func (b *Bucket) Add(rec VehicleRecord) {
	b.VehicleCounts[rec.Type]++
	b.VehicleDepartures = append(b.VehicleDepartures, rec)
}

// Summary holds every interval bucket of a video, keyed by interval index
// (floor of frame time over the interval width).
type Summary struct {
	Interval time.Duration
	Buckets  map[int]*Bucket
}

// NewSummary returns an empty summary with the given interval width.
func NewSummary(interval time.Duration) *Summary {
	return &Summary{Interval: interval, Buckets: make(map[int]*Bucket)}
}

// Bucket returns the bucket for index, creating it if needed.
func (s *Summary) Bucket(index int) *Bucket {
	b, ok := s.Buckets[index]
	if !ok {
		b = newBucket()
		s.Buckets[index] = b
	}
	return b
}

// Indexes returns the bucket indexes in ascending order.
func (s *Summary) Indexes() []int {
	idx := make([]int, 0, len(s.Buckets))
	for i := range s.Buckets {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Key returns the "HH:MM:SS - HH:MM:SS" label of the bucket at index.
func (s *Summary) Key(index int) string {
	return IntervalKey(index, s.Interval)
}

// MarshalJSON encodes the summary as an object keyed by interval label, with
// buckets in chronological order.
func (s *Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, i := range s.Indexes() {
		if n > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Key(i))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Buckets[i])
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", s.Key(i), err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSON pretty-prints the summary with 4-space indentation.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(s)
}

// FormatHMS renders whole seconds as zero-padded HH:MM:SS. Fractional
// seconds are truncated.
func FormatHMS(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// IntervalKey labels the interval [index*width, (index+1)*width).
func IntervalKey(index int, width time.Duration) string {
	start := float64(index) * width.Seconds()
	return FormatHMS(start) + " - " + FormatHMS(start+width.Seconds())
}
