package store

import (
	"fmt"
	"time"

	"github.com/banshee-data/signal.report/internal/video"
)

// IntervalCount is one vehicle type's count in one interval.
type IntervalCount struct {
	Index       int
	Label       string
	VehicleType string
	Count       int
}

// SaveSummary stores a video summary and returns its run id. source names
// the video file.
func (s *Store) SaveSummary(source string, summary *video.Summary) (string, error) {
	tx, err := s.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	interval := summary.Interval.Seconds()
	id, err := s.insertRun(tx, KindVideo, source, &interval)
	if err != nil {
		return "", err
	}

	countStmt, err := tx.Prepare(`INSERT INTO interval_counts (run_id, interval_index, vehicle_type, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer countStmt.Close()
	depStmt, err := tx.Prepare(`INSERT INTO vehicle_departures
		(run_id, interval_index, seq, vehicle_id, vehicle_type, lane, depart)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer depStmt.Close()

	for _, idx := range summary.Indexes() {
		b := summary.Buckets[idx]
		// An interval with no vehicles is kept as a zero row so it survives a
		// round trip.
		if len(b.VehicleCounts) == 0 {
			if _, err := countStmt.Exec(id, idx, "", 0); err != nil {
				return "", fmt.Errorf("insert interval %d: %w", idx, err)
			}
		}
		for vt, n := range b.VehicleCounts {
			if _, err := countStmt.Exec(id, idx, vt, n); err != nil {
				return "", fmt.Errorf("insert interval %d count: %w", idx, err)
			}
		}
		for seq, rec := range b.VehicleDepartures {
			if _, err := depStmt.Exec(id, idx, seq, rec.VehicleID, rec.Type, rec.Lane, rec.Depart); err != nil {
				return "", fmt.Errorf("insert departure %s: %w", rec.VehicleID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// IntervalCounts returns per-interval vehicle counts ordered by interval and
// type. Empty intervals are omitted.
func (s *Store) IntervalCounts(runID string) ([]IntervalCount, error) {
	_, interval, err := s.run(runID, KindVideo)
	if err != nil {
		return nil, err
	}
	width := secondsToDuration(interval)

	rows, err := s.Query(`SELECT interval_index, vehicle_type, count FROM interval_counts
		WHERE run_id = ? AND vehicle_type != '' ORDER BY interval_index, vehicle_type`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IntervalCount
	for rows.Next() {
		var c IntervalCount
		if err := rows.Scan(&c.Index, &c.VehicleType, &c.Count); err != nil {
			return nil, err
		}
		c.Label = video.IntervalKey(c.Index, width)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LaneCounts returns the number of vehicles recorded per lane over the whole
// run.
func (s *Store) LaneCounts(runID string) (map[string]int, error) {
	if _, _, err := s.run(runID, KindVideo); err != nil {
		return nil, err
	}
	rows, err := s.Query(`SELECT lane, COUNT(*) FROM vehicle_departures WHERE run_id = ? GROUP BY lane`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var lane string
		var n int
		if err := rows.Scan(&lane, &n); err != nil {
			return nil, err
		}
		out[lane] = n
	}
	return out, rows.Err()
}

// Summary rebuilds a stored video summary.
func (s *Store) Summary(runID string) (*video.Summary, error) {
	_, interval, err := s.run(runID, KindVideo)
	if err != nil {
		return nil, err
	}
	summary := video.NewSummary(secondsToDuration(interval))

	rows, err := s.Query(`SELECT DISTINCT interval_index FROM interval_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return nil, err
		}
		summary.Bucket(idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.Query(`SELECT interval_index, vehicle_id, vehicle_type, lane, depart
		FROM vehicle_departures WHERE run_id = ? ORDER BY interval_index, seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var rec video.VehicleRecord
		if err := rows.Scan(&idx, &rec.VehicleID, &rec.Type, &rec.Lane, &rec.Depart); err != nil {
			return nil, err
		}
		summary.Bucket(idx).Add(rec)
	}
	return summary, rows.Err()
}

func secondsToDuration(sec *float64) time.Duration {
	if sec == nil {
		return 0
	}
	return time.Duration(*sec * float64(time.Second))
}
