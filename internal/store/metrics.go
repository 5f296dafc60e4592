package store

import (
	"fmt"

	"github.com/banshee-data/signal.report/internal/simulation"
)

// SaveMetrics stores a comparison run and returns its id. source names the
// simulator configuration the run came from.
func (s *Store) SaveMetrics(source string, records []simulation.MetricsRecord) (string, error) {
	tx, err := s.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id, err := s.insertRun(tx, KindSimulation, source, nil)
	if err != nil {
		return "", err
	}

	stmt, err := tx.Prepare(`INSERT INTO metrics
		(run_id, seq, step, mode, avg_waiting_time, avg_queue_length, throughput)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(id, i, r.Step, string(r.Mode), r.AvgWaitingTime, r.AvgQueueLength, r.Throughput); err != nil {
			return "", fmt.Errorf("insert metrics row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Metrics returns the records of a comparison run in the order they were saved.
func (s *Store) Metrics(runID string) ([]simulation.MetricsRecord, error) {
	if _, _, err := s.run(runID, KindSimulation); err != nil {
		return nil, err
	}
	rows, err := s.Query(`SELECT step, mode, avg_waiting_time, avg_queue_length, throughput
		FROM metrics WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []simulation.MetricsRecord
	for rows.Next() {
		var r simulation.MetricsRecord
		var mode string
		if err := rows.Scan(&r.Step, &mode, &r.AvgWaitingTime, &r.AvgQueueLength, &r.Throughput); err != nil {
			return nil, err
		}
		if r.Mode, err = simulation.ParseMode(mode); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
