package simulation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// CSVHeader is the column order of the metrics file.
var CSVHeader = []string{"step", "mode", "avg_waiting_time", "avg_queue_length", "throughput"}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []MetricsRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Step),
			string(r.Mode),
			formatFloat(r.AvgWaitingTime),
			formatFloat(r.AvgQueueLength),
			strconv.Itoa(r.Throughput),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat renders the shortest decimal that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV parses a metrics file written by WriteCSV. Columns are located by
// header name.
func ReadCSV(r io.Reader) ([]MetricsRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("metrics file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range CSVHeader {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []MetricsRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseRow(row []string, cols map[string]int) (MetricsRecord, error) {
	var rec MetricsRecord
	var err error
	if rec.Step, err = strconv.Atoi(row[cols["step"]]); err != nil {
		return rec, fmt.Errorf("step: %w", err)
	}
	if rec.Mode, err = ParseMode(row[cols["mode"]]); err != nil {
		return rec, err
	}
	if rec.AvgWaitingTime, err = strconv.ParseFloat(row[cols["avg_waiting_time"]], 64); err != nil {
		return rec, fmt.Errorf("avg_waiting_time: %w", err)
	}
	if rec.AvgQueueLength, err = strconv.ParseFloat(row[cols["avg_queue_length"]], 64); err != nil {
		return rec, fmt.Errorf("avg_queue_length: %w", err)
	}
	// Throughput may have been written as a float by other tools, but it is
	// a vehicle count and must be a whole, non-negative number.
	tp, err := strconv.ParseFloat(row[cols["throughput"]], 64)
	if err != nil {
		return rec, fmt.Errorf("throughput: %w", err)
	}
	if math.IsNaN(tp) || math.IsInf(tp, 0) || tp < 0 || tp != math.Trunc(tp) || tp > math.MaxInt32 {
		return rec, fmt.Errorf("throughput: %q is not a vehicle count", row[cols["throughput"]])
	}
	rec.Throughput = int(tp)
	return rec, nil
}
