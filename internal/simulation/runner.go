package simulation

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/signal.report/internal/monitoring"
)

// StartFunc starts a fresh simulation and returns a connected engine.
type StartFunc func(ctx context.Context) (Engine, error)

// Runner drives one simulation per mode for a fixed number of steps.
type Runner struct {
	Start  StartFunc
	Steps  int
	Policy Policy
}

// Run executes one simulation in the given mode and returns exactly Steps
// records. Any simulator failure aborts the run.
func (r *Runner) Run(ctx context.Context, mode Mode) (records []MetricsRecord, err error) {
	if r.Steps < 0 {
		return nil, fmt.Errorf("negative step count %d", r.Steps)
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	engine, err := r.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start %s simulation: %w", mode, err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s simulation: %w", mode, cerr)
		}
	}()

	records = make([]MetricsRecord, 0, r.Steps)
	arrived := 0
	for step := 0; step < r.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := engine.Step(); err != nil {
			return nil, fmt.Errorf("%s step %d: %w", mode, step, err)
		}

		if mode == Logic {
			n, err := r.Policy.Apply(engine)
			if err != nil {
				return nil, fmt.Errorf("%s step %d: apply policy: %w", mode, step, err)
			}
			if n > 0 {
				monitoring.Logf("step %d: extended %d traffic light(s)", step, n)
			}
		}

		rec, err := collect(engine, step, mode)
		if err != nil {
			return nil, fmt.Errorf("%s step %d: %w", mode, step, err)
		}
		stepArrived, err := engine.ArrivedCount()
		if err != nil {
			return nil, fmt.Errorf("%s step %d: arrived count: %w", mode, step, err)
		}
		arrived += stepArrived
		rec.Throughput = arrived
		records = append(records, rec)
	}
	return records, nil
}

// Compare runs the baseline simulation then the controlled one and returns
// their records concatenated in that order.
func (r *Runner) Compare(ctx context.Context) ([]MetricsRecord, error) {
	monitoring.Infof("Running baseline simulation...")
	baseline, err := r.Run(ctx, Baseline)
	if err != nil {
		return nil, err
	}
	monitoring.Infof("Running logic engine simulation...")
	logic, err := r.Run(ctx, Logic)
	if err != nil {
		return nil, err
	}
	return append(baseline, logic...), nil
}

// collect samples waiting time and lane occupancy after a step.
func collect(e Engine, step int, mode Mode) (MetricsRecord, error) {
	rec := MetricsRecord{Step: step, Mode: mode}

	vehicles, err := e.VehicleIDs()
	if err != nil {
		return rec, fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) > 0 {
		waits := make([]float64, len(vehicles))
		for i, id := range vehicles {
			if waits[i], err = e.WaitingTime(id); err != nil {
				return rec, fmt.Errorf("waiting time of %s: %w", id, err)
			}
		}
		rec.AvgWaitingTime = stat.Mean(waits, nil)
	}

	lanes, err := e.LaneIDs()
	if err != nil {
		return rec, fmt.Errorf("list lanes: %w", err)
	}
	rec.AvgQueueLength, err = meanLaneCount(e, lanes)
	if err != nil {
		return rec, fmt.Errorf("lane occupancy: %w", err)
	}
	return rec, nil
}
