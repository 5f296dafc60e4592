// Package simulation runs a traffic simulation once per control mode and
// records per-step congestion metrics for comparison.
package simulation

import "fmt"

// Mode selects whether the rule-based controller is active.
type Mode string

const (
	Baseline Mode = "baseline"
	Logic    Mode = "logic"
)

// ParseMode converts a CSV mode column into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Baseline, Logic:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// MetricsRecord is one row of the comparison output.
type MetricsRecord struct {
	Step           int
	Mode           Mode
	AvgWaitingTime float64
	AvgQueueLength float64
	// Throughput is the number of vehicles that have arrived since the
	// simulation started.
	Throughput int
}

// Engine is the simulator surface the runner and policy use. *traci.Client
// implements it.
type Engine interface {
	Step() error
	VehicleIDs() ([]string, error)
	WaitingTime(vehicleID string) (float64, error)
	LaneIDs() ([]string, error)
	LaneVehicleCount(laneID string) (int, error)
	ArrivedCount() (int, error)
	TrafficLightIDs() ([]string, error)
	Phase(tlID string) (int, error)
	ControlledLanes(tlID string) ([]string, error)
	SetPhaseDuration(tlID string, seconds float64) error
	Close() error
}
