package simulation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultQueueThreshold = 5.0
	DefaultExtendSeconds  = 10.0
)

// Policy extends the green phase of congested intersections. It keeps no
// state between steps.
type Policy struct {
	// QueueThreshold is the mean vehicle count per controlled lane above
	// which a light is extended.
	QueueThreshold float64
	// ExtendSeconds is the phase duration applied to an extended light.
	ExtendSeconds float64
}

// DefaultPolicy returns the policy with its standard thresholds.
func DefaultPolicy() Policy {
	return Policy{QueueThreshold: DefaultQueueThreshold, ExtendSeconds: DefaultExtendSeconds}
}

// isGreen reports whether a phase index is a green phase. SUMO's generated
// programs alternate green and yellow/red phases starting with green at 0.
func isGreen(phase int) bool {
	return phase%2 == 0
}

// Apply inspects every traffic light once and returns how many were extended.
func (p Policy) Apply(e Engine) (int, error) {
	lights, err := e.TrafficLightIDs()
	if err != nil {
		return 0, fmt.Errorf("list traffic lights: %w", err)
	}

	extended := 0
	for _, tl := range lights {
		phase, err := e.Phase(tl)
		if err != nil {
			return extended, fmt.Errorf("phase of %s: %w", tl, err)
		}
		lanes, err := e.ControlledLanes(tl)
		if err != nil {
			return extended, fmt.Errorf("controlled lanes of %s: %w", tl, err)
		}

		queue, err := meanLaneCount(e, lanes)
		if err != nil {
			return extended, fmt.Errorf("queue at %s: %w", tl, err)
		}
		if queue > p.QueueThreshold && isGreen(phase) {
			if err := e.SetPhaseDuration(tl, p.ExtendSeconds); err != nil {
				return extended, fmt.Errorf("extend %s: %w", tl, err)
			}
			extended++
		}
	}
	return extended, nil
}

// meanLaneCount averages the last-step vehicle count over lanes, counting a
// lane once per occurrence. An empty list averages to 0.
func meanLaneCount(e Engine, lanes []string) (float64, error) {
	if len(lanes) == 0 {
		return 0, nil
	}
	counts := make([]float64, len(lanes))
	for i, lane := range lanes {
		n, err := e.LaneVehicleCount(lane)
		if err != nil {
			return 0, err
		}
		counts[i] = float64(n)
	}
	return stat.Mean(counts, nil), nil
}
