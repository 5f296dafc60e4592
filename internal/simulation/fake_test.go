package simulation

import (
	"errors"
	"fmt"
)

// fakeEngine replays scripted per-step state. step i (0-based, after Step has
// been called i+1 times) reads frames[i].
type fakeEngine struct {
	frames []fakeFrame
	lights map[string]fakeLight

	steps    int
	closed   bool
	extended map[string]float64
	failStep int // 1-based step that fails; 0 disables
}

type fakeFrame struct {
	waits   map[string]float64
	lanes   map[string]int
	arrived int
}

type fakeLight struct {
	phase int
	lanes []string
}

var errStep = errors.New("simulation crashed")

func (f *fakeEngine) current() fakeFrame {
	if f.steps == 0 || f.steps > len(f.frames) {
		return fakeFrame{}
	}
	return f.frames[f.steps-1]
}

func (f *fakeEngine) Step() error {
	if f.failStep > 0 && f.steps+1 == f.failStep {
		return errStep
	}
	f.steps++
	return nil
}

func (f *fakeEngine) VehicleIDs() ([]string, error) {
	var ids []string
	for i := 0; i < len(f.current().waits); i++ {
		ids = append(ids, fmt.Sprintf("veh%d", i))
	}
	return ids, nil
}

func (f *fakeEngine) WaitingTime(id string) (float64, error) {
	w, ok := f.current().waits[id]
	if !ok {
		return 0, fmt.Errorf("vehicle %s is not known", id)
	}
	return w, nil
}

func (f *fakeEngine) LaneIDs() ([]string, error) {
	var ids []string
	for i := 0; i < len(f.current().lanes); i++ {
		ids = append(ids, fmt.Sprintf("lane%d", i))
	}
	return ids, nil
}

func (f *fakeEngine) LaneVehicleCount(id string) (int, error) {
	return f.current().lanes[id], nil
}

func (f *fakeEngine) ArrivedCount() (int, error) {
	return f.current().arrived, nil
}

func (f *fakeEngine) TrafficLightIDs() ([]string, error) {
	var ids []string
	for i := 0; i < len(f.lights); i++ {
		ids = append(ids, fmt.Sprintf("tl%d", i))
	}
	return ids, nil
}

func (f *fakeEngine) Phase(id string) (int, error) {
	l, ok := f.lights[id]
	if !ok {
		return 0, fmt.Errorf("traffic light %s is not known", id)
	}
	return l.phase, nil
}

func (f *fakeEngine) ControlledLanes(id string) ([]string, error) {
	return f.lights[id].lanes, nil
}

func (f *fakeEngine) SetPhaseDuration(id string, seconds float64) error {
	if f.extended == nil {
		f.extended = map[string]float64{}
	}
	f.extended[id] = seconds
	return nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}
