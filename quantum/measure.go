package quantum

import (
	"math/rand"

	"github.com/quantaflow/quantaflow/core"
)

// Measure samples one state from the weight-squared distribution
// P(state_i) = amplitude_i² / Σ amplitude_j² via a cumulative
// probability draw. If floating-point shortfall leaves no match the
// last state is returned, so Measure always returns a state for a
// non-empty input. An empty input is a programming error.
func Measure(states []*State, rng *rand.Rand) (*State, error) {
	if len(states) == 0 {
		return nil, core.ErrNoStates
	}

	total := TotalProbability(states)
	draw := rng.Float64() * total

	cumulative := 0.0
	for _, s := range states {
		cumulative += s.Amplitude * s.Amplitude
		if draw < cumulative {
			return s, nil
		}
	}

	return states[len(states)-1], nil
}
