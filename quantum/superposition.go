package quantum

import (
	"fmt"
	"math"

	"github.com/quantaflow/quantaflow/workflow"
)

// State is a candidate path annotated with a selection weight
// (amplitude) and an energy score. Amplitude is non-negative and
// finite after normalization; phase is cosmetic.
type State struct {
	ID        string   `json:"id"`
	Amplitude float64  `json:"amplitude"`
	Phase     float64  `json:"phase"`
	Energy    float64  `json:"energy"`
	Path      Path     `json:"path"`
	Entangled []string `json:"entangled,omitempty"`
}

// NewStates builds the state space for a workflow's candidate paths:
// up to min(len(paths), cfg.MaxSuperpositionStates) states, each
// seeded with equal amplitude 1/√N, evenly spaced phase, and energy
// from the energy model.
func NewStates(workflowID string, paths []Path, cfg workflow.QuantumConfig) []*State {
	n := len(paths)
	if cfg.MaxSuperpositionStates > 0 && cfg.MaxSuperpositionStates < n {
		n = cfg.MaxSuperpositionStates
	}
	if n == 0 {
		return nil
	}

	amplitude := 1 / math.Sqrt(float64(n))
	states := make([]*State, 0, n)
	for i := 0; i < n; i++ {
		states = append(states, &State{
			ID:        fmt.Sprintf("%s-state-%d", workflowID, i),
			Amplitude: amplitude,
			Phase:     2 * math.Pi * float64(i) / float64(n),
			Energy:    Energy(paths[i]),
			Path:      paths[i],
		})
	}

	if cfg.EnableEntanglement {
		Entangle(states)
	}

	return states
}

// Entangle links every pair of states whose paths share at least one
// step. The relation is symmetric and idempotent. Returns the number
// of entangled pairs.
func Entangle(states []*State) int {
	pairs := 0
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			if !sharesStep(states[i].Path, states[j].Path) {
				continue
			}
			if link(states[i], states[j].ID) {
				pairs++
			}
			link(states[j], states[i].ID)
		}
	}
	return pairs
}

func link(s *State, id string) bool {
	for _, existing := range s.Entangled {
		if existing == id {
			return false
		}
	}
	s.Entangled = append(s.Entangled, id)
	return true
}

func sharesStep(a, b Path) bool {
	ids := make(map[string]bool, len(a.Steps))
	for _, step := range a.Steps {
		ids[step.ID] = true
	}
	for _, step := range b.Steps {
		if ids[step.ID] {
			return true
		}
	}
	return false
}

// Normalize rescales amplitudes so that Σ amplitude² = 1. If every
// amplitude has underflowed to zero the states are reset to a uniform
// distribution rather than left as NaN.
func Normalize(states []*State) {
	total := TotalProbability(states)
	if total <= 0 {
		if len(states) == 0 {
			return
		}
		uniform := 1 / math.Sqrt(float64(len(states)))
		for _, s := range states {
			s.Amplitude = uniform
		}
		return
	}
	norm := math.Sqrt(total)
	for _, s := range states {
		s.Amplitude /= norm
	}
}

// TotalProbability returns Σ amplitude² across the state set
func TotalProbability(states []*State) float64 {
	total := 0.0
	for _, s := range states {
		total += s.Amplitude * s.Amplitude
	}
	return total
}

// EntanglementCount returns the number of entangled pairs in the set
func EntanglementCount(states []*State) int {
	links := 0
	for _, s := range states {
		links += len(s.Entangled)
	}
	return links / 2
}
