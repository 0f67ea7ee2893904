package quantum

// Metrics is the optimizer's summary for one execution: how many
// states were in superposition, which one was measured, and the
// entanglement and parallelization observed.
type Metrics struct {
	SuperpositionStates   int     `json:"superposition_states"`
	ChosenState           string  `json:"chosen_state"`
	Amplitude             float64 `json:"amplitude"`
	Phase                 float64 `json:"phase"`
	Energy                float64 `json:"energy"`
	Probability           float64 `json:"probability"`
	EntanglementCount     int     `json:"entanglement_count"`
	ParallelizationFactor int     `json:"parallelization_factor"`
}

// Snapshot captures metrics for a state set and its measured state
func Snapshot(states []*State, chosen *State) *Metrics {
	m := &Metrics{
		SuperpositionStates: len(states),
		EntanglementCount:   EntanglementCount(states),
	}
	if chosen != nil {
		m.ChosenState = chosen.ID
		m.Amplitude = chosen.Amplitude
		m.Phase = chosen.Phase
		m.Energy = chosen.Energy
		m.Probability = chosen.Amplitude * chosen.Amplitude
		m.ParallelizationFactor = chosen.Path.ParallelizationFactor
	}
	return m
}
