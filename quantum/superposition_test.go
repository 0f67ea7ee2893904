package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantaflow/quantaflow/workflow"
)

func TestNewStatesEqualAmplitudes(t *testing.T) {
	paths := GeneratePaths(independentSteps())
	states := NewStates("wf", paths, workflow.QuantumConfig{MaxSuperpositionStates: 4})
	require.Len(t, states, 2)

	expected := 1 / math.Sqrt(2)
	for _, s := range states {
		assert.InDelta(t, expected, s.Amplitude, 1e-9)
	}
	assert.InDelta(t, 1.0, TotalProbability(states), 1e-9)

	// Evenly spaced phases
	assert.InDelta(t, 0.0, states[0].Phase, 1e-9)
	assert.InDelta(t, math.Pi, states[1].Phase, 1e-9)
}

func TestNewStatesRespectsMaxSuperpositionStates(t *testing.T) {
	paths := GeneratePaths(independentSteps())
	states := NewStates("wf", paths, workflow.QuantumConfig{MaxSuperpositionStates: 1})
	require.Len(t, states, 1)
	assert.InDelta(t, 1.0, states[0].Amplitude, 1e-9)
}

func TestEntangleLinksStatesSharingSteps(t *testing.T) {
	paths := GeneratePaths(independentSteps())
	states := NewStates("wf", paths, workflow.QuantumConfig{
		MaxSuperpositionStates: 4,
		EnableEntanglement:     true,
	})
	require.Len(t, states, 2)

	// Both candidate paths run the same steps, so the relation holds
	// in both directions
	assert.Contains(t, states[0].Entangled, states[1].ID)
	assert.Contains(t, states[1].Entangled, states[0].ID)
	assert.Equal(t, 1, EntanglementCount(states))
}

func TestEntangleIdempotent(t *testing.T) {
	paths := GeneratePaths(independentSteps())
	states := NewStates("wf", paths, workflow.QuantumConfig{MaxSuperpositionStates: 4})

	Entangle(states)
	Entangle(states)

	assert.Len(t, states[0].Entangled, 1)
	assert.Len(t, states[1].Entangled, 1)
}

func TestNormalizeRecoversFromUnderflow(t *testing.T) {
	states := []*State{
		{ID: "a", Amplitude: 0},
		{ID: "b", Amplitude: 0},
	}
	Normalize(states)
	assert.InDelta(t, 1.0, TotalProbability(states), 1e-9)
}
