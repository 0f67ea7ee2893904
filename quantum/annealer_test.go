package quantum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantaflow/quantaflow/workflow"
)

func annealerStates(t *testing.T) []*State {
	t.Helper()
	paths := GeneratePaths(independentSteps())
	states := NewStates("wf", paths, workflow.QuantumConfig{MaxSuperpositionStates: 4})
	require.Len(t, states, 2)
	return states
}

func TestAnnealerNormalizesAfterEveryRun(t *testing.T) {
	for _, iterations := range []int{1, 10, 100, 1000} {
		states := annealerStates(t)
		NewAnnealer(iterations, false, rand.New(rand.NewSource(1))).Run(states)
		assert.InDelta(t, 1.0, TotalProbability(states), 1e-6, "iterations=%d", iterations)
	}
}

func TestAnnealerFavorsLowerEnergy(t *testing.T) {
	states := annealerStates(t)
	low, high := states[0], states[1]
	if low.Energy > high.Energy {
		low, high = high, low
	}

	NewAnnealer(50, false, rand.New(rand.NewSource(1))).Run(states)
	assert.Greater(t, low.Amplitude, high.Amplitude)
}

func TestTunnelingCompoundsAcrossRounds(t *testing.T) {
	states := annealerStates(t)
	initial := make([]float64, len(states))
	for i, s := range states {
		initial[i] = s.Energy
	}

	NewAnnealer(100, true, rand.New(rand.NewSource(42))).Run(states)

	// The energy discount compounds multiplicatively with no floor
	// above zero: energies only shrink, never go negative
	for i, s := range states {
		assert.Less(t, s.Energy, initial[i])
		assert.GreaterOrEqual(t, s.Energy, 0.0)
	}
}

func TestAnnealerWithoutTunnelingPreservesEnergy(t *testing.T) {
	states := annealerStates(t)
	initial := make([]float64, len(states))
	for i, s := range states {
		initial[i] = s.Energy
	}

	NewAnnealer(100, false, rand.New(rand.NewSource(1))).Run(states)

	for i, s := range states {
		assert.Equal(t, initial[i], s.Energy)
	}
}

func TestAnnealerEmptyStateSet(t *testing.T) {
	NewAnnealer(10, true, rand.New(rand.NewSource(1))).Run(nil)
}
