package quantum

import (
	"math"
	"math/rand"
)

const (
	// temperatureFloor keeps the final rounds from dividing by zero
	temperatureFloor = 0.01

	// tunnelFactor is the energy discount applied when a state tunnels
	tunnelFactor = 0.9
)

// Annealer reweights a state set through a linear cooling schedule.
// Each round the temperature drops, every state's amplitude is
// recomputed from its energy, and the set is renormalized. With
// tunneling enabled a state may probabilistically discount its energy
// while the temperature is high, compounding across rounds; the decay
// is unbounded toward zero and deliberately skews later selection
// toward states that tunneled more.
type Annealer struct {
	iterations int
	tunneling  bool
	rng        *rand.Rand
}

// NewAnnealer creates an annealer running the given number of rounds.
// rng must not be nil; the engine injects it so tests can seed it.
func NewAnnealer(iterations int, tunneling bool, rng *rand.Rand) *Annealer {
	return &Annealer{
		iterations: iterations,
		tunneling:  tunneling,
		rng:        rng,
	}
}

// Run executes the annealing schedule over the state set in place.
// After Run, Σ amplitude² = 1.
func (a *Annealer) Run(states []*State) {
	if len(states) == 0 {
		return
	}

	for round := 0; round < a.iterations; round++ {
		temperature := 1 - float64(round)/float64(a.iterations)
		if temperature < temperatureFloor {
			temperature = temperatureFloor
		}

		// Shifting by the round's minimum energy keeps exp from
		// underflowing; normalization cancels the common factor, so
		// relative weights are unchanged.
		minEnergy := math.Inf(1)
		for _, s := range states {
			if a.tunneling && a.rng.Float64() < temperature {
				s.Energy *= tunnelFactor
				if s.Energy < 0 {
					s.Energy = 0
				}
			}
			if s.Energy < minEnergy {
				minEnergy = s.Energy
			}
		}

		for _, s := range states {
			s.Amplitude = math.Exp(-(s.Energy - minEnergy) / temperature)
		}

		Normalize(states)
	}
}
