// Package quantum implements the execution-strategy optimizer: it
// derives candidate paths from a step list, scores them with an energy
// model, holds them in a weighted state space, reweights the states
// through an annealing schedule, and finally measures one state to
// execute. The quantum vocabulary is metaphorical: entanglement is
// shared-step adjacency, tunneling is a probabilistic energy discount,
// phase is cosmetic.
package quantum

import (
	"github.com/quantaflow/quantaflow/workflow"
)

// Path is one concrete, fully ordered candidate execution strategy.
// Estimates are computed once at generation time and never mutated.
type Path struct {
	ID                    string          `json:"id"`
	Steps                 []workflow.Step `json:"steps"`
	EstimatedDuration     float64         `json:"estimated_duration"`
	EstimatedCost         float64         `json:"estimated_cost"`
	SuccessProbability    float64         `json:"success_probability"`
	ParallelizationFactor int             `json:"parallelization_factor"`
}

// Path estimate constants. Durations are in abstract milliseconds and
// costs in abstract units; only their relative ordering matters to the
// energy model.
const (
	sequentialSuccess  = 0.90
	parallelSuccess    = 0.85
	parallelCostFactor = 1.2
)

// stepDuration estimates a single step's duration by kind
func stepDuration(step workflow.Step) float64 {
	switch step.Kind {
	case workflow.StepWait:
		return 200
	case workflow.StepDecision:
		return 50
	case workflow.StepGate:
		return 25
	default:
		return 100
	}
}

// stepCost estimates a single step's cost by kind
func stepCost(step workflow.Step) float64 {
	return stepDuration(step) / 10
}

// GeneratePaths derives the candidate execution paths for a step list.
// The result is never empty for a non-empty step list and is fully
// deterministic: identical input produces identical output.
//
// The sequential path is always present. When two or more steps have
// no dependencies, a parallel variant is added: same steps, duration
// collapsed to the largest single step, cost inflated, success
// probability reduced, parallelization factor equal to the number of
// independent steps. Whether the variant is actually run concurrently
// is the executor's decision; here it only changes the score.
func GeneratePaths(steps []workflow.Step) []Path {
	sequential := Path{
		ID:                    "sequential",
		Steps:                 steps,
		SuccessProbability:    sequentialSuccess,
		ParallelizationFactor: 1,
	}
	for _, step := range steps {
		sequential.EstimatedDuration += stepDuration(step)
		sequential.EstimatedCost += stepCost(step)
	}

	paths := []Path{sequential}

	independent := 0
	maxDuration := 0.0
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			independent++
		}
		if d := stepDuration(step); d > maxDuration {
			maxDuration = d
		}
	}

	if independent >= 2 {
		paths = append(paths, Path{
			ID:                    "parallel",
			Steps:                 steps,
			EstimatedDuration:     maxDuration,
			EstimatedCost:         sequential.EstimatedCost * parallelCostFactor,
			SuccessProbability:    parallelSuccess,
			ParallelizationFactor: independent,
		})
	}

	return paths
}
