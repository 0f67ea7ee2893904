// Package workflow defines the declarative workflow data model: step
// definitions, optimization configuration, the fluent builder, and the
// per-execution context and records consumed by the engine.
package workflow

import (
	"fmt"
	"time"

	"github.com/quantaflow/quantaflow/core"
)

// StepKind defines the type of workflow step
type StepKind string

const (
	StepAction   StepKind = "action"
	StepDecision StepKind = "decision"
	StepParallel StepKind = "parallel"
	StepWait     StepKind = "wait"
	StepGate     StepKind = "gate"
)

// GuardFunc decides whether a step should run for a given execution.
// Returning false marks the step skipped without invoking its handler.
type GuardFunc func(ctx *Context) bool

// RetryPolicy defines retry behavior for a single step
type RetryPolicy struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	InitialDelay      time.Duration `yaml:"initial_delay" json:"initial_delay"`
}

// Step defines a single workflow step. Steps are immutable after the
// definition is registered.
type Step struct {
	ID        string                 `yaml:"id" json:"id"`
	Kind      StepKind               `yaml:"kind" json:"kind"`
	Name      string                 `yaml:"name" json:"name"`
	Action    string                 `yaml:"action" json:"action"`
	Params    map[string]interface{} `yaml:"params" json:"params"`
	DependsOn []string               `yaml:"depends_on" json:"depends_on"`
	Guard     GuardFunc              `yaml:"-" json:"-"`
	Retry     *RetryPolicy           `yaml:"retry,omitempty" json:"retry,omitempty"`
	Timeout   time.Duration          `yaml:"timeout" json:"timeout"`
	Priority  int                    `yaml:"priority" json:"priority"`
}

// QuantumConfig controls the optimizer. With every toggle disabled the
// engine runs in deterministic single-path mode and the optimizer is
// skipped entirely.
type QuantumConfig struct {
	EnableSuperposition    bool    `yaml:"enable_superposition" json:"enable_superposition"`
	EnableEntanglement     bool    `yaml:"enable_entanglement" json:"enable_entanglement"`
	EnableAnnealing        bool    `yaml:"enable_annealing" json:"enable_annealing"`
	EnableTunneling        bool    `yaml:"enable_tunneling" json:"enable_tunneling"`
	MaxSuperpositionStates int     `yaml:"max_superposition_states" json:"max_superposition_states"`
	AnnealingIterations    int     `yaml:"annealing_iterations" json:"annealing_iterations"`
	MeasurementThreshold   float64 `yaml:"measurement_threshold" json:"measurement_threshold"`
}

// DefaultQuantumConfig returns the optimizer defaults used when a
// definition does not set its own tunables.
func DefaultQuantumConfig() QuantumConfig {
	return QuantumConfig{
		MaxSuperpositionStates: 4,
		AnnealingIterations:    100,
		MeasurementThreshold:   0.5,
	}
}

// Definition defines a complete workflow: a named set of steps plus
// the optimization configuration applied when executing it.
type Definition struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step        `yaml:"steps" json:"steps"`
	Quantum     QuantumConfig `yaml:"quantum" json:"quantum"`
}

// Validate checks the definition for structural errors: missing id,
// empty step list, duplicate step ids, or dependencies on steps that
// do not exist.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: workflow id is required", core.ErrInvalidDefinition)
	}

	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: workflow must have at least one step", core.ErrInvalidDefinition)
	}

	stepIDs := make(map[string]bool)
	for _, step := range d.Steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step id is required", core.ErrInvalidDefinition)
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("%w: duplicate step id: %s", core.ErrInvalidDefinition, step.ID)
		}
		stepIDs[step.ID] = true
	}

	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			if !stepIDs[dep] {
				return fmt.Errorf("%w: step %s depends on non-existent step %s",
					core.ErrInvalidDefinition, step.ID, dep)
			}
		}
		if step.Retry != nil {
			if step.Retry.MaxAttempts < 1 {
				return fmt.Errorf("%w: step %s retry max_attempts must be >= 1",
					core.ErrInvalidDefinition, step.ID)
			}
			if step.Retry.BackoffMultiplier < 0 {
				return fmt.Errorf("%w: step %s retry backoff_multiplier cannot be negative",
					core.ErrInvalidDefinition, step.ID)
			}
		}
		if step.Timeout < 0 {
			return fmt.Errorf("%w: step %s timeout cannot be negative",
				core.ErrInvalidDefinition, step.ID)
		}
	}

	if d.Quantum.MaxSuperpositionStates < 0 || d.Quantum.AnnealingIterations < 0 {
		return fmt.Errorf("%w: quantum tunables cannot be negative", core.ErrInvalidDefinition)
	}

	return nil
}
