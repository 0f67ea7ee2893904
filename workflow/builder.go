package workflow

import (
	"fmt"
	"time"
)

// Builder assembles workflow definitions through chained calls. It is
// the sole producer of guard-bearing definitions since guards are Go
// functions. Chained modifiers (DependsOn, Retry, Timeout, Guard,
// Priority) apply to the most recently added step.
//
//	def, err := workflow.NewBuilder("deploy", "Deploy Service").
//	    Action("build", "make_artifact", nil).
//	    Action("push", "upload", nil).DependsOn("build").
//	    Retry(3, 2.0, 100*time.Millisecond).
//	    Quantum(workflow.QuantumConfig{EnableSuperposition: true}).
//	    Build()
type Builder struct {
	def Definition
	err error
}

// NewBuilder creates a builder for a workflow with the given id and name
func NewBuilder(id, name string) *Builder {
	return &Builder{
		def: Definition{
			ID:      id,
			Name:    name,
			Quantum: DefaultQuantumConfig(),
		},
	}
}

// Description sets the workflow description
func (b *Builder) Description(desc string) *Builder {
	b.def.Description = desc
	return b
}

func (b *Builder) addStep(kind StepKind, id, action string, params map[string]interface{}) *Builder {
	b.def.Steps = append(b.def.Steps, Step{
		ID:     id,
		Kind:   kind,
		Name:   id,
		Action: action,
		Params: params,
	})
	return b
}

// Action adds an action step invoking the named handler
func (b *Builder) Action(id, action string, params map[string]interface{}) *Builder {
	return b.addStep(StepAction, id, action, params)
}

// Decision adds a decision step; pair it with Guard to control whether
// the branch runs
func (b *Builder) Decision(id, action string, params map[string]interface{}) *Builder {
	return b.addStep(StepDecision, id, action, params)
}

// Parallel adds a parallel-group step
func (b *Builder) Parallel(id, action string, params map[string]interface{}) *Builder {
	return b.addStep(StepParallel, id, action, params)
}

// Wait adds a wait step backed by the delay handler
func (b *Builder) Wait(id string, d time.Duration) *Builder {
	return b.addStep(StepWait, id, "delay", map[string]interface{}{
		"duration_ms": float64(d.Milliseconds()),
	})
}

// Gate adds a gate step; the step runs only if its guard passes
func (b *Builder) Gate(id string, guard GuardFunc) *Builder {
	b.addStep(StepGate, id, "log", nil)
	return b.Guard(guard)
}

func (b *Builder) lastStep() *Step {
	if len(b.def.Steps) == 0 {
		if b.err == nil {
			b.err = fmt.Errorf("builder: modifier called before any step was added")
		}
		return nil
	}
	return &b.def.Steps[len(b.def.Steps)-1]
}

// DependsOn declares dependencies of the last added step
func (b *Builder) DependsOn(stepIDs ...string) *Builder {
	if step := b.lastStep(); step != nil {
		step.DependsOn = append(step.DependsOn, stepIDs...)
	}
	return b
}

// Retry sets the retry policy of the last added step
func (b *Builder) Retry(maxAttempts int, backoffMultiplier float64, initialDelay time.Duration) *Builder {
	if step := b.lastStep(); step != nil {
		step.Retry = &RetryPolicy{
			MaxAttempts:       maxAttempts,
			BackoffMultiplier: backoffMultiplier,
			InitialDelay:      initialDelay,
		}
	}
	return b
}

// Timeout sets the per-step timeout of the last added step
func (b *Builder) Timeout(d time.Duration) *Builder {
	if step := b.lastStep(); step != nil {
		step.Timeout = d
	}
	return b
}

// Guard sets the guard predicate of the last added step
func (b *Builder) Guard(guard GuardFunc) *Builder {
	if step := b.lastStep(); step != nil {
		step.Guard = guard
	}
	return b
}

// Priority sets the priority of the last added step
func (b *Builder) Priority(p int) *Builder {
	if step := b.lastStep(); step != nil {
		step.Priority = p
	}
	return b
}

// Quantum sets the optimizer configuration. Zero-valued tunables are
// replaced with defaults so a caller can flip toggles only.
func (b *Builder) Quantum(cfg QuantumConfig) *Builder {
	defaults := DefaultQuantumConfig()
	if cfg.MaxSuperpositionStates == 0 {
		cfg.MaxSuperpositionStates = defaults.MaxSuperpositionStates
	}
	if cfg.AnnealingIterations == 0 {
		cfg.AnnealingIterations = defaults.AnnealingIterations
	}
	if cfg.MeasurementThreshold == 0 {
		cfg.MeasurementThreshold = defaults.MeasurementThreshold
	}
	b.def.Quantum = cfg
	return b
}

// Build validates and returns the assembled definition
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}
