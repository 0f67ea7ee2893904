// Package engine executes declarative workflows under an optimizing
// scheduler. Given a registered workflow definition, the engine
// derives candidate execution paths, weighs them in a quantum-styled
// state space, anneals the weights, measures one state, and runs its
// path with per-step guard, retry, and timeout semantics.
//
// An Engine instance owns its registries (workflows, action handlers,
// per-workflow state sets) so callers can scope one engine per
// concurrency domain. Concurrent executions of the same workflow id
// race on the shared state set between build and measurement; callers
// needing strict correctness there must serialize per workflow id.
package engine

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quantaflow/quantaflow/core"
	"github.com/quantaflow/quantaflow/quantum"
	"github.com/quantaflow/quantaflow/telemetry"
	"github.com/quantaflow/quantaflow/workflow"
)

// Engine executes workflows with quantum-inspired path optimization
type Engine struct {
	mu            sync.RWMutex
	workflows     map[string]*workflow.Definition
	handlers      map[string]ActionHandler
	states        map[string][]*quantum.State
	qmetrics      map[string]*quantum.Metrics
	qmetricsOrder []string
	qmetricsLimit int

	store          StateStore
	bus            *Bus
	metrics        *EngineMetrics
	logger         core.Logger
	rng            *rand.Rand
	defaultTimeout time.Duration
	eventBuffer    int
	httpClient     *http.Client
}

// defaultQuantumMetricsLimit bounds the per-execution optimizer
// metrics kept in memory on a long-lived engine
const defaultQuantumMetricsLimit = 1000

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the structured logger
func WithLogger(logger core.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStateStore sets the execution record store
func WithStateStore(store StateStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithEventBuffer sets the per-subscriber event channel buffer size
func WithEventBuffer(size int) Option {
	return func(e *Engine) { e.eventBuffer = size }
}

// WithRand sets the random source used by annealing and measurement.
// Tests inject a seeded source for reproducible draws.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithDefaultStepTimeout sets the timeout applied to steps that do
// not declare their own
func WithDefaultStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.defaultTimeout = d }
}

// WithHTTPClient sets the client used by the http_request handler
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) { e.httpClient = client }
}

// WithQuantumMetricsLimit sets how many executions' optimizer metrics
// are retained. When the limit is exceeded the oldest entry is evicted.
func WithQuantumMetricsLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.qmetricsLimit = n
		}
	}
}

// New creates a workflow engine with the log, delay, and http_request
// handlers pre-registered
func New(opts ...Option) *Engine {
	e := &Engine{
		workflows:      make(map[string]*workflow.Definition),
		handlers:       make(map[string]ActionHandler),
		states:         make(map[string][]*quantum.State),
		qmetrics:       make(map[string]*quantum.Metrics),
		metrics:        NewEngineMetrics(),
		defaultTimeout: 30 * time.Second,
		eventBuffer:    100,
		qmetricsLimit:  defaultQuantumMetricsLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = &core.NoOpLogger{}
	}
	if e.store == nil {
		e.store = NewInMemoryStateStore()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.httpClient == nil {
		e.httpClient = newTracedHTTPClient()
	}
	e.bus = NewBus(e.eventBuffer)

	e.registerDefaultHandlers()
	return e
}

// RegisterWorkflow validates and registers a workflow definition.
// Registration is an idempotent upsert by workflow id; definitions are
// read-only after registration.
func (e *Engine) RegisterWorkflow(def *workflow.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.workflows[def.ID] = def
	e.mu.Unlock()

	e.logger.Info("Workflow registered", map[string]interface{}{
		"workflow_id": def.ID,
		"step_count":  len(def.Steps),
	})
	return nil
}

// RegisterActionHandler registers (or replaces) a named action handler
func (e *Engine) RegisterActionHandler(name string, handler ActionHandler) {
	e.mu.Lock()
	e.handlers[name] = handler
	e.mu.Unlock()
}

// Events returns the engine's event bus for external subscribers
func (e *Engine) Events() *Bus {
	return e.bus
}

// Metrics returns a snapshot of aggregate execution metrics
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// GetExecution retrieves an execution record from the state store
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	return e.store.GetExecution(ctx, executionID)
}

// ListExecutions lists recent executions for a workflow
func (e *Engine) ListExecutions(ctx context.Context, workflowID string) ([]*workflow.Execution, error) {
	return e.store.ListExecutions(ctx, workflowID)
}

// GetStates returns a copy of the most recent state set built for a
// workflow. The copies are detached from the optimizer, so a later
// run for the same workflow id never mutates what a caller holds.
func (e *Engine) GetStates(workflowID string) ([]*quantum.State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	states, ok := e.states[workflowID]
	if !ok {
		return nil, &core.EngineError{
			Op:   "engine.GetStates",
			Kind: "workflow",
			ID:   workflowID,
			Err:  core.ErrWorkflowNotFound,
		}
	}

	out := make([]*quantum.State, len(states))
	for i, s := range states {
		clone := *s
		clone.Entangled = append([]string(nil), s.Entangled...)
		out[i] = &clone
	}
	return out, nil
}

// GetQuantumMetrics returns the optimizer metrics captured for an
// execution. Metrics are retained for the most recent executions only;
// see WithQuantumMetricsLimit.
func (e *Engine) GetQuantumMetrics(executionID string) (*quantum.Metrics, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if m, ok := e.qmetrics[executionID]; ok {
		return m, nil
	}
	return nil, core.NewEngineError("engine.GetQuantumMetrics", "execution", core.ErrExecutionNotFound)
}

// Result is the outcome of one ExecuteWorkflow call. Except for the
// workflow-not-found case, ExecuteWorkflow always returns a Result:
// failed executions carry Success=false and the error string rather
// than a Go error.
type Result struct {
	Success     bool             `json:"success"`
	ExecutionID string           `json:"execution_id"`
	Result      interface{}      `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Quantum     *quantum.Metrics `json:"quantum_metrics,omitempty"`
}

// ExecuteWorkflow runs a registered workflow with the given input. It
// builds a fresh execution record and context, runs the optimizer if
// enabled, measures one path, executes it, and emits lifecycle events
// throughout.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]interface{}) (*Result, error) {
	e.mu.RLock()
	def, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, &core.EngineError{
			Op:   "engine.ExecuteWorkflow",
			Kind: "workflow",
			ID:   workflowID,
			Err:  core.ErrWorkflowNotFound,
		}
	}

	wctx := workflow.NewContext(input)
	execution := &workflow.Execution{
		ID:         uuid.New().String(),
		WorkflowID: def.ID,
		Status:     workflow.ExecutionRunning,
		Context:    wctx,
		StartTime:  time.Now(),
	}

	telemetry.SetSpanAttributes(ctx,
		attribute.String("quantaflow.execution.id", execution.ID),
		attribute.String("quantaflow.workflow.id", def.ID),
		attribute.Int("quantaflow.workflow.step_count", len(def.Steps)),
	)
	telemetry.AddSpanEvent(ctx, "workflow_execution_started",
		attribute.String("execution_id", execution.ID),
		attribute.String("workflow_id", def.ID),
	)

	e.logger.Info("Starting workflow execution", map[string]interface{}{
		"execution_id": execution.ID,
		"workflow_id":  def.ID,
		"step_count":   len(def.Steps),
	})

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		e.logger.Warn("Failed to save initial execution state", map[string]interface{}{
			"execution_id": execution.ID,
			"error":        err.Error(),
		})
	}

	e.bus.Publish(ExecutionEvent{
		BaseEvent: BaseEvent{Type: EventExecutionStarted, Time: time.Now(), Execution: execution.ID, Workflow: def.ID},
	})

	chosen, qm := e.optimize(ctx, def)
	wctx.StateID = chosen.ID

	outputs, err := e.executePath(ctx, execution, chosen.Path)

	endTime := time.Now()
	execution.EndTime = &endTime

	if err != nil {
		execution.Status = workflow.ExecutionFailed
		execution.Error = err.Error()
		telemetry.RecordSpanError(ctx, err)
		telemetry.AddSpanEvent(ctx, "workflow_execution_failed",
			attribute.String("execution_id", execution.ID),
			attribute.String("error", err.Error()),
		)
		e.logger.Error("Workflow execution failed", map[string]interface{}{
			"execution_id": execution.ID,
			"workflow_id":  def.ID,
			"error":        err.Error(),
		})
		e.bus.Publish(ExecutionEvent{
			BaseEvent: BaseEvent{Type: EventExecutionFailed, Time: time.Now(), Execution: execution.ID, Workflow: def.ID},
			Error:     err.Error(),
		})
	} else {
		execution.Status = workflow.ExecutionCompleted
		execution.Result = outputs
		telemetry.AddSpanEvent(ctx, "workflow_execution_completed",
			attribute.String("execution_id", execution.ID),
			attribute.Int64("duration_ms", execution.Duration().Milliseconds()),
		)
		e.logger.Info("Workflow execution completed", map[string]interface{}{
			"execution_id": execution.ID,
			"workflow_id":  def.ID,
			"duration_ms":  execution.Duration().Milliseconds(),
		})
		e.bus.Publish(ExecutionEvent{
			BaseEvent: BaseEvent{Type: EventExecutionCompleted, Time: time.Now(), Execution: execution.ID, Workflow: def.ID},
		})
	}

	if updateErr := e.store.UpdateExecution(ctx, execution); updateErr != nil {
		e.logger.Warn("Failed to update final execution state", map[string]interface{}{
			"execution_id": execution.ID,
			"error":        updateErr.Error(),
		})
	}

	e.metrics.RecordExecution(execution)

	e.mu.Lock()
	e.qmetrics[execution.ID] = qm
	e.qmetricsOrder = append(e.qmetricsOrder, execution.ID)
	if len(e.qmetricsOrder) > e.qmetricsLimit {
		oldest := e.qmetricsOrder[0]
		e.qmetricsOrder = e.qmetricsOrder[1:]
		delete(e.qmetrics, oldest)
	}
	e.mu.Unlock()

	result := &Result{
		Success:     err == nil,
		ExecutionID: execution.ID,
		Duration:    execution.Duration(),
		Quantum:     qm,
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Result = outputs
	}
	return result, nil
}

// optimize derives candidate paths and picks one. With superposition
// disabled the sequential path is selected deterministically with
// amplitude 1 and the annealer never runs. The per-workflow state set
// replaces any prior set for the same workflow id.
func (e *Engine) optimize(ctx context.Context, def *workflow.Definition) (*quantum.State, *quantum.Metrics) {
	paths := quantum.GeneratePaths(def.Steps)
	cfg := def.Quantum

	if !cfg.EnableSuperposition {
		chosen := &quantum.State{
			ID:        def.ID + "-state-0",
			Amplitude: 1,
			Energy:    quantum.Energy(paths[0]),
			Path:      paths[0],
		}
		e.mu.Lock()
		e.states[def.ID] = []*quantum.State{chosen}
		e.mu.Unlock()
		return chosen, quantum.Snapshot([]*quantum.State{chosen}, chosen)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	states := quantum.NewStates(def.ID, paths, cfg)
	e.states[def.ID] = states

	if cfg.EnableAnnealing {
		quantum.NewAnnealer(cfg.AnnealingIterations, cfg.EnableTunneling, e.rng).Run(states)
	}

	chosen, err := quantum.Measure(states, e.rng)
	if err != nil {
		// Unreachable for a validated definition: GeneratePaths never
		// returns an empty set for a non-empty step list
		panic(err)
	}

	telemetry.AddSpanEvent(ctx, "quantum_state_measured",
		attribute.String("state_id", chosen.ID),
		attribute.Float64("amplitude", chosen.Amplitude),
		attribute.Float64("energy", chosen.Energy),
		attribute.Int("state_count", len(states)),
	)
	e.logger.Debug("Measured execution path", map[string]interface{}{
		"workflow_id": def.ID,
		"state_id":    chosen.ID,
		"path_id":     chosen.Path.ID,
		"amplitude":   chosen.Amplitude,
		"energy":      chosen.Energy,
	})

	return chosen, quantum.Snapshot(states, chosen)
}
