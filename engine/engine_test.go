package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/quantaflow/quantaflow/core"
	"github.com/quantaflow/quantaflow/workflow"
)

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return New(opts...)
}

// recorder tracks handler invocations across steps
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) handler() ActionHandler {
	return func(ctx context.Context, params map[string]interface{}, wctx *workflow.Context) (interface{}, error) {
		id, _ := params["id"].(string)
		r.record(id)
		return id, nil
	}
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	e := newTestEngine()
	_, err := e.ExecuteWorkflow(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown workflow")
	}
	if !errors.Is(err, core.ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestExecuteSequentialWorkflow(t *testing.T) {
	// Scenario: log, delay, log with superposition off. The result is
	// the three step outputs in order.
	e := newTestEngine()

	def, err := workflow.NewBuilder("scenario-a", "Sequential").
		Action("first", "log", map[string]interface{}{"message": "a"}).
		Wait("pause", 10*time.Millisecond).DependsOn("first").
		Action("second", "log", map[string]interface{}{"message": "b"}).DependsOn("pause").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "scenario-a", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	outputs, ok := result.Result.([]interface{})
	if !ok {
		t.Fatalf("expected ordered outputs, got %T", result.Result)
	}
	if len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}
	if outputs[0] != "a" || outputs[2] != "b" {
		t.Errorf("outputs out of order: %v", outputs)
	}
	if result.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestExecuteWorkflowDeterministicWithoutSuperposition(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	e.RegisterActionHandler("record", rec.handler())

	def, err := workflow.NewBuilder("det", "Deterministic").
		Action("a", "record", map[string]interface{}{"id": "a"}).
		Action("b", "record", map[string]interface{}{"id": "b"}).DependsOn("a").
		Action("c", "record", map[string]interface{}{"id": "c"}).DependsOn("b").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	var firstOrder []string
	for run := 0; run < 5; run++ {
		result, err := e.ExecuteWorkflow(context.Background(), "det", nil)
		if err != nil || !result.Success {
			t.Fatalf("run %d failed: err=%v result=%+v", run, err, result)
		}

		calls := rec.snapshot()
		order := calls[run*3:]
		if run == 0 {
			firstOrder = order
			continue
		}
		for i := range order {
			if order[i] != firstOrder[i] {
				t.Fatalf("run %d produced different order: %v vs %v", run, order, firstOrder)
			}
		}
	}
}

func TestExecuteWorkflowWithOptimizer(t *testing.T) {
	// Scenario: three independent steps with superposition and
	// annealing on. Both candidate paths run the same steps, so each
	// step executes exactly once regardless of which state is measured.
	e := newTestEngine()
	rec := &recorder{}
	e.RegisterActionHandler("record", rec.handler())

	def, err := workflow.NewBuilder("scenario-b", "Optimized").
		Action("a", "record", map[string]interface{}{"id": "a"}).
		Action("b", "record", map[string]interface{}{"id": "b"}).
		Action("c", "record", map[string]interface{}{"id": "c"}).
		Quantum(workflow.QuantumConfig{
			EnableSuperposition:    true,
			EnableAnnealing:        true,
			MaxSuperpositionStates: 5,
			AnnealingIterations:    10,
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "scenario-b", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	qm := result.Quantum
	if qm == nil {
		t.Fatal("expected quantum metrics")
	}
	if qm.SuperpositionStates < 1 || qm.SuperpositionStates > 2 {
		t.Errorf("expected 1-2 superposition states, got %d", qm.SuperpositionStates)
	}
	if qm.ChosenState == "" {
		t.Error("expected a chosen state id")
	}

	calls := rec.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected each step to run exactly once, got %v", calls)
	}
	seen := map[string]int{}
	for _, id := range calls {
		seen[id]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if seen[id] != 1 {
			t.Errorf("step %s ran %d times", id, seen[id])
		}
	}
}

func TestParallelPathExecutesSequentially(t *testing.T) {
	// The parallel variant is a scoring hint only: whichever state is
	// measured, steps run strictly in path order.
	rec := &recorder{}

	for seed := int64(0); seed < 10; seed++ {
		e := New(WithRand(rand.New(rand.NewSource(seed))))
		e.RegisterActionHandler("record", rec.handler())

		def, err := workflow.NewBuilder(fmt.Sprintf("par-%d", seed), "Parallel Hint").
			Action("a", "record", map[string]interface{}{"id": "a"}).
			Action("b", "record", map[string]interface{}{"id": "b"}).
			Quantum(workflow.QuantumConfig{
				EnableSuperposition: true,
				EnableAnnealing:     true,
				EnableTunneling:     true,
				AnnealingIterations: 5,
			}).
			Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if err := e.RegisterWorkflow(def); err != nil {
			t.Fatalf("RegisterWorkflow failed: %v", err)
		}
		rec.calls = nil

		result, err := e.ExecuteWorkflow(context.Background(), def.ID, nil)
		if err != nil || !result.Success {
			t.Fatalf("seed %d failed: err=%v result=%+v", seed, err, result)
		}

		calls := rec.snapshot()
		if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
			t.Fatalf("seed %d: steps out of order: %v", seed, calls)
		}
	}
}

func TestGuardSkipsStep(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	e.RegisterActionHandler("record", rec.handler())

	def, err := workflow.NewBuilder("guarded", "Guarded").
		Action("a", "record", map[string]interface{}{"id": "a"}).
		Action("blocked", "record", map[string]interface{}{"id": "blocked"}).
		Guard(func(ctx *workflow.Context) bool { return false }).
		Action("b", "record", map[string]interface{}{"id": "b"}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "guarded", nil)
	if err != nil || !result.Success {
		t.Fatalf("execution failed: err=%v result=%+v", err, result)
	}

	for _, id := range rec.snapshot() {
		if id == "blocked" {
			t.Error("guarded step's handler must never be invoked")
		}
	}

	execution, err := e.GetExecution(context.Background(), result.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	step := execution.Step("blocked")
	if step == nil {
		t.Fatal("expected step execution record for blocked step")
	}
	if step.Status != workflow.StepSkipped {
		t.Errorf("expected skipped status, got %s", step.Status)
	}
}

func TestUnknownActionIsFatalConfigurationError(t *testing.T) {
	e := newTestEngine()

	def, err := workflow.NewBuilder("broken", "Broken").
		Action("a", "no_such_action", nil).
		Retry(5, 2.0, time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "broken", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow must resolve with a result, got error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for unknown action")
	}

	execution, err := e.GetExecution(context.Background(), result.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	step := execution.Step("a")
	if step == nil {
		t.Fatal("expected step execution record")
	}
	// Configuration errors are not retried
	if step.Attempts != 0 {
		t.Errorf("expected 0 attempts for unregistered action, got %d", step.Attempts)
	}
	if execution.Status != workflow.ExecutionFailed {
		t.Errorf("expected failed execution, got %s", execution.Status)
	}
}

func TestRegisterWorkflowUpsert(t *testing.T) {
	e := newTestEngine()

	first, _ := workflow.NewBuilder("wf", "First").Action("a", "log", nil).Build()
	second, _ := workflow.NewBuilder("wf", "Second").
		Action("a", "log", nil).
		Action("b", "log", nil).
		Build()

	if err := e.RegisterWorkflow(first); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := e.RegisterWorkflow(second); err != nil {
		t.Fatalf("second registration failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "wf", nil)
	if err != nil || !result.Success {
		t.Fatalf("execution failed: err=%v result=%+v", err, result)
	}

	execution, err := e.GetExecution(context.Background(), result.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if len(execution.Steps) != 2 {
		t.Errorf("expected the upserted definition to run, got %d steps", len(execution.Steps))
	}
}

func TestRegisterWorkflowRejectsInvalid(t *testing.T) {
	e := newTestEngine()
	err := e.RegisterWorkflow(&workflow.Definition{ID: "bad"})
	if !errors.Is(err, core.ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestGetQuantumMetrics(t *testing.T) {
	e := newTestEngine()

	def, _ := workflow.NewBuilder("wf", "Metrics").
		Action("a", "log", map[string]interface{}{"message": "hi"}).
		Build()
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "wf", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	qm, err := e.GetQuantumMetrics(result.ExecutionID)
	if err != nil {
		t.Fatalf("GetQuantumMetrics failed: %v", err)
	}
	if qm.SuperpositionStates != 1 {
		t.Errorf("expected single deterministic state, got %d", qm.SuperpositionStates)
	}
	if qm.Amplitude != 1 {
		t.Errorf("expected amplitude 1 in deterministic mode, got %v", qm.Amplitude)
	}

	if _, err := e.GetQuantumMetrics("unknown"); !errors.Is(err, core.ErrExecutionNotFound) {
		t.Errorf("expected ErrExecutionNotFound, got %v", err)
	}
}

func TestGetStatesExposesStateSet(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	e.RegisterActionHandler("record", rec.handler())

	def, _ := workflow.NewBuilder("wf", "States").
		Action("a", "record", map[string]interface{}{"id": "a"}).
		Action("b", "record", map[string]interface{}{"id": "b"}).
		Quantum(workflow.QuantumConfig{EnableSuperposition: true, EnableAnnealing: true}).
		Build()
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	if _, err := e.GetStates("wf"); !errors.Is(err, core.ErrWorkflowNotFound) {
		t.Errorf("expected no state set before the first run, got %v", err)
	}

	result, err := e.ExecuteWorkflow(context.Background(), "wf", nil)
	if err != nil || !result.Success {
		t.Fatalf("execution failed: err=%v result=%+v", err, result)
	}

	states, err := e.GetStates("wf")
	if err != nil {
		t.Fatalf("GetStates failed: %v", err)
	}
	if len(states) != result.Quantum.SuperpositionStates {
		t.Errorf("expected %d states, got %d", result.Quantum.SuperpositionStates, len(states))
	}

	// Returned states are copies detached from the optimizer
	states[0].Amplitude = -1
	again, err := e.GetStates("wf")
	if err != nil {
		t.Fatalf("GetStates failed: %v", err)
	}
	if again[0].Amplitude == -1 {
		t.Error("GetStates must return copies, not the live state set")
	}
}

func TestGetStatesDeterministicMode(t *testing.T) {
	e := newTestEngine()

	def, _ := workflow.NewBuilder("wf", "Plain").
		Action("a", "log", nil).
		Build()
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}
	if _, err := e.ExecuteWorkflow(context.Background(), "wf", nil); err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	states, err := e.GetStates("wf")
	if err != nil {
		t.Fatalf("GetStates failed: %v", err)
	}
	if len(states) != 1 || states[0].Amplitude != 1 {
		t.Errorf("expected the single deterministic state, got %+v", states)
	}
}

func TestQuantumMetricsEvictedBeyondLimit(t *testing.T) {
	e := newTestEngine(WithQuantumMetricsLimit(2))

	def, _ := workflow.NewBuilder("wf", "Counted").
		Action("a", "log", nil).
		Build()
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		result, err := e.ExecuteWorkflow(context.Background(), "wf", nil)
		if err != nil {
			t.Fatalf("ExecuteWorkflow failed: %v", err)
		}
		ids = append(ids, result.ExecutionID)
	}

	if _, err := e.GetQuantumMetrics(ids[0]); !errors.Is(err, core.ErrExecutionNotFound) {
		t.Errorf("expected oldest metrics evicted, got %v", err)
	}
	for _, id := range ids[1:] {
		if _, err := e.GetQuantumMetrics(id); err != nil {
			t.Errorf("expected metrics retained for %s, got %v", id, err)
		}
	}
}

func TestEngineMetricsSnapshot(t *testing.T) {
	e := newTestEngine()

	def, _ := workflow.NewBuilder("wf", "Counted").
		Action("a", "log", map[string]interface{}{"message": "x"}).
		Build()
	if err := e.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := e.ExecuteWorkflow(context.Background(), "wf", nil); err != nil {
			t.Fatalf("ExecuteWorkflow failed: %v", err)
		}
	}

	snapshot := e.Metrics()
	if snapshot.TotalExecutions != 3 || snapshot.Successful != 3 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %v", snapshot.SuccessRate)
	}
	step, ok := snapshot.StepMetrics["a"]
	if !ok || step.Executions != 3 {
		t.Errorf("unexpected step metrics: %+v", step)
	}
}
