package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/quantaflow/quantaflow/core"
	"github.com/quantaflow/quantaflow/quantum"
	"github.com/quantaflow/quantaflow/telemetry"
	"github.com/quantaflow/quantaflow/workflow"
)

// executePath runs the chosen path's steps strictly in order. A step
// never starts before its predecessor finished. Guard failures skip
// the step; any other failure aborts the remaining steps (fail-fast).
// The parallel path variant affects scoring only, never scheduling.
// Returns the outputs of executed steps in path order.
func (e *Engine) executePath(ctx context.Context, execution *workflow.Execution, path quantum.Path) ([]interface{}, error) {
	wctx := execution.Context
	outputs := make([]interface{}, 0, len(path.Steps))

	for _, step := range path.Steps {
		now := time.Now()
		stepExec := &workflow.StepExecution{
			StepID:    step.ID,
			Status:    workflow.StepRunning,
			StartTime: &now,
		}
		execution.Steps = append(execution.Steps, stepExec)
		wctx.CurrentStep = step.ID

		if step.Guard != nil && !step.Guard(wctx) {
			end := time.Now()
			stepExec.Status = workflow.StepSkipped
			stepExec.EndTime = &end
			e.logger.Debug("Step skipped by guard", map[string]interface{}{
				"execution_id": execution.ID,
				"step_id":      step.ID,
			})
			e.bus.Publish(StepEvent{
				BaseEvent: BaseEvent{Type: EventStepSkipped, Time: end, Execution: execution.ID, Workflow: execution.WorkflowID},
				StepID:    step.ID,
			})
			continue
		}

		telemetry.AddSpanEvent(ctx, "workflow_step_started",
			attribute.String("step_id", step.ID),
			attribute.String("execution_id", execution.ID),
		)
		e.bus.Publish(StepEvent{
			BaseEvent: BaseEvent{Type: EventStepStarted, Time: now, Execution: execution.ID, Workflow: execution.WorkflowID},
			StepID:    step.ID,
		})

		output, err := e.runStep(ctx, step, wctx, stepExec)

		end := time.Now()
		stepExec.EndTime = &end

		if err != nil {
			stepExec.Status = workflow.StepFailed
			stepExec.Error = err.Error()
			telemetry.RecordSpanError(ctx, err)
			telemetry.AddSpanEvent(ctx, "workflow_step_failed",
				attribute.String("step_id", step.ID),
				attribute.String("error", err.Error()),
				attribute.Int("attempts", stepExec.Attempts),
			)
			e.logger.Error("Workflow step failed", map[string]interface{}{
				"execution_id": execution.ID,
				"step_id":      step.ID,
				"error":        err.Error(),
				"attempts":     stepExec.Attempts,
			})
			e.bus.Publish(StepEvent{
				BaseEvent: BaseEvent{Type: EventStepFailed, Time: end, Execution: execution.ID, Workflow: execution.WorkflowID},
				StepID:    step.ID,
				Attempts:  stepExec.Attempts,
				Error:     err.Error(),
			})
			return outputs, fmt.Errorf("step %s failed: %w", step.ID, err)
		}

		stepExec.Status = workflow.StepCompleted
		stepExec.Result = output
		wctx.SetResult(step.ID, output)
		outputs = append(outputs, output)

		telemetry.AddSpanEvent(ctx, "workflow_step_completed",
			attribute.String("step_id", step.ID),
			attribute.Int("attempts", stepExec.Attempts),
		)
		e.bus.Publish(StepEvent{
			BaseEvent: BaseEvent{Type: EventStepCompleted, Time: end, Execution: execution.ID, Workflow: execution.WorkflowID},
			StepID:    step.ID,
			Attempts:  stepExec.Attempts,
		})

		if err := e.store.UpdateExecution(ctx, execution); err != nil {
			e.logger.Warn("Failed to update execution state", map[string]interface{}{
				"execution_id": execution.ID,
				"step_id":      step.ID,
				"error":        err.Error(),
			})
		}
	}

	return outputs, nil
}

// runStep executes one step with retry and timeout semantics. An
// unregistered action is a configuration error and is never retried.
// Exhausting retries propagates the last attempt's error.
func (e *Engine) runStep(ctx context.Context, step workflow.Step, wctx *workflow.Context, stepExec *workflow.StepExecution) (interface{}, error) {
	e.mu.RLock()
	handler, ok := e.handlers[step.Action]
	e.mu.RUnlock()
	if !ok {
		return nil, &core.EngineError{
			Op:   "engine.runStep",
			Kind: "step",
			ID:   step.ID,
			Err:  fmt.Errorf("%w: %s", core.ErrActionNotFound, step.Action),
		}
	}

	maxAttempts := 1
	multiplier := 1.0
	initialDelay := time.Duration(0)
	if step.Retry != nil {
		maxAttempts = step.Retry.MaxAttempts
		multiplier = step.Retry.BackoffMultiplier
		initialDelay = step.Retry.InitialDelay
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stepExec.Attempts = attempt

		output, err := e.invokeWithTimeout(ctx, handler, step, wctx, timeout)
		if err == nil {
			return output, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(float64(initialDelay) * math.Pow(multiplier, float64(attempt-1)))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

type handlerResult struct {
	output interface{}
	err    error
}

// invokeWithTimeout races the handler against the step timeout. A
// timed-out handler keeps running in its goroutine; the engine cannot
// interrupt it, it only stops waiting.
func (e *Engine) invokeWithTimeout(ctx context.Context, handler ActionHandler, step workflow.Step, wctx *workflow.Context, timeout time.Duration) (interface{}, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		output, err := handler(stepCtx, step.Params, wctx)
		resultCh <- handlerResult{output: output, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.output, res.err
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, core.ErrStepTimeout
		}
		return nil, stepCtx.Err()
	}
}
