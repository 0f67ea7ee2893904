package workflow

import "time"

// ExecutionStatus represents workflow execution status
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepStatus represents individual step status
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Execution represents a single run of a workflow. Executions are
// per-call records; concurrent executions never share one.
type Execution struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	Status     ExecutionStatus  `json:"status"`
	Context    *Context         `json:"context"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    *time.Time       `json:"end_time,omitempty"`
	Result     interface{}      `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	Steps      []*StepExecution `json:"steps"`
}

// StepExecution represents a single step's execution state within one
// workflow execution. Steps appear in path order.
type StepExecution struct {
	StepID    string      `json:"step_id"`
	Status    StepStatus  `json:"status"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Attempts  int         `json:"attempts"`
}

// Step returns the step execution record for the given step id
func (e *Execution) Step(stepID string) *StepExecution {
	for _, step := range e.Steps {
		if step.StepID == stepID {
			return step
		}
	}
	return nil
}

// Duration returns how long the execution ran, or time since start if
// it is still running
func (e *Execution) Duration() time.Duration {
	if e.EndTime != nil {
		return e.EndTime.Sub(e.StartTime)
	}
	return time.Since(e.StartTime)
}
