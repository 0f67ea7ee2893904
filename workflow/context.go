package workflow

import (
	"sync"
	"time"
)

// Context carries per-execution state: the caller's input variables
// and the append-only map of step results. One Context is created per
// ExecuteWorkflow call and is never shared across executions.
type Context struct {
	mu sync.RWMutex

	// Variables holds the caller-supplied input
	Variables map[string]interface{} `json:"variables"`

	results map[string]interface{}

	// StartTime is when the execution began
	StartTime time.Time `json:"start_time"`

	// CurrentStep is the id of the step currently executing
	CurrentStep string `json:"current_step,omitempty"`

	// StateID is the chosen quantum state, set exactly once after
	// measurement and never changed
	StateID string `json:"state_id,omitempty"`
}

// NewContext creates a fresh execution context with the given input
func NewContext(input map[string]interface{}) *Context {
	if input == nil {
		input = make(map[string]interface{})
	}
	return &Context{
		Variables: input,
		results:   make(map[string]interface{}),
		StartTime: time.Now(),
	}
}

// SetResult stores a step's output. Results are append-only: a step id
// is written at most once per execution.
func (c *Context) SetResult(stepID string, result interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[stepID] = result
}

// Result returns the stored output of a step
func (c *Context) Result(stepID string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[stepID]
	return result, ok
}

// Results returns a copy of all step results keyed by step id
func (c *Context) Results() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}
