package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Registration errors
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrActionNotFound   = errors.New("action handler not found")

	// Definition errors
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// Execution errors
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrStepTimeout        = errors.New("step execution timeout")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Optimizer invariant violations
	ErrNoPaths  = errors.New("no candidate paths generated")
	ErrNoStates = errors.New("no quantum states to measure")
)

// EngineError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type EngineError struct {
	Op      string // Operation that failed (e.g., "engine.ExecuteWorkflow")
	Kind    string // Error kind (e.g., "workflow", "step", "optimizer")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *EngineError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError
func NewEngineError(op, kind string, err error) *EngineError {
	return &EngineError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable.
// Configuration errors are never retryable; step-level failures are.
func IsRetryable(err error) bool {
	if IsConfigurationError(err) {
		return false
	}
	return errors.Is(err, ErrStepTimeout) || !IsNotFound(err)
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrActionNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}

// IsConfigurationError checks if an error is configuration-related.
// These surface immediately and are never retried.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrActionNotFound) ||
		errors.Is(err, ErrInvalidDefinition)
}
