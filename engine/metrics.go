package engine

import (
	"sync"
	"time"

	"github.com/quantaflow/quantaflow/workflow"
)

// EngineMetrics tracks aggregate execution metrics across the engine
type EngineMetrics struct {
	mu          sync.RWMutex
	executions  int64
	successful  int64
	failed      int64
	totalTime   time.Duration
	stepMetrics map[string]*StepMetrics
}

// StepMetrics tracks aggregate metrics for one step id
type StepMetrics struct {
	Executions  int64
	Successful  int64
	Failed      int64
	Skipped     int64
	TotalTime   time.Duration
	AverageTime time.Duration
	MinTime     time.Duration
	MaxTime     time.Duration
}

// NewEngineMetrics creates a metrics tracker
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		stepMetrics: make(map[string]*StepMetrics),
	}
}

// RecordExecution records a finished execution and its steps
func (m *EngineMetrics) RecordExecution(execution *workflow.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	switch execution.Status {
	case workflow.ExecutionCompleted:
		m.successful++
	case workflow.ExecutionFailed:
		m.failed++
	}

	if execution.EndTime != nil {
		m.totalTime += execution.EndTime.Sub(execution.StartTime)
	}

	for _, step := range execution.Steps {
		metrics, exists := m.stepMetrics[step.StepID]
		if !exists {
			metrics = &StepMetrics{MinTime: time.Hour * 24 * 365}
			m.stepMetrics[step.StepID] = metrics
		}

		metrics.Executions++
		switch step.Status {
		case workflow.StepCompleted:
			metrics.Successful++
		case workflow.StepFailed:
			metrics.Failed++
		case workflow.StepSkipped:
			metrics.Skipped++
		}

		if step.StartTime != nil && step.EndTime != nil {
			duration := step.EndTime.Sub(*step.StartTime)
			metrics.TotalTime += duration
			if duration < metrics.MinTime {
				metrics.MinTime = duration
			}
			if duration > metrics.MaxTime {
				metrics.MaxTime = duration
			}
			metrics.AverageTime = metrics.TotalTime / time.Duration(metrics.Executions)
		}
	}
}

// MetricsSnapshot represents a point-in-time view of engine metrics
type MetricsSnapshot struct {
	TotalExecutions int64                          `json:"total_executions"`
	Successful      int64                          `json:"successful"`
	Failed          int64                          `json:"failed"`
	SuccessRate     float64                        `json:"success_rate"`
	AverageTime     time.Duration                  `json:"average_time"`
	StepMetrics     map[string]StepMetricsSnapshot `json:"step_metrics"`
}

// StepMetricsSnapshot represents step metrics at a point in time
type StepMetricsSnapshot struct {
	Executions  int64         `json:"executions"`
	Successful  int64         `json:"successful"`
	Failed      int64         `json:"failed"`
	Skipped     int64         `json:"skipped"`
	SuccessRate float64       `json:"success_rate"`
	AverageTime time.Duration `json:"average_time"`
	MinTime     time.Duration `json:"min_time"`
	MaxTime     time.Duration `json:"max_time"`
}

// Snapshot returns current metrics
func (m *EngineMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalExecutions: m.executions,
		Successful:      m.successful,
		Failed:          m.failed,
		StepMetrics:     make(map[string]StepMetricsSnapshot),
	}

	if m.executions > 0 {
		snapshot.SuccessRate = float64(m.successful) / float64(m.executions)
		snapshot.AverageTime = m.totalTime / time.Duration(m.executions)
	}

	for stepID, metrics := range m.stepMetrics {
		snapshot.StepMetrics[stepID] = StepMetricsSnapshot{
			Executions:  metrics.Executions,
			Successful:  metrics.Successful,
			Failed:      metrics.Failed,
			Skipped:     metrics.Skipped,
			SuccessRate: float64(metrics.Successful) / float64(metrics.Executions),
			AverageTime: metrics.AverageTime,
			MinTime:     metrics.MinTime,
			MaxTime:     metrics.MaxTime,
		}
	}

	return snapshot
}

// Reset clears all metrics
func (m *EngineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = 0
	m.successful = 0
	m.failed = 0
	m.totalTime = 0
	m.stepMetrics = make(map[string]*StepMetrics)
}
