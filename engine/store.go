package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quantaflow/quantaflow/core"
	"github.com/quantaflow/quantaflow/workflow"
)

// StateStore persists execution records. Implementations must be safe
// for concurrent use. The engine treats store failures as non-fatal:
// they are logged, never promoted to execution failures.
type StateStore interface {
	SaveExecution(ctx context.Context, execution *workflow.Execution) error
	UpdateExecution(ctx context.Context, execution *workflow.Execution) error
	GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error)
	ListExecutions(ctx context.Context, workflowID string) ([]*workflow.Execution, error)
}

// RedisStateStore implements StateStore on Redis. Records expire after
// the configured TTL.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store. The client is
// injected so callers control connection configuration; ttl <= 0
// defaults to 24 hours.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

func executionKey(executionID string) string {
	return "quantaflow:exec:" + executionID
}

func executionListKey(workflowID string) string {
	return "quantaflow:executions:" + workflowID
}

// SaveExecution saves a new execution record and indexes it under its
// workflow id
func (s *RedisStateStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("marshaling execution: %w", err)
	}

	if err := s.client.Set(ctx, executionKey(execution.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving to Redis: %w", err)
	}

	if err := s.client.LPush(ctx, executionListKey(execution.WorkflowID), execution.ID).Err(); err != nil {
		return fmt.Errorf("adding to execution list: %w", err)
	}

	return nil
}

// UpdateExecution overwrites an existing execution record
func (s *RedisStateStore) UpdateExecution(ctx context.Context, execution *workflow.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("marshaling execution: %w", err)
	}

	key := executionKey(execution.ID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", core.ErrExecutionNotFound, execution.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
}

// GetExecution retrieves an execution record
func (s *RedisStateStore) GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	data, err := s.client.Get(ctx, executionKey(executionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", core.ErrExecutionNotFound, executionID)
		}
		return nil, fmt.Errorf("getting execution: %w", err)
	}

	var execution workflow.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("unmarshaling execution: %w", err)
	}

	return &execution, nil
}

// ListExecutions lists recent executions for a workflow, newest first
func (s *RedisStateStore) ListExecutions(ctx context.Context, workflowID string) ([]*workflow.Execution, error) {
	ids, err := s.client.LRange(ctx, executionListKey(workflowID), 0, 99).Result()
	if err != nil {
		return nil, fmt.Errorf("getting execution list: %w", err)
	}

	executions := make([]*workflow.Execution, 0, len(ids))
	for _, id := range ids {
		execution, err := s.GetExecution(ctx, id)
		if err != nil {
			// Expired records leave stale list entries behind
			continue
		}
		executions = append(executions, execution)
	}

	return executions, nil
}

// InMemoryStateStore implements StateStore in process memory. Records
// are snapshotted on write, so executions returned by Get/List never
// alias the engine's live record and are safe to read while the
// execution is still running.
type InMemoryStateStore struct {
	mu         sync.RWMutex
	executions map[string]*workflow.Execution
}

// NewInMemoryStateStore creates an in-memory state store
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		executions: make(map[string]*workflow.Execution),
	}
}

// snapshotExecution deep-copies an execution record through its JSON
// form, the same serialization boundary the Redis store crosses.
// Save/Update run on the goroutine that mutates the record, so the
// marshal itself needs no locking.
func snapshotExecution(execution *workflow.Execution) (*workflow.Execution, error) {
	data, err := json.Marshal(execution)
	if err != nil {
		return nil, fmt.Errorf("marshaling execution: %w", err)
	}
	var snapshot workflow.Execution
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling execution: %w", err)
	}
	return &snapshot, nil
}

func (s *InMemoryStateStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	snapshot, err := snapshotExecution(execution)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = snapshot
	return nil
}

func (s *InMemoryStateStore) UpdateExecution(ctx context.Context, execution *workflow.Execution) error {
	snapshot, err := snapshotExecution(execution)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = snapshot
	return nil
}

func (s *InMemoryStateStore) GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if execution, exists := s.executions[executionID]; exists {
		return execution, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrExecutionNotFound, executionID)
}

func (s *InMemoryStateStore) ListExecutions(ctx context.Context, workflowID string) ([]*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var executions []*workflow.Execution
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}
	return executions, nil
}
