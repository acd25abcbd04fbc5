package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// OperationType is the kind of change a journal entry records.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// OperationStatus tracks a journal entry from start to resolution.
type OperationStatus string

const (
	OpPending   OperationStatus = "pending"
	OpCompleted OperationStatus = "completed"
	OpFailed    OperationStatus = "failed"
)

// Operation is one journaled step of a composite operation.
type Operation struct {
	ID        string          `json:"id"`
	Type      OperationType   `json:"type"`
	Service   string          `json:"service"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id,omitempty"`
	Data      any             `json:"data,omitempty"`
	Status    OperationStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RollbackError records a compensating action that failed.
type RollbackError struct {
	Operation Operation         `json:"operation"`
	Error     *domain.ErrorInfo `json:"error"`
}

// Compensation undoes a completed step given the identifier it produced.
type Compensation func(ctx context.Context, entityID string) error

// Journal is the ordered step log of one composite call. Entries are only
// appended and then marked; it is safe for concurrent steps.
type Journal struct {
	mu    sync.Mutex
	ops   []Operation
	undo  map[int]Compensation
	clock stamps
}

func newJournal(clock stamps) *Journal {
	return &Journal{undo: make(map[int]Compensation), clock: clock}
}

// Run journals op as pending, executes fn, and marks the entry with the
// outcome. fn returns the identifier of the entity it touched. When undo is
// non-nil it is registered for rollback once the step completes.
func (j *Journal) Run(ctx context.Context, op Operation, undo Compensation, fn func(context.Context) (string, error)) error {
	idx := j.begin(op)

	entityID, err := fn(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()
	entry := &j.ops[idx]
	if entityID != "" {
		entry.EntityID = entityID
	}
	if err != nil {
		entry.Status = OpFailed
		entry.Error = err.Error()
		return fmt.Errorf("%s %s: %w", op.Type, op.Entity, err)
	}
	entry.Status = OpCompleted
	if undo != nil {
		j.undo[idx] = undo
	}
	return nil
}

func (j *Journal) begin(op Operation) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	op.ID = j.clock.newID()
	op.Status = OpPending
	op.Error = ""
	op.Timestamp = j.clock.timestamp()
	j.ops = append(j.ops, op)
	return len(j.ops) - 1
}

// Operations returns a snapshot of the journal in append order.
func (j *Journal) Operations() []Operation {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Operation, len(j.ops))
	copy(out, j.ops)
	return out
}

// Rollback walks completed entries in reverse order and runs their
// compensations. A failing compensation is recorded and the walk goes on.
func (j *Journal) Rollback(ctx context.Context) ([]Operation, []RollbackError) {
	ctx = context.WithoutCancel(ctx)

	j.mu.Lock()
	ops := make([]Operation, len(j.ops))
	copy(ops, j.ops)
	undo := make(map[int]Compensation, len(j.undo))
	for k, v := range j.undo {
		undo[k] = v
	}
	j.mu.Unlock()

	var (
		done   []Operation
		failed []RollbackError
	)
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		comp, ok := undo[i]
		if op.Status != OpCompleted || !ok {
			continue
		}

		rb := Operation{
			ID:        j.clock.newID(),
			Type:      inverse(op.Type),
			Service:   op.Service,
			Entity:    op.Entity,
			EntityID:  op.EntityID,
			Status:    OpCompleted,
			Timestamp: j.clock.timestamp(),
		}
		if err := comp(ctx, op.EntityID); err != nil {
			rb.Status = OpFailed
			rb.Error = err.Error()
			failed = append(failed, RollbackError{Operation: rb, Error: domain.ToErrorInfo(err)})
			slog.ErrorContext(ctx, "compensation failed",
				"entity", op.Entity, "entity_id", op.EntityID, "error", err)
		}
		done = append(done, rb)
	}
	return done, failed
}

func inverse(t OperationType) OperationType {
	switch t {
	case OpCreate:
		return OpDelete
	case OpDelete:
		return OpCreate
	}
	return OpUpdate
}
