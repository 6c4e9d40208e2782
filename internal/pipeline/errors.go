package pipeline

import (
	"errors"
	"fmt"
	"time"

	"contentfactory/internal/registry"
	"contentfactory/internal/store"
)

var (
	ErrUnknownWorker     = registry.ErrUnknownWorker
	ErrCyclicDependency  = registry.ErrCyclicDependency
	ErrWorkerExecution   = errors.New("worker execution failed")
	ErrRunTerminal       = errors.New("run already terminal")
	ErrRecordNotFound    = errors.New("record not found")
	ErrApprovalTimeout   = errors.New("approval timed out")
	ErrApprovalResolved  = errors.New("approval already resolved")
	ErrInvalidTransition = errors.New("invalid run transition")
)

// WorkerExecutionError records a failed worker.
type WorkerExecutionError struct {
	Worker  string
	Message string
	Err     error
}

func (e *WorkerExecutionError) Error() string {
	return fmt.Sprintf("worker %s failed: %s", e.Worker, e.Message)
}

func (e *WorkerExecutionError) Unwrap() error        { return e.Err }
func (e *WorkerExecutionError) Is(target error) bool { return target == ErrWorkerExecution }

// RunAlreadyTerminalError rejects a mutation of a completed, failed or
// expired run.
type RunAlreadyTerminalError struct {
	RunID  string
	Status store.RunStatus
}

func (e *RunAlreadyTerminalError) Error() string {
	return fmt.Sprintf("run %s is already %s", e.RunID, e.Status)
}

func (e *RunAlreadyTerminalError) Is(target error) bool { return target == ErrRunTerminal }

// RecordNotFoundError reports a lookup miss with a human-readable message
// such as "Topic not found: t-1".
type RecordNotFoundError struct {
	Kind string
	ID   string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *RecordNotFoundError) Is(target error) bool { return target == ErrRecordNotFound }

// ApprovalTimeoutError is recorded on runs expired by the approval sweep.
type ApprovalTimeoutError struct {
	ApprovalID string
	RunID      string
	Waited     time.Duration
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("approval %s for run %s expired after %s", e.ApprovalID, e.RunID, e.Waited.Round(time.Minute))
}

func (e *ApprovalTimeoutError) Is(target error) bool { return target == ErrApprovalTimeout }

// ApprovalResolvedError rejects a second decision on the same approval.
type ApprovalResolvedError struct {
	ApprovalID string
	Status     store.ApprovalStatus
}

func (e *ApprovalResolvedError) Error() string {
	return fmt.Sprintf("approval %s already %s", e.ApprovalID, e.Status)
}

func (e *ApprovalResolvedError) Is(target error) bool { return target == ErrApprovalResolved }

// InvalidTransitionError rejects a status change the state machine forbids.
type InvalidTransitionError struct {
	RunID string
	From  store.RunStatus
	To    store.RunStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("run %s cannot move from %s to %s", e.RunID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
