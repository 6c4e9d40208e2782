package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownWorker matches every UnknownWorkerError.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrCyclicDependency matches every CyclicDependencyError.
	ErrCyclicDependency = errors.New("cyclic worker dependency")
)

// UnknownWorkerError reports a worker id that is not registered.
type UnknownWorkerError struct {
	ID string
	// RequiredBy is set when the id was named as a predecessor.
	RequiredBy string
}

func (e *UnknownWorkerError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("unknown worker %q required by %q", e.ID, e.RequiredBy)
	}
	return fmt.Sprintf("unknown worker %q", e.ID)
}

func (e *UnknownWorkerError) Is(target error) bool { return target == ErrUnknownWorker }

// CyclicDependencyError reports a cycle in the declared graph. Cycle starts
// and ends with the same worker.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic worker dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }
