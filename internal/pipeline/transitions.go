package pipeline

import (
	"slices"

	"contentfactory/internal/store"
)

var allowedTransitions = map[store.RunStatus][]store.RunStatus{
	store.RunPending: {store.RunRunning, store.RunFailed},
	store.RunRunning: {store.RunPaused, store.RunCompleted, store.RunFailed},
	store.RunPaused:  {store.RunRunning, store.RunFailed, store.RunExpired},
}

// checkTransition validates moving run to status.
func checkTransition(run *store.PipelineRun, to store.RunStatus) error {
	if run.Status.IsTerminal() {
		return &RunAlreadyTerminalError{RunID: run.ID, Status: run.Status}
	}
	if !slices.Contains(allowedTransitions[run.Status], to) {
		return &InvalidTransitionError{RunID: run.ID, From: run.Status, To: to}
	}
	return nil
}

// transition validates and applies a status change in memory.
func transition(run *store.PipelineRun, to store.RunStatus) error {
	if err := checkTransition(run, to); err != nil {
		return err
	}
	run.Status = to
	return nil
}
