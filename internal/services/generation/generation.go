// Package generation defines the asynchronous job contract shared by the media
// and audio adapters, plus the bounded poller that waits for a job to finish.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contentfactory/internal/services"
)

// State is the lifecycle position of a generation job.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Request describes one generation job. Params carries adapter specific
// options such as aspect ratio or voice.
type Request struct {
	Prompt string
	Params map[string]string
}

// Param returns a trimmed parameter or fallback when unset.
func (r Request) Param(key, fallback string) string {
	if v := strings.TrimSpace(r.Params[key]); v != "" {
		return v
	}
	return fallback
}

// Status is the result of polling a job.
type Status struct {
	State     State
	ResultURL string
	Error     string
}

// Service is implemented by every asynchronous generation adapter.
type Service interface {
	Submit(ctx context.Context, req Request) (string, error)
	PollStatus(ctx context.Context, taskID string) (Status, error)
}

// Policy bounds how long Await waits for a job.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	// Sleep overrides the wait between polls; tests pass a no-op.
	Sleep func(context.Context, time.Duration) error
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Await polls taskID until it completes, fails, or the attempt budget is
// spent. Transient poll errors consume an attempt rather than aborting.
func Await(ctx context.Context, svc Service, taskID string, policy Policy) (Status, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := svc.PollStatus(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Status{}, ctx.Err()
			}
			lastErr = err
		case status.State == StateCompleted:
			return status, nil
		case status.State == StateFailed:
			msg := strings.TrimSpace(status.Error)
			if msg == "" {
				msg = "job reported failure"
			}
			return status, services.Wrap(services.ErrExternalTool, "", "await "+taskID, msg, nil)
		}
		if attempt == attempts {
			break
		}
		if err := policy.sleep(ctx, policy.Interval); err != nil {
			return Status{}, err
		}
	}
	message := fmt.Sprintf("job %s still processing after %d attempts", taskID, attempts)
	return Status{State: StateProcessing}, services.Wrap(services.ErrTimeout, "", "await "+taskID, message, lastErr)
}

// Run submits req and awaits its completion.
func Run(ctx context.Context, svc Service, req Request, policy Policy) (Status, error) {
	taskID, err := svc.Submit(ctx, req)
	if err != nil {
		return Status{}, err
	}
	return Await(ctx, svc, taskID, policy)
}
