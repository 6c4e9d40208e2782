package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"contentfactory/internal/api"
	"contentfactory/internal/batch"
	"contentfactory/internal/config"
	"contentfactory/internal/healer"
	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
)

// Components are the services the daemon coordinates.
type Components struct {
	Store        *store.Store
	Orchestrator *pipeline.Orchestrator
	Healer       *healer.Healer
	Batch        *batch.Processor
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	orch   *pipeline.Orchestrator
	healer *healer.Healer
	batch  *batch.Processor
	now    func() time.Time
	jobs   []job
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	active   atomic.Int32
	lastTick atomic.Pointer[time.Time]

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, c Components) (*Daemon, error) {
	if cfg == nil || c.Store == nil || c.Orchestrator == nil || c.Healer == nil || c.Batch == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, healer, and batch processor")
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := c.Clock
	if now == nil {
		now = time.Now
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    c.Store,
		orch:     c.Orchestrator,
		healer:   c.Healer,
		batch:    c.Batch,
		now:      now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	jobs, err := d.scheduledJobs()
	if err != nil {
		return nil, err
	}
	d.jobs = jobs
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, resumes interrupted runs, and launches the
// scheduler loop and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another contentfactory daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()
	d.running.Store(true)

	d.launch("resume", d.resumeInterrupted)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(runCtx)
	}()

	d.logger.Info("contentfactory daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop cancels background work, waits for in-flight jobs, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.api.stop()
	d.wg.Wait()
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("contentfactory daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveJobs:   int(d.active.Load()),
	}
	if counts, err := d.store.CountRunsByStatus(ctx); err == nil {
		status.RunCounts = api.FromRunCounts(counts)
	} else {
		d.logger.Warn("count runs failed", logging.Error(err))
	}
	if pending, err := d.store.ListApprovals(ctx, store.ApprovalQuery{Status: store.ApprovalPending}); err == nil {
		status.PendingApprovals = len(pending)
	}
	if last := d.lastTick.Load(); last != nil {
		status.LastSchedulerRun = last.UTC().Format(time.RFC3339)
	}
	return status
}

func (d *Daemon) resumeInterrupted(ctx context.Context) error {
	results, err := d.orch.ResumeInterrupted(ctx)
	for _, res := range results {
		d.logger.Info("resumed interrupted run",
			logging.String(logging.FieldRunID, res.RunID),
			logging.String("status", string(res.Status)),
			logging.String(logging.FieldEventType, "run_resumed"),
		)
	}
	return err
}

// launch runs fn in the background under the daemon context. Panics are
// recovered and logged; Stop waits for every launched job.
func (d *Daemon) launch(name string, fn func(context.Context) error) {
	ctx := d.jobContext()
	d.wg.Add(1)
	d.active.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background job panicked",
					logging.String("job", name),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
					logging.Alert("job_panic"),
				)
			}
		}()
		started := time.Now()
		if err := fn(ctx); err != nil {
			logging.WarnWithContext(d.logger, "background job failed", "job_failed",
				logging.String("job", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "see run log for details"),
			)
			return
		}
		d.logger.Debug("background job finished",
			logging.String("job", name),
			logging.Duration("duration", time.Since(started)),
		)
	}()
}

func (d *Daemon) jobContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// wait blocks until every launched job has returned.
func (d *Daemon) wait() {
	d.wg.Wait()
}
