package daemon

import (
	"context"
	"fmt"
	"slices"
	"time"

	"contentfactory/internal/config"
	"contentfactory/internal/healer"
	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/registry"
	"contentfactory/internal/store"
)

// job is a scheduled pipeline trigger.
type job struct {
	name string
	days []time.Weekday
	run  func(context.Context) error
}

// scheduledJobs builds one job per manifest pipeline plus the healer. A
// pipeline fires on every weekday on which one of its workers is eligible.
func (d *Daemon) scheduledJobs() ([]job, error) {
	reg := d.orch.Registry()
	runners := []struct {
		pipeline string
		run      func(context.Context) error
	}{
		{pipeline.PipelineContent, func(ctx context.Context) error {
			return runErr(d.orch.RunContentPipeline(ctx, pipeline.RunOptions{Trigger: store.TriggerCron}))
		}},
		{pipeline.PipelinePodcast, func(ctx context.Context) error {
			return runErr(d.orch.RunPodcastAutoPilot(ctx, pipeline.PodcastOptions{Trigger: store.TriggerCron}))
		}},
		{pipeline.PipelineSEO, func(ctx context.Context) error {
			return runErr(d.orch.RunSEOOptimizer(ctx, pipeline.SEOOptions{Trigger: store.TriggerCron}))
		}},
	}
	jobs := make([]job, 0, len(runners)+1)
	for _, r := range runners {
		workers, ok := reg.Pipeline(r.pipeline)
		if !ok {
			continue
		}
		jobs = append(jobs, job{name: r.pipeline, days: pipelineDays(reg, workers), run: r.run})
	}
	healerDays, err := config.ParseWeekdays(d.cfg.Schedule.HealerDays)
	if err != nil {
		return nil, fmt.Errorf("schedule.healer_days: %w", err)
	}
	jobs = append(jobs, job{name: healer.PipelineType, days: healerDays, run: func(ctx context.Context) error {
		_, err := d.healer.Run(ctx, healer.Options{AutoFix: true, Trigger: store.TriggerCron})
		return err
	}})
	return jobs, nil
}

// pipelineDays lists the weekdays on which any of workers is eligible.
func pipelineDays(reg *registry.Registry, workers []string) []time.Weekday {
	var days []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, def := range reg.EligibleOn(day) {
			if slices.Contains(workers, def.ID) {
				days = append(days, day)
				break
			}
		}
	}
	return days
}

// runErr turns an unsuccessful run into an error for job logging.
func runErr(res pipeline.RunResult, err error) error {
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("run %s %s: %s", res.RunID, res.Status, res.Error)
	}
	return nil
}

func (d *Daemon) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SchedulerInterval())
	defer ticker.Stop()
	for {
		d.tick(ctx, d.now())
		d.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick fires every job scheduled on now's weekday that has not fired today.
// The per-day key lives in the store so restarts never double-fire.
func (d *Daemon) tick(ctx context.Context, now time.Time) {
	d.lastTick.Store(&now)
	for _, j := range d.jobs {
		if !slices.Contains(j.days, now.Weekday()) {
			continue
		}
		key := j.name + ":" + now.Format(time.DateOnly)
		fired, err := d.store.MarkScheduled(ctx, key, now)
		if err != nil {
			logging.WarnWithContext(d.logger, "schedule mark failed", "schedule_mark_failed",
				logging.String("job", j.name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "scheduled run skipped this tick"),
			)
			continue
		}
		if !fired {
			continue
		}
		d.logger.Info("scheduled run firing",
			logging.String("job", j.name),
			logging.String("key", key),
			logging.String(logging.FieldEventType, "schedule_fired"),
		)
		d.launch(j.name, j.run)
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	if d.cfg.ApprovalTimeout() <= 0 {
		return
	}
	n, err := d.orch.ExpireStaleApprovals(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "approval expiry sweep failed", "expiry_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale approvals stay pending until next sweep"),
		)
		return
	}
	if n > 0 {
		d.logger.Info("expired stale approvals",
			logging.Int("count", n),
			logging.String(logging.FieldEventType, "approvals_expired"),
		)
	}
}
