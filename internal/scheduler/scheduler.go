package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/natsbus"
	"github.com/mtzanidakis/gridswarm/internal/schedule"
)

// RunFunc executes one scheduled swarm run to completion.
type RunFunc func(ctx context.Context, run config.ScheduledRun) error

type entry struct {
	run      config.ScheduledRun
	schedule string
	nextRun  *time.Time
}

// Scheduler fires configured recurring runs. Schedules come from the
// config file, next-run times are tracked in memory.
type Scheduler struct {
	entries      []*entry
	exec         RunFunc
	natsClient   *natsbus.Client
	pollInterval time.Duration
}

func New(cfg config.SchedulerConfig, exec RunFunc, bus *natsbus.Bus) *Scheduler {
	sched := &Scheduler{
		exec:         exec,
		pollInterval: cfg.PollInterval,
	}

	for _, run := range cfg.Runs {
		normalized, err := schedule.Normalize(run.Schedule)
		if err != nil {
			slog.Error("invalid schedule, skipping run", "name", run.Name, "error", err)
			continue
		}
		sched.entries = append(sched.entries, &entry{
			run:      run,
			schedule: normalized,
			nextRun:  schedule.NextRun(normalized),
		})
		slog.Info("scheduled run registered",
			"name", run.Name, "agent", run.Agent, "schedule", schedule.Format(normalized))
	}

	if bus != nil {
		client, err := natsbus.NewClient(bus)
		if err != nil {
			slog.Error("scheduler nats client failed", "error", err)
		} else {
			sched.natsClient = client
		}
	}

	return sched
}

// Entries reports how many runs are registered.
func (s *Scheduler) Entries() int {
	return len(s.entries)
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval, "runs", len(s.entries))

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	now := time.Now()
	for _, e := range s.entries {
		if e.nextRun == nil || e.nextRun.After(now) {
			continue
		}
		s.execute(ctx, e)
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	slog.Info("executing scheduled run", "name", e.run.Name, "agent", e.run.Agent, "games", e.run.Games)

	err := s.exec(ctx, e.run)

	status := "success"
	if err != nil {
		status = "error"
		slog.Error("scheduled run failed", "name", e.run.Name, "error", err)
	}

	e.nextRun = schedule.NextRun(e.schedule)
	if e.nextRun == nil {
		slog.Warn("schedule yields no next run, disabling", "name", e.run.Name)
	}

	s.publishRunExecutedEvent(e.run, status)
}

func (s *Scheduler) publishRunExecutedEvent(run config.ScheduledRun, status string) {
	if s.natsClient == nil {
		return
	}

	event := map[string]any{
		"type":      "scheduled_run_executed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"name":   run.Name,
			"agent":  run.Agent,
			"status": status,
		},
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	_ = s.natsClient.Publish(natsbus.TopicRunEvents("scheduled"), data)
}
