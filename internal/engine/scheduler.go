package engine

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the analysis pipeline on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that runs the pipeline on the given cron
// expression, e.g. "0 9 * * MON" for Monday mornings.
func NewScheduler(eng *Engine, cronSpec string, log *slog.Logger) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	if _, err := c.AddFunc(cronSpec, s.runPipeline); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runPipeline() {
	ctx := context.Background()
	s.log.Info("scheduled analysis starting")
	if err := s.engine.RunPipeline(ctx); err != nil {
		s.log.Error("scheduled analysis failed", "error", err)
	}
}
