// Package scheduler runs TriageLine's recurring background jobs, today
// just the nightly appointment reminder sweep.
package scheduler

import (
	"github.com/robfig/cron/v3"
)

// Scheduler wraps a running cron instance.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler starts a scheduler that accepts five-field cron
// expressions, minute through day-of-week. A panicking job is
// recovered and logged instead of crashing the process.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob registers task under the given cron expression and reports
// whether the expression parsed.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops scheduling new runs. Jobs already running finish on
// their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
