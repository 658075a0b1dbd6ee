// Package scheduler runs the periodic EMI jobs
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 5 * time.Minute

// Jobs are the periodic EMI operations
type Jobs interface {
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
	ProcessAutoPay(ctx context.Context, now time.Time) (int, error)
}

// Scheduler triggers reminders and auto-pay on a cron schedule
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	log  *logrus.Logger
	now  func() time.Time
}

// New builds a scheduler for a standard five-field cron spec
func New(spec string, jobs Jobs, log *logrus.Logger) (*Scheduler, error) {
	cl := cron.PrintfLogger(log)
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		jobs: jobs,
		log:  log,
		now:  time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce runs auto-pay and then the reminders. Auto-pay goes first so that
// plans it pays are no longer reminded as due.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	now := s.now()

	if paid, err := s.jobs.ProcessAutoPay(ctx, now); err != nil {
		s.log.Errorf("Auto-pay run failed after %d payments: %v", paid, err)
	}
	if sent, err := s.jobs.SendDueReminders(ctx, now); err != nil {
		s.log.Errorf("Reminder run failed after %d reminders: %v", sent, err)
	}
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("Scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
	return nil
}
