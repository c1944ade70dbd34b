// Package scheduler runs the periodic housekeeping jobs of the worker.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// MerchantLister lists the merchants the per-merchant jobs visit
type MerchantLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// TicketSweeper cleans up queue tickets nobody acted on
type TicketSweeper interface {
	MarkNoShows(ctx context.Context, merchantID string, grace time.Duration) (int, error)
	ExpireStale(ctx context.Context, merchantID string, age time.Duration) (int, error)
}

// RequestExpirer expires appointment requests whose time has passed
type RequestExpirer interface {
	ExpirePast(ctx context.Context, merchantID string) (int, error)
}

// SessionCleaner removes expired and revoked login sessions
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// jobTimeout bounds a single run of any job
const jobTimeout = 5 * time.Minute

// Scheduler owns the cron runner and the jobs registered on it
type Scheduler struct {
	cron      *cron.Cron
	specs     config.SchedulerConfig
	queue     config.QueueConfig
	merchants MerchantLister
	tickets   TicketSweeper
	requests  RequestExpirer
	sessions  SessionCleaner
	logger    *logger.Logger
}

// New creates a scheduler; call Register before Start
func New(specs config.SchedulerConfig, queue config.QueueConfig, merchants MerchantLister, tickets TicketSweeper, requests RequestExpirer, sessions SessionCleaner, log *logger.Logger) *Scheduler {
	log = log.WithComponent("scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}), cron.Recover(cronLogger{log})),
		),
		specs:     specs,
		queue:     queue,
		merchants: merchants,
		tickets:   tickets,
		requests:  requests,
		sessions:  sessions,
		logger:    log,
	}
}

// Register adds every job with its configured schedule.
// An empty spec disables that job.
func (s *Scheduler) Register() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"no_show_sweep", s.specs.NoShowSpec, s.SweepNoShows},
		{"stale_ticket_sweep", s.specs.StaleTicketSpec, s.SweepStaleTickets},
		{"expire_requests", s.specs.ExpireRequestsSpec, s.ExpireRequests},
		{"session_cleanup", s.specs.SessionCleanupSpec, s.CleanSessions},
	}

	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Info().Str("job", job.name).Msg("job disabled")
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.name, job.spec, err)
		}
		s.logger.Info().Str("job", job.name).Str("spec", job.spec).Msg("job scheduled")
	}
	return nil
}

// Start runs the cron loop in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stopped before running jobs finished")
	}
}

// SweepNoShows marks called tickets past the grace period as no-shows
func (s *Scheduler) SweepNoShows(ctx context.Context) {
	s.forEachMerchant(ctx, "no_show_sweep", func(ctx context.Context, merchantID string) (int, error) {
		return s.tickets.MarkNoShows(ctx, merchantID, s.queue.NoShowGrace)
	})
}

// SweepStaleTickets cancels tickets left waiting too long
func (s *Scheduler) SweepStaleTickets(ctx context.Context) {
	s.forEachMerchant(ctx, "stale_ticket_sweep", func(ctx context.Context, merchantID string) (int, error) {
		return s.tickets.ExpireStale(ctx, merchantID, s.queue.StaleTicketAge)
	})
}

// ExpireRequests expires appointment requests whose preferred time has passed
func (s *Scheduler) ExpireRequests(ctx context.Context) {
	s.forEachMerchant(ctx, "expire_requests", s.requests.ExpirePast)
}

// CleanSessions deletes expired login sessions
func (s *Scheduler) CleanSessions(ctx context.Context) {
	n, err := s.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", "session_cleanup").Msg("job failed")
		return
	}
	s.logger.Info().Str("job", "session_cleanup").Int64("affected", n).Msg("job finished")
}

// forEachMerchant runs fn for every active merchant.
// A failing merchant is logged and the cycle moves on to the next one.
func (s *Scheduler) forEachMerchant(ctx context.Context, job string, fn func(ctx context.Context, merchantID string) (int, error)) {
	ids, err := s.merchants.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", job).Msg("failed to list merchants")
		return
	}

	total, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			s.logger.Warn().Str("job", job).Msg("job timed out")
			return
		}
		n, err := fn(ctx, id)
		if err != nil {
			failed++
			s.logger.WithMerchantID(id).Error().Err(err).Str("job", job).Msg("job failed for merchant")
			continue
		}
		total += n
	}

	s.logger.Info().
		Str("job", job).
		Int("merchants", len(ids)).
		Int("failed", failed).
		Int("affected", total).
		Msg("job finished")
}

// cronLogger routes the cron runner's own messages to zerolog
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
