// Package scheduler runs the daily warm job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule warms at 06:00 UTC.
const DefaultSchedule = "0 6 * * *"

// Warmer runs one warm request.
type Warmer interface {
	Warm(ctx context.Context, req warm.Request) (*warm.Report, error)
}

// Config describes the scheduled job.
type Config struct {
	// Schedule is a standard cron spec evaluated in UTC. Empty disables the job.
	Schedule  string
	LeagueIDs []int
	Standings bool
	TeamStats bool
	// Timeout bounds one run.
	Timeout time.Duration
}

// Scheduler warms today's fixtures for a fixed set of leagues on a cron schedule.
type Scheduler struct {
	warmer Warmer
	config Config
	now    func() time.Time
	cron   *cron.Cron
	logger zerolog.Logger

	mu        sync.Mutex
	isRunning bool
	last      *warm.Report
	lastErr   error
}

// New creates a scheduler. now may be nil.
func New(warmer Warmer, config Config, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &Scheduler{
		warmer: warmer,
		config: config,
		now:    now,
		logger: logging.NewLogger("scheduler"),
	}
}

// Enabled reports whether Start will schedule anything.
func (s *Scheduler) Enabled() bool {
	return s.config.Schedule != "" && len(s.config.LeagueIDs) > 0
}

// Start schedules the job. A disabled scheduler starts as a no-op. Each
// start gets a fresh cron instance, so a stopped scheduler can be restarted.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if !s.Enabled() {
		s.logger.Info().Msg("Scheduled warm disabled")
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.config.Schedule, s.runScheduled); err != nil {
		return fmt.Errorf("failed to schedule warm %q: %w", s.config.Schedule, err)
	}

	c.Start()
	s.cron = c
	s.isRunning = true

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Ints("league_ids", s.config.LeagueIDs).
		Msg("Scheduled warm started")
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info().Msg("Scheduled warm stopped")
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return 0
	}
	return len(s.cron.Entries())
}

// RunOnce warms today's date (UTC) with the configured leagues.
func (s *Scheduler) RunOnce(ctx context.Context) (*warm.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req := warm.Request{
		Date:      usage.Day(s.now()),
		LeagueIDs: s.config.LeagueIDs,
		Standings: s.config.Standings,
		TeamStats: s.config.TeamStats,
	}

	report, err := s.warmer.Warm(ctx, req)

	s.mu.Lock()
	s.last, s.lastErr = report, err
	s.mu.Unlock()

	return report, err
}

// Last returns the outcome of the most recent run.
func (s *Scheduler) Last() (*warm.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *Scheduler) runScheduled() {
	report, err := s.RunOnce(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled warm failed")
		return
	}
	s.logger.Info().
		Str("run_id", report.RunID).
		Bool("ok", report.OK).
		Int("errors", len(report.Errors)).
		Msg("Scheduled warm finished")
}
