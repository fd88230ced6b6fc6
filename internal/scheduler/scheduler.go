// Package scheduler keeps the hottest dashboard cache entries warm.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"market-dashboard/internal/models"
)

// Warmer is the subset of market.Service the jobs drive.
type Warmer interface {
	RefreshIndices(ctx context.Context) *models.IndexBundle
	RefreshMovers(ctx context.Context, count int) *models.TopMovers
}

// Config holds the job schedules. An empty spec disables that job.
type Config struct {
	IndicesCron string
	MoversCron  string
	MoversCount int
}

// Scheduler manages the warm-up cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	warmer  Warmer
	cfg     Config
	ctx     context.Context
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler. Jobs run under ctx.
func NewScheduler(ctx context.Context, warmer Warmer, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		warmer:  warmer,
		cfg:     cfg,
		ctx:     ctx,
		timeout: 30 * time.Second,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the indices and movers jobs.
func (s *Scheduler) RegisterAll() error {
	if s.cfg.IndicesCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.IndicesCron, s.warmIndices); err != nil {
			return fmt.Errorf("register indices job: %w", err)
		}
	}
	if s.cfg.MoversCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.MoversCron, s.warmMovers); err != nil {
			return fmt.Errorf("register movers job: %w", err)
		}
	}
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", s.Jobs()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow executes every job once, for warming the cache at startup.
func (s *Scheduler) RunNow() {
	if s.cfg.IndicesCron != "" {
		s.warmIndices()
	}
	if s.cfg.MoversCron != "" {
		s.warmMovers()
	}
}

func (s *Scheduler) warmIndices() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	bundle := s.warmer.RefreshIndices(ctx)
	withData := 0
	if bundle != nil {
		for _, snap := range bundle.Indices {
			if len(snap.Data) > 0 {
				withData++
			}
		}
	}
	s.logger.Debug().Int("charted", withData).Dur("duration", time.Since(start)).Msg("Indices warmed")
}

func (s *Scheduler) warmMovers() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	m := s.warmer.RefreshMovers(ctx, s.cfg.MoversCount)
	if m != nil {
		s.logger.Debug().Int("gainers", len(m.Gainers)).Int("losers", len(m.Losers)).Msg("Movers warmed")
	}
}
