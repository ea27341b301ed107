package schedule

import (
	"context"
	"time"

	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/types"
	"github.com/callpulse/backend/internal/window"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SummaryGenerator produces an activity summary for a period
type SummaryGenerator interface {
	Generate(ctx context.Context, period window.Period, explicitStart, explicitEnd string) (*types.ActivitySummary, error)
}

// SummarySender delivers a finished summary
type SummarySender interface {
	SendSummary(ctx context.Context, summary *types.ActivitySummary) error
}

// A multi-agent report walks the whole roster page by page; generous
// ceiling so slow upstreams finish rather than get cut off mid-roster.
const runTimeout = 15 * time.Minute

// Scheduler triggers report runs on configured cron expressions,
// evaluated in the reporting timezone
type Scheduler struct {
	cron      *cron.Cron
	generator SummaryGenerator
	sender    SummarySender
	schedules map[window.Period]string
	logger    zerolog.Logger
}

// NewScheduler creates a Scheduler from config
func NewScheduler(cfg *config.Config, generator SummaryGenerator, sender SummarySender, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Location)),
		generator: generator,
		sender:    sender,
		schedules: map[window.Period]string{
			window.PeriodAfternoon: cfg.AfternoonCron,
			window.PeriodFullDay:   cfg.FullDayCron,
		},
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

// Start registers the configured schedules and starts the cron loop.
// An empty cron expression disables that period's schedule.
func (s *Scheduler) Start() error {
	for period, expr := range s.schedules {
		if expr == "" {
			continue
		}
		period := period
		if _, err := s.cron.AddFunc(expr, func() { s.Run(period) }); err != nil {
			return err
		}
		s.logger.Info().Str("period", string(period)).Str("cron", expr).Msg("report schedule registered")
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for any in-flight run to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Run executes one scheduled report: generate, then deliver
func (s *Scheduler) Run(period window.Period) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.logger.Info().Str("period", string(period)).Msg("scheduled report starting")

	summary, err := s.generator.Generate(ctx, period, "", "")
	if err != nil {
		s.logger.Error().Err(err).Str("period", string(period)).Msg("scheduled report failed")
		return
	}

	if err := s.sender.SendSummary(ctx, summary); err != nil {
		s.logger.Error().Err(err).Str("period", string(period)).Msg("failed to deliver scheduled report")
		return
	}

	s.logger.Info().Str("period", string(period)).Int("agents", len(summary.Agents)).Msg("scheduled report delivered")
}
