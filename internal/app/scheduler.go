package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// scheduledRunTimeout bounds a single scheduled generation.
const scheduledRunTimeout = 30 * time.Minute

// Scheduler publishes a report on the configured cron schedule.
type Scheduler struct {
	analysis interfaces.AnalysisService
	clock    *common.MarketClock
	config   common.ScheduleConfig
	cron     *cron.Cron
	logger   arbor.ILogger
}

// NewScheduler creates a scheduler evaluating the cron expression in the
// schedule timezone.
func NewScheduler(analysis interfaces.AnalysisService, clock *common.MarketClock, config common.ScheduleConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		analysis: analysis,
		clock:    clock,
		config:   config,
		cron:     cron.New(cron.WithLocation(config.Location())),
		logger:   logger,
	}
}

// Start registers the generation job and starts the cron runner
func (s *Scheduler) Start() error {
	schedule := s.config.Cron
	if schedule == "" {
		// Default: every 3 hours
		schedule = "0 */3 * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runScheduled); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Str("timezone", s.config.Location().String()).
		Bool("weekdays_only", s.config.WeekdaysOnly).
		Msg("Report scheduler started")

	return nil
}

// Stop halts the cron runner and waits for a running job to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Report scheduler stopped")
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()
	s.run(ctx)
}

// run applies the weekday gate and starts one generation. A run that is
// already in flight makes this activation a no-op.
func (s *Scheduler) run(ctx context.Context) {
	now := s.clock.Now()
	if s.config.WeekdaysOnly && s.clock.IsWeekend(now) {
		s.logger.Info().
			Str("weekday", now.Weekday().String()).
			Msg("Scheduled generation skipped: weekend")
		return
	}

	s.logger.Info().Msg("Starting scheduled generation")

	report, err := s.analysis.Generate(ctx, models.GenerateRequest{Trigger: "schedule"})
	if errors.Is(err, models.ErrGenerationInProgress) {
		s.logger.Info().Msg("Scheduled generation skipped: a run is already in progress")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled generation failed")
		return
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Str("ticker", report.Ticker).
		Str("market", string(report.Market)).
		Msg("Scheduled generation completed")
}
