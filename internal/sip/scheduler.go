// Package sip schedules recurring investment plan executions.
package sip

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "fundvest/internal/errors"
	"fundvest/internal/engine"
	"fundvest/internal/logging"
	"fundvest/internal/models"
	"fundvest/internal/store"
)

// OrderSubmitter submits the BUY order for one scheduled plan execution.
// *engine.Engine satisfies it.
type OrderSubmitter interface {
	SubmitPlanBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal) (*engine.SubmitResult, error)
}

// Scheduler fires due SIP plans once per scheduling tick. Each due plan is
// processed independently: one plan's failure neither aborts the tick nor
// advances that plan's due date, so the contribution is retried next tick.
type Scheduler struct {
	store     store.SIPStore
	submitter OrderSubmitter
	logger    zerolog.Logger
	schedule  string
	now       func() time.Time
	cron      *cron.Cron
}

// NewScheduler creates a scheduler with the given cron schedule
// (e.g. "0 9 * * *" for a daily 09:00 tick).
func NewScheduler(s store.SIPStore, submitter OrderSubmitter, logger zerolog.Logger, schedule string) *Scheduler {
	return &Scheduler{
		store:     s,
		submitter: submitter,
		logger:    logger,
		schedule:  schedule,
		now:       time.Now,
	}
}

// SetClock overrides the time source used for the due-check. Intended for
// tests; it does not affect the cron cadence.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins periodic ticking. Returns an error for an invalid schedule.
func (s *Scheduler) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if err := s.RunTick(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("SIP tick failed")
		}
	})
	if err != nil {
		return apperrors.Wrapf(err, "invalid sip schedule %q", s.schedule)
	}

	s.cron = c
	c.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("SIP scheduler started")
	return nil
}

// Stop halts ticking and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("SIP scheduler stopped")
}

// RunTick executes every due ACTIVE plan. The returned error covers only the
// due-plan scan; per-plan failures are logged and isolated.
func (s *Scheduler) RunTick(ctx context.Context) error {
	asOf := s.now()
	plans, err := s.store.DuePlans(ctx, asOf)
	if err != nil {
		return apperrors.Wrap(err, "scanning due sip plans")
	}
	if len(plans) == 0 {
		return nil
	}

	s.logger.Info().Int("due", len(plans)).Time("as_of", asOf).Msg("Running SIP tick")

	executed := 0
	for _, plan := range plans {
		if err := s.executePlan(ctx, &plan); err != nil {
			s.logger.Error().Err(err).
				Str("plan_id", plan.ID).
				Str("user_id", plan.UserID).
				Str("fund", plan.FundName).
				Msg("SIP execution failed, plan stays due")
			continue
		}
		executed++
	}

	s.logger.Info().Int("executed", executed).Int("due", len(plans)).Msg("SIP tick complete")
	return nil
}

// executePlan submits the plan's buy and, only after a successful submission,
// advances the next execution date by exactly one month.
func (s *Scheduler) executePlan(ctx context.Context, plan *models.SIPPlan) error {
	result, err := s.submitter.SubmitPlanBuy(ctx, plan.UserID, plan.FundName, plan.Amount)
	if err != nil {
		return apperrors.NewPlanError(plan.ID, plan.FundName, "order submission failed", err)
	}

	next := models.NextSIPExecution(plan.NextExecution, plan.DayOfMonth)
	if err := s.store.AdvancePlan(ctx, plan.ID, next); err != nil {
		return apperrors.NewPlanError(plan.ID, plan.FundName, "advancing execution date failed", err)
	}

	logging.LogSIPExecution(s.logger, plan.ID, plan.UserID, plan.FundName, result.OrderID)
	return nil
}
