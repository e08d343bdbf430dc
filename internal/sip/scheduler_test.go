package sip

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fundvest/internal/engine"
	"fundvest/internal/models"
	"fundvest/internal/store"
)

type submittedBuy struct {
	userID   string
	fundName string
	amount   decimal.Decimal
}

// fakeSubmitter records plan buys and can be made to fail.
type fakeSubmitter struct {
	calls []submittedBuy
	err   error
}

func (f *fakeSubmitter) SubmitPlanBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal) (*engine.SubmitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, submittedBuy{userID: userID, fundName: fundName, amount: amount})
	return &engine.SubmitResult{OrderID: models.NewOrderID(time.Now()), Units: decimal.NewFromInt(1), Amount: amount}, nil
}

func newTestScheduler(t *testing.T, submitter OrderSubmitter) (*Scheduler, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sip_test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewScheduler(s, submitter, zerolog.Nop(), "0 9 * * *"), s
}

func insertPlan(t *testing.T, s *store.SQLiteStore, id string, status models.SIPStatus, next time.Time) {
	t.Helper()

	plan := &models.SIPPlan{
		ID:            id,
		UserID:        "user1",
		FundName:      "SBI Bluechip Fund",
		Amount:        decimal.NewFromInt(500),
		DayOfMonth:    15,
		Status:        status,
		NextExecution: next,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := s.InsertPlan(context.Background(), plan); err != nil {
		t.Fatalf("InsertPlan failed: %v", err)
	}
}

func TestRunTickExecutesDuePlanAndAdvances(t *testing.T) {
	submitter := &fakeSubmitter{}
	sched, s := newTestScheduler(t, submitter)

	due := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	insertPlan(t, s, "plan1", models.SIPActive, due)
	sched.SetClock(func() time.Time { return due.Add(time.Minute) })

	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}

	if len(submitter.calls) != 1 {
		t.Fatalf("expected 1 plan buy, got %d", len(submitter.calls))
	}
	call := submitter.calls[0]
	if call.userID != "user1" || call.fundName != "SBI Bluechip Fund" || !call.amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected submission: %+v", call)
	}

	plan, err := s.GetPlan(context.Background(), "plan1")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	want := time.Date(2026, time.April, 15, 9, 0, 0, 0, time.UTC)
	if !plan.NextExecution.Equal(want) {
		t.Errorf("expected next execution %v, got %v", want, plan.NextExecution)
	}
}

func TestRunTickAdvancesFromDueDateNotFromNow(t *testing.T) {
	submitter := &fakeSubmitter{}
	sched, s := newTestScheduler(t, submitter)

	// The tick runs days late; the cadence still anchors to the plan's own
	// due date, not the wall clock. A day-31 plan also clamps to February.
	due := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)
	plan31 := &models.SIPPlan{
		ID:            "plan31",
		UserID:        "user1",
		FundName:      "SBI Bluechip Fund",
		Amount:        decimal.NewFromInt(500),
		DayOfMonth:    31,
		Status:        models.SIPActive,
		NextExecution: due,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := s.InsertPlan(context.Background(), plan31); err != nil {
		t.Fatalf("InsertPlan failed: %v", err)
	}

	sched.SetClock(func() time.Time { return due.Add(3 * 24 * time.Hour) })
	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}

	got, err := s.GetPlan(context.Background(), "plan31")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	want := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	if !got.NextExecution.Equal(want) {
		t.Errorf("expected next execution %v, got %v", want, got.NextExecution)
	}
}

func TestRunTickSkipsPausedAndCancelledPlans(t *testing.T) {
	submitter := &fakeSubmitter{}
	sched, s := newTestScheduler(t, submitter)

	due := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	insertPlan(t, s, "plan-paused", models.SIPPaused, due)
	insertPlan(t, s, "plan-cancelled", models.SIPCancelled, due)
	sched.SetClock(func() time.Time { return due.Add(time.Minute) })

	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if len(submitter.calls) != 0 {
		t.Errorf("expected no submissions for inactive plans, got %d", len(submitter.calls))
	}
}

func TestRunTickSkipsFuturePlans(t *testing.T) {
	submitter := &fakeSubmitter{}
	sched, s := newTestScheduler(t, submitter)

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	insertPlan(t, s, "plan-future", models.SIPActive, now.Add(5*24*time.Hour))
	sched.SetClock(func() time.Time { return now })

	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if len(submitter.calls) != 0 {
		t.Errorf("expected no submissions for future plans, got %d", len(submitter.calls))
	}
}

func TestFailedSubmissionLeavesPlanDue(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("engine unavailable")}
	sched, s := newTestScheduler(t, submitter)

	due := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	insertPlan(t, s, "plan1", models.SIPActive, due)
	sched.SetClock(func() time.Time { return due.Add(time.Minute) })

	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick returned scan error: %v", err)
	}

	plan, err := s.GetPlan(context.Background(), "plan1")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if !plan.NextExecution.Equal(due) {
		t.Errorf("failed execution advanced the plan: %v", plan.NextExecution)
	}

	// The plan executes on the next tick once the engine recovers.
	submitter.err = nil
	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if len(submitter.calls) != 1 {
		t.Errorf("expected retry to submit 1 buy, got %d", len(submitter.calls))
	}
}

func TestOnePlanFailureDoesNotAbortTick(t *testing.T) {
	submitter := &selectiveSubmitter{failFund: "HDFC Mid Cap Fund"}
	sched, s := newTestScheduler(t, submitter)

	due := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	failing := &models.SIPPlan{
		ID: "plan-bad", UserID: "user1", FundName: "HDFC Mid Cap Fund",
		Amount: decimal.NewFromInt(500), DayOfMonth: 15,
		Status: models.SIPActive, NextExecution: due, CreatedAt: due,
	}
	healthy := &models.SIPPlan{
		ID: "plan-good", UserID: "user1", FundName: "SBI Bluechip Fund",
		Amount: decimal.NewFromInt(500), DayOfMonth: 15,
		Status: models.SIPActive, NextExecution: due, CreatedAt: due,
	}
	for _, p := range []*models.SIPPlan{failing, healthy} {
		if err := s.InsertPlan(context.Background(), p); err != nil {
			t.Fatalf("InsertPlan failed: %v", err)
		}
	}
	sched.SetClock(func() time.Time { return due.Add(time.Minute) })

	if err := sched.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}

	good, err := s.GetPlan(context.Background(), "plan-good")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if !good.NextExecution.After(due) {
		t.Errorf("healthy plan did not advance past %v", due)
	}

	bad, err := s.GetPlan(context.Background(), "plan-bad")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if !bad.NextExecution.Equal(due) {
		t.Errorf("failing plan advanced to %v", bad.NextExecution)
	}
}

// selectiveSubmitter fails submissions for one fund only.
type selectiveSubmitter struct {
	failFund string
}

func (f *selectiveSubmitter) SubmitPlanBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal) (*engine.SubmitResult, error) {
	if fundName == f.failFund {
		return nil, errors.New("submission refused")
	}
	return &engine.SubmitResult{OrderID: models.NewOrderID(time.Now()), Units: decimal.NewFromInt(1), Amount: amount}, nil
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeSubmitter{})
	sched.schedule = "not a cron expression"

	if err := sched.Start(); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeSubmitter{})

	if err := sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sched.Stop()
}
