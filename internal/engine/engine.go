// Package engine drives orders from creation to a terminal state.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "fundvest/internal/errors"
	"fundvest/internal/ledger"
	"fundvest/internal/logging"
	"fundvest/internal/models"
	"fundvest/internal/nav"
	"fundvest/internal/store"
)

// idAttempts bounds order-id regeneration on collision.
const idAttempts = 5

// Options configures an Engine.
type Options struct {
	// SettlementDelay is the modeled latency between an order entering
	// PROCESSING and its ledger mutation.
	SettlementDelay time.Duration
	// StaleAfter is the age past which a PROCESSING order is considered
	// abandoned and resolved to FAILED by RecoverStale.
	StaleAfter time.Duration
	// Clock overrides the time source. Defaults to time.Now.
	Clock func() time.Time
}

// SubmitResult is returned synchronously from a submit call. Settlement
// completes out of band; its outcome is observable via the order status.
type SubmitResult struct {
	OrderID string
	Units   decimal.Decimal
	Amount  decimal.Decimal
}

// Engine is the order processor. It creates orders synchronously and settles
// them after a deferred, cancellable delay. Every deferred settlement is
// tracked so Stop can drain in-flight work and a restart can reconcile
// whatever was cut off.
type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	nav    nav.Provider
	logger zerolog.Logger

	delay      time.Duration
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// New creates an order processing engine.
func New(s store.Store, l *ledger.Ledger, p nav.Provider, logger zerolog.Logger, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	return &Engine{
		store:      s,
		ledger:     l,
		nav:        p,
		logger:     logger,
		delay:      opts.SettlementDelay,
		staleAfter: opts.StaleAfter,
		now:        opts.Clock,
		timers:     make(map[string]*time.Timer),
	}
}

// SubmitBuy validates and creates a BUY order, then schedules its settlement.
// The order id is returned immediately; the ledger is credited after the
// settlement delay. When sipDay is non-zero a SIP plan is materialized once
// the buy settles successfully.
func (e *Engine) SubmitBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal, sipDay int) (*SubmitResult, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount", amount.String(), "must be positive")
	}
	if sipDay != 0 && (sipDay < 1 || sipDay > 31) {
		return nil, apperrors.NewValidationError("sipDay", sipDay, "must be between 1 and 31")
	}
	return e.submitBuy(ctx, userID, fundName, amount, sipDay != 0, sipDay)
}

// SubmitPlanBuy creates the BUY order for one scheduled SIP execution. The
// order is flagged as SIP-originated but carries no day-of-month, so settling
// it never materializes a second plan.
func (e *Engine) SubmitPlanBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal) (*SubmitResult, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount", amount.String(), "must be positive")
	}
	return e.submitBuy(ctx, userID, fundName, amount, true, 0)
}

func (e *Engine) submitBuy(ctx context.Context, userID, fundName string, amount decimal.Decimal, isSIP bool, sipDay int) (*SubmitResult, error) {
	price := e.currentNAV(fundName)
	units := amount.Div(price)

	order := &models.Order{
		UserID:    userID,
		FundName:  fundName,
		Side:      models.SideBuy,
		Amount:    amount,
		Units:     units,
		NAV:       price,
		Status:    models.OrderCreated,
		IsSIP:     isSIP,
		SIPDay:    sipDay,
		CreatedAt: e.now(),
	}

	if err := e.createOrder(ctx, order); err != nil {
		return nil, err
	}
	e.scheduleSettlement(order.OrderID)

	return &SubmitResult{OrderID: order.OrderID, Units: units, Amount: amount}, nil
}

// SubmitSell validates and creates a SELL order. A request for more units
// than the user holds is rejected here, before any order record exists; the
// balance is re-validated again at settlement time.
func (e *Engine) SubmitSell(ctx context.Context, userID, fundName string, units decimal.Decimal) (*SubmitResult, error) {
	if !units.IsPositive() {
		return nil, apperrors.NewValidationError("units", units.String(), "must be positive")
	}

	holding, err := e.store.GetHolding(ctx, userID, fundName)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrHoldingNotFound) {
			return nil, apperrors.ErrInsufficientUnits
		}
		return nil, err
	}
	if holding.TotalUnits.LessThan(units) {
		return nil, apperrors.ErrInsufficientUnits
	}

	price := e.currentNAV(fundName)
	amount := units.Mul(price)

	order := &models.Order{
		UserID:    userID,
		FundName:  fundName,
		Side:      models.SideSell,
		Amount:    amount,
		Units:     units,
		NAV:       price,
		Status:    models.OrderCreated,
		CreatedAt: e.now(),
	}

	if err := e.createOrder(ctx, order); err != nil {
		return nil, err
	}
	e.scheduleSettlement(order.OrderID)

	return &SubmitResult{OrderID: order.OrderID, Units: units, Amount: amount}, nil
}

// OrderStatus returns the current state of an order.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// currentNAV queries the price oracle, logging when the fallback price is
// served for an unrecognized fund.
func (e *Engine) currentNAV(fundName string) decimal.Decimal {
	price, known := e.nav.CurrentNAV(fundName)
	if !known {
		e.logger.Warn().
			Str("fund", fundName).
			Str("nav", price.String()).
			Msg("Unknown fund, using fallback NAV")
	}
	return price
}

// createOrder persists the order, regenerating the id on collision.
func (e *Engine) createOrder(ctx context.Context, order *models.Order) error {
	for attempt := 0; attempt < idAttempts; attempt++ {
		order.OrderID = models.NewOrderID(e.now())
		err := e.store.InsertOrder(ctx, order)
		if err == nil {
			logging.LogOrder(e.logger, order.OrderID, order.FundName, string(order.Side), string(order.Status))
			return nil
		}
		if !apperrors.Is(err, apperrors.ErrDuplicateOrderID) {
			return err
		}
	}
	return apperrors.NewOrderError(order.OrderID, order.FundName, string(order.Side),
		"could not generate a unique order id", apperrors.ErrDuplicateOrderID)
}

// scheduleSettlement moves the order to PROCESSING and arms its settlement
// timer. When the engine is already stopped the order stays PROCESSING and
// is resolved by RecoverStale on the next start.
func (e *Engine) scheduleSettlement(orderID string) {
	ctx := context.Background()
	if err := e.store.UpdateOrderStatus(ctx, orderID, models.OrderProcessing, nil); err != nil {
		e.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to mark order processing")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		e.logger.Warn().Str("order_id", orderID).Msg("Engine stopped, settlement deferred to recovery")
		return
	}

	e.wg.Add(1)
	e.timers[orderID] = time.AfterFunc(e.delay, func() {
		defer e.wg.Done()
		e.mu.Lock()
		delete(e.timers, orderID)
		e.mu.Unlock()
		e.settle(orderID)
	})
}

// settle applies the order's ledger mutation and records the terminal state.
// Failures are terminal; there is no automatic retry.
func (e *Engine) settle(orderID string) {
	ctx := context.Background()
	logger := logging.WithOrderID(e.logger, orderID)

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		logger.Error().Err(err).Msg("Settlement lookup failed")
		return
	}

	var applyErr error
	switch order.Side {
	case models.SideBuy:
		applyErr = e.ledger.ApplyBuy(ctx, order)
	case models.SideSell:
		applyErr = e.ledger.ApplySell(ctx, order)
	default:
		applyErr = apperrors.NewOrderError(orderID, order.FundName, string(order.Side), "unknown order side", nil)
	}

	processedAt := e.now()
	if applyErr != nil {
		if err := e.store.UpdateOrderStatus(ctx, orderID, models.OrderFailed, &processedAt); err != nil {
			logger.Error().Err(err).Msg("Failed to mark order failed")
		}
		logging.LogSettlement(logger, orderID, false, applyErr)
		return
	}

	if err := e.store.UpdateOrderStatus(ctx, orderID, models.OrderSuccess, &processedAt); err != nil {
		logger.Error().Err(err).Msg("Failed to mark order successful")
		return
	}
	logging.LogSettlement(logger, orderID, true, nil)

	if order.IsSIP && order.Side == models.SideBuy && order.SIPDay >= 1 {
		e.materializePlan(ctx, order)
	}
}

// materializePlan creates the SIP plan backing a successful recurring buy.
// The first scheduled execution lands one month after order creation, pinned
// to the plan's day of month.
func (e *Engine) materializePlan(ctx context.Context, order *models.Order) {
	plan := &models.SIPPlan{
		ID:            uuid.NewString(),
		UserID:        order.UserID,
		FundName:      order.FundName,
		Amount:        order.Amount,
		DayOfMonth:    order.SIPDay,
		Status:        models.SIPActive,
		NextExecution: models.NextSIPExecution(order.CreatedAt, order.SIPDay),
		CreatedAt:     e.now(),
	}

	if err := e.store.InsertPlan(ctx, plan); err != nil {
		e.logger.Error().Err(err).
			Str("order_id", order.OrderID).
			Str("fund", order.FundName).
			Msg("Failed to create SIP plan")
		return
	}

	e.logger.Info().
		Str("plan_id", plan.ID).
		Str("fund", plan.FundName).
		Int("day_of_month", plan.DayOfMonth).
		Time("next_execution", plan.NextExecution).
		Msg("SIP plan created")
}

// RecoverStale resolves PROCESSING orders older than the stale threshold to
// FAILED. Run at startup so a crash or shutdown never leaves an order in
// PROCESSING indefinitely.
func (e *Engine) RecoverStale(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.staleAfter)
	orders, err := e.store.StaleProcessingOrders(ctx, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "scanning stale orders")
	}

	recovered := 0
	for _, order := range orders {
		processedAt := e.now()
		if err := e.store.UpdateOrderStatus(ctx, order.OrderID, models.OrderFailed, &processedAt); err != nil {
			e.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("Failed to recover stale order")
			continue
		}
		e.logger.Warn().
			Str("order_id", order.OrderID).
			Time("created_at", order.CreatedAt).
			Msg("Stale processing order resolved to FAILED")
		recovered++
	}
	return recovered, nil
}

// Stop cancels pending settlement timers and waits for in-flight settlements
// to finish. Orders whose timers were cancelled remain PROCESSING until
// RecoverStale resolves them.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	for orderID, timer := range e.timers {
		if timer.Stop() {
			e.wg.Done()
		}
		delete(e.timers, orderID)
	}
	e.mu.Unlock()

	e.wg.Wait()
}

// Pending returns the number of orders with an armed settlement timer.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
