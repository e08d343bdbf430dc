// Package ledger applies order effects to user holdings.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "fundvest/internal/errors"
	"fundvest/internal/models"
	"fundvest/internal/store"
)

// Ledger applies one order's effect to exactly one holding, serialized per
// (user, fund) key so that concurrent read-modify-write sequences on the same
// position never interleave.
type Ledger struct {
	store store.PortfolioStore
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the given portfolio store.
func New(s store.PortfolioStore) *Ledger {
	return &Ledger{
		store: s,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// keyLock returns the mutex serializing mutations for one (user, fund) key.
func (l *Ledger) keyLock(userID, fundName string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userID + "\x00" + fundName
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// ApplyBuy credits the order's units and amount to the holding, creating it
// on the first successful buy for the (user, fund) pair.
func (l *Ledger) ApplyBuy(ctx context.Context, order *models.Order) error {
	lock := l.keyLock(order.UserID, order.FundName)
	lock.Lock()
	defer lock.Unlock()

	return l.store.UpdateHolding(ctx, order.UserID, order.FundName, func(h *models.Holding) error {
		h.TotalUnits = h.TotalUnits.Add(order.Units)
		h.TotalInvested = h.TotalInvested.Add(order.Amount)
		h.CurrentValue = h.TotalUnits.Mul(order.NAV)
		h.LastUpdated = l.now()
		return nil
	})
}

// ApplySell debits the order's units from the holding, reducing the cost
// basis proportionally so the remaining position keeps its average cost per
// unit. The unit balance is re-validated here, inside the transaction, to
// close the race window between submission-time check and apply.
func (l *Ledger) ApplySell(ctx context.Context, order *models.Order) error {
	lock := l.keyLock(order.UserID, order.FundName)
	lock.Lock()
	defer lock.Unlock()

	return l.store.UpdateHolding(ctx, order.UserID, order.FundName, func(h *models.Holding) error {
		if h.TotalUnits.LessThan(order.Units) {
			return apperrors.ErrInsufficientUnits
		}

		avgCost := h.AvgCost()
		h.TotalUnits = h.TotalUnits.Sub(order.Units)
		if h.TotalUnits.IsZero() {
			h.TotalInvested = decimal.Zero
		} else {
			h.TotalInvested = h.TotalInvested.Sub(avgCost.Mul(order.Units))
			// Division rounding can leave a dust-sized negative; clamp.
			if h.TotalInvested.IsNegative() {
				h.TotalInvested = decimal.Zero
			}
		}
		h.CurrentValue = h.TotalUnits.Mul(order.NAV)
		h.LastUpdated = l.now()
		return nil
	})
}
