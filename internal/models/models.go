// Package models defines the core domain types for the fund transaction engine.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order.
// Transitions are monotonic: CREATED -> PROCESSING -> {SUCCESS, FAILED}.
type OrderStatus string

const (
	OrderCreated    OrderStatus = "CREATED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderSuccess    OrderStatus = "SUCCESS"
	OrderFailed     OrderStatus = "FAILED"
)

// Terminal reports whether the status is a final state.
func (s OrderStatus) Terminal() bool {
	return s == OrderSuccess || s == OrderFailed
}

// Order represents one attempted buy or sell of fund units.
// Orders are immutable once created except for Status and ProcessedAt.
type Order struct {
	OrderID     string
	UserID      string
	FundName    string
	Side        OrderSide
	Amount      decimal.Decimal // for BUY: amount invested; for SELL: units * NAV
	Units       decimal.Decimal
	NAV         decimal.Decimal // unit price snapshot taken at order creation
	Status      OrderStatus
	IsSIP       bool
	SIPDay      int // day of month, set only when the order establishes a SIP plan
	CreatedAt   time.Time
	ProcessedAt *time.Time // set only on reaching a terminal state
}

// SIPStatus represents the state of a systematic investment plan.
type SIPStatus string

const (
	SIPActive    SIPStatus = "ACTIVE"
	SIPPaused    SIPStatus = "PAUSED"
	SIPCancelled SIPStatus = "CANCELLED"
)

// SIPPlan is a standing instruction to buy a fixed amount of a fund on a
// fixed day each month.
type SIPPlan struct {
	ID            string
	UserID        string
	FundName      string
	Amount        decimal.Decimal
	DayOfMonth    int
	Status        SIPStatus
	NextExecution time.Time
	CreatedAt     time.Time
}

// Holding is one user's accumulated position in one fund.
// (UserID, FundName) is the composite key; at most one row per pair.
type Holding struct {
	UserID        string
	FundName      string
	TotalUnits    decimal.Decimal // never negative
	TotalInvested decimal.Decimal // cumulative cost basis
	CurrentValue  decimal.Decimal // TotalUnits * latest known NAV
	LastUpdated   time.Time
}

// AvgCost returns the average cost per unit of the position, or zero for an
// empty position.
func (h *Holding) AvgCost() decimal.Decimal {
	if h.TotalUnits.IsZero() {
		return decimal.Zero
	}
	return h.TotalInvested.Div(h.TotalUnits)
}
