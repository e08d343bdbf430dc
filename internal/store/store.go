// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"fundvest/internal/models"
)

// OrderStore persists orders keyed by their unique order id.
type OrderStore interface {
	// InsertOrder persists a new order. Returns ErrDuplicateOrderID when the
	// id is already taken.
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// UpdateOrderStatus transitions an order's status. Transitions out of a
	// terminal state are refused with ErrInvalidStatus. processedAt is
	// recorded when non-nil.
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, processedAt *time.Time) error
	// StaleProcessingOrders returns orders still PROCESSING that entered the
	// state before the given cutoff.
	StaleProcessingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// PortfolioStore persists holdings keyed by (user, fund).
type PortfolioStore interface {
	GetHolding(ctx context.Context, userID, fundName string) (*models.Holding, error)
	GetPortfolio(ctx context.Context, userID string) ([]models.Holding, error)
	// UpdateHolding runs mutate against the current holding (zero-valued if
	// absent) inside a single transaction. If mutate returns an error nothing
	// is persisted.
	UpdateHolding(ctx context.Context, userID, fundName string, mutate func(*models.Holding) error) error
}

// SIPStore persists recurring investment plans.
type SIPStore interface {
	InsertPlan(ctx context.Context, plan *models.SIPPlan) error
	GetPlan(ctx context.Context, planID string) (*models.SIPPlan, error)
	ListPlans(ctx context.Context, userID string) ([]models.SIPPlan, error)
	// DuePlans returns ACTIVE plans whose next execution date is at or before
	// asOf.
	DuePlans(ctx context.Context, asOf time.Time) ([]models.SIPPlan, error)
	UpdatePlanStatus(ctx context.Context, planID string, status models.SIPStatus) error
	// AdvancePlan moves a plan's next execution date forward.
	AdvancePlan(ctx context.Context, planID string, next time.Time) error
}

// Store is the full persistence surface of the engine.
type Store interface {
	OrderStore
	PortfolioStore
	SIPStore
	Close() error
}

// OrderFilter represents filters for querying orders.
type OrderFilter struct {
	UserID   string
	FundName string
	Status   models.OrderStatus
	Limit    int
}
