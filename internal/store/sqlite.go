package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "fundvest/internal/errors"
	"fundvest/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Orders: one row per attempted buy or sell
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		fund_name TEXT NOT NULL,
		side TEXT NOT NULL,
		amount TEXT NOT NULL,
		units TEXT NOT NULL,
		nav TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'CREATED',
		is_sip INTEGER NOT NULL DEFAULT 0,
		sip_day INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	);

	-- Portfolio: one row per (user, fund) position
	CREATE TABLE IF NOT EXISTS portfolio (
		user_id TEXT NOT NULL,
		fund_name TEXT NOT NULL,
		total_units TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		current_value TEXT NOT NULL,
		last_updated DATETIME NOT NULL,
		PRIMARY KEY (user_id, fund_name)
	);

	-- SIP plans: standing monthly buy instructions
	CREATE TABLE IF NOT EXISTS sip_plans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		fund_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		day_of_month INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		next_execution DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_sip_plans_user ON sip_plans(user_id);
	CREATE INDEX IF NOT EXISTS idx_sip_plans_due ON sip_plans(status, next_execution);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertOrder persists a new order.
func (s *SQLiteStore) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, user_id, fund_name, side, amount, units, nav, status, is_sip, sip_day, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID, order.UserID, order.FundName, string(order.Side),
		order.Amount.String(), order.Units.String(), order.NAV.String(),
		string(order.Status), boolToInt(order.IsSIP), order.SIPDay,
		order.CreatedAt, order.ProcessedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if apperrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return apperrors.ErrDuplicateOrderID
		}
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// GetOrder looks up an order by id.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, fund_name, side, amount, units, nav, status, is_sip, sip_day, created_at, processed_at
		FROM orders WHERE order_id = ?`, orderID)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return order, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := `
		SELECT order_id, user_id, fund_name, side, amount, units, nav, status, is_sip, sip_day, created_at, processed_at
		FROM orders WHERE 1=1`
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.FundName != "" {
		query += " AND fund_name = ?"
		args = append(args, filter.FundName)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus transitions an order's status. The conditional update
// refuses transitions out of SUCCESS or FAILED.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, processedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, processed_at = COALESCE(?, processed_at)
		WHERE order_id = ? AND status NOT IN ('SUCCESS', 'FAILED')`,
		string(status), processedAt, orderID,
	)
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return apperrors.ErrInvalidStatus
	}
	return nil
}

// StaleProcessingOrders returns PROCESSING orders created before the cutoff.
func (s *SQLiteStore) StaleProcessingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, user_id, fund_name, side, amount, units, nav, status, is_sip, sip_day, created_at, processed_at
		FROM orders WHERE status = 'PROCESSING' AND created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying stale orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stale order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// GetHolding looks up one (user, fund) position.
func (s *SQLiteStore) GetHolding(ctx context.Context, userID, fundName string) (*models.Holding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, fund_name, total_units, total_invested, current_value, last_updated
		FROM portfolio WHERE user_id = ? AND fund_name = ?`, userID, fundName)

	holding, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying holding: %w", err)
	}
	return holding, nil
}

// GetPortfolio returns all of a user's holdings.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, userID string) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, fund_name, total_units, total_invested, current_value, last_updated
		FROM portfolio WHERE user_id = ? ORDER BY fund_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying portfolio: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning holding: %w", err)
		}
		holdings = append(holdings, *holding)
	}
	return holdings, rows.Err()
}

// UpdateHolding runs mutate against the current holding inside a single
// transaction. The row is created zero-valued when absent. Nothing is
// persisted when mutate fails.
func (s *SQLiteStore) UpdateHolding(ctx context.Context, userID, fundName string, mutate func(*models.Holding) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning holding update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, fund_name, total_units, total_invested, current_value, last_updated
		FROM portfolio WHERE user_id = ? AND fund_name = ?`, userID, fundName)

	holding, err := scanHolding(row)
	if err == sql.ErrNoRows {
		holding = &models.Holding{
			UserID:        userID,
			FundName:      fundName,
			TotalUnits:    decimal.Zero,
			TotalInvested: decimal.Zero,
			CurrentValue:  decimal.Zero,
		}
	} else if err != nil {
		return fmt.Errorf("reading holding: %w", err)
	}

	if err := mutate(holding); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio (user_id, fund_name, total_units, total_invested, current_value, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, fund_name) DO UPDATE SET
			total_units = excluded.total_units,
			total_invested = excluded.total_invested,
			current_value = excluded.current_value,
			last_updated = excluded.last_updated`,
		userID, fundName,
		holding.TotalUnits.String(), holding.TotalInvested.String(),
		holding.CurrentValue.String(), holding.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("writing holding: %w", err)
	}

	return tx.Commit()
}

// InsertPlan persists a new SIP plan.
func (s *SQLiteStore) InsertPlan(ctx context.Context, plan *models.SIPPlan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sip_plans (id, user_id, fund_name, amount, day_of_month, status, next_execution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.UserID, plan.FundName, plan.Amount.String(),
		plan.DayOfMonth, string(plan.Status), plan.NextExecution, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting sip plan: %w", err)
	}
	return nil
}

// GetPlan looks up a SIP plan by id.
func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*models.SIPPlan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, fund_name, amount, day_of_month, status, next_execution, created_at
		FROM sip_plans WHERE id = ?`, planID)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying sip plan: %w", err)
	}
	return plan, nil
}

// ListPlans returns all of a user's SIP plans.
func (s *SQLiteStore) ListPlans(ctx context.Context, userID string) ([]models.SIPPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, fund_name, amount, day_of_month, status, next_execution, created_at
		FROM sip_plans WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sip plans: %w", err)
	}
	defer rows.Close()

	var plans []models.SIPPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sip plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// DuePlans returns ACTIVE plans due at or before asOf.
func (s *SQLiteStore) DuePlans(ctx context.Context, asOf time.Time) ([]models.SIPPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, fund_name, amount, day_of_month, status, next_execution, created_at
		FROM sip_plans WHERE status = 'ACTIVE' AND next_execution <= ?
		ORDER BY next_execution`, asOf)
	if err != nil {
		return nil, fmt.Errorf("querying due sip plans: %w", err)
	}
	defer rows.Close()

	var plans []models.SIPPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due sip plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// UpdatePlanStatus sets a plan's status. Cancelled plans stay cancelled.
func (s *SQLiteStore) UpdatePlanStatus(ctx context.Context, planID string, status models.SIPStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sip_plans SET status = ? WHERE id = ? AND status != 'CANCELLED'`,
		string(status), planID,
	)
	if err != nil {
		return fmt.Errorf("updating sip plan status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating sip plan status: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetPlan(ctx, planID); err != nil {
			return err
		}
		return apperrors.ErrPlanCancelled
	}
	return nil
}

// AdvancePlan moves a plan's next execution date forward.
func (s *SQLiteStore) AdvancePlan(ctx context.Context, planID string, next time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sip_plans SET next_execution = ? WHERE id = ?`, next, planID)
	if err != nil {
		return fmt.Errorf("advancing sip plan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advancing sip plan: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrPlanNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order       models.Order
		side        string
		amount      string
		units       string
		nav         string
		status      string
		isSIP       int
		processedAt sql.NullTime
	)

	err := row.Scan(&order.OrderID, &order.UserID, &order.FundName, &side,
		&amount, &units, &nav, &status, &isSIP, &order.SIPDay,
		&order.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	order.Side = models.OrderSide(side)
	order.Status = models.OrderStatus(status)
	order.IsSIP = isSIP != 0
	if processedAt.Valid {
		t := processedAt.Time
		order.ProcessedAt = &t
	}

	if order.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing amount: %w", err)
	}
	if order.Units, err = decimal.NewFromString(units); err != nil {
		return nil, fmt.Errorf("parsing units: %w", err)
	}
	if order.NAV, err = decimal.NewFromString(nav); err != nil {
		return nil, fmt.Errorf("parsing nav: %w", err)
	}
	return &order, nil
}

func scanHolding(row rowScanner) (*models.Holding, error) {
	var (
		holding  models.Holding
		units    string
		invested string
		value    string
	)

	err := row.Scan(&holding.UserID, &holding.FundName, &units, &invested, &value, &holding.LastUpdated)
	if err != nil {
		return nil, err
	}

	if holding.TotalUnits, err = decimal.NewFromString(units); err != nil {
		return nil, fmt.Errorf("parsing total units: %w", err)
	}
	if holding.TotalInvested, err = decimal.NewFromString(invested); err != nil {
		return nil, fmt.Errorf("parsing total invested: %w", err)
	}
	if holding.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("parsing current value: %w", err)
	}
	return &holding, nil
}

func scanPlan(row rowScanner) (*models.SIPPlan, error) {
	var (
		plan   models.SIPPlan
		amount string
		status string
	)

	err := row.Scan(&plan.ID, &plan.UserID, &plan.FundName, &amount,
		&plan.DayOfMonth, &status, &plan.NextExecution, &plan.CreatedAt)
	if err != nil {
		return nil, err
	}

	plan.Status = models.SIPStatus(status)
	if plan.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing sip amount: %w", err)
	}
	return &plan, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
