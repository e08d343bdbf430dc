// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientUnits = errors.New("insufficient units")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPlanNotFound      = errors.New("sip plan not found")
	ErrHoldingNotFound   = errors.New("holding not found")
	ErrDuplicateOrderID  = errors.New("duplicate order id")
	ErrInvalidStatus     = errors.New("invalid status transition")
	ErrPlanCancelled     = errors.New("sip plan is cancelled")
	ErrConfigInvalid     = errors.New("invalid configuration")
)

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID  string
	FundName string
	Action   string
	Reason   string
	Err      error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.FundName, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.FundName, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, fundName, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID:  orderID,
		FundName: fundName,
		Action:   action,
		Reason:   reason,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// PlanError represents an error related to SIP plan operations.
type PlanError struct {
	PlanID   string
	FundName string
	Reason   string
	Err      error
}

func (e *PlanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sip plan error [%s] %s: %s: %v", e.PlanID, e.FundName, e.Reason, e.Err)
	}
	return fmt.Sprintf("sip plan error [%s] %s: %s", e.PlanID, e.FundName, e.Reason)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// NewPlanError creates a new PlanError.
func NewPlanError(planID, fundName, reason string, err error) *PlanError {
	return &PlanError{
		PlanID:   planID,
		FundName: fundName,
		Reason:   reason,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
