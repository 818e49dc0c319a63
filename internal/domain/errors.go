package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrProductInactive    = errors.New("product inactive")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAdjustment  = errors.New("adjustment would make balance negative")
	ErrInvalidTotal       = errors.New("total cannot be negative")
	ErrAlreadyVoided      = errors.New("transaction already voided")
	ErrVoidWindowExpired  = errors.New("void window expired")
	ErrConcurrentUpdate   = errors.New("concurrent update")
	ErrRetryExhausted     = errors.New("retry attempts exhausted")
	ErrBatchUnderflow     = errors.New("batch quantity underflow")
	ErrUnauthorized       = errors.New("unauthorized")
)

// StockShortfall reports one product that could not cover the requested
// quantity from its live batch sum.
type StockShortfall struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError aggregates every shortfall in the request so the
// caller sees the full picture in one round trip.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		name := s.SKU
		if name == "" {
			name = s.ProductID
		}
		parts = append(parts, fmt.Sprintf("%s requested %d available %d", name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type InsufficientPointsError struct {
	CustomerID string
	Requested  int
	Balance    int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: customer %s requested %d balance %d", e.CustomerID, e.Requested, e.Balance)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// RetryExhaustedError wraps the last conflict after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return ErrRetryExhausted }

// IsTransient reports whether err is worth retrying. Only optimistic-lock
// conflicts qualify; validation and I/O failures propagate immediately.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}
