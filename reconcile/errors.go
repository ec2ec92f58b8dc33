/*
errors.go - Error types for the reconciliation engine

PURPOSE:
  The engine treats almost everything as a modeled business outcome: unknown
  codes, missing quotas, zero allowances are all normal results. The only
  real errors are malformed inputs the caller should have filtered, and the
  engine fails fast on those instead of silently coercing.

USAGE:
  result, err := reconcile.Reconcile(input)
  if errors.Is(err, reconcile.ErrInvalidLine) {
      // 400 to the client
  }
*/
package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLine is returned when a delivered line is malformed
	// (negative quantity or unit price). Use errors.Is.
	ErrInvalidLine = errors.New("invalid line item")

	// ErrInvalidQuotaRow is returned when a quota row carries a negative
	// allowed quantity.
	ErrInvalidQuotaRow = errors.New("invalid quota row")
)

// InvalidLineError describes which delivered line was rejected and why.
type InvalidLineError struct {
	Index  int
	Code   string
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid line item %d (%s): %s", e.Index, e.Code, e.Reason)
}

func (e *InvalidLineError) Unwrap() error { return ErrInvalidLine }

// InvalidQuotaRowError describes which quota row was rejected and why.
type InvalidQuotaRowError struct {
	Index  int
	Code   string
	Reason string
}

func (e *InvalidQuotaRowError) Error() string {
	return fmt.Sprintf("invalid quota row %d (%s): %s", e.Index, e.Code, e.Reason)
}

func (e *InvalidQuotaRowError) Unwrap() error { return ErrInvalidQuotaRow }

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidLine) || errors.Is(err, ErrInvalidQuotaRow)
}
