package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedMatchShape  = errors.New("many-to-many matches are not supported")
	ErrImbalancedSelection    = errors.New("selection does not balance")
	ErrEmptySelection         = errors.New("select at least one statement item and one transaction")
	ErrInvalidSuggestionState = errors.New("suggestion is no longer pending")
	ErrConcurrentModification = errors.New("selected entries were reconciled by someone else")
	ErrNotEligible            = errors.New("transaction is not eligible for reconciliation")
	ErrSuggestionInFlight     = errors.New("suggestion is already being processed")
	ErrNotFound               = errors.New("not found")
)

// ImbalanceError is returned when a selection's statement and transaction
// totals differ. It matches ErrImbalancedSelection.
type ImbalanceError struct {
	Difference decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("%s: difference %s", ErrImbalancedSelection, e.Difference.StringFixed(2))
}

func (e *ImbalanceError) Is(target error) bool {
	return target == ErrImbalancedSelection
}

// StoreError wraps a persistence or transport failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err is one of the reconciliation errors a
// caller can act on, as opposed to a store failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrUnsupportedMatchShape,
		ErrImbalancedSelection,
		ErrEmptySelection,
		ErrInvalidSuggestionState,
		ErrConcurrentModification,
		ErrNotEligible,
		ErrSuggestionInFlight,
		ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
