package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecord is returned by stores when a looked-up row does not exist.
	ErrNoRecord = errors.New("record not found")
	// ErrStockExhausted is returned by DecrementStock when the row holds less
	// stock than requested. Stores never floor stock at zero.
	ErrStockExhausted = errors.New("stock exhausted")
	// ErrCartChanged is returned by RemoveCartLines inside a transaction when
	// a line it was asked to remove no longer exists.
	ErrCartChanged = errors.New("cart changed concurrently")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("duplicate record")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

type PermissionError struct {
	Actor  string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.Actor, e.Action)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// TransactionError reports a storage fault. Nothing was committed, so the
// operation may be retried.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsRuleViolation reports whether err is one of the terminal business-rule
// errors, as opposed to a storage fault.
func IsRuleViolation(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		pe *PermissionError
		it *InvalidTransitionError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &is) ||
		errors.As(err, &pe) || errors.As(err, &it)
}

func txError(op string, err error) error {
	if err == nil || IsRuleViolation(err) {
		return err
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
