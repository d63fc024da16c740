/*
errors.go - Centralized error types for the circulation core

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  The flatfile package defines its own parse/IO errors; everything a store
  or the circulation engine rejects lands here.

ERROR CATEGORIES:
  1. Not-found errors - Unresolvable IDs and usernames
  2. Validation errors - Business rule violations on mutation
  3. Integrity errors - Duplicate IDs admitted during a restore

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, library.ErrCopyUnavailable) { ... }

  Structured errors carry context and unwrap to a sentinel:

    var over *library.OverpaymentError
    if errors.As(err, &over) { fmt.Println(over.Owed) }
*/
package library

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrResourceNotFound is returned when a ResourceID resolves to nothing.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrCopyNotFound is returned when a CopyID resolves to nothing within
	// its resource.
	ErrCopyNotFound = errors.New("copy not found")

	// ErrUserNotFound is returned when a username resolves to nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrLoanNotFound is returned when a LoanID resolves to nothing.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrCopyUnavailable is returned when issuing a copy that is on loan,
	// or reserved for somebody else.
	ErrCopyUnavailable = errors.New("copy unavailable")

	// ErrCopyNotOnLoan is returned when returning a copy that has no
	// active loan.
	ErrCopyNotOnLoan = errors.New("copy not on loan")

	// ErrNotReserved is returned when cancelling a reservation on a copy
	// that is not reserved.
	ErrNotReserved = errors.New("copy not reserved")

	// ErrAlreadyRequested is returned when a user requests a resource they
	// are already queued for.
	ErrAlreadyRequested = errors.New("resource already requested by user")

	// ErrDuplicateReview is returned on a second review element from the
	// same username for one resource.
	ErrDuplicateReview = errors.New("user already reviewed this resource")

	// ErrInvalidRating is returned for a rating outside 0-5.
	ErrInvalidRating = errors.New("rating must be between 0 and 5")

	// ErrInvalidPayment is returned for zero or negative payment values.
	ErrInvalidPayment = errors.New("payment must be positive")

	// ErrOverpayment is returned when a payment exceeds the amount owed.
	ErrOverpayment = errors.New("payment exceeds amount owed")

	// ErrInvalidFine is returned for a negative fine value.
	ErrInvalidFine = errors.New("fine value must not be negative")

	// ErrAlreadyLibrarian / ErrNotLibrarian guard role transitions.
	ErrAlreadyLibrarian = errors.New("user is already a librarian")
	ErrNotLibrarian     = errors.New("user is not a librarian")

	// ErrDuplicateUsername is returned when adding a user whose username
	// is taken.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrDuplicateID is returned when a restore admits an ID that is
	// already present in the store.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrLoanStillActive is returned when removing a copy or resource
	// with an active loan attached.
	ErrLoanStillActive = errors.New("loan still active")

	// ErrNoCopies is returned when estimating availability of a resource
	// that has no copies at all.
	ErrNoCopies = errors.New("resource has no copies")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverpaymentError reports a payment larger than the user's debt.
type OverpaymentError struct {
	Username Username
	Owed     decimal.Decimal
	Tendered decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s by %s exceeds amount owed %s",
		e.Tendered, e.Username, e.Owed)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// UnresolvedLoanError reports a copy referencing a loan the
// TransactionStore does not hold. This is a fatal load error: the store
// that produced it must not be used.
type UnresolvedLoanError struct {
	Loan     LoanID
	Resource ResourceID
	Copy     CopyID
}

func (e *UnresolvedLoanError) Error() string {
	return fmt.Sprintf("copy %d of resource %d references unknown loan %d",
		e.Copy, e.Resource, e.Loan)
}

func (e *UnresolvedLoanError) Unwrap() error { return ErrLoanNotFound }

// UnresolvedCopyError reports a user referencing a (resource, copy) pair
// the catalog does not hold. Also fatal at load time.
type UnresolvedCopyError struct {
	Username Username
	Ref      CopyRef
}

func (e *UnresolvedCopyError) Error() string {
	return fmt.Sprintf("user %s references unknown copy %d of resource %d",
		e.Username, e.Ref.Copy, e.Ref.Resource)
}

func (e *UnresolvedCopyError) Unwrap() error { return ErrCopyNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error is an unresolvable-reference error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrCopyNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsClientError reports whether the error is a rejected mutation rather
// than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCopyUnavailable) ||
		errors.Is(err, ErrCopyNotOnLoan) ||
		errors.Is(err, ErrNotReserved) ||
		errors.Is(err, ErrAlreadyRequested) ||
		errors.Is(err, ErrDuplicateReview) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrAlreadyLibrarian) ||
		errors.Is(err, ErrNotLibrarian) ||
		errors.Is(err, ErrDuplicateUsername)
}
