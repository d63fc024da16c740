package library

import "github.com/shopspring/decimal"

// =============================================================================
// LOAN - Resource transaction
// =============================================================================

// Loan records one borrow or reservation of a copy. Loans are created by the
// TransactionStore, closed exactly once, and never deleted. A loan with no
// return stamp is active; an active loan is the exclusive occupant of its
// copy's current-loan slot.
type Loan struct {
	ID         LoanID
	Username   Username
	ResourceID ResourceID
	CopyID     CopyID

	// Reserved marks a loan created for a queue head waiting for pickup,
	// as opposed to a copy physically handed out.
	Reserved bool

	StartedAt  DateTime
	ReturnedAt *DateTime // nil while active
}

// Active reports whether the loan has not been closed yet.
func (l Loan) Active() bool { return l.ReturnedAt == nil }

// Ref returns the (resource, copy) pair the loan is against.
func (l Loan) Ref() CopyRef { return CopyRef{Resource: l.ResourceID, Copy: l.CopyID} }

// =============================================================================
// FINANCIAL TRANSACTION - Immutable ledger entry (Fine or Payment)
// =============================================================================

type FinKind int

const (
	FinFine FinKind = iota
	FinPayment
)

func (k FinKind) String() string {
	if k == FinPayment {
		return "payment"
	}
	return "fine"
}

// FinancialTransaction is an append-only ledger entry. Value is always a
// positive magnitude; the sign comes from the kind. A user's balance is the
// signed sum of their entries, never stored separately.
type FinancialTransaction struct {
	Kind     FinKind
	Username Username
	Value    decimal.Decimal
	Date     Date

	// Fine context; zero-valued for payments.
	ResourceID  ResourceID
	CopyID      CopyID
	DaysOverdue int
}

// Signed returns the entry's contribution to the user's balance:
// payments positive, fines negative.
func (ft FinancialTransaction) Signed() decimal.Decimal {
	if ft.Kind == FinPayment {
		return ft.Value
	}
	return ft.Value.Neg()
}
