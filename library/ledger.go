/*
ledger.go - TransactionStore: owner of all loans and financial entries

PURPOSE:
  The TransactionStore is the source of truth for every resource
  transaction (Loan) and every financial transaction (Fine/Payment).
  Copies and users reference loans by LoanID only; this store resolves
  them. It must be populated before the catalog, because decoding a copy
  resolves its loan IDs here.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Loans are never deleted; financial entries are never
     mutated or deleted.
  2. MONOTONIC IDS: LoanIDs come from an explicit max-tracked counter.
     The counter is seeded to the maximum restored ID, so IDs stay unique
     even if the backing file was ever reordered or filtered.
  3. DERIVED BALANCE: A user's balance is computed by replaying their
     ledger entries - there is no stored balance to drift out of sync.

CONCURRENCY:
  The store itself is not locked. All mutation is serialized by the
  circulation engine's single writer lock (see circulation package).
*/
package library

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore struct {
	loans  []*Loan // append order = chronological
	byID   map[LoanID]*Loan
	ledger []FinancialTransaction

	lastLoanID LoanID // max ID ever seen; next allocation is lastLoanID+1
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{byID: make(map[LoanID]*Loan)}
}

// -----------------------------------------------------------------------------
// Loans
// -----------------------------------------------------------------------------

// NewLoan allocates the next LoanID, records the loan and returns it.
func (s *TransactionStore) NewLoan(username Username, resourceID ResourceID, copyID CopyID, reserved bool, at DateTime) Loan {
	s.lastLoanID++
	l := &Loan{
		ID:         s.lastLoanID,
		Username:   username,
		ResourceID: resourceID,
		CopyID:     copyID,
		Reserved:   reserved,
		StartedAt:  at,
	}
	s.loans = append(s.loans, l)
	s.byID[l.ID] = l
	return *l
}

// RestoreLoan admits a loan decoded from disk, preserving its ID and
// advancing the counter past it.
func (s *TransactionStore) RestoreLoan(l Loan) error {
	if _, ok := s.byID[l.ID]; ok {
		return ErrDuplicateID
	}
	stored := l
	s.loans = append(s.loans, &stored)
	s.byID[stored.ID] = &stored
	if stored.ID > s.lastLoanID {
		s.lastLoanID = stored.ID
	}
	return nil
}

// CloseLoan stamps the loan's return time. Closing a closed loan is an
// error: loans are closed exactly once.
func (s *TransactionStore) CloseLoan(id LoanID, at DateTime) error {
	l, ok := s.byID[id]
	if !ok {
		return ErrLoanNotFound
	}
	if l.ReturnedAt != nil {
		return ErrLoanNotFound
	}
	l.ReturnedAt = &at
	return nil
}

// Loan resolves a LoanID. The returned value is a snapshot.
func (s *TransactionStore) Loan(id LoanID) (Loan, bool) {
	l, ok := s.byID[id]
	if !ok {
		return Loan{}, false
	}
	return *l, true
}

// Loans returns all loans in chronological append order.
func (s *TransactionStore) Loans() []Loan {
	out := make([]Loan, 0, len(s.loans))
	for _, l := range s.loans {
		out = append(out, *l)
	}
	return out
}

// LoansByUser returns every loan ever made by the user, oldest first.
func (s *TransactionStore) LoansByUser(u Username) []Loan {
	var out []Loan
	for _, l := range s.loans {
		if l.Username == u {
			out = append(out, *l)
		}
	}
	return out
}

// ActiveByUser returns the user's open loans (no return stamp).
func (s *TransactionStore) ActiveByUser(u Username) []Loan {
	var out []Loan
	for _, l := range s.loans {
		if l.Username == u && l.ReturnedAt == nil {
			out = append(out, *l)
		}
	}
	return out
}

// BorrowCount returns how many non-reserved loans a resource has
// accumulated, a popularity measure for display.
func (s *TransactionStore) BorrowCount(id ResourceID) int {
	n := 0
	for _, l := range s.loans {
		if l.ResourceID == id && !l.Reserved {
			n++
		}
	}
	return n
}

// =============================================================================
// FINANCIAL LEDGER
// =============================================================================

// AddFine appends a fine against the user. A zero-value fine is legal: it
// records an on-time return of a copy that carried a due date.
func (s *TransactionStore) AddFine(username Username, value decimal.Decimal, resourceID ResourceID, copyID CopyID, daysOverdue int, on Date) (FinancialTransaction, error) {
	if value.IsNegative() {
		return FinancialTransaction{}, ErrInvalidFine
	}
	ft := FinancialTransaction{
		Kind:        FinFine,
		Username:    username,
		Value:       value,
		Date:        on,
		ResourceID:  resourceID,
		CopyID:      copyID,
		DaysOverdue: daysOverdue,
	}
	s.ledger = append(s.ledger, ft)
	return ft, nil
}

// AddPayment appends a payment from the user. Validation of the payment
// against the user's debt belongs to the circulation engine; the store
// only refuses non-positive values.
func (s *TransactionStore) AddPayment(username Username, value decimal.Decimal, on Date) (FinancialTransaction, error) {
	if !value.IsPositive() {
		return FinancialTransaction{}, ErrInvalidPayment
	}
	ft := FinancialTransaction{
		Kind:     FinPayment,
		Username: username,
		Value:    value,
		Date:     on,
	}
	s.ledger = append(s.ledger, ft)
	return ft, nil
}

// RestoreFinancial admits a ledger entry decoded from disk.
func (s *TransactionStore) RestoreFinancial(ft FinancialTransaction) {
	s.ledger = append(s.ledger, ft)
}

// Ledger returns all financial entries in append order.
func (s *TransactionStore) Ledger() []FinancialTransaction {
	out := make([]FinancialTransaction, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// LedgerByUser returns the user's financial entries in append order.
func (s *TransactionStore) LedgerByUser(u Username) []FinancialTransaction {
	var out []FinancialTransaction
	for _, ft := range s.ledger {
		if ft.Username == u {
			out = append(out, ft)
		}
	}
	return out
}

// BalanceOf replays the user's ledger: payments add, fines subtract.
// Negative means the user owes money.
func (s *TransactionStore) BalanceOf(u Username) decimal.Decimal {
	balance := decimal.Zero
	for _, ft := range s.ledger {
		if ft.Username == u {
			balance = balance.Add(ft.Signed())
		}
	}
	return balance
}
