/*
Package circulation implements the lending state machine over the three
stores.

PURPOSE:
  Every mutation of circulation state - issuing, returning, requesting,
  cancelling, paying, promoting - goes through the Engine. The Engine
  owns the single-writer lock; the stores themselves are unlocked and
  must only be touched through it.

COPY STATE MACHINE:

  Available --(issue / reserve-for-queue-head)--> Active{Borrowed|Reserved}
  Active --(return / cancel-reservation)--> Available

  Returning a copy immediately re-evaluates the resource's request
  queue, so a copy with a backlog goes straight back to Reserved for the
  queue head and is never observably Available.

CONCURRENCY CONTRACT:
  One RWMutex guards the whole engine. Mutations serialize; reads
  (search, lookup, snapshot) may run concurrently with each other but
  never with a mutation. Persistence never happens inside the lock:
  Snapshot() copies the world under the read lock and the flatfile store
  serializes the copy outside it.

SEE ALSO:
  - duedate.go: due-date policy and overdue charges
  - estimate.go: expected-availability approximation
*/
package circulation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	mu       sync.RWMutex
	loans    *library.TransactionStore
	catalog  *library.Catalog
	accounts *library.Accounts
	now      func() time.Time
}

type Option func(*Engine)

// WithClock fixes the engine's time source. Tests use this to play out
// multi-day scenarios.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(loans *library.TransactionStore, catalog *library.Catalog, accounts *library.Accounts, opts ...Option) *Engine {
	e := &Engine{loans: loans, catalog: catalog, accounts: accounts, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() library.Date     { return library.DateOf(e.now()) }
func (e *Engine) stamp() library.DateTime { return library.DateTimeOf(e.now()) }

// =============================================================================
// READS
// =============================================================================

// SearchResources is the catalog substring search, filtered by kind mask.
func (e *Engine) SearchResources(query string, mask library.KindMask) []*library.Resource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Search(query, mask)
}

// SearchUsers is the account substring search.
func (e *Engine) SearchUsers(query string) []*library.User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accounts.Search(query)
}

func (e *Engine) FindResource(id library.ResourceID) (*library.Resource, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Resource(id)
}

func (e *Engine) FindCopy(ref library.CopyRef) (*library.Copy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.CopyOf(ref)
}

func (e *Engine) FindUser(username library.Username) (*library.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accounts.User(username)
}

func (e *Engine) FindLoan(id library.LoanID) (library.Loan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.loans.Loan(id)
	if !ok {
		return library.Loan{}, library.ErrLoanNotFound
	}
	return l, nil
}

// BalanceOf is the user's derived ledger balance; negative means owed.
func (e *Engine) BalanceOf(username library.Username) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loans.BalanceOf(username)
}

// BorrowCount is the resource's lifetime non-reserved loan count.
func (e *Engine) BorrowCount(id library.ResourceID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loans.BorrowCount(id)
}

// Snapshot copies the whole world under the read lock. Serialize the
// result outside the lock.
func (e *Engine) Snapshot() library.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return library.BuildSnapshot(e.loans, e.catalog, e.accounts)
}

// =============================================================================
// CATALOG & ACCOUNT ADMINISTRATION
// =============================================================================

// AddResource registers a resource and creates its initial copies.
func (e *Engine) AddResource(res *library.Resource, copies int) (*library.Resource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res = e.catalog.Add(res)
	for i := 0; i < copies; i++ {
		cp := res.AddCopy()
		e.reviveCopy(res, cp)
	}
	return res, nil
}

// AddCopy adds one copy to an existing resource. If the resource has a
// request backlog the new copy goes straight to Reserved for the head.
func (e *Engine) AddCopy(id library.ResourceID) (library.CopyID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.catalog.Resource(id)
	if err != nil {
		return 0, err
	}
	cp := res.AddCopy()
	e.reviveCopy(res, cp)
	return cp.ID(), nil
}

// RemoveCopy drops a copy that is not on loan.
func (e *Engine) RemoveCopy(ref library.CopyRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.catalog.Resource(ref.Resource)
	if err != nil {
		return err
	}
	return res.RemoveCopy(ref.Copy)
}

// RemoveResource drops a resource with no copies on loan.
func (e *Engine) RemoveResource(id library.ResourceID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Remove(id)
}

// UpdateResource edits a resource's descriptive fields. The edit runs
// under the write lock and must not touch copies, queue or review.
func (e *Engine) UpdateResource(id library.ResourceID, edit func(*library.Resource)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.catalog.Resource(id)
	if err != nil {
		return err
	}
	edit(res)
	return nil
}

// AddUser registers a new account.
func (e *Engine) AddUser(user *library.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts.Add(user)
}

// UpdateUser edits a user's profile fields under the write lock.
func (e *Engine) UpdateUser(username library.Username, edit func(*library.User)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return err
	}
	edit(user)
	return nil
}

// RemoveUser drops an account that holds no copies and owes nothing.
func (e *Engine) RemoveUser(username library.Username) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return err
	}
	if len(user.Borrowed()) > 0 || len(user.Reserved()) > 0 {
		return library.ErrLoanStillActive
	}
	for _, id := range user.Requested() {
		if res, err := e.catalog.Resource(id); err == nil {
			res.RemoveFromQueue(username)
		}
	}
	return e.accounts.Remove(username)
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue hands a copy to a user. The copy must be Available, or Reserved
// for this exact user (a pickup). On pickup the reservation loan is
// closed into history and replaced by a borrow loan; the due date runs
// from the reservation start, so a long-held reservation gets only the
// one-day grace.
func (e *Engine) Issue(username library.Username, ref library.CopyRef) (library.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return library.Loan{}, err
	}
	cp, err := e.catalog.CopyOf(ref)
	if err != nil {
		return library.Loan{}, err
	}
	res := cp.Resource()

	start := e.today()
	if current, ok := cp.CurrentLoan(); ok {
		held, _ := e.loans.Loan(current)
		if !held.Reserved || held.Username != username {
			return library.Loan{}, library.ErrCopyUnavailable
		}
		// Pickup: close the reservation, free the copy, keep its start
		// date for the due-date computation.
		closed, err := cp.Release()
		if err != nil {
			return library.Loan{}, err
		}
		if err := e.loans.CloseLoan(closed, e.stamp()); err != nil {
			return library.Loan{}, err
		}
		user.RemoveReserved(ref)
		start = held.StartedAt.Date()
	}

	loan := e.loans.NewLoan(username, ref.Resource, ref.Copy, false, e.stamp())
	due := dueDateFor(start, res.MinLoan, e.today())
	if err := cp.Checkout(loan.ID, due); err != nil {
		return library.Loan{}, err
	}
	user.AddBorrowed(ref)
	return loan, nil
}

// =============================================================================
// RETURN & CANCEL
// =============================================================================

// ReturnOutcome reports what a return (or reservation cancel) did.
type ReturnOutcome struct {
	Loan library.Loan // the closed loan

	// Fine is set when the copy carried a due date and today is on or
	// past it. The value is zero for an on-time return on the due date.
	Fine *library.FinancialTransaction

	// ReservedFor is the queue head the copy was immediately re-reserved
	// for, if the request queue was non-empty.
	ReservedFor *library.Username
}

// ReturnCopy takes a borrowed copy back: charges any overdue fine, closes
// the loan into the copy's history, and re-evaluates the request queue.
func (e *Engine) ReturnCopy(ref library.CopyRef) (ReturnOutcome, error) {
	return e.release(ref, false)
}

// CancelReservation gives up a reserved copy before pickup. Identical
// tail behavior to a return, including the fine if the reservation ran
// past an assigned due date.
func (e *Engine) CancelReservation(ref library.CopyRef) (ReturnOutcome, error) {
	return e.release(ref, true)
}

func (e *Engine) release(ref library.CopyRef, wantReserved bool) (ReturnOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, err := e.catalog.CopyOf(ref)
	if err != nil {
		return ReturnOutcome{}, err
	}
	current, ok := cp.CurrentLoan()
	if !ok {
		return ReturnOutcome{}, library.ErrCopyNotOnLoan
	}
	held, _ := e.loans.Loan(current)
	if held.Reserved != wantReserved {
		if wantReserved {
			return ReturnOutcome{}, library.ErrNotReserved
		}
		return ReturnOutcome{}, library.ErrCopyNotOnLoan
	}

	outcome := ReturnOutcome{}
	today := e.today()

	if due, ok := cp.DueDate(); ok && today.AfterOrEqual(due) {
		days := due.DaysUntil(today)
		value := cp.Resource().Kind().OverdueCharge(days)
		fine, err := e.loans.AddFine(held.Username, value, ref.Resource, ref.Copy, days, today)
		if err != nil {
			return ReturnOutcome{}, err
		}
		outcome.Fine = &fine
	}

	closed, err := cp.Release()
	if err != nil {
		return ReturnOutcome{}, err
	}
	if err := e.loans.CloseLoan(closed, e.stamp()); err != nil {
		return ReturnOutcome{}, err
	}
	if user, err := e.accounts.User(held.Username); err == nil {
		if wantReserved {
			user.RemoveReserved(ref)
		} else {
			user.RemoveBorrowed(ref)
		}
	}
	outcome.Loan, _ = e.loans.Loan(closed)

	if reservedFor := e.reviveQueue(cp.Resource()); len(reservedFor) > 0 {
		head := reservedFor[0]
		outcome.ReservedFor = &head
	}
	return outcome, nil
}

// =============================================================================
// REQUEST QUEUE
// =============================================================================

// Request queues the user for the resource and re-evaluates: every
// available copy takes one queued user (FIFO), and remaining active
// copies get anticipated due dates so the backlog reclaims them.
func (e *Engine) Request(id library.ResourceID, username library.Username) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return err
	}
	res, err := e.catalog.Resource(id)
	if err != nil {
		return err
	}
	if err := res.Enqueue(username); err != nil {
		return err
	}
	if err := user.AddRequested(id); err != nil {
		res.RemoveFromQueue(username)
		return err
	}

	e.reviveQueue(res)
	e.assignAnticipatedDueDates(res)
	return nil
}

// CancelRequest removes the user's queue entry. Idempotent: cancelling a
// request that does not exist is not an error.
func (e *Engine) CancelRequest(id library.ResourceID, username library.Username) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return err
	}
	res, err := e.catalog.Resource(id)
	if err != nil {
		return err
	}
	res.RemoveFromQueue(username)
	user.RemoveRequested(id)
	return nil
}

// reviveQueue hands every available copy to a queue head, in copy-list
// order, one user per copy. Returns the usernames reserved, in order.
func (e *Engine) reviveQueue(res *library.Resource) []library.Username {
	var reserved []library.Username
	for _, cp := range res.Copies() {
		if head, ok := e.reviveCopy(res, cp); ok {
			reserved = append(reserved, head)
		}
	}
	return reserved
}

// reviveCopy reserves one available copy for the queue head, if both
// exist. Queue entries for since-removed users are dropped.
func (e *Engine) reviveCopy(res *library.Resource, cp *library.Copy) (library.Username, bool) {
	if !cp.Available() {
		return "", false
	}
	for res.QueueLen() > 0 {
		head, _ := res.DequeueHead()
		user, err := e.accounts.User(head)
		if err != nil {
			continue // stale queue entry
		}
		loan := e.loans.NewLoan(head, res.ID(), cp.ID(), true, e.stamp())
		if err := cp.Reserve(loan.ID); err != nil {
			return "", false
		}
		user.AddReserved(cp.Ref())
		user.RemoveRequested(res.ID())
		return head, true
	}
	return "", false
}

// =============================================================================
// PAYMENTS
// =============================================================================

// MakePayment credits the user's account. The value must be positive and
// must not exceed the magnitude of the user's debt.
func (e *Engine) MakePayment(username library.Username, value decimal.Decimal) (library.FinancialTransaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.accounts.User(username); err != nil {
		return library.FinancialTransaction{}, err
	}
	if !value.IsPositive() {
		return library.FinancialTransaction{}, library.ErrInvalidPayment
	}
	owed := e.loans.BalanceOf(username).Neg()
	if value.GreaterThan(owed) {
		return library.FinancialTransaction{}, &library.OverpaymentError{
			Username: username,
			Owed:     owed,
			Tendered: value,
		}
	}
	return e.loans.AddPayment(username, value, e.today())
}

// =============================================================================
// ROLES
// =============================================================================

// PromoteToLibrarian replaces the standard account with a librarian one,
// preserving all shared fields and assigning a fresh staff number.
func (e *Engine) PromoteToLibrarian(username library.Username) (*library.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return nil, err
	}
	details := library.LibrarianDetails{
		EmploymentDate: e.today(),
		StaffNumber:    e.accounts.NextStaffNumber(),
	}
	if err := user.Promote(details); err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeLibrarian drops the librarian role, preserving shared fields. The
// staff number is retired with it, never reassigned.
func (e *Engine) RevokeLibrarian(username library.Username) (*library.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := e.accounts.User(username)
	if err != nil {
		return nil, err
	}
	if err := user.Revoke(); err != nil {
		return nil, err
	}
	return user, nil
}

// =============================================================================
// REVIEWS
// =============================================================================

// AddReview posts a rating element against the resource. One element per
// username per resource.
func (e *Engine) AddReview(id library.ResourceID, username library.Username, rating int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.accounts.User(username); err != nil {
		return err
	}
	res, err := e.catalog.Resource(id)
	if err != nil {
		return err
	}
	return res.AddReview(library.ReviewElement{Rating: rating, Text: text, Poster: username})
}

// =============================================================================
// OVERDUE VIEW
// =============================================================================

// OverdueCopy is one row of the overdue listing.
type OverdueCopy struct {
	Ref         library.CopyRef
	Username    library.Username
	DueDate     library.Date
	DaysOverdue int
}

// OverdueCopies lists every copy past its due date, catalog order.
func (e *Engine) OverdueCopies() []OverdueCopy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	today := e.today()
	var out []OverdueCopy
	for _, res := range e.catalog.Resources() {
		for _, cp := range res.Copies() {
			due, ok := cp.DueDate()
			if !ok || !today.After(due) {
				continue
			}
			current, ok := cp.CurrentLoan()
			if !ok {
				continue
			}
			held, _ := e.loans.Loan(current)
			out = append(out, OverdueCopy{
				Ref:         cp.Ref(),
				Username:    held.Username,
				DueDate:     due,
				DaysOverdue: due.DaysUntil(today),
			})
		}
	}
	return out
}
