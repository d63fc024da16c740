package library

// =============================================================================
// COPY - One lendable instance of a resource
// =============================================================================

// Copy is owned by exactly one Resource and addressed by an ID unique
// within it. State is mutated only through methods that preserve the
// availability invariant:
//
//	available == true  =>  no current loan  =>  no due date
//
// A copy with a current loan is borrowed (loan.Reserved == false) or
// reserved for a queue head (loan.Reserved == true). Loans are referenced
// by ID and resolved against the TransactionStore, never held as pointers,
// so a reload can't leave dangling references.
type Copy struct {
	owner *Resource

	id        CopyID
	available bool
	dueDate   *Date
	current   *LoanID
	history   []LoanID // closed loans, oldest first
}

func (c *Copy) ID() CopyID          { return c.id }
func (c *Copy) Resource() *Resource { return c.owner }
func (c *Copy) Available() bool     { return c.available }

// Ref returns the cross-store address of this copy.
func (c *Copy) Ref() CopyRef { return CopyRef{Resource: c.owner.ID(), Copy: c.id} }

// DueDate returns the due date, if one is set.
func (c *Copy) DueDate() (Date, bool) {
	if c.dueDate == nil {
		return Date{}, false
	}
	return *c.dueDate, true
}

// CurrentLoan returns the active loan ID, if any.
func (c *Copy) CurrentLoan() (LoanID, bool) {
	if c.current == nil {
		return 0, false
	}
	return *c.current, true
}

// History returns a snapshot of the closed-loan IDs, oldest first.
func (c *Copy) History() []LoanID {
	out := make([]LoanID, len(c.history))
	copy(out, c.history)
	return out
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Checkout moves the copy Available -> Borrowed with a due date.
func (c *Copy) Checkout(loan LoanID, due Date) error {
	if !c.available {
		return ErrCopyUnavailable
	}
	id := loan
	d := due
	c.current = &id
	c.dueDate = &d
	c.available = false
	return nil
}

// Reserve moves the copy Available -> Reserved for a queue head. No due
// date is set until one is anticipated for a backlog (SetDueDate) or the
// copy is picked up.
func (c *Copy) Reserve(loan LoanID) error {
	if !c.available {
		return ErrCopyUnavailable
	}
	id := loan
	c.current = &id
	c.dueDate = nil
	c.available = false
	return nil
}

// SetDueDate sets or replaces the due date of an occupied copy. Used for
// the one-day grace extension and for anticipated due dates assigned when
// a request backlog builds.
func (c *Copy) SetDueDate(due Date) error {
	if c.current == nil {
		return ErrCopyNotOnLoan
	}
	d := due
	c.dueDate = &d
	return nil
}

// Release moves the copy back to Available, pushing the current loan onto
// the history list. The caller closes the loan in the TransactionStore.
func (c *Copy) Release() (LoanID, error) {
	if c.current == nil {
		return 0, ErrCopyNotOnLoan
	}
	closed := *c.current
	c.history = append(c.history, closed)
	c.current = nil
	c.dueDate = nil
	c.available = true
	return closed, nil
}
