/*
snapshot.go - Value snapshots of the stores

PURPOSE:
  Snapshots are plain value types mirroring the records, with every
  internal field exported. They exist so that serialization (flatfile),
  archival (store/sqlite) and persistence can work on an immutable copy of
  the world taken under the engine's read lock, then run outside it.

  Restoring goes the other way: the codec decodes into snapshots, and
  ResourceFromSnapshot / UserFromSnapshot rebuild live records, which the
  stores then validate on Restore.
*/
package library

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SNAPSHOT TYPES
// =============================================================================

type CopySnapshot struct {
	ID          CopyID
	Available   bool
	DueDate     *Date
	CurrentLoan *LoanID
	History     []LoanID
}

type ResourceSnapshot struct {
	ID        ResourceID
	Kind      Kind
	Title     string
	Thumbnail string
	Year      int
	MinLoan   LoanDuration

	Book   *BookDetails
	DVD    *DVDDetails
	Laptop *LaptopDetails

	NextCopyID CopyID
	Copies     []CopySnapshot
	Queue      []Username
	Review     []ReviewElement
}

type UserSnapshot struct {
	Username  Username
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Address1  string
	Address2  string
	Town      string
	Postcode  string
	Avatar    string
	CreatedOn Date

	// Balance is derived from the ledger at snapshot time. It is written
	// to disk for display/compatibility and ignored on load.
	Balance decimal.Decimal

	Librarian *LibrarianDetails

	Borrowed  []CopyRef
	Reserved  []CopyRef
	Requested []ResourceID
}

// Snapshot is the whole-world value used by Persist and the archive.
type Snapshot struct {
	Loans     []Loan
	Ledger    []FinancialTransaction
	Resources []ResourceSnapshot
	Users     []UserSnapshot
	NextStaff StaffNumber
}

// =============================================================================
// RECORD -> SNAPSHOT
// =============================================================================

func (c *Copy) Snapshot() CopySnapshot {
	s := CopySnapshot{ID: c.id, Available: c.available, History: c.History()}
	if c.dueDate != nil {
		d := *c.dueDate
		s.DueDate = &d
	}
	if c.current != nil {
		id := *c.current
		s.CurrentLoan = &id
	}
	return s
}

func (r *Resource) Snapshot() ResourceSnapshot {
	s := ResourceSnapshot{
		ID:         r.id,
		Kind:       r.kind,
		Title:      r.Title,
		Thumbnail:  r.Thumbnail,
		Year:       r.Year,
		MinLoan:    r.MinLoan,
		NextCopyID: r.nextCopyID,
		Queue:      r.Queue(),
		Review:     r.review.Elements(),
	}
	switch r.kind {
	case KindBook:
		d := *r.Book
		s.Book = &d
	case KindDVD:
		d := *r.DVD
		d.Subtitles = append([]string(nil), r.DVD.Subtitles...)
		s.DVD = &d
	case KindLaptop:
		d := *r.Laptop
		s.Laptop = &d
	}
	for _, cp := range r.copies {
		s.Copies = append(s.Copies, cp.Snapshot())
	}
	return s
}

func (u *User) Snapshot(balance decimal.Decimal) UserSnapshot {
	s := UserSnapshot{
		Username:  u.username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Email:     u.Email,
		Address1:  u.Address1,
		Address2:  u.Address2,
		Town:      u.Town,
		Postcode:  u.Postcode,
		Avatar:    u.Avatar,
		CreatedOn: u.createdOn,
		Balance:   balance,
		Borrowed:  u.Borrowed(),
		Reserved:  u.Reserved(),
		Requested: u.Requested(),
	}
	if u.librarian != nil {
		d := *u.librarian
		s.Librarian = &d
	}
	return s
}

// BuildSnapshot captures the three stores. Call under the engine's read
// lock; the result is safe to serialize outside it.
func BuildSnapshot(loans *TransactionStore, catalog *Catalog, accounts *Accounts) Snapshot {
	snap := Snapshot{
		Loans:     loans.Loans(),
		Ledger:    loans.Ledger(),
		NextStaff: accounts.StaffCounter(),
	}
	for _, r := range catalog.Resources() {
		snap.Resources = append(snap.Resources, r.Snapshot())
	}
	for _, u := range accounts.Users() {
		snap.Users = append(snap.Users, u.Snapshot(loans.BalanceOf(u.Username())))
	}
	return snap
}

// =============================================================================
// SNAPSHOT -> RECORD
// =============================================================================

// ResourceFromSnapshot rebuilds a live resource. Structural invariants are
// checked here; loan references are validated later by Catalog.Restore.
func ResourceFromSnapshot(s ResourceSnapshot) (*Resource, error) {
	r := &Resource{
		id:         s.ID,
		kind:       s.Kind,
		Title:      s.Title,
		Thumbnail:  s.Thumbnail,
		Year:       s.Year,
		MinLoan:    s.MinLoan,
		nextCopyID: s.NextCopyID,
		queue:      append([]Username(nil), s.Queue...),
		review:     Review{elements: append([]ReviewElement(nil), s.Review...)},
	}
	switch s.Kind {
	case KindBook:
		if s.Book == nil {
			return nil, fmt.Errorf("resource %d: book details missing", s.ID)
		}
		d := *s.Book
		r.Book = &d
	case KindDVD:
		if s.DVD == nil {
			return nil, fmt.Errorf("resource %d: dvd details missing", s.ID)
		}
		d := *s.DVD
		r.DVD = &d
	case KindLaptop:
		if s.Laptop == nil {
			return nil, fmt.Errorf("resource %d: laptop details missing", s.ID)
		}
		d := *s.Laptop
		r.Laptop = &d
	default:
		return nil, fmt.Errorf("resource %d: unknown kind %d", s.ID, int(s.Kind))
	}

	seen := make(map[CopyID]bool, len(s.Copies))
	for _, cs := range s.Copies {
		if seen[cs.ID] {
			return nil, fmt.Errorf("resource %d: duplicate copy id %d", s.ID, cs.ID)
		}
		seen[cs.ID] = true
		if cs.ID >= r.nextCopyID {
			return nil, fmt.Errorf("resource %d: copy id %d not below counter %d", s.ID, cs.ID, r.nextCopyID)
		}
		if cs.Available && (cs.CurrentLoan != nil || cs.DueDate != nil) {
			return nil, fmt.Errorf("resource %d: available copy %d carries loan state", s.ID, cs.ID)
		}
		if cs.CurrentLoan == nil && cs.DueDate != nil {
			return nil, fmt.Errorf("resource %d: copy %d has due date without loan", s.ID, cs.ID)
		}
		cp := &Copy{owner: r, id: cs.ID, available: cs.Available, history: append([]LoanID(nil), cs.History...)}
		if cs.DueDate != nil {
			d := *cs.DueDate
			cp.dueDate = &d
		}
		if cs.CurrentLoan != nil {
			id := *cs.CurrentLoan
			cp.current = &id
		}
		r.copies = append(r.copies, cp)
	}
	return r, nil
}

// UserFromSnapshot rebuilds a live user. The stored balance is discarded;
// the ledger is the source of truth. Reference validation happens in
// Accounts.Restore.
func UserFromSnapshot(s UserSnapshot) *User {
	u := &User{
		username:  s.Username,
		createdOn: s.CreatedOn,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Phone:     s.Phone,
		Email:     s.Email,
		Address1:  s.Address1,
		Address2:  s.Address2,
		Town:      s.Town,
		Postcode:  s.Postcode,
		Avatar:    s.Avatar,
		borrowed:  append([]CopyRef(nil), s.Borrowed...),
		reserved:  append([]CopyRef(nil), s.Reserved...),
		requested: append([]ResourceID(nil), s.Requested...),
	}
	if s.Librarian != nil {
		d := *s.Librarian
		u.librarian = &d
	}
	return u
}
