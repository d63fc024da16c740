/*
user.go - User record (Standard or Librarian)

PURPOSE:
  A User is keyed by username and holds personal fields plus three
  cross-store reference lists: copies currently borrowed, copies currently
  reserved for pickup, and resources currently requested. References are
  (resource, copy) ID pairs resolved against the catalog, never live
  pointers.

  The account balance is NOT stored here - it is derived from the
  financial ledger by TransactionStore.BalanceOf. The on-disk user record
  carries a balance field for display/compatibility; the loader discards
  it in favor of the ledger.

ROLE TRANSITIONS:
  Promote attaches librarian details (employment date + staff number);
  Revoke removes them. All shared fields survive either way.
*/
package library

// =============================================================================
// USER
// =============================================================================

// LibrarianDetails is present only on librarian accounts.
type LibrarianDetails struct {
	EmploymentDate Date
	StaffNumber    StaffNumber
}

type User struct {
	username  Username
	createdOn Date

	FirstName string
	LastName  string
	Phone     string
	Email     string
	Address1  string
	Address2  string
	Town      string
	Postcode  string
	Avatar    string

	librarian *LibrarianDetails

	borrowed  []CopyRef
	reserved  []CopyRef
	requested []ResourceID
}

// NewUser creates a standard account.
func NewUser(username Username, createdOn Date) *User {
	return &User{username: username, createdOn: createdOn}
}

func (u *User) Username() Username { return u.username }
func (u *User) CreatedOn() Date    { return u.createdOn }

// DisplayName joins the personal name fields.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// =============================================================================
// ROLE
// =============================================================================

func (u *User) IsLibrarian() bool { return u.librarian != nil }

// Librarian returns the librarian details, if the user holds the role.
func (u *User) Librarian() (LibrarianDetails, bool) {
	if u.librarian == nil {
		return LibrarianDetails{}, false
	}
	return *u.librarian, true
}

// Promote attaches librarian details. All shared fields are preserved.
func (u *User) Promote(d LibrarianDetails) error {
	if u.librarian != nil {
		return ErrAlreadyLibrarian
	}
	u.librarian = &d
	return nil
}

// Revoke removes the librarian role, preserving shared fields.
func (u *User) Revoke() error {
	if u.librarian == nil {
		return ErrNotLibrarian
	}
	u.librarian = nil
	return nil
}

// =============================================================================
// CROSS-STORE REFERENCE LISTS
// =============================================================================

func (u *User) Borrowed() []CopyRef     { return snapshotRefs(u.borrowed) }
func (u *User) Reserved() []CopyRef     { return snapshotRefs(u.reserved) }
func (u *User) Requested() []ResourceID { return append([]ResourceID(nil), u.requested...) }

func (u *User) HasRequested(id ResourceID) bool {
	for _, r := range u.requested {
		if r == id {
			return true
		}
	}
	return false
}

func (u *User) AddBorrowed(ref CopyRef) { u.borrowed = append(u.borrowed, ref) }
func (u *User) AddReserved(ref CopyRef) { u.reserved = append(u.reserved, ref) }

// AddRequested appends a resource to the requested list; duplicates are
// rejected so the request queue and this list stay in step.
func (u *User) AddRequested(id ResourceID) error {
	if u.HasRequested(id) {
		return ErrAlreadyRequested
	}
	u.requested = append(u.requested, id)
	return nil
}

func (u *User) RemoveBorrowed(ref CopyRef) { u.borrowed = removeRef(u.borrowed, ref) }
func (u *User) RemoveReserved(ref CopyRef) { u.reserved = removeRef(u.reserved, ref) }

// RemoveRequested drops the resource from the requested list. Idempotent.
func (u *User) RemoveRequested(id ResourceID) {
	for i, r := range u.requested {
		if r == id {
			u.requested = append(u.requested[:i], u.requested[i+1:]...)
			return
		}
	}
}

func snapshotRefs(refs []CopyRef) []CopyRef {
	out := make([]CopyRef, len(refs))
	copy(out, refs)
	return out
}

func removeRef(refs []CopyRef, ref CopyRef) []CopyRef {
	for i, r := range refs {
		if r == ref {
			return append(refs[:i], refs[i+1:]...)
		}
	}
	return refs
}

// =============================================================================
// SEARCH SUPPORT
// =============================================================================

func (u *User) searchFields() []string {
	return []string{
		string(u.username),
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Email,
		u.Town,
		u.Postcode,
	}
}

func (u *User) matchesQuery(normalized string) bool {
	if normalized == "" {
		return true
	}
	for _, f := range u.searchFields() {
		if containsFold(f, normalized) {
			return true
		}
	}
	return false
}
