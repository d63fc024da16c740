/*
accounts.go - Accounts: owner of all User records

PURPOSE:
  The Accounts store is the arena of Users keyed by username. It assigns
  monotonic staff numbers to librarians and resolves the copy/resource
  references a user's borrowed/reserved/requested lists carry.

LOAD ORDER:
  Accounts depends on a populated Catalog: restoring a user validates
  every (resource, copy) reference against it.

STAFF NUMBERS:
  NextStaffNumber follows the same lazy max-then-increment policy as
  resource IDs, scoped to librarian records. A side-file caches the
  counter between runs; SeedStaffCounter applies it. The cache is never
  allowed to lag the live maximum: the larger of the two wins, so a stale
  side-file can't cause a duplicate staff number.
*/
package library

// =============================================================================
// ACCOUNTS
// =============================================================================

type Accounts struct {
	catalog *Catalog

	users  []*User // insertion order
	byName map[Username]*User

	nextStaff  StaffNumber
	staffReady bool
	staffSeed  StaffNumber // from the side-file, 0 if absent
}

func NewAccounts(catalog *Catalog) *Accounts {
	return &Accounts{catalog: catalog, byName: make(map[Username]*User)}
}

// Catalog exposes the catalog the store resolves against.
func (a *Accounts) Catalog() *Catalog { return a.catalog }

// Add registers a new user. Usernames are unique.
func (a *Accounts) Add(u *User) error {
	if _, ok := a.byName[u.username]; ok {
		return ErrDuplicateUsername
	}
	a.users = append(a.users, u)
	a.byName[u.username] = u
	return nil
}

// Restore admits a user decoded from disk, validating every cross-store
// reference against the catalog.
func (a *Accounts) Restore(u *User) error {
	if _, ok := a.byName[u.username]; ok {
		return ErrDuplicateUsername
	}
	for _, ref := range append(u.Borrowed(), u.Reserved()...) {
		if _, err := a.catalog.CopyOf(ref); err != nil {
			return &UnresolvedCopyError{Username: u.username, Ref: ref}
		}
	}
	for _, id := range u.requested {
		if _, err := a.catalog.Resource(id); err != nil {
			return &UnresolvedCopyError{Username: u.username, Ref: CopyRef{Resource: id}}
		}
	}
	a.users = append(a.users, u)
	a.byName[u.username] = u
	if a.staffReady {
		if d, ok := u.Librarian(); ok && d.StaffNumber >= a.nextStaff {
			a.nextStaff = d.StaffNumber + 1
		}
	}
	return nil
}

// Remove drops the user.
func (a *Accounts) Remove(username Username) error {
	if _, ok := a.byName[username]; !ok {
		return ErrUserNotFound
	}
	delete(a.byName, username)
	for i, u := range a.users {
		if u.username == username {
			a.users = append(a.users[:i], a.users[i+1:]...)
			break
		}
	}
	return nil
}

// User resolves a username (primary-key exact match).
func (a *Accounts) User(username Username) (*User, error) {
	u, ok := a.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Users returns all users in insertion order.
func (a *Accounts) Users() []*User {
	out := make([]*User, len(a.users))
	copy(out, a.users)
	return out
}

// Search returns users whose fields contain the query, compared case- and
// space-insensitively.
func (a *Accounts) Search(query string) []*User {
	normalized := normalizeQuery(query)
	var out []*User
	for _, u := range a.users {
		if u.matchesQuery(normalized) {
			out = append(out, u)
		}
	}
	return out
}

// =============================================================================
// STAFF NUMBERS
// =============================================================================

// SeedStaffCounter applies the cached next-staff-number from the
// side-file. Reconciliation with the live maximum happens at first
// allocation; the seed only ever raises the counter.
func (a *Accounts) SeedStaffCounter(next StaffNumber) {
	a.staffSeed = next
	a.staffReady = false
}

// NextStaffNumber allocates the next staff number: the first call takes
// max(live maximum + 1, cached seed), later calls only increment.
func (a *Accounts) NextStaffNumber() StaffNumber {
	if !a.staffReady {
		max := StaffNumber(0)
		for _, u := range a.users {
			if d, ok := u.Librarian(); ok && d.StaffNumber > max {
				max = d.StaffNumber
			}
		}
		a.nextStaff = max + 1
		if a.staffSeed > a.nextStaff {
			a.nextStaff = a.staffSeed
		}
		a.staffReady = true
	}
	n := a.nextStaff
	a.nextStaff++
	return n
}

// StaffCounter returns the value to persist to the side-file: the next
// number a future run should hand out.
func (a *Accounts) StaffCounter() StaffNumber {
	if a.staffReady {
		return a.nextStaff
	}
	// Not yet allocated this run: recompute without consuming a number.
	max := StaffNumber(0)
	for _, u := range a.users {
		if d, ok := u.Librarian(); ok && d.StaffNumber > max {
			max = d.StaffNumber
		}
	}
	next := max + 1
	if a.staffSeed > next {
		next = a.staffSeed
	}
	return next
}
