package library_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/circulation-engine/library"
)

func newCatalog(t *testing.T) (*library.TransactionStore, *library.Catalog) {
	t.Helper()
	loans := library.NewTransactionStore()
	return loans, library.NewCatalog(loans)
}

// =============================================================================
// RESOURCE IDS
// =============================================================================

func TestCatalog_ResourceIDs_NeverReassigned(t *testing.T) {
	// GIVEN: Resources 0, 1, 2 with the middle one removed
	// WHEN: A new resource is added
	// THEN: It gets ID 3 - removal never frees an ID

	_, cat := newCatalog(t)
	r0 := cat.Add(newBook("Dune"))
	r1 := cat.Add(newBook("Neuromancer"))
	r2 := cat.Add(newBook("Hyperion"))
	require.Equal(t, library.ResourceID(0), r0.ID())
	require.Equal(t, library.ResourceID(1), r1.ID())
	require.Equal(t, library.ResourceID(2), r2.ID())

	require.NoError(t, cat.Remove(r1.ID()))
	r3 := cat.Add(newBook("Foundation"))
	assert.Equal(t, library.ResourceID(3), r3.ID())

	_, err := cat.Resource(r1.ID())
	assert.ErrorIs(t, err, library.ErrResourceNotFound)
}

func TestCatalog_Remove_OnLoanRejected(t *testing.T) {
	loans, cat := newCatalog(t)
	r := cat.Add(newBook("Dune"))
	cp := r.AddCopy()
	l := loans.NewLoan("alice", r.ID(), cp.ID(), false, stampAt(2025, time.March, 1))
	require.NoError(t, cp.Checkout(l.ID, library.NewDate(2025, time.March, 15)))

	assert.ErrorIs(t, cat.Remove(r.ID()), library.ErrLoanStillActive)
}

// =============================================================================
// RESTORE VALIDATION
// =============================================================================

func TestCatalog_Restore_UnresolvedLoanFatal(t *testing.T) {
	// A copy referencing a loan the transaction store does not hold must be
	// refused, not silently admitted.

	_, cat := newCatalog(t)
	r := newBook("Dune")
	cp := r.AddCopy()
	require.NoError(t, cp.Checkout(99, library.NewDate(2025, time.March, 15)))

	err := cat.Restore(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrLoanNotFound)

	var unresolved *library.UnresolvedLoanError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, library.LoanID(99), unresolved.Loan)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestCatalog_Search_CaseAndSpaceInsensitive(t *testing.T) {
	_, cat := newCatalog(t)
	cat.Add(newBook("The Left Hand of Darkness"))
	dvd := cat.Add(library.NewDVD("Blade Runner", "covers/br.png", 1982, library.OneWeek, library.DVDDetails{
		Director: "Ridley Scott",
		Language: "English",
	}))

	// Spaces in the query are stripped before matching.
	found := cat.Search("lefthand", library.MaskAll)
	require.Len(t, found, 1)
	assert.Equal(t, "The Left Hand of Darkness", found[0].Title)

	// Case-insensitive, any field - director matches too.
	found = cat.Search("RIDLEY", library.MaskAll)
	require.Len(t, found, 1)
	assert.Equal(t, dvd.ID(), found[0].ID())

	// Kind mask filters.
	assert.Empty(t, cat.Search("ridley", library.MaskBook))
	assert.Len(t, cat.Search("", library.MaskAll), 2)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccounts_UniqueUsernames(t *testing.T) {
	_, cat := newCatalog(t)
	acc := library.NewAccounts(cat)

	require.NoError(t, acc.Add(library.NewUser("alice", library.NewDate(2025, time.January, 1))))
	err := acc.Add(library.NewUser("alice", library.NewDate(2025, time.February, 1)))
	assert.ErrorIs(t, err, library.ErrDuplicateUsername)

	_, err = acc.User("nobody")
	assert.ErrorIs(t, err, library.ErrUserNotFound)
}

func TestAccounts_Restore_UnresolvedCopyFatal(t *testing.T) {
	_, cat := newCatalog(t)
	acc := library.NewAccounts(cat)

	u := library.NewUser("alice", library.NewDate(2025, time.January, 1))
	u.AddBorrowed(library.CopyRef{Resource: 5, Copy: 0})

	err := acc.Restore(u)
	require.Error(t, err)

	var unresolved *library.UnresolvedCopyError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, library.Username("alice"), unresolved.Username)
}

func TestAccounts_StaffNumbers_SeedVsLiveMaximum(t *testing.T) {
	// GIVEN: A librarian with staff number 9 on record and a stale cached
	//        counter of 4
	// WHEN: The next number is allocated
	// THEN: The live maximum wins - 10, not 4

	_, cat := newCatalog(t)
	acc := library.NewAccounts(cat)

	head := library.NewUser("head", library.NewDate(2020, time.June, 1))
	require.NoError(t, head.Promote(library.LibrarianDetails{
		EmploymentDate: library.NewDate(2020, time.June, 1),
		StaffNumber:    9,
	}))
	require.NoError(t, acc.Add(head))

	acc.SeedStaffCounter(4)
	assert.Equal(t, library.StaffNumber(10), acc.NextStaffNumber())
	assert.Equal(t, library.StaffNumber(11), acc.NextStaffNumber())
}

func TestAccounts_StaffNumbers_SeedAhead(t *testing.T) {
	// A seed ahead of the live maximum is honored, so numbers handed out in
	// prior runs to since-revoked librarians are never reissued.

	_, cat := newCatalog(t)
	acc := library.NewAccounts(cat)
	require.NoError(t, acc.Add(library.NewUser("alice", library.NewDate(2025, time.January, 1))))

	acc.SeedStaffCounter(7)
	assert.Equal(t, library.StaffNumber(7), acc.NextStaffNumber())
	assert.Equal(t, library.StaffNumber(8), acc.StaffCounter())
}

func TestAccounts_Search_MatchesProfileFields(t *testing.T) {
	_, cat := newCatalog(t)
	acc := library.NewAccounts(cat)

	alice := library.NewUser("alice", library.NewDate(2025, time.January, 1))
	alice.FirstName = "Alice"
	alice.LastName = "Liddell"
	alice.Town = "Oxford"
	require.NoError(t, acc.Add(alice))

	bob := library.NewUser("bob", library.NewDate(2025, time.January, 2))
	bob.FirstName = "Bob"
	require.NoError(t, acc.Add(bob))

	found := acc.Search("oxford")
	require.Len(t, found, 1)
	assert.Equal(t, library.Username("alice"), found[0].Username())

	assert.Len(t, acc.Search("liddell"), 1)
	assert.Len(t, acc.Search(""), 2)
}
