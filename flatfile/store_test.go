package flatfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/circulation-engine/flatfile"
	"github.com/warp/circulation-engine/library"
)

func stampAt(y int, m time.Month, d int) library.DateTime {
	return library.DateTimeOf(time.Date(y, m, d, 10, 30, 0, 0, time.UTC))
}

// seedStores builds a populated world exercising every record shape: open,
// closed and reserved loans, fines and payments, all three resource kinds,
// a request queue, a review, and both account roles.
func seedStores(t *testing.T) (*library.TransactionStore, *library.Catalog, *library.Accounts) {
	t.Helper()

	loans := library.NewTransactionStore()
	cat := library.NewCatalog(loans)
	acc := library.NewAccounts(cat)

	book := cat.Add(library.NewBook("Dune", "covers/dune.png", 1965, library.TwoWeeks, library.BookDetails{
		Author: "Frank Herbert", Publisher: "Ace", Genre: "Sci-Fi", ISBN: "978-0441172719", Language: "English",
	}))
	bookCopy := book.AddCopy()

	dvd := cat.Add(library.NewDVD("Blade Runner", "covers/br.png", 1982, library.OneWeek, library.DVDDetails{
		Director: "Ridley Scott", Language: "English", Subtitles: []string{"French", "German"}, RuntimeMinutes: 117,
	}))
	dvdCopy := dvd.AddCopy()

	laptop := cat.Add(library.NewLaptop("ThinkPad X1", "covers/x1.png", 2023, library.OneDay, library.LaptopDetails{
		Manufacturer: "Lenovo", Model: "X1 Carbon", OS: "Linux",
	}))
	laptop.AddCopy()

	// alice borrows the book, still out.
	l1 := loans.NewLoan("alice", book.ID(), bookCopy.ID(), false, stampAt(2025, time.March, 1))
	require.NoError(t, bookCopy.Checkout(l1.ID, library.NewDate(2025, time.March, 15)))

	// bob borrowed the dvd and brought it back late.
	l2 := loans.NewLoan("bob", dvd.ID(), dvdCopy.ID(), false, stampAt(2025, time.February, 1))
	require.NoError(t, dvdCopy.Checkout(l2.ID, library.NewDate(2025, time.February, 8)))
	_, err := dvdCopy.Release()
	require.NoError(t, err)
	require.NoError(t, loans.CloseLoan(l2.ID, stampAt(2025, time.February, 10)))
	_, err = loans.AddFine("bob", decimal.NewFromInt(4), dvd.ID(), dvdCopy.ID(), 2, library.NewDate(2025, time.February, 10))
	require.NoError(t, err)
	_, err = loans.AddPayment("bob", decimal.NewFromInt(4), library.NewDate(2025, time.February, 11))
	require.NoError(t, err)

	// carol holds the dvd on reservation.
	l3 := loans.NewLoan("carol", dvd.ID(), dvdCopy.ID(), true, stampAt(2025, time.March, 5))
	require.NoError(t, dvdCopy.Reserve(l3.ID))

	// eve waits in the book's queue.
	require.NoError(t, book.Enqueue("eve"))
	require.NoError(t, book.AddReview(library.ReviewElement{Rating: 5, Text: "a classic", Poster: "bob"}))

	alice := library.NewUser("alice", library.NewDate(2024, time.June, 1))
	alice.FirstName = "Alice"
	alice.AddBorrowed(bookCopy.Ref())
	require.NoError(t, acc.Add(alice))

	bob := library.NewUser("bob", library.NewDate(2024, time.July, 1))
	require.NoError(t, acc.Add(bob))

	carol := library.NewUser("carol", library.NewDate(2024, time.August, 1))
	carol.AddReserved(dvdCopy.Ref())
	require.NoError(t, acc.Add(carol))

	eve := library.NewUser("eve", library.NewDate(2024, time.September, 1))
	require.NoError(t, eve.AddRequested(book.ID()))
	require.NoError(t, acc.Add(eve))

	dana := library.NewUser("dana", library.NewDate(2023, time.May, 1))
	require.NoError(t, dana.Promote(library.LibrarianDetails{
		EmploymentDate: library.NewDate(2023, time.May, 1),
		StaffNumber:    acc.NextStaffNumber(),
	}))
	require.NoError(t, acc.Add(dana))

	return loans, cat, acc
}

// =============================================================================
// SAVE / LOAD ROUND TRIP
// =============================================================================

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	// GIVEN: A fully populated world saved to disk
	// WHEN: It is loaded back and saved to a second directory
	// THEN: The two file sets are byte-identical - the codec loses nothing

	loans, cat, acc := seedStores(t)
	snap := library.BuildSnapshot(loans, cat, acc)

	dir1 := t.TempDir()
	store1 := flatfile.NewStore(dir1)
	require.NoError(t, store1.Save(snap))

	loans2, cat2, acc2, err := store1.Load()
	require.NoError(t, err)

	dir2 := t.TempDir()
	store2 := flatfile.NewStore(dir2)
	require.NoError(t, store2.Save(library.BuildSnapshot(loans2, cat2, acc2)))

	for _, name := range []string{
		"transactions.tsv", "books.tsv", "dvds.tsv", "laptops.tsv", "users.tsv", "staff_counter.tsv",
	} {
		want, err := os.ReadFile(filepath.Join(dir1, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dir2, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "file %s drifted across a load/save cycle", name)
	}
}

func TestStore_Load_RebuildsState(t *testing.T) {
	loans, cat, acc := seedStores(t)
	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Save(library.BuildSnapshot(loans, cat, acc)))

	loans2, cat2, acc2, err := store.Load()
	require.NoError(t, err)

	// bob's fine was paid off; the balance replays to zero.
	assert.True(t, loans2.BalanceOf("bob").IsZero())

	// alice still holds the book.
	alice, err := acc2.User("alice")
	require.NoError(t, err)
	require.Len(t, alice.Borrowed(), 1)
	cp, err := cat2.CopyOf(alice.Borrowed()[0])
	require.NoError(t, err)
	assert.False(t, cp.Available())
	due, ok := cp.DueDate()
	require.True(t, ok)
	assert.True(t, due.Equal(library.NewDate(2025, time.March, 15)))

	// eve still waits in the book's queue.
	book, err := cat2.Resource(0)
	require.NoError(t, err)
	assert.Equal(t, []library.Username{"eve"}, book.Queue())
	assert.Equal(t, 1, book.Review().Len())

	// the dvd copy remembers its closed loan.
	dvdCopy, err := cat2.CopyOf(library.CopyRef{Resource: 1, Copy: 0})
	require.NoError(t, err)
	assert.Len(t, dvdCopy.History(), 1)

	// dana keeps staff number 1; the next allocation continues past it.
	dana, err := acc2.User("dana")
	require.NoError(t, err)
	d, ok := dana.Librarian()
	require.True(t, ok)
	assert.Equal(t, library.StaffNumber(1), d.StaffNumber)
	assert.Equal(t, library.StaffNumber(2), acc2.NextStaffNumber())
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestStore_Bootstrap_EmptyWorldLoads(t *testing.T) {
	dir := t.TempDir()
	store := flatfile.NewStore(filepath.Join(dir, "data"))
	require.NoError(t, store.Bootstrap())

	loans, cat, acc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loans.Loans())
	assert.Empty(t, cat.Resources())
	assert.Empty(t, acc.Users())
	assert.Equal(t, library.StaffNumber(1), acc.NextStaffNumber())
}

func TestStore_Bootstrap_PreservesExistingFiles(t *testing.T) {
	loans, cat, acc := seedStores(t)
	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Save(library.BuildSnapshot(loans, cat, acc)))

	require.NoError(t, store.Bootstrap())

	_, cat2, _, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, cat2.Resources(), 3)
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestStore_Load_MissingFileFatal(t *testing.T) {
	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Bootstrap())
	require.NoError(t, os.Remove(filepath.Join(dir, "users.tsv")))

	_, _, _, err := store.Load()
	assert.ErrorIs(t, err, flatfile.ErrMissingFile)
}

func TestStore_Load_MalformedLineFatal(t *testing.T) {
	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Bootstrap())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transactions.tsv"),
		[]byte("R\tnot-an-id\talice\t0\t0\tfalse\t2025-03-01\t10:30:00\tnull\n"), 0o644))

	_, _, _, err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, flatfile.ErrMalformed)

	var parse *flatfile.ParseError
	require.ErrorAs(t, err, &parse)
	assert.Equal(t, 1, parse.Line)
}

func TestStore_Load_UnresolvedLoanFatal(t *testing.T) {
	// A copy line referencing loan 7 with an empty transactions file must
	// fail the load - the stores never hold dangling references.

	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Bootstrap())

	book := "covers/dune.png\t0\tDune\t1965\t14\t1\tFrank Herbert\tAce\tSci-Fi\tisbn\tEnglish\t1\t0\n" +
		"0\tfalse\t2025-03-10\t7\t0\n" +
		"0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.tsv"), []byte(book), 0o644))

	_, _, _, err := store.Load()
	require.Error(t, err)

	var unresolved *library.UnresolvedLoanError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, library.LoanID(7), unresolved.Loan)
}

func TestStore_Load_CorruptStaffCounterFatal(t *testing.T) {
	dir := t.TempDir()
	store := flatfile.NewStore(dir)
	require.NoError(t, store.Bootstrap())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staff_counter.tsv"),
		[]byte("next_staff_number\tnot-a-number\n"), 0o644))

	_, _, _, err := store.Load()
	assert.ErrorIs(t, err, flatfile.ErrMalformed)
}

func TestStore_Save_RefusesReservedCharacters(t *testing.T) {
	loans := library.NewTransactionStore()
	cat := library.NewCatalog(loans)
	acc := library.NewAccounts(cat)
	cat.Add(library.NewBook("Tab\tTitle", "covers/x.png", 2020, library.OneWeek, library.BookDetails{}))

	store := flatfile.NewStore(t.TempDir())
	err := store.Save(library.BuildSnapshot(loans, cat, acc))
	assert.Error(t, err)
}
