package library_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newBook(title string) *library.Resource {
	return library.NewBook(title, "covers/default.png", 2019, library.TwoWeeks, library.BookDetails{
		Author:    "Ann Author",
		Publisher: "Penguin",
		Genre:     "Sci-Fi",
		ISBN:      "978-0-0000-0000-0",
		Language:  "English",
	})
}

// =============================================================================
// COPY ID MONOTONICITY
// =============================================================================

func TestResource_CopyIDs_NeverReused(t *testing.T) {
	// GIVEN: A resource with 3 copies
	// WHEN: The second copy is removed and a new one created
	// THEN: IDs are {0, 2, 3} - the removed ID is never handed out again

	r := newBook("Dune")
	c0 := r.AddCopy()
	c1 := r.AddCopy()
	c2 := r.AddCopy()
	require.Equal(t, library.CopyID(0), c0.ID())
	require.Equal(t, library.CopyID(1), c1.ID())
	require.Equal(t, library.CopyID(2), c2.ID())

	require.NoError(t, r.RemoveCopy(c1.ID()))
	r.AddCopy()

	var ids []library.CopyID
	for _, cp := range r.Copies() {
		ids = append(ids, cp.ID())
	}
	assert.Equal(t, []library.CopyID{0, 2, 3}, ids)
}

func TestResource_RemoveCopy_OnLoanRejected(t *testing.T) {
	r := newBook("Dune")
	cp := r.AddCopy()
	require.NoError(t, cp.Checkout(1, library.NewDate(2025, time.March, 10)))

	err := r.RemoveCopy(cp.ID())
	assert.ErrorIs(t, err, library.ErrLoanStillActive)
}

// =============================================================================
// COPY STATE MACHINE
// =============================================================================

func TestCopy_AvailabilityInvariant(t *testing.T) {
	// available == true => no current loan => no due date, at every step

	r := newBook("Dune")
	cp := r.AddCopy()

	assertInvariant := func() {
		t.Helper()
		_, hasLoan := cp.CurrentLoan()
		_, hasDue := cp.DueDate()
		if cp.Available() {
			assert.False(t, hasLoan, "available copy must not hold a loan")
			assert.False(t, hasDue, "available copy must not hold a due date")
		}
		if hasDue {
			assert.True(t, hasLoan, "due date requires a current loan")
		}
	}

	assertInvariant()
	require.NoError(t, cp.Checkout(7, library.NewDate(2025, time.March, 24)))
	assertInvariant()

	closed, err := cp.Release()
	require.NoError(t, err)
	assert.Equal(t, library.LoanID(7), closed)
	assertInvariant()

	require.NoError(t, cp.Reserve(8))
	assertInvariant()
	_, err = cp.Release()
	require.NoError(t, err)
	assertInvariant()
}

func TestCopy_History_AppendOnlyOldestFirst(t *testing.T) {
	r := newBook("Dune")
	cp := r.AddCopy()

	for i := 1; i <= 3; i++ {
		require.NoError(t, cp.Checkout(library.LoanID(i), library.NewDate(2025, time.March, i)))
		_, err := cp.Release()
		require.NoError(t, err)
	}

	assert.Equal(t, []library.LoanID{1, 2, 3}, cp.History())
}

func TestCopy_CheckoutUnavailable_Rejected(t *testing.T) {
	r := newBook("Dune")
	cp := r.AddCopy()
	require.NoError(t, cp.Checkout(1, library.NewDate(2025, time.March, 10)))

	assert.ErrorIs(t, cp.Checkout(2, library.NewDate(2025, time.March, 11)), library.ErrCopyUnavailable)
	assert.ErrorIs(t, cp.Reserve(3), library.ErrCopyUnavailable)
}

func TestCopy_SetDueDate_RequiresLoan(t *testing.T) {
	r := newBook("Dune")
	cp := r.AddCopy()
	assert.ErrorIs(t, cp.SetDueDate(library.NewDate(2025, time.March, 10)), library.ErrCopyNotOnLoan)
}

// =============================================================================
// REQUEST QUEUE
// =============================================================================

func TestResource_Queue_FIFO(t *testing.T) {
	r := newBook("Dune")
	require.NoError(t, r.Enqueue("alice"))
	require.NoError(t, r.Enqueue("bob"))
	require.NoError(t, r.Enqueue("carol"))

	assert.ErrorIs(t, r.Enqueue("bob"), library.ErrAlreadyRequested)
	assert.Equal(t, []library.Username{"alice", "bob", "carol"}, r.Queue())

	head, ok := r.DequeueHead()
	require.True(t, ok)
	assert.Equal(t, library.Username("alice"), head)
	assert.Equal(t, 2, r.QueueLen())
}

func TestResource_RemoveFromQueue_Idempotent(t *testing.T) {
	r := newBook("Dune")
	require.NoError(t, r.Enqueue("alice"))

	r.RemoveFromQueue("nobody") // no error, no effect
	r.RemoveFromQueue("alice")
	r.RemoveFromQueue("alice")
	assert.Zero(t, r.QueueLen())
}

// =============================================================================
// REVIEW
// =============================================================================

func TestReview_OneElementPerUser(t *testing.T) {
	r := newBook("Dune")
	require.NoError(t, r.AddReview(library.ReviewElement{Rating: 4, Text: "good", Poster: "alice"}))

	err := r.AddReview(library.ReviewElement{Rating: 2, Poster: "alice"})
	assert.ErrorIs(t, err, library.ErrDuplicateReview)
	assert.Equal(t, 1, r.Review().Len())
}

func TestReview_Average(t *testing.T) {
	r := newBook("Dune")
	assert.True(t, r.Review().Average().Equal(library.NoRating), "empty review uses the sentinel")

	require.NoError(t, r.AddReview(library.ReviewElement{Rating: 5, Poster: "alice"}))
	require.NoError(t, r.AddReview(library.ReviewElement{Rating: 2, Poster: "bob"}))
	assert.Equal(t, "3.5", r.Review().Average().String())
}

func TestReview_RatingRange(t *testing.T) {
	r := newBook("Dune")
	assert.ErrorIs(t, r.AddReview(library.ReviewElement{Rating: 6, Poster: "alice"}), library.ErrInvalidRating)
	assert.ErrorIs(t, r.AddReview(library.ReviewElement{Rating: -1, Poster: "alice"}), library.ErrInvalidRating)
}

// =============================================================================
// CHARGE POLICY
// =============================================================================

func TestKind_OverdueCharge_MonotonicAndClamped(t *testing.T) {
	// Book: 2.00/day capped at 25.00. 20 days overdue charges exactly
	// 25.00, not 40.00.

	prev := library.KindBook.OverdueCharge(0)
	require.True(t, prev.IsZero())
	for days := 1; days <= 30; days++ {
		charge := library.KindBook.OverdueCharge(days)
		assert.False(t, charge.LessThan(prev), "charge must never decrease")
		prev = charge
	}
	assert.Equal(t, "25", library.KindBook.OverdueCharge(20).String())
	assert.Equal(t, "24", library.KindBook.OverdueCharge(12).String())

	// Laptop is steeper on both axes.
	assert.Equal(t, "100", library.KindLaptop.OverdueCharge(20).String())
	assert.Equal(t, "30", library.KindLaptop.OverdueCharge(3).String())
}
