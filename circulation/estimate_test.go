package circulation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/circulation-engine/library"
)

func TestExpectedAvailability_NoCopies(t *testing.T) {
	f := newFixture(t)
	book := f.addBook("dune", 0)

	_, err := f.engine.ExpectedAvailability(book.ID())
	assert.ErrorIs(t, err, library.ErrNoCopies)

	_, err = f.engine.ExpectedAvailability(99)
	assert.ErrorIs(t, err, library.ErrResourceNotFound)
}

func TestExpectedAvailability_FreeCopyIsToday(t *testing.T) {
	f := newFixture(t)
	book := f.addBook("dune", 1)

	date, err := f.engine.ExpectedAvailability(book.ID())
	require.NoError(t, err)
	assert.True(t, date.Equal(f.today()))
}

func TestExpectedAvailability_WaitsForTheDueDate(t *testing.T) {
	// One copy, due in 14 days, nobody queued: the next requester can
	// expect it when it comes back.

	f := newFixture(t)
	f.addUser("alice")
	book := f.addBook("dune", 1)
	_, err := f.engine.Issue("alice", f.ref(book, 0))
	require.NoError(t, err)

	date, err := f.engine.ExpectedAvailability(book.ID())
	require.NoError(t, err)
	assert.True(t, date.Equal(f.today().AddDays(14)), "got %s", date)
}

func TestExpectedAvailability_QueueAddsFullCycles(t *testing.T) {
	// One copy due in 14 days with one user already queued: the requester
	// behind them waits the due date plus a full minimum loan.

	f := newFixture(t)
	f.addUser("alice")
	f.addUser("bob")
	book := f.addBook("dune", 1)
	_, err := f.engine.Issue("alice", f.ref(book, 0))
	require.NoError(t, err)
	require.NoError(t, f.engine.Request(book.ID(), "bob"))

	date, err := f.engine.ExpectedAvailability(book.ID())
	require.NoError(t, err)
	assert.True(t, date.Equal(f.today().AddDays(14+14)), "got %s", date)
}

func TestExpectedAvailability_MultipleCopiesRoundRobin(t *testing.T) {
	// Two copies: one free now, one due in 14 days. Three queued users
	// consume one full cycle plus the second-soonest wait.

	f := newFixture(t)
	for _, u := range []library.Username{"alice", "bob", "carol", "dave"} {
		f.addUser(u)
	}
	book := f.addBook("dune", 2)
	_, err := f.engine.Issue("alice", f.ref(book, 0))
	require.NoError(t, err)
	_, err = f.engine.Issue("bob", f.ref(book, 1))
	require.NoError(t, err)

	f.advance(7) // copy due dates now 7 days out
	outcome, err := f.engine.ReturnCopy(f.ref(book, 0))
	require.NoError(t, err)
	require.Nil(t, outcome.Fine)

	// carol's request grabs the freed copy; dave queues behind her.
	require.NoError(t, f.engine.Request(book.ID(), "carol"))
	require.NoError(t, f.engine.Request(book.ID(), "dave"))

	// waits: reserved copy (anticipated due today+14) and bob's copy due
	// in 7 -> sorted [7, 14]; queue length 1 -> cycles 0, offset 1.
	date, err := f.engine.ExpectedAvailability(book.ID())
	require.NoError(t, err)
	assert.True(t, date.Equal(f.today().AddDays(14)), "got %s", date)
}

func TestExpectedAvailability_OverdueCopyCountsAsFreeNow(t *testing.T) {
	f := newFixture(t)
	f.addUser("alice")
	book := f.addBook("dune", 1)
	_, err := f.engine.Issue("alice", f.ref(book, 0))
	require.NoError(t, err)

	f.advance(20) // 6 days past due
	date, err := f.engine.ExpectedAvailability(book.ID())
	require.NoError(t, err)
	assert.True(t, date.Equal(f.today()), "an overdue copy could return any moment")
}
