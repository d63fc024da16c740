package circulation

import (
	"sort"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// EXPECTED AVAILABILITY - display-only approximation
// =============================================================================

// ExpectedAvailability estimates when a copy of the resource will next be
// free for a new requester, assuming the current backlog cycles through
// the copies in full minimum-duration borrows:
//
//	waits  = per-copy days-until-available, sorted ascending
//	cycles = queueLen / copyCount
//	offset = queueLen % copyCount
//	date   = today + cycles*minLoanDays + waits[offset]
//
// This is a round-robin approximation, not a schedule; it deliberately
// ignores overlap between returns.
func (e *Engine) ExpectedAvailability(id library.ResourceID) (library.Date, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res, err := e.catalog.Resource(id)
	if err != nil {
		return library.Date{}, err
	}
	copies := res.Copies()
	if len(copies) == 0 {
		return library.Date{}, library.ErrNoCopies
	}

	today := e.today()
	waits := make([]int, 0, len(copies))
	for _, cp := range copies {
		waits = append(waits, daysUntilFree(cp, res.MinLoan, today))
	}
	sort.Ints(waits)

	q := res.QueueLen()
	c := len(copies)
	cycles := q / c
	offset := q % c
	return today.AddDays(cycles*res.MinLoan.Days() + waits[offset]), nil
}

// daysUntilFree is 0 for an available copy, the days to its due date for
// an occupied one (floored at 0 when overdue), and a full minimum
// duration when the copy is occupied with no due date assigned yet.
func daysUntilFree(cp *library.Copy, minLoan library.LoanDuration, today library.Date) int {
	if cp.Available() {
		return 0
	}
	due, ok := cp.DueDate()
	if !ok {
		return minLoan.Days()
	}
	days := today.DaysUntil(due)
	if days < 0 {
		return 0
	}
	return days
}
