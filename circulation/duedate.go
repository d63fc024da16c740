package circulation

import (
	"sort"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// DUE-DATE POLICY
// =============================================================================

// dueDateFor computes a due date for a loan that started (or is treated
// as starting) on start: start plus the resource's minimum duration,
// unless that already lies in the past - then the borrower gets a
// one-day grace from today rather than a fresh full period.
func dueDateFor(start library.Date, minLoan library.LoanDuration, today library.Date) library.Date {
	due := start.AddDays(minLoan.Days())
	if !due.After(today) {
		return today.AddDays(1)
	}
	return due
}

// assignAnticipatedDueDates gives due dates to active copies ahead of a
// request backlog: one per queued user, to the copies expected to be
// reclaimed first. Active copies are ordered by their current loan's
// start date ascending; copies that already carry a due date are
// skipped.
func (e *Engine) assignAnticipatedDueDates(res *library.Resource) {
	backlog := res.QueueLen()
	if backlog == 0 {
		return
	}

	type candidate struct {
		cp    *library.Copy
		start library.Date
	}
	var candidates []candidate
	for _, cp := range res.Copies() {
		current, ok := cp.CurrentLoan()
		if !ok {
			continue
		}
		if _, hasDue := cp.DueDate(); hasDue {
			continue
		}
		held, ok := e.loans.Loan(current)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{cp: cp, start: held.StartedAt.Date()})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].start.Before(candidates[j].start)
	})

	today := e.today()
	for i := 0; i < backlog && i < len(candidates); i++ {
		c := candidates[i]
		// Copy is occupied, so SetDueDate cannot fail here.
		_ = c.cp.SetDueDate(dueDateFor(c.start, res.MinLoan, today))
	}
}
