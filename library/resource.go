/*
resource.go - Resource record: the catalog entry

PURPOSE:
  A Resource is one catalog entry (a Book, DVD or Laptop) owning an
  ordered list of Copies, a FIFO request queue of usernames, and a Review.
  Copy IDs are assigned from a per-resource monotonic counter and never
  reused, even after a copy is removed.

KEY CONCEPTS:
  - Tagged variant: Kind plus exactly one non-nil details struct
  - Copy list order is creation order and is the canonical enumeration
  - Request queue is strict FIFO: append at tail, pop from head
  - Review holds at most one element per username

SEE ALSO:
  - copy.go: Copy state machine
  - catalog.go: the store that owns Resources and assigns ResourceIDs
  - snapshot.go: value snapshots used by the codec and the archive
*/
package library

import (
	"strconv"
	"strings"
)

// =============================================================================
// VARIANT DETAILS
// =============================================================================

type BookDetails struct {
	Author    string
	Publisher string
	Genre     string
	ISBN      string
	Language  string
}

type DVDDetails struct {
	Director       string
	Language       string
	Subtitles      []string
	RuntimeMinutes int
}

type LaptopDetails struct {
	Manufacturer string
	Model        string
	OS           string
}

// =============================================================================
// RESOURCE
// =============================================================================

type Resource struct {
	id        ResourceID
	kind      Kind
	Title     string
	Thumbnail string
	Year      int
	MinLoan   LoanDuration

	// Exactly one of these is non-nil, matching kind.
	Book   *BookDetails
	DVD    *DVDDetails
	Laptop *LaptopDetails

	nextCopyID CopyID
	copies     []*Copy
	queue      []Username
	review     Review
}

// NewBook, NewDVD and NewLaptop build unregistered resources. The catalog
// assigns the ResourceID when the resource is added.

func NewBook(title, thumbnail string, year int, minLoan LoanDuration, details BookDetails) *Resource {
	return &Resource{kind: KindBook, Title: title, Thumbnail: thumbnail, Year: year, MinLoan: minLoan, Book: &details}
}

func NewDVD(title, thumbnail string, year int, minLoan LoanDuration, details DVDDetails) *Resource {
	return &Resource{kind: KindDVD, Title: title, Thumbnail: thumbnail, Year: year, MinLoan: minLoan, DVD: &details}
}

func NewLaptop(title, thumbnail string, year int, minLoan LoanDuration, details LaptopDetails) *Resource {
	return &Resource{kind: KindLaptop, Title: title, Thumbnail: thumbnail, Year: year, MinLoan: minLoan, Laptop: &details}
}

func (r *Resource) ID() ResourceID { return r.id }
func (r *Resource) Kind() Kind     { return r.kind }

// =============================================================================
// COPIES - monotonic per-resource IDs
// =============================================================================

// AddCopy creates a copy with the next copy ID. Removal never reuses an ID
// and never decrements the counter.
func (r *Resource) AddCopy() *Copy {
	c := &Copy{owner: r, id: r.nextCopyID, available: true}
	r.nextCopyID++
	r.copies = append(r.copies, c)
	return c
}

// RemoveCopy drops the copy from the list. A copy with an active loan
// cannot be removed.
func (r *Resource) RemoveCopy(id CopyID) error {
	for i, c := range r.copies {
		if c.id != id {
			continue
		}
		if c.current != nil {
			return ErrLoanStillActive
		}
		r.copies = append(r.copies[:i], r.copies[i+1:]...)
		return nil
	}
	return ErrCopyNotFound
}

// Copy resolves a copy by ID.
func (r *Resource) Copy(id CopyID) (*Copy, bool) {
	for _, c := range r.copies {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// Copies returns the copy list in creation order. The slice is a snapshot;
// the copies themselves are live.
func (r *Resource) Copies() []*Copy {
	out := make([]*Copy, len(r.copies))
	copy(out, r.copies)
	return out
}

// AvailableCount counts copies not currently borrowed or reserved.
func (r *Resource) AvailableCount() int {
	n := 0
	for _, c := range r.copies {
		if c.available {
			n++
		}
	}
	return n
}

// =============================================================================
// REQUEST QUEUE - strict FIFO
// =============================================================================

// Enqueue appends the username to the request queue. A username may appear
// at most once.
func (r *Resource) Enqueue(u Username) error {
	for _, q := range r.queue {
		if q == u {
			return ErrAlreadyRequested
		}
	}
	r.queue = append(r.queue, u)
	return nil
}

// DequeueHead pops and returns the queue head.
func (r *Resource) DequeueHead() (Username, bool) {
	if len(r.queue) == 0 {
		return "", false
	}
	head := r.queue[0]
	r.queue = r.queue[1:]
	return head, true
}

// RemoveFromQueue drops the user's first queue entry. Idempotent: absent
// entries are not an error.
func (r *Resource) RemoveFromQueue(u Username) {
	for i, q := range r.queue {
		if q == u {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// InQueue reports whether the user is waiting for this resource.
func (r *Resource) InQueue(u Username) bool {
	for _, q := range r.queue {
		if q == u {
			return true
		}
	}
	return false
}

func (r *Resource) QueueLen() int { return len(r.queue) }

// Queue returns a snapshot of the waiting usernames, head first.
func (r *Resource) Queue() []Username {
	out := make([]Username, len(r.queue))
	copy(out, r.queue)
	return out
}

// =============================================================================
// REVIEW
// =============================================================================

// Review returns a snapshot of the review aggregate.
func (r *Resource) Review() Review { return r.review.snapshot() }

// AddReview appends a rating element. A username may post at most one
// element per resource.
func (r *Resource) AddReview(e ReviewElement) error {
	return r.review.add(e)
}

// =============================================================================
// SEARCH SUPPORT
// =============================================================================

// searchFields lists every textual and numeric-as-string field the catalog
// substring search matches against.
func (r *Resource) searchFields() []string {
	fields := []string{
		r.Title,
		strconv.Itoa(int(r.id)),
		strconv.Itoa(r.Year),
		r.kind.String(),
	}
	switch r.kind {
	case KindBook:
		fields = append(fields, r.Book.Author, r.Book.Publisher, r.Book.Genre, r.Book.ISBN, r.Book.Language)
	case KindDVD:
		fields = append(fields, r.DVD.Director, r.DVD.Language, strconv.Itoa(r.DVD.RuntimeMinutes))
		fields = append(fields, r.DVD.Subtitles...)
	case KindLaptop:
		fields = append(fields, r.Laptop.Manufacturer, r.Laptop.Model, r.Laptop.OS)
	}
	return fields
}

// normalizeQuery lowercases and strips spaces, the same folding applied to
// both query and field values.
func normalizeQuery(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

// containsFold reports whether the normalized query occurs in the field
// after the same folding.
func containsFold(field, normalized string) bool {
	return strings.Contains(normalizeQuery(field), normalized)
}

// matches reports whether any field contains the normalized query.
func (r *Resource) matches(normalized string) bool {
	if normalized == "" {
		return true
	}
	for _, f := range r.searchFields() {
		if containsFold(f, normalized) {
			return true
		}
	}
	return false
}
