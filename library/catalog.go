/*
catalog.go - Catalog: owner of all Resource records

PURPOSE:
  The Catalog is the arena of Resources keyed by ResourceID. It assigns
  monotonic resource IDs, serves substring search, and resolves
  resource/copy lookups for the account store and the circulation engine.

LOAD ORDER:
  The Catalog depends on a populated TransactionStore: restoring a
  resource validates every loan ID its copies embed. The flatfile package
  enforces transactions -> resources -> users ordering.

ID ALLOCATION:
  NextResourceID is computed lazily on the first allocation as
  max(existing)+1 and then incremented in memory only. It is never
  recomputed from disk, so IDs handed out in one process lifetime are
  unique even across removals.
*/
package library

// =============================================================================
// CATALOG
// =============================================================================

type Catalog struct {
	loans *TransactionStore

	resources []*Resource // insertion order
	byID      map[ResourceID]*Resource

	nextID      ResourceID
	nextIDReady bool
}

func NewCatalog(loans *TransactionStore) *Catalog {
	return &Catalog{loans: loans, byID: make(map[ResourceID]*Resource)}
}

// Loans exposes the transaction store the catalog resolves against.
func (c *Catalog) Loans() *TransactionStore { return c.loans }

// nextResourceID allocates lazily: first call seeds from the live maximum,
// later calls only increment.
func (c *Catalog) nextResourceID() ResourceID {
	if !c.nextIDReady {
		max := ResourceID(-1)
		for id := range c.byID {
			if id > max {
				max = id
			}
		}
		c.nextID = max + 1
		c.nextIDReady = true
	}
	id := c.nextID
	c.nextID++
	return id
}

// Add registers a new resource, assigning its ID.
func (c *Catalog) Add(r *Resource) *Resource {
	r.id = c.nextResourceID()
	c.resources = append(c.resources, r)
	c.byID[r.id] = r
	return r
}

// Restore admits a resource decoded from disk, preserving its ID and
// validating every loan reference its copies carry.
func (c *Catalog) Restore(r *Resource) error {
	if _, ok := c.byID[r.id]; ok {
		return ErrDuplicateID
	}
	for _, cp := range r.copies {
		if cp.current != nil {
			if _, ok := c.loans.Loan(*cp.current); !ok {
				return &UnresolvedLoanError{Loan: *cp.current, Resource: r.id, Copy: cp.id}
			}
		}
		for _, h := range cp.history {
			if _, ok := c.loans.Loan(h); !ok {
				return &UnresolvedLoanError{Loan: h, Resource: r.id, Copy: cp.id}
			}
		}
	}
	c.resources = append(c.resources, r)
	c.byID[r.id] = r
	if c.nextIDReady && r.id >= c.nextID {
		c.nextID = r.id + 1
	}
	return nil
}

// Remove drops the resource. IDs are never reassigned afterwards. A
// resource with a copy on loan cannot be removed.
func (c *Catalog) Remove(id ResourceID) error {
	r, ok := c.byID[id]
	if !ok {
		return ErrResourceNotFound
	}
	for _, cp := range r.copies {
		if cp.current != nil {
			return ErrLoanStillActive
		}
	}
	delete(c.byID, id)
	for i, existing := range c.resources {
		if existing.id == id {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			break
		}
	}
	return nil
}

// =============================================================================
// LOOKUP & SEARCH
// =============================================================================

// Resource resolves a ResourceID.
func (c *Catalog) Resource(id ResourceID) (*Resource, error) {
	r, ok := c.byID[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return r, nil
}

// CopyOf resolves a (resource, copy) pair.
func (c *Catalog) CopyOf(ref CopyRef) (*Copy, error) {
	r, err := c.Resource(ref.Resource)
	if err != nil {
		return nil, err
	}
	cp, ok := r.Copy(ref.Copy)
	if !ok {
		return nil, ErrCopyNotFound
	}
	return cp, nil
}

// Resources returns all resources in insertion order.
func (c *Catalog) Resources() []*Resource {
	out := make([]*Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Search returns every resource of a masked kind whose fields contain the
// query, compared case- and space-insensitively.
func (c *Catalog) Search(query string, mask KindMask) []*Resource {
	normalized := normalizeQuery(query)
	var out []*Resource
	for _, r := range c.resources {
		if !mask.Has(r.kind) {
			continue
		}
		if r.matches(normalized) {
			out = append(out, r)
		}
	}
	return out
}
