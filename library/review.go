package library

import "github.com/shopspring/decimal"

// =============================================================================
// REVIEW - Per-resource rating aggregate
// =============================================================================

// NoRating is the sentinel average for a resource with no review elements.
var NoRating = decimal.NewFromInt(-1)

// ReviewElement is one posted rating: an integer 0-5, optional text, and
// the poster's username.
type ReviewElement struct {
	Rating int
	Text   string
	Poster Username
}

// Review aggregates the elements posted against one resource. At most one
// element per username.
type Review struct {
	elements []ReviewElement
}

func (rv *Review) add(e ReviewElement) error {
	if e.Rating < 0 || e.Rating > 5 {
		return ErrInvalidRating
	}
	for _, existing := range rv.elements {
		if existing.Poster == e.Poster {
			return ErrDuplicateReview
		}
	}
	rv.elements = append(rv.elements, e)
	return nil
}

func (rv Review) snapshot() Review {
	out := make([]ReviewElement, len(rv.elements))
	copy(out, rv.elements)
	return Review{elements: out}
}

// Elements returns the posted elements in posting order.
func (rv Review) Elements() []ReviewElement {
	out := make([]ReviewElement, len(rv.elements))
	copy(out, rv.elements)
	return out
}

func (rv Review) Len() int { return len(rv.elements) }

// Average returns the arithmetic mean of the element ratings, or NoRating
// when no elements exist.
func (rv Review) Average() decimal.Decimal {
	if len(rv.elements) == 0 {
		return NoRating
	}
	sum := 0
	for _, e := range rv.elements {
		sum += e.Rating
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(rv.elements))))
}
