/*
Package library provides the core circulation records and stores.

PURPOSE:
  This package contains the domain records for a lending catalog and the
  three in-memory stores that own them. Resources (books, DVDs, laptops)
  hold copies; copies hold loan references; loans and the financial ledger
  are owned by the TransactionStore. Everything on disk is rebuilt from
  these stores by the flatfile package.

KEY CONCEPTS IN THIS FILE (types.go):
  - ResourceID / CopyID / LoanID / StaffNumber / Username: type-safe IDs
  - Kind: closed set of resource variants (Book, DVD, Laptop)
  - KindMask: bit set used to filter catalog searches
  - LoanDuration: minimum loan period, mapped to a fixed day count
  - ChargePolicy: per-kind overdue rate and cap

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float arithmetic
  2. Type Safety: IDs are distinct types so a CopyID can't stand in for a
     ResourceID at a call site
  3. Closed variants: Kind is matched exhaustively at every dispatch point
     (codec, charge lookup, search fields)

SEE ALSO:
  - resource.go: Resource and its copy list / request queue / review
  - transaction.go: Loan and FinancialTransaction records
  - ledger.go: TransactionStore, the owner of all loans and ledger entries
*/
package library

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ResourceID identifies a catalog entry. Monotonic, process-lifetime-unique,
// never reassigned even after removal.
type ResourceID int

// CopyID identifies a copy within its owning resource. Unique per resource,
// never reused after removal.
type CopyID int

// LoanID identifies a resource transaction. Monotonic across the whole
// TransactionStore, never reused.
type LoanID int

// StaffNumber identifies a librarian. Monotonic across the account store.
type StaffNumber int

// Username is the primary key for users. Chosen at creation, never changed.
type Username string

// CopyRef addresses a copy across stores by (resource, copy) pair.
// Users hold these instead of live pointers so reloads can't dangle.
type CopyRef struct {
	Resource ResourceID
	Copy     CopyID
}

// =============================================================================
// KIND - Closed set of resource variants
// =============================================================================

type Kind int

const (
	KindBook Kind = iota
	KindDVD
	KindLaptop
)

func (k Kind) String() string {
	switch k {
	case KindBook:
		return "book"
	case KindDVD:
		return "dvd"
	case KindLaptop:
		return "laptop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts the on-disk / CLI name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "book":
		return KindBook, nil
	case "dvd":
		return KindDVD, nil
	case "laptop":
		return KindLaptop, nil
	default:
		return 0, fmt.Errorf("unknown resource kind %q", s)
	}
}

// Kinds lists every variant, in declaration order.
func Kinds() []Kind { return []Kind{KindBook, KindDVD, KindLaptop} }

// =============================================================================
// KIND MASK - Search filter
// =============================================================================

type KindMask uint8

const (
	MaskBook KindMask = 1 << iota
	MaskDVD
	MaskLaptop

	MaskAll = MaskBook | MaskDVD | MaskLaptop
)

func (m KindMask) Has(k Kind) bool {
	switch k {
	case KindBook:
		return m&MaskBook != 0
	case KindDVD:
		return m&MaskDVD != 0
	case KindLaptop:
		return m&MaskLaptop != 0
	default:
		return false
	}
}

// =============================================================================
// LOAN DURATION - Minimum loan period
// =============================================================================

type LoanDuration int

const (
	OneDay LoanDuration = iota
	OneWeek
	TwoWeeks
	FourWeeks
)

// Days maps the duration to its fixed day count.
func (d LoanDuration) Days() int {
	switch d {
	case OneDay:
		return 1
	case OneWeek:
		return 7
	case TwoWeeks:
		return 14
	case FourWeeks:
		return 28
	default:
		return 0
	}
}

// LoanDurationFromDays is the inverse of Days, used by the codec.
func LoanDurationFromDays(n int) (LoanDuration, error) {
	switch n {
	case 1:
		return OneDay, nil
	case 7:
		return OneWeek, nil
	case 14:
		return TwoWeeks, nil
	case 28:
		return FourWeeks, nil
	default:
		return 0, fmt.Errorf("no loan duration maps to %d days", n)
	}
}

// =============================================================================
// CHARGE POLICY - Overdue rates per kind
// =============================================================================

// ChargePolicy is the per-kind overdue fine schedule: a daily rate and a cap
// the accumulated charge never exceeds.
type ChargePolicy struct {
	DailyRate decimal.Decimal
	MaxCharge decimal.Decimal
}

var (
	printChargePolicy  = ChargePolicy{DailyRate: decimal.NewFromInt(2), MaxCharge: decimal.NewFromInt(25)}
	laptopChargePolicy = ChargePolicy{DailyRate: decimal.NewFromInt(10), MaxCharge: decimal.NewFromInt(100)}
)

// Charges returns the overdue schedule for the kind. Laptops carry a steeper
// rate and cap than printed media.
func (k Kind) Charges() ChargePolicy {
	switch k {
	case KindLaptop:
		return laptopChargePolicy
	default:
		return printChargePolicy
	}
}

// OverdueCharge computes min(rate*days, cap) for the kind.
// Negative day counts are treated as zero.
func (k Kind) OverdueCharge(daysOverdue int) decimal.Decimal {
	if daysOverdue < 0 {
		daysOverdue = 0
	}
	p := k.Charges()
	charge := p.DailyRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
	if charge.GreaterThan(p.MaxCharge) {
		return p.MaxCharge
	}
	return charge
}
