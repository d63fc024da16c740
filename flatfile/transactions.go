package flatfile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// TRANSACTIONS FILE
// =============================================================================
//
// One line per record:
//   R <id> <username> <copyID> <resourceID> <reserved> <date> <time> <return|null>
//   F F <username> <value> <date> <copyID> <resourceID> <daysOverdue>
//   F P <username> <value> <date>
//
// Financial entries are written first, then loans in chronological append
// order. Reading accepts the prefixes in any order.

const (
	prefixLoan      = "R"
	prefixFinancial = "F"
	prefixFine      = "F"
	prefixPayment   = "P"
)

func encodeLoan(l library.Loan) (string, error) {
	r := &record{}
	r.add(prefixLoan).
		addInt(int(l.ID)).
		add(string(l.Username)).
		addInt(int(l.CopyID)).
		addInt(int(l.ResourceID)).
		addBool(l.Reserved).
		add(l.StartedAt.DateString()).
		add(l.StartedAt.ClockString())
	if l.ReturnedAt == nil {
		r.add(nullField)
	} else {
		r.add(l.ReturnedAt.String())
	}
	return r.line()
}

func encodeFinancial(ft library.FinancialTransaction) (string, error) {
	r := &record{}
	r.add(prefixFinancial)
	switch ft.Kind {
	case library.FinFine:
		r.add(prefixFine).
			add(string(ft.Username)).
			addDecimal(ft.Value).
			addDate(ft.Date).
			addInt(int(ft.CopyID)).
			addInt(int(ft.ResourceID)).
			addInt(ft.DaysOverdue)
	case library.FinPayment:
		r.add(prefixPayment).
			add(string(ft.Username)).
			addDecimal(ft.Value).
			addDate(ft.Date)
	default:
		return "", fmt.Errorf("unknown financial kind %d", int(ft.Kind))
	}
	return r.line()
}

func decodeLoan(f *fields) (library.Loan, error) {
	l := library.Loan{
		ID:         library.LoanID(f.Int()),
		Username:   library.Username(f.String()),
		CopyID:     library.CopyID(f.Int()),
		ResourceID: library.ResourceID(f.Int()),
		Reserved:   f.Bool(),
	}
	date := f.String()
	clock := f.String()
	if f.err == nil {
		started, err := library.ParseDateTime(date, clock)
		if err != nil {
			f.fail("%v", err)
		}
		l.StartedAt = started
	}
	l.ReturnedAt = f.OptionalDateTime()
	return l, f.finish()
}

func decodeFinancial(f *fields) (library.FinancialTransaction, error) {
	kind := f.String()
	ft := library.FinancialTransaction{}
	switch kind {
	case prefixFine:
		ft.Kind = library.FinFine
		ft.Username = library.Username(f.String())
		ft.Value = f.Decimal()
		ft.Date = f.Date()
		ft.CopyID = library.CopyID(f.Int())
		ft.ResourceID = library.ResourceID(f.Int())
		ft.DaysOverdue = f.Int()
	case prefixPayment:
		ft.Kind = library.FinPayment
		ft.Username = library.Username(f.String())
		ft.Value = f.Decimal()
		ft.Date = f.Date()
	default:
		f.fail("unknown financial prefix %q", kind)
	}
	return ft, f.finish()
}

// writeTransactions emits the ledger first, then the loans.
func writeTransactions(w io.Writer, snap library.Snapshot) error {
	bw := bufio.NewWriter(w)
	for _, ft := range snap.Ledger {
		line, err := encodeFinancial(ft)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	for _, l := range snap.Loans {
		line, err := encodeLoan(l)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readTransactions populates a fresh TransactionStore.
func readTransactions(path string, r io.Reader) (*library.TransactionStore, error) {
	store := library.NewTransactionStore()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		f := splitLine(path, lineNo, line)
		switch prefix := f.String(); prefix {
		case prefixLoan:
			l, err := decodeLoan(f)
			if err != nil {
				return nil, err
			}
			if err := store.RestoreLoan(l); err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("loan %d: %v", l.ID, err)}
			}
		case prefixFinancial:
			ft, err := decodeFinancial(f)
			if err != nil {
				return nil, err
			}
			store.RestoreFinancial(ft)
		default:
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("unknown record prefix %q", prefix)}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return store, nil
}
