/*
Package flatfile persists the circulation stores as tab-delimited text.

PURPOSE:
  Implements the on-disk format: one primary line of scalar fields per
  record, followed by a fixed number of continuation lines for nested
  collections (copy lines, a review line, the user reference lists).
  Variable-length lists are length-prefixed on the same logical line, so
  no escaping is ever needed - which in turn forbids the tab character
  inside any field value. Encoding rejects values containing tabs.

  Optional values (due dates, current loan IDs, return stamps) are
  encoded as the literal string "null".

LOAD ORDER:
  Transactions load first, then resources (copy lines embed loan IDs that
  must resolve), then users (reference lists must resolve against the
  catalog). See store.go.

ERROR POLICY:
  A malformed line fails the whole store load. Records are never admitted
  with guessed or defaulted field values.

KEY HELPERS IN THIS FILE (codec.go):
  - record: field-by-field line writer, rejects embedded tabs
  - fields: field-by-field line reader with a sticky error, so decoders
    read positionally and check once at the end
*/
package flatfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/circulation-engine/library"
)

const (
	fieldSep  = "\t"
	nullField = "null"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMalformed marks any undecodable line. Wrapped by ParseError.
	ErrMalformed = errors.New("malformed record")

	// ErrMissingFile marks an absent backing file. Fatal: the caller must
	// not continue with a partial or empty store.
	ErrMissingFile = errors.New("backing file missing")
)

// ParseError pinpoints an undecodable line.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// =============================================================================
// RECORD WRITER
// =============================================================================

// record accumulates one tab-delimited line. The first embedded-tab or
// embedded-newline error sticks; line() reports it.
type record struct {
	fields []string
	err    error
}

func (r *record) add(s string) *record {
	if r.err == nil && strings.ContainsAny(s, "\t\n") {
		r.err = fmt.Errorf("field value %q contains a reserved character", s)
	}
	r.fields = append(r.fields, s)
	return r
}

func (r *record) addInt(n int) *record                 { return r.add(strconv.Itoa(n)) }
func (r *record) addBool(b bool) *record               { return r.add(strconv.FormatBool(b)) }
func (r *record) addDecimal(d decimal.Decimal) *record { return r.add(d.String()) }
func (r *record) addDate(d library.Date) *record       { return r.add(d.String()) }

func (r *record) addOptionalDate(d *library.Date) *record {
	if d == nil {
		return r.add(nullField)
	}
	return r.add(d.String())
}

func (r *record) addOptionalLoanID(id *library.LoanID) *record {
	if id == nil {
		return r.add(nullField)
	}
	return r.addInt(int(*id))
}

func (r *record) line() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return strings.Join(r.fields, fieldSep), nil
}

// =============================================================================
// FIELD READER
// =============================================================================

// fields walks one split line positionally. Errors stick: after the first
// failure every accessor returns a zero value, and finish() reports the
// error with file/line context.
type fields struct {
	path  string
	line  int
	parts []string
	next  int
	err   error
}

func splitLine(path string, lineNo int, line string) *fields {
	return &fields{path: path, line: lineNo, parts: strings.Split(line, fieldSep)}
}

func (f *fields) fail(format string, args ...any) {
	if f.err == nil {
		f.err = &ParseError{Path: f.path, Line: f.line, Msg: fmt.Sprintf(format, args...)}
	}
}

func (f *fields) String() string {
	if f.err != nil {
		return ""
	}
	if f.next >= len(f.parts) {
		f.fail("line has %d fields, need more", len(f.parts))
		return ""
	}
	s := f.parts[f.next]
	f.next++
	return s
}

func (f *fields) Int() int {
	s := f.String()
	if f.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f.fail("field %d: %q is not an integer", f.next, s)
		return 0
	}
	return n
}

func (f *fields) Bool() bool {
	s := f.String()
	if f.err != nil {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		f.fail("field %d: %q is not a boolean", f.next, s)
		return false
	}
	return b
}

func (f *fields) Decimal() decimal.Decimal {
	s := f.String()
	if f.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		f.fail("field %d: %q is not a decimal", f.next, s)
		return decimal.Zero
	}
	return d
}

func (f *fields) Date() library.Date {
	s := f.String()
	if f.err != nil {
		return library.Date{}
	}
	d, err := library.ParseDate(s)
	if err != nil {
		f.fail("field %d: %v", f.next, err)
		return library.Date{}
	}
	return d
}

// DateTime consumes a combined "date clock" field.
func (f *fields) DateTime() library.DateTime {
	s := f.String()
	if f.err != nil {
		return library.DateTime{}
	}
	date, clock, ok := strings.Cut(s, " ")
	if !ok {
		f.fail("field %d: %q is not a datetime", f.next, s)
		return library.DateTime{}
	}
	dt, err := library.ParseDateTime(date, clock)
	if err != nil {
		f.fail("field %d: %v", f.next, err)
		return library.DateTime{}
	}
	return dt
}

func (f *fields) OptionalDate() *library.Date {
	s := f.String()
	if f.err != nil || s == nullField {
		return nil
	}
	d, err := library.ParseDate(s)
	if err != nil {
		f.fail("field %d: %v", f.next, err)
		return nil
	}
	return &d
}

func (f *fields) OptionalLoanID() *library.LoanID {
	s := f.String()
	if f.err != nil || s == nullField {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f.fail("field %d: %q is not a loan id", f.next, s)
		return nil
	}
	id := library.LoanID(n)
	return &id
}

func (f *fields) OptionalDateTime() *library.DateTime {
	s := f.String()
	if f.err != nil || s == nullField {
		return nil
	}
	date, clock, ok := strings.Cut(s, " ")
	if !ok {
		f.fail("field %d: %q is not a datetime", f.next, s)
		return nil
	}
	dt, err := library.ParseDateTime(date, clock)
	if err != nil {
		f.fail("field %d: %v", f.next, err)
		return nil
	}
	return &dt
}

// finish verifies every field was consumed and returns the sticky error.
func (f *fields) finish() error {
	if f.err == nil && f.next != len(f.parts) {
		f.fail("line has %d fields, expected %d", len(f.parts), f.next)
	}
	return f.err
}
