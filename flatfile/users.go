package flatfile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// USERS FILE
// =============================================================================
//
// Each user occupies four lines:
//   header:    U|L username first last phone email addr1 addr2 town postcode
//              avatar creationDate balance [employmentDate staffNumber]
//   borrowed:  count (<resourceID> <copyID>)*count
//   reserved:  count (<resourceID> <copyID>)*count
//   requested: count <resourceID>*count
//
// The balance field is the derived ledger balance at write time; the
// loader discards it and recomputes from the ledger.

const (
	prefixStandard  = "U"
	prefixLibrarian = "L"
)

func encodeUser(s library.UserSnapshot) ([]string, error) {
	header := &record{}
	if s.Librarian != nil {
		header.add(prefixLibrarian)
	} else {
		header.add(prefixStandard)
	}
	header.add(string(s.Username)).
		add(s.FirstName).
		add(s.LastName).
		add(s.Phone).
		add(s.Email).
		add(s.Address1).
		add(s.Address2).
		add(s.Town).
		add(s.Postcode).
		add(s.Avatar).
		addDate(s.CreatedOn).
		addDecimal(s.Balance)
	if s.Librarian != nil {
		header.addDate(s.Librarian.EmploymentDate).addInt(int(s.Librarian.StaffNumber))
	}

	borrowed := &record{}
	borrowed.addInt(len(s.Borrowed))
	for _, ref := range s.Borrowed {
		borrowed.addInt(int(ref.Resource)).addInt(int(ref.Copy))
	}

	reserved := &record{}
	reserved.addInt(len(s.Reserved))
	for _, ref := range s.Reserved {
		reserved.addInt(int(ref.Resource)).addInt(int(ref.Copy))
	}

	requested := &record{}
	requested.addInt(len(s.Requested))
	for _, id := range s.Requested {
		requested.addInt(int(id))
	}

	lines := make([]string, 0, 4)
	for _, r := range []*record{header, borrowed, reserved, requested} {
		line, err := r.line()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func decodeRefList(f *fields) []library.CopyRef {
	var refs []library.CopyRef
	for n := f.Int(); n > 0 && f.err == nil; n-- {
		refs = append(refs, library.CopyRef{
			Resource: library.ResourceID(f.Int()),
			Copy:     library.CopyID(f.Int()),
		})
	}
	return refs
}

func decodeUser(header *fields, ls *lineSource) (library.UserSnapshot, error) {
	s := library.UserSnapshot{}
	prefix := header.String()
	s.Username = library.Username(header.String())
	s.FirstName = header.String()
	s.LastName = header.String()
	s.Phone = header.String()
	s.Email = header.String()
	s.Address1 = header.String()
	s.Address2 = header.String()
	s.Town = header.String()
	s.Postcode = header.String()
	s.Avatar = header.String()
	s.CreatedOn = header.Date()
	s.Balance = header.Decimal()

	switch prefix {
	case prefixStandard:
	case prefixLibrarian:
		s.Librarian = &library.LibrarianDetails{
			EmploymentDate: header.Date(),
			StaffNumber:    library.StaffNumber(header.Int()),
		}
	default:
		header.fail("unknown user prefix %q", prefix)
	}
	if err := header.finish(); err != nil {
		return s, err
	}

	bf, err := ls.mustNext("borrowed list")
	if err != nil {
		return s, err
	}
	s.Borrowed = decodeRefList(bf)
	if err := bf.finish(); err != nil {
		return s, err
	}

	rf, err := ls.mustNext("reserved list")
	if err != nil {
		return s, err
	}
	s.Reserved = decodeRefList(rf)
	if err := rf.finish(); err != nil {
		return s, err
	}

	qf, err := ls.mustNext("requested list")
	if err != nil {
		return s, err
	}
	for n := qf.Int(); n > 0 && qf.err == nil; n-- {
		s.Requested = append(s.Requested, library.ResourceID(qf.Int()))
	}
	if err := qf.finish(); err != nil {
		return s, err
	}

	return s, nil
}

func writeUsers(w io.Writer, snaps []library.UserSnapshot) error {
	bw := bufio.NewWriter(w)
	for _, s := range snaps {
		lines, err := encodeUser(s)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// readUsers decodes every user and restores it into the account store,
// validating cross-store references as it goes.
func readUsers(path string, r io.Reader, accounts *library.Accounts) error {
	ls := newLineSource(path, r)
	for {
		header, ok, err := ls.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		snap, err := decodeUser(header, ls)
		if err != nil {
			return err
		}
		if err := accounts.Restore(library.UserFromSnapshot(snap)); err != nil {
			return fmt.Errorf("%s: restoring user %s: %w", path, snap.Username, err)
		}
	}
}
