/*
store.go - File-set orchestration: Bootstrap, Load, Save

PURPOSE:
  Owns the data directory layout and the cross-file load order. Every
  store loads fully or the whole Load fails; there is no partial-load
  mode, because the in-memory invariants assume all three stores resolve
  against each other.

FILES:
  transactions.tsv  loans + financial ledger (loads first)
  books.tsv / dvds.tsv / laptops.tsv  one resources file per kind
  users.tsv         user records
  staff_counter.tsv two lines: a label and the cached next staff number

SAVE SEMANTICS:
  Save takes a library.Snapshot (built under the engine's read lock) and
  rewrites every file. Each file is written to a temp sibling and renamed
  into place, so a failed write never truncates existing data. I/O errors
  are returned, never swallowed: a failed Save means disk and memory have
  diverged and the caller must retry or abort.
*/
package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/warp/circulation-engine/library"
)

const (
	transactionsFile = "transactions.tsv"
	usersFile        = "users.tsv"
	staffCounterFile = "staff_counter.tsv"

	staffCounterLabel = "next_staff_number"
)

func resourceFile(kind library.Kind) string {
	switch kind {
	case library.KindBook:
		return "books.tsv"
	case library.KindDVD:
		return "dvds.tsv"
	case library.KindLaptop:
		return "laptops.tsv"
	default:
		return fmt.Sprintf("resources_%d.tsv", int(kind))
	}
}

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// Bootstrap creates the data directory and an empty file set. Existing
// files are left untouched.
func (s *Store) Bootstrap() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	names := []string{transactionsFile, usersFile}
	for _, k := range library.Kinds() {
		names = append(names, resourceFile(k))
	}
	for _, name := range names {
		if err := touch(s.path(name)); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.path(staffCounterFile)); errors.Is(err, fs.ErrNotExist) {
		return s.writeStaffCounter(1)
	}
	return nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return f.Close()
}

// =============================================================================
// LOAD - transactions, then resources, then users
// =============================================================================

// Load reads the full file set and returns the three wired stores.
// A missing or undecodable file is fatal: no partial stores are returned.
func (s *Store) Load() (*library.TransactionStore, *library.Catalog, *library.Accounts, error) {
	loans, err := s.loadTransactions()
	if err != nil {
		return nil, nil, nil, err
	}

	catalog := library.NewCatalog(loans)
	for _, kind := range library.Kinds() {
		if err := s.loadResources(kind, catalog); err != nil {
			return nil, nil, nil, err
		}
	}

	accounts := library.NewAccounts(catalog)
	if err := s.loadUsers(accounts); err != nil {
		return nil, nil, nil, err
	}

	if next, ok, err := s.readStaffCounter(); err != nil {
		return nil, nil, nil, err
	} else if ok {
		accounts.SeedStaffCounter(next)
	}

	return loans, catalog, accounts, nil
}

func (s *Store) open(name string) (*os.File, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path(name), ErrMissingFile)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path(name), err)
	}
	return f, nil
}

func (s *Store) loadTransactions() (*library.TransactionStore, error) {
	f, err := s.open(transactionsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTransactions(s.path(transactionsFile), f)
}

func (s *Store) loadResources(kind library.Kind, catalog *library.Catalog) error {
	f, err := s.open(resourceFile(kind))
	if err != nil {
		return err
	}
	defer f.Close()
	return readResources(s.path(resourceFile(kind)), f, kind, catalog)
}

func (s *Store) loadUsers(accounts *library.Accounts) error {
	f, err := s.open(usersFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return readUsers(s.path(usersFile), f, accounts)
}

// =============================================================================
// SAVE - full rewrite from a snapshot
// =============================================================================

// Save rewrites the whole file set from the snapshot.
func (s *Store) Save(snap library.Snapshot) error {
	if err := s.writeFile(transactionsFile, func(f *os.File) error {
		return writeTransactions(f, snap)
	}); err != nil {
		return err
	}
	for _, kind := range library.Kinds() {
		k := kind
		if err := s.writeFile(resourceFile(k), func(f *os.File) error {
			return writeResources(f, k, snap.Resources)
		}); err != nil {
			return err
		}
	}
	if err := s.writeFile(usersFile, func(f *os.File) error {
		return writeUsers(f, snap.Users)
	}); err != nil {
		return err
	}
	return s.writeStaffCounter(snap.NextStaff)
}

// writeFile writes via a temp sibling and renames into place.
func (s *Store) writeFile(name string, write func(*os.File) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// STAFF COUNTER SIDE-FILE
// =============================================================================

// readStaffCounter returns (counter, present, error). An absent side-file
// is not an error: the account store recomputes from the live maximum.
func (s *Store) readStaffCounter() (library.StaffNumber, bool, error) {
	f, err := os.Open(s.path(staffCounterFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("opening %s: %w", s.path(staffCounterFile), err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() || sc.Text() != staffCounterLabel {
		return 0, false, &ParseError{Path: s.path(staffCounterFile), Line: 1, Msg: "missing counter label"}
	}
	if !sc.Scan() {
		return 0, false, &ParseError{Path: s.path(staffCounterFile), Line: 2, Msg: "missing counter value"}
	}
	n, err := strconv.Atoi(sc.Text())
	if err != nil {
		return 0, false, &ParseError{Path: s.path(staffCounterFile), Line: 2, Msg: fmt.Sprintf("%q is not an integer", sc.Text())}
	}
	return library.StaffNumber(n), true, nil
}

func (s *Store) writeStaffCounter(next library.StaffNumber) error {
	return s.writeFile(staffCounterFile, func(f *os.File) error {
		_, err := fmt.Fprintf(f, "%s\n%d\n", staffCounterLabel, int(next))
		return err
	})
}
