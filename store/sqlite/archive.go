/*
Package sqlite exports circulation snapshots into a SQLite database for
reporting.

PURPOSE:
  The flat files are the system of record; they are convenient for the
  stores but useless for ad-hoc reporting. The Archive mirrors a
  library.Snapshot into relational tables so popularity and debtor
  reports run as plain SQL.

KEY TABLES:
  loans        every resource transaction, open and closed
  ledger       every fine and payment
  resources    one row per catalog entry, kind-tagged
  copies       one row per copy with its current state
  users        one row per account with the derived balance

EXPORT SEMANTICS:
  Export replaces the whole mirror inside one SQL transaction: either
  the archive reflects the given snapshot completely or it is left as it
  was. The archive is never read back into the stores.

WAL MODE:
  The database is opened with WAL so report queries don't block a
  concurrent export.

USAGE:
  archive, err := sqlite.Open("./data/archive.db")
  ...
  err = archive.Export(ctx, engine.Snapshot())
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/circulation-engine/library"
)

// Archive mirrors snapshots into SQLite.
type Archive struct {
	db *sql.DB
}

// Open creates (or opens) the archive database and migrates its schema.
// Use ":memory:" for tests.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return a, nil
}

func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL,
		resource_id INTEGER NOT NULL,
		copy_id INTEGER NOT NULL,
		reserved INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		returned_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_loans_username ON loans(username);
	CREATE INDEX IF NOT EXISTS idx_loans_resource ON loans(resource_id);

	CREATE TABLE IF NOT EXISTS ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		username TEXT NOT NULL,
		value TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		resource_id INTEGER,
		copy_id INTEGER,
		days_overdue INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_username ON ledger(username);

	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		year INTEGER NOT NULL,
		min_loan_days INTEGER NOT NULL,
		queue_length INTEGER NOT NULL,
		avg_rating TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS copies (
		resource_id INTEGER NOT NULL,
		copy_id INTEGER NOT NULL,
		available INTEGER NOT NULL,
		due_date TEXT,
		current_loan INTEGER,
		PRIMARY KEY (resource_id, copy_id)
	);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		librarian INTEGER NOT NULL,
		staff_number INTEGER,
		created_on TEXT NOT NULL,
		balance TEXT NOT NULL
	);
	`
	_, err := a.db.Exec(schema)
	return err
}

// =============================================================================
// EXPORT
// =============================================================================

// Export replaces the mirror with the snapshot, atomically.
func (a *Archive) Export(ctx context.Context, snap library.Snapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"loans", "ledger", "resources", "copies", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, l := range snap.Loans {
		var returned any
		if l.ReturnedAt != nil {
			returned = l.ReturnedAt.String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO loans (id, username, resource_id, copy_id, reserved, started_at, returned_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int(l.ID), string(l.Username), int(l.ResourceID), int(l.CopyID),
			boolInt(l.Reserved), l.StartedAt.String(), returned); err != nil {
			return fmt.Errorf("failed to insert loan %d: %w", int(l.ID), err)
		}
	}

	for _, ft := range snap.Ledger {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger (kind, username, value, entry_date, resource_id, copy_id, days_overdue)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ft.Kind.String(), string(ft.Username), ft.Value.String(), ft.Date.String(),
			int(ft.ResourceID), int(ft.CopyID), ft.DaysOverdue); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}

	for _, rs := range snap.Resources {
		avg := library.NoRating
		if len(rs.Review) > 0 {
			sum := 0
			for _, e := range rs.Review {
				sum += e.Rating
			}
			avg = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(rs.Review))))
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resources (id, kind, title, year, min_loan_days, queue_length, avg_rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int(rs.ID), rs.Kind.String(), rs.Title, rs.Year, rs.MinLoan.Days(),
			len(rs.Queue), avg.String()); err != nil {
			return fmt.Errorf("failed to insert resource %d: %w", int(rs.ID), err)
		}
		for _, cs := range rs.Copies {
			var due, current any
			if cs.DueDate != nil {
				due = cs.DueDate.String()
			}
			if cs.CurrentLoan != nil {
				current = int(*cs.CurrentLoan)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO copies (resource_id, copy_id, available, due_date, current_loan)
				 VALUES (?, ?, ?, ?, ?)`,
				int(rs.ID), int(cs.ID), boolInt(cs.Available), due, current); err != nil {
				return fmt.Errorf("failed to insert copy %d/%d: %w", int(rs.ID), int(cs.ID), err)
			}
		}
	}

	for _, us := range snap.Users {
		var staff any
		if us.Librarian != nil {
			staff = int(us.Librarian.StaffNumber)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, first_name, last_name, librarian, staff_number, created_on, balance)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(us.Username), us.FirstName, us.LastName, boolInt(us.Librarian != nil),
			staff, us.CreatedOn.String(), us.Balance.String()); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", us.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// REPORTS
// =============================================================================

// PopularityRow is one row of the most-borrowed report.
type PopularityRow struct {
	ResourceID library.ResourceID
	Title      string
	Borrows    int
}

// MostBorrowed ranks resources by lifetime non-reserved loan count.
func (a *Archive) MostBorrowed(ctx context.Context, limit int) ([]PopularityRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT r.id, r.title, COUNT(l.id)
		 FROM resources r
		 LEFT JOIN loans l ON l.resource_id = r.id AND l.reserved = 0
		 GROUP BY r.id, r.title
		 ORDER BY COUNT(l.id) DESC, r.id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("popularity query failed: %w", err)
	}
	defer rows.Close()

	var out []PopularityRow
	for rows.Next() {
		var row PopularityRow
		var id int
		if err := rows.Scan(&id, &row.Title, &row.Borrows); err != nil {
			return nil, err
		}
		row.ResourceID = library.ResourceID(id)
		out = append(out, row)
	}
	return out, rows.Err()
}

// DebtorRow is one row of the outstanding-debt report.
type DebtorRow struct {
	Username library.Username
	Balance  decimal.Decimal
}

// Debtors lists users with a negative balance, most owed first.
func (a *Archive) Debtors(ctx context.Context) ([]DebtorRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT username, balance FROM users
		 WHERE CAST(balance AS REAL) < 0
		 ORDER BY CAST(balance AS REAL) ASC`)
	if err != nil {
		return nil, fmt.Errorf("debtor query failed: %w", err)
	}
	defer rows.Close()

	var out []DebtorRow
	for rows.Next() {
		var username, balance string
		if err := rows.Scan(&username, &balance); err != nil {
			return nil, err
		}
		b, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("bad balance %q for %s: %w", balance, username, err)
		}
		out = append(out, DebtorRow{Username: library.Username(username), Balance: b})
	}
	return out, rows.Err()
}
