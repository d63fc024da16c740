/*
main.go - libctl: command-line front end for the circulation engine

PURPOSE:
  Loads the flat-file stores, runs one circulation operation, and
  rewrites the files. This is the reference consumer of the core API;
  any richer front end talks to the same engine the same way.

COMMANDS:
  init                bootstrap an empty data directory
  add-user            create a standard account
  add-book            create a book with copies
  add-copy            add a copy to an existing resource
  search              substring search over the catalog
  show                one resource with copies, queue and estimate
  issue               hand a copy to a user
  return              take a borrowed copy back
  request             queue a user for a resource
  cancel-request      drop a user's queue entry
  cancel-reservation  give up a reserved copy
  pay                 credit a user's account
  promote / revoke    librarian role transitions
  overdue             list copies past their due date
  archive             export a snapshot to a SQLite reporting database

FLAGS:
  --data  data directory holding the flat files (default: ./data)

EXAMPLES:
  libctl --data ./data init
  libctl add-book --title "Dune" --author "Frank Herbert" --copies 2
  libctl issue 0 0 jeff
  libctl return 0 0
  libctl archive --db ./data/archive.db
*/
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/flatfile"
	"github.com/warp/circulation-engine/library"
	"github.com/warp/circulation-engine/store/sqlite"
)

var dataDir string

func main() {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Circulation engine control tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "data directory holding the flat files")

	root.AddCommand(
		initCmd(),
		addUserCmd(),
		addBookCmd(),
		addCopyCmd(),
		searchCmd(),
		showCmd(),
		issueCmd(),
		returnCmd(),
		requestCmd(),
		cancelRequestCmd(),
		cancelReservationCmd(),
		payCmd(),
		promoteCmd(),
		revokeCmd(),
		overdueCmd(),
		archiveCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "libctl: %v\n", err)
		os.Exit(1)
	}
}

// load builds the engine from the flat files. Any load failure is fatal:
// partial stores would violate the cross-store invariants.
func load() (*circulation.Engine, *flatfile.Store, error) {
	store := flatfile.NewStore(dataDir)
	loans, catalog, accounts, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	return circulation.New(loans, catalog, accounts), store, nil
}

// save persists the engine's snapshot back to the flat files.
func save(engine *circulation.Engine, store *flatfile.Store) error {
	return store.Save(engine.Snapshot())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap an empty data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flatfile.NewStore(dataDir).Bootstrap()
		},
	}
}

func addUserCmd() *cobra.Command {
	var first, last, phone, email string
	cmd := &cobra.Command{
		Use:   "add-user <username>",
		Short: "Create a standard account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := load()
			if err != nil {
				return err
			}
			user := library.NewUser(library.Username(args[0]), library.Today())
			user.FirstName = first
			user.LastName = last
			user.Phone = phone
			user.Email = email
			if err := engine.AddUser(user); err != nil {
				return err
			}
			return save(engine, store)
		},
	}
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func addBookCmd() *cobra.Command {
	var title, author, publisher, genre, isbn, language string
	var year, copies, loanDays int
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Create a book with copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := load()
			if err != nil {
				return err
			}
			duration, err := library.LoanDurationFromDays(loanDays)
			if err != nil {
				return err
			}
			book := library.NewBook(title, "", year, duration, library.BookDetails{
				Author:    author,
				Publisher: publisher,
				Genre:     genre,
				ISBN:      isbn,
				Language:  language,
			})
			res, err := engine.AddResource(book, copies)
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			fmt.Printf("added book %d: %s\n", int(res.ID()), res.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&genre, "genre", "", "genre")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&language, "language", "", "language")
	cmd.Flags().IntVar(&year, "year", 0, "publication year")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies")
	cmd.Flags().IntVar(&loanDays, "loan-days", 14, "minimum loan duration in days (1, 7, 14 or 28)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func addCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-copy <resourceID>",
		Short: "Add a copy to an existing resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resourceID(args[0])
			if err != nil {
				return err
			}
			engine, store, err := load()
			if err != nil {
				return err
			}
			copyID, err := engine.AddCopy(id)
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			fmt.Printf("added copy %d to resource %d\n", int(copyID), int(id))
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Substring search over the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := load()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			mask := library.MaskAll
			if kind != "" {
				k, err := library.ParseKind(kind)
				if err != nil {
					return err
				}
				switch k {
				case library.KindBook:
					mask = library.MaskBook
				case library.KindDVD:
					mask = library.MaskDVD
				case library.KindLaptop:
					mask = library.MaskLaptop
				}
			}
			for _, res := range engine.SearchResources(query, mask) {
				fmt.Printf("%4d  %-7s  %s (%d)  available %d/%d\n",
					int(res.ID()), res.Kind(), res.Title, res.Year,
					res.AvailableCount(), len(res.Copies()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "restrict to one kind: book, dvd or laptop")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <resourceID>",
		Short: "Show one resource with copies, queue and estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resourceID(args[0])
			if err != nil {
				return err
			}
			engine, _, err := load()
			if err != nil {
				return err
			}
			res, err := engine.FindResource(id)
			if err != nil {
				return err
			}
			fmt.Printf("%s %d: %s (%d), min loan %d days, borrowed %d times\n",
				res.Kind(), int(res.ID()), res.Title, res.Year,
				res.MinLoan.Days(), engine.BorrowCount(id))
			for _, cp := range res.Copies() {
				state := "available"
				if !cp.Available() {
					state = "on loan"
					if due, ok := cp.DueDate(); ok {
						state += ", due " + due.String()
					}
				}
				fmt.Printf("  copy %d: %s\n", int(cp.ID()), state)
			}
			if queue := res.Queue(); len(queue) > 0 {
				fmt.Printf("  queue:")
				for _, u := range queue {
					fmt.Printf(" %s", u)
				}
				fmt.Println()
			}
			if when, err := engine.ExpectedAvailability(id); err == nil {
				fmt.Printf("  next expected availability: %s\n", when)
			}
			if avg := res.Review().Average(); !avg.Equal(library.NoRating) {
				fmt.Printf("  rating: %s/5\n", avg.StringFixed(1))
			}
			return nil
		},
	}
}

func issueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <resourceID> <copyID> <username>",
		Short: "Hand a copy to a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := copyRef(args[0], args[1])
			if err != nil {
				return err
			}
			engine, store, err := load()
			if err != nil {
				return err
			}
			loan, err := engine.Issue(library.Username(args[2]), ref)
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			cp, _ := engine.FindCopy(ref)
			if due, ok := cp.DueDate(); ok {
				fmt.Printf("loan %d issued, due %s\n", int(loan.ID), due)
			}
			return nil
		},
	}
}

func returnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <resourceID> <copyID>",
		Short: "Take a borrowed copy back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := copyRef(args[0], args[1])
			if err != nil {
				return err
			}
			engine, store, err := load()
			if err != nil {
				return err
			}
			outcome, err := engine.ReturnCopy(ref)
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			fmt.Printf("returned by %s\n", outcome.Loan.Username)
			if outcome.Fine != nil && outcome.Fine.Value.IsPositive() {
				fmt.Printf("fine: %s (%d days overdue)\n", outcome.Fine.Value, outcome.Fine.DaysOverdue)
			}
			if outcome.ReservedFor != nil {
				fmt.Printf("now reserved for %s\n", *outcome.ReservedFor)
			}
			return nil
		},
	}
}

func requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <resourceID> <username>",
		Short: "Queue a user for a resource",
		Args:  cobra.ExactArgs(2),
		RunE:  queueOp(func(e *circulation.Engine, id library.ResourceID, u library.Username) error { return e.Request(id, u) }),
	}
}

func cancelRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-request <resourceID> <username>",
		Short: "Drop a user's queue entry",
		Args:  cobra.ExactArgs(2),
		RunE:  queueOp(func(e *circulation.Engine, id library.ResourceID, u library.Username) error { return e.CancelRequest(id, u) }),
	}
}

func queueOp(op func(*circulation.Engine, library.ResourceID, library.Username) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(args[0])
		if err != nil {
			return err
		}
		engine, store, err := load()
		if err != nil {
			return err
		}
		if err := op(engine, id, library.Username(args[1])); err != nil {
			return err
		}
		return save(engine, store)
	}
}

func cancelReservationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-reservation <resourceID> <copyID>",
		Short: "Give up a reserved copy before pickup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := copyRef(args[0], args[1])
			if err != nil {
				return err
			}
			engine, store, err := load()
			if err != nil {
				return err
			}
			outcome, err := engine.CancelReservation(ref)
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			if outcome.Fine != nil && outcome.Fine.Value.IsPositive() {
				fmt.Printf("fine: %s\n", outcome.Fine.Value)
			}
			return nil
		},
	}
}

func payCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay <username> <amount>",
		Short: "Credit a user's account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			engine, store, err := load()
			if err != nil {
				return err
			}
			if _, err := engine.MakePayment(library.Username(args[0]), value); err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			fmt.Printf("balance: %s\n", engine.BalanceOf(library.Username(args[0])))
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Promote a user to librarian",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := load()
			if err != nil {
				return err
			}
			user, err := engine.PromoteToLibrarian(library.Username(args[0]))
			if err != nil {
				return err
			}
			if err := save(engine, store); err != nil {
				return err
			}
			if d, ok := user.Librarian(); ok {
				fmt.Printf("staff number %d\n", int(d.StaffNumber))
			}
			return nil
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username>",
		Short: "Revoke a user's librarian role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := load()
			if err != nil {
				return err
			}
			if _, err := engine.RevokeLibrarian(library.Username(args[0])); err != nil {
				return err
			}
			return save(engine, store)
		},
	}
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List copies past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := load()
			if err != nil {
				return err
			}
			for _, row := range engine.OverdueCopies() {
				fmt.Printf("resource %d copy %d: %s, due %s, %d days overdue\n",
					int(row.Ref.Resource), int(row.Ref.Copy), row.Username,
					row.DueDate, row.DaysOverdue)
			}
			return nil
		},
	}
}

func archiveCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export a snapshot to a SQLite reporting database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := load()
			if err != nil {
				return err
			}
			archive, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer archive.Close()
			return archive.Export(context.Background(), engine.Snapshot())
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./data/archive.db", "archive database path")
	return cmd
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func resourceID(s string) (library.ResourceID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid resource id %q", s)
	}
	return library.ResourceID(n), nil
}

func copyRef(res, cp string) (library.CopyRef, error) {
	id, err := resourceID(res)
	if err != nil {
		return library.CopyRef{}, err
	}
	n, err := strconv.Atoi(cp)
	if err != nil {
		return library.CopyRef{}, fmt.Errorf("invalid copy id %q", cp)
	}
	return library.CopyRef{Resource: id, Copy: library.CopyID(n)}, nil
}
