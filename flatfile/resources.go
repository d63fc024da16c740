package flatfile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/warp/circulation-engine/library"
)

// =============================================================================
// RESOURCES FILES - one file per kind
// =============================================================================
//
// Each resource occupies:
//   header:   thumbnail ID title year minLoanDays nextCopyID <kind fields>
//             copyCount queueLen <queue usernames...>
//   copies:   copyCount lines of
//             copyID available dueDate|null loanID|null historyLen <ids...>
//   review:   count (<rating> <text> <poster>)*count
//
// Kind-specific header fields:
//   book:   author publisher genre isbn language
//   dvd:    director language runtime subtitleCount <subtitles...>
//   laptop: manufacturer model os

func encodeResource(s library.ResourceSnapshot) ([]string, error) {
	header := &record{}
	header.add(s.Thumbnail).
		addInt(int(s.ID)).
		add(s.Title).
		addInt(s.Year).
		addInt(s.MinLoan.Days()).
		addInt(int(s.NextCopyID))

	switch s.Kind {
	case library.KindBook:
		b := s.Book
		header.add(b.Author).add(b.Publisher).add(b.Genre).add(b.ISBN).add(b.Language)
	case library.KindDVD:
		d := s.DVD
		header.add(d.Director).add(d.Language).addInt(d.RuntimeMinutes).addInt(len(d.Subtitles))
		for _, sub := range d.Subtitles {
			header.add(sub)
		}
	case library.KindLaptop:
		l := s.Laptop
		header.add(l.Manufacturer).add(l.Model).add(l.OS)
	default:
		return nil, fmt.Errorf("resource %d: unknown kind %d", s.ID, int(s.Kind))
	}

	header.addInt(len(s.Copies)).addInt(len(s.Queue))
	for _, u := range s.Queue {
		header.add(string(u))
	}

	lines := make([]string, 0, len(s.Copies)+2)
	line, err := header.line()
	if err != nil {
		return nil, err
	}
	lines = append(lines, line)

	for _, cs := range s.Copies {
		cr := &record{}
		cr.addInt(int(cs.ID)).
			addBool(cs.Available).
			addOptionalDate(cs.DueDate).
			addOptionalLoanID(cs.CurrentLoan).
			addInt(len(cs.History))
		for _, h := range cs.History {
			cr.addInt(int(h))
		}
		line, err := cr.line()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	rr := &record{}
	rr.addInt(len(s.Review))
	for _, e := range s.Review {
		rr.addInt(e.Rating).add(e.Text).add(string(e.Poster))
	}
	line, err = rr.line()
	if err != nil {
		return nil, err
	}
	lines = append(lines, line)

	return lines, nil
}

// lineSource feeds physical lines to the multi-line resource and user
// decoders, tracking line numbers for error context.
type lineSource struct {
	path string
	sc   *bufio.Scanner
	line int
}

func newLineSource(path string, r io.Reader) *lineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &lineSource{path: path, sc: sc}
}

// next returns the next non-empty line, or ok=false at EOF.
func (ls *lineSource) next() (*fields, bool, error) {
	for ls.sc.Scan() {
		ls.line++
		if ls.sc.Text() == "" {
			continue
		}
		return splitLine(ls.path, ls.line, ls.sc.Text()), true, nil
	}
	if err := ls.sc.Err(); err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", ls.path, err)
	}
	return nil, false, nil
}

// mustNext returns the next line or a truncation error.
func (ls *lineSource) mustNext(what string) (*fields, error) {
	f, ok, err := ls.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ParseError{Path: ls.path, Line: ls.line, Msg: "unexpected end of file, expected " + what}
	}
	return f, nil
}

func decodeResource(kind library.Kind, header *fields, ls *lineSource) (library.ResourceSnapshot, error) {
	s := library.ResourceSnapshot{Kind: kind}
	s.Thumbnail = header.String()
	s.ID = library.ResourceID(header.Int())
	s.Title = header.String()
	s.Year = header.Int()
	if days := header.Int(); header.err == nil {
		d, err := library.LoanDurationFromDays(days)
		if err != nil {
			header.fail("%v", err)
		}
		s.MinLoan = d
	}
	s.NextCopyID = library.CopyID(header.Int())

	switch kind {
	case library.KindBook:
		s.Book = &library.BookDetails{
			Author:    header.String(),
			Publisher: header.String(),
			Genre:     header.String(),
			ISBN:      header.String(),
			Language:  header.String(),
		}
	case library.KindDVD:
		d := &library.DVDDetails{
			Director: header.String(),
			Language: header.String(),
		}
		d.RuntimeMinutes = header.Int()
		for n := header.Int(); n > 0 && header.err == nil; n-- {
			d.Subtitles = append(d.Subtitles, header.String())
		}
		s.DVD = d
	case library.KindLaptop:
		s.Laptop = &library.LaptopDetails{
			Manufacturer: header.String(),
			Model:        header.String(),
			OS:           header.String(),
		}
	}

	copyCount := header.Int()
	queueLen := header.Int()
	for i := 0; i < queueLen && header.err == nil; i++ {
		s.Queue = append(s.Queue, library.Username(header.String()))
	}
	if err := header.finish(); err != nil {
		return s, err
	}

	for i := 0; i < copyCount; i++ {
		cf, err := ls.mustNext("copy line")
		if err != nil {
			return s, err
		}
		cs := library.CopySnapshot{
			ID:          library.CopyID(cf.Int()),
			Available:   cf.Bool(),
			DueDate:     cf.OptionalDate(),
			CurrentLoan: cf.OptionalLoanID(),
		}
		for n := cf.Int(); n > 0 && cf.err == nil; n-- {
			cs.History = append(cs.History, library.LoanID(cf.Int()))
		}
		if err := cf.finish(); err != nil {
			return s, err
		}
		s.Copies = append(s.Copies, cs)
	}

	rf, err := ls.mustNext("review line")
	if err != nil {
		return s, err
	}
	for n := rf.Int(); n > 0 && rf.err == nil; n-- {
		s.Review = append(s.Review, library.ReviewElement{
			Rating: rf.Int(),
			Text:   rf.String(),
			Poster: library.Username(rf.String()),
		})
	}
	if err := rf.finish(); err != nil {
		return s, err
	}

	return s, nil
}

// writeResources emits every snapshot of the kind to w.
func writeResources(w io.Writer, kind library.Kind, snaps []library.ResourceSnapshot) error {
	bw := bufio.NewWriter(w)
	for _, s := range snaps {
		if s.Kind != kind {
			continue
		}
		lines, err := encodeResource(s)
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

// readResources decodes every resource in the kind's file and restores it
// into the catalog, resolving loan references as it goes.
func readResources(path string, r io.Reader, kind library.Kind, catalog *library.Catalog) error {
	ls := newLineSource(path, r)
	for {
		header, ok, err := ls.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		snap, err := decodeResource(kind, header, ls)
		if err != nil {
			return err
		}
		res, err := library.ResourceFromSnapshot(snap)
		if err != nil {
			return &ParseError{Path: path, Line: ls.line, Msg: err.Error()}
		}
		if err := catalog.Restore(res); err != nil {
			return fmt.Errorf("%s: restoring resource %d: %w", path, snap.ID, err)
		}
	}
}
