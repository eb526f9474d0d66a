// Package catalog bulk-loads books from a CSV file with the columns
// isbn, title, author, year and a header row.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayush/bookreview/internal/models"
)

// BookWriter inserts a batch of books atomically and reports how many were
// new.
type BookWriter interface {
	InsertBooks(ctx context.Context, books []models.Book, onInsert func(models.Book)) (int, error)
}

// Result summarizes one import.
type Result struct {
	Read     int
	Inserted int
	Skipped  int
}

type Loader struct {
	books BookWriter
}

func NewLoader(books BookWriter) *Loader {
	return &Loader{books: books}
}

// Load parses the whole file first so a malformed row aborts the import
// before anything is written. With dryRun nothing is written at all.
func (l *Loader) Load(ctx context.Context, r io.Reader, dryRun bool) (Result, error) {
	books, err := ReadCSV(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Read: len(books)}
	if dryRun {
		return res, nil
	}

	inserted, err := l.books.InsertBooks(ctx, books, func(b models.Book) {
		log.Info().
			Str("isbn", b.ISBN).
			Str("title", b.Title).
			Str("author", b.Author).
			Int("year", b.Year).
			Msg("added")
	})
	if err != nil {
		return Result{}, err
	}
	res.Inserted = inserted
	res.Skipped = res.Read - inserted
	return res, nil
}

// ReadCSV returns every data row of the file, skipping the header.
func ReadCSV(r io.Reader) ([]models.Book, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog: empty file")
		}
		return nil, fmt.Errorf("catalog: header: %w", err)
	}

	var books []models.Book
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		line, _ := cr.FieldPos(0)

		year, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("catalog: line %d: year %q is not a number", line, rec[3])
		}
		books = append(books, models.Book{
			ISBN:   strings.TrimSpace(rec[0]),
			Title:  rec[1],
			Author: rec[2],
			Year:   year,
		})
	}
	return books, nil
}
