// Package trace reads and generates memory address traces.
//
// A trace is a CSV file with one address per row. The first row may be a
// header; if one of its columns is named Address(Hex), that column is used,
// otherwise the first column is. Plain text with one address per line is a
// valid trace as well. Lines starting with # are ignored.
package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// AddressColumn is the header of the column that holds addresses.
const AddressColumn = "Address(Hex)"

// An Entry is one address of a trace, as written in the file.
type Entry struct {
	// Line is the 1-based line of the entry in its source, or its position if
	// the entry was generated.
	Line int
	Raw  string
}

// Read returns the entries of a trace read from r. Reading happens while the
// sequence is consumed, so traces of any length can be processed. A read
// error is yielded once and ends the sequence.
func Read(r io.Reader) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		reader.Comment = '#'

		column := 0
		first := true

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(Entry{}, fmt.Errorf("reading trace: %w", err))
				return
			}

			line, _ := reader.FieldPos(0)

			if first {
				first = false

				if c, ok := headerColumn(record); ok {
					column = c
					continue
				}
			}

			if column >= len(record) {
				err := fmt.Errorf("reading trace: line %d has no column %d",
					line, column+1)
				yield(Entry{}, err)

				return
			}

			raw := strings.TrimSpace(record[column])
			if raw == "" {
				continue
			}

			if !yield(Entry{Line: line, Raw: raw}, nil) {
				return
			}
		}
	}
}

func headerColumn(record []string) (int, bool) {
	for i, field := range record {
		if strings.EqualFold(strings.TrimSpace(field), AddressColumn) {
			return i, true
		}
	}

	return 0, false
}

// Open returns the entries of the trace file at path. The file is opened each
// time the sequence is iterated and closed when the iteration stops, so the
// sequence can be shared by several runs.
func Open(path string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Entry{}, fmt.Errorf("opening trace: %w", err))
			return
		}
		defer f.Close()

		for e, err := range Read(f) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// FromSlice returns entries for the given addresses, numbered from 1.
func FromSlice(addresses []string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for i, a := range addresses {
			if !yield(Entry{Line: i + 1, Raw: a}, nil) {
				return
			}
		}
	}
}

// Collect reads a whole trace into memory.
func Collect(entries iter.Seq2[Entry, error]) ([]string, error) {
	var addresses []string

	for e, err := range entries {
		if err != nil {
			return addresses, err
		}

		addresses = append(addresses, e.Raw)
	}

	return addresses, nil
}
