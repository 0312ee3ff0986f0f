package buttons

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record pairs a button with the secret the controller checks it against.
type Record struct {
	ID     ID
	Secret string
}

// AccessList is the authoritative mapping from button to secret.
type AccessList map[ID]string

// IDs returns the set of buttons on the list.
func (a AccessList) IDs() Set {
	s := make(Set, len(a))
	for id := range a {
		s.Add(id)
	}
	return s
}

// ListSource loads the authoritative list before each cycle.
type ListSource interface {
	Load() (AccessList, error)
}

// CSVSource reads the access list from a CSV file.
//
// Each row carries an "id:secret" field at Column. Lines starting with
// '#' are comments. Rows with a missing or malformed field are skipped and
// reported through OnSkip.
type CSVSource struct {
	Path   string
	Column int
	Comma  rune

	// OnSkip, when set, is called for every row that was not used.
	OnSkip func(line int, err error)
}

// Load reads and parses the file.
func (s CSVSource) Load() (AccessList, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening access list: %w", err)
	}
	defer f.Close()

	return ParseAccessList(f, s.Column, s.Comma, s.OnSkip)
}

// ParseAccessList parses CSV rows into an AccessList.
//
// IDs are normalized. When an ID appears twice, the later row wins.
//
// Returns:
//   - AccessList: every usable row
//   - error: only for unreadable input; bad rows are skipped, not fatal
func ParseAccessList(r io.Reader, column int, comma rune, onSkip func(line int, err error)) (AccessList, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	list := make(AccessList)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skip(onSkip, parseErr.Line, err)
				continue
			}
			return nil, fmt.Errorf("reading access list: %w", err)
		}

		rec, err := parseRecord(row, column)
		if err != nil {
			line, _ := reader.FieldPos(0)
			skip(onSkip, line, err)
			continue
		}
		list[rec.ID] = rec.Secret
	}

	return list, nil
}

// parseRecord extracts the "id:secret" field of one row.
func parseRecord(row []string, column int) (Record, error) {
	if column < 0 || column >= len(row) {
		return Record{}, fmt.Errorf("%w: row has %d fields, need column %d", ErrInvalidRecord, len(row), column)
	}

	id, secret, ok := strings.Cut(strings.TrimSpace(row[column]), ":")
	if !ok {
		return Record{}, fmt.Errorf("%w: field %q is not id:secret", ErrInvalidRecord, row[column])
	}

	return Record{ID: Normalize(id), Secret: strings.TrimSpace(secret)}, nil
}

func skip(onSkip func(int, error), line int, err error) {
	if onSkip != nil {
		onSkip(line, err)
	}
}
