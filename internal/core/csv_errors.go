package core

import (
	"errors"
	"fmt"
)

// ErrInvalidHeader means the first row is not the journal export header.
// No data rows are examined when this is returned.
var ErrInvalidHeader = errors.New("invalid header: this file doesn't look like an Afterflow export")

// RowError reports the first data row that failed to decode. Import is
// all-or-nothing, so no records accompany it.
type RowError struct {
	Index  int    // position in the file, header is row 0
	Reason string // what failed, e.g. "expected 8 fields, got 7"
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid row %d: %s", e.Index, e.Reason)
}

// ParseError means the input could not be decoded as text at all.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse failure: " + e.Reason
}

// IsCSVError reports whether err belongs to the import taxonomy
// (invalid header, invalid row, parse failure).
func IsCSVError(err error) bool {
	var rowErr *RowError
	var parseErr *ParseError
	return errors.Is(err, ErrInvalidHeader) || errors.As(err, &rowErr) || errors.As(err, &parseErr)
}
