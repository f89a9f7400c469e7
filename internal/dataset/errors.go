package dataset

import (
	"fmt"
	"strings"
)

// maxListedColumns caps how many available columns an error message spells
// out before collapsing the rest into a count.
const maxListedColumns = 5

// ColumnNotFoundError reports a reference to a column the table does not
// have. Suggestions holds near-matches by substring, most useful when the
// caller mistyped a wave prefix.
type ColumnNotFoundError struct {
	Column      string
	Available   []string
	Suggestions []string
}

// NewColumnNotFoundError builds the error and computes suggestions from
// the available columns.
func NewColumnNotFoundError(column string, available []string) *ColumnNotFoundError {
	cols := make([]string, len(available))
	copy(cols, available)
	return &ColumnNotFoundError{
		Column:      column,
		Available:   cols,
		Suggestions: similarColumns(column, cols),
	}
}

// Error implements the error interface.
func (e *ColumnNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column %q not found in dataset", e.Column)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, ". Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	if len(e.Available) > 0 {
		listed := e.Available
		extra := 0
		if len(listed) > maxListedColumns {
			extra = len(listed) - maxListedColumns
			listed = listed[:maxListedColumns]
		}
		fmt.Fprintf(&b, " Available columns: %s", strings.Join(listed, ", "))
		if extra > 0 {
			fmt.Fprintf(&b, " and %d more", extra)
		}
	}
	return b.String()
}

// similarColumns finds candidates that contain the requested name or are
// contained by it, ignoring case. Catches the common mistakes: a bare
// variable without its wave prefix, or the wrong wave's prefix.
func similarColumns(column string, available []string) []string {
	needle := strings.ToLower(column)
	if needle == "" {
		return nil
	}
	var matches []string
	for _, col := range available {
		hay := strings.ToLower(col)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			matches = append(matches, col)
		}
		if len(matches) == maxListedColumns {
			break
		}
	}
	return matches
}

// FilterError reports a row filter that could not be applied or that would
// leave nothing to analyze.
type FilterError struct {
	Column string
	Reason string

	cause error
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("filter on column %q: %s", e.Column, e.Reason)
}

// Unwrap exposes the underlying cause, if any.
func (e *FilterError) Unwrap() error {
	return e.cause
}
