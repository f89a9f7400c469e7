package dataset

import (
	"fmt"
	"strings"
)

// FilterStats records how many rows a filter kept. Unmatched lists the
// allowed values, in request order, that matched no row; with membership
// semantics those do not fail the filter, so callers wanting to surface a
// likely typo inspect this field.
type FilterStats struct {
	Before    int      `json:"before"`
	After     int      `json:"after"`
	Removed   int      `json:"removed"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// FilterRows returns a new table holding only the rows whose cell in the
// named column matches one of the allowed labels exactly. Set-membership
// semantics: the order of allowed does not matter, and missing cells never
// match. The receiver is not modified.
//
// Filtering fails rather than degrade silently: an unknown column and a
// filter that would remove every row both return a *FilterError. The
// zero-row error names the requested values the column never holds, since
// that is almost always the mistake that caused it.
func (t *Table) FilterRows(column string, allowed []string) (*Table, FilterStats, error) {
	stats := FilterStats{Before: len(t.rows)}

	col, ok := t.index[column]
	if !ok {
		cause := NewColumnNotFoundError(column, t.columns)
		return nil, stats, &FilterError{Column: column, Reason: cause.Error(), cause: cause}
	}
	if len(allowed) == 0 {
		return nil, stats, &FilterError{Column: column, Reason: "no allowed values given"}
	}

	keep := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		keep[v] = struct{}{}
	}

	matched := make(map[string]struct{}, len(allowed))
	filtered := t.emptyLike()
	for _, row := range t.rows {
		cell := row[col]
		if !cell.Valid {
			continue
		}
		if _, ok := keep[cell.Label]; ok {
			matched[cell.Label] = struct{}{}
			copied := make([]Value, len(row))
			copy(copied, row)
			filtered.rows = append(filtered.rows, copied)
		}
	}

	for _, v := range allowed {
		if _, ok := matched[v]; !ok {
			stats.Unmatched = append(stats.Unmatched, v)
		}
	}

	stats.After = len(filtered.rows)
	stats.Removed = stats.Before - stats.After
	if stats.After == 0 {
		return nil, stats, &FilterError{Column: column, Reason: t.emptyFilterReason(col, allowed)}
	}
	return filtered, stats, nil
}

// emptyFilterReason explains a filter that removed every row, pointing at
// requested values the column never holds.
func (t *Table) emptyFilterReason(col int, allowed []string) string {
	observedSet := make(map[string]struct{})
	var observed []string
	for _, row := range t.rows {
		cell := row[col]
		if !cell.Valid {
			continue
		}
		if _, dup := observedSet[cell.Label]; !dup {
			observedSet[cell.Label] = struct{}{}
			observed = append(observed, cell.Label)
		}
	}

	var absent []string
	for _, v := range allowed {
		if _, seen := observedSet[v]; !seen {
			absent = append(absent, v)
		}
	}

	if len(absent) > 0 {
		return fmt.Sprintf("no rows remain: requested values not present in data: %s (observed values: %s)",
			strings.Join(absent, ", "), strings.Join(observed, ", "))
	}
	return fmt.Sprintf("no rows remain after keeping %s", strings.Join(allowed, ", "))
}
