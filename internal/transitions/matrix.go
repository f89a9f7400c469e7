package transitions

import (
	"fmt"
	"sort"
)

// Matrix is the crosstab view of a transition record set: one row per
// source category, one column per target category, with counts and
// row-wise percentages. Heatmap views render it directly.
type Matrix struct {
	SourceCategories []string    `json:"source_categories"`
	TargetCategories []string    `json:"target_categories"`
	Counts           [][]int     `json:"counts"`
	// RowPercentages normalizes each row to its own total, so every row
	// with at least one transition sums to 100.
	RowPercentages [][]float64 `json:"row_percentages"`
}

// BuildMatrix folds aggregated records into a crosstab. Category axes are
// sorted lexicographically on both dimensions.
func BuildMatrix(records []Record) (*Matrix, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to build a matrix from")
	}

	sourceSet := make(map[string]int)
	targetSet := make(map[string]int)
	for _, r := range records {
		sourceSet[r.Source] = 0
		targetSet[r.Target] = 0
	}

	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for i, s := range sources {
		sourceSet[s] = i
	}

	targets := make([]string, 0, len(targetSet))
	for t := range targetSet {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for i, t := range targets {
		targetSet[t] = i
	}

	counts := make([][]int, len(sources))
	for i := range counts {
		counts[i] = make([]int, len(targets))
	}
	for _, r := range records {
		counts[sourceSet[r.Source]][targetSet[r.Target]] += r.Count
	}

	percentages := make([][]float64, len(sources))
	for i, row := range counts {
		rowTotal := 0
		for _, c := range row {
			rowTotal += c
		}
		percentages[i] = make([]float64, len(targets))
		if rowTotal == 0 {
			continue
		}
		for j, c := range row {
			percentages[i][j] = 100 * float64(c) / float64(rowTotal)
		}
	}

	return &Matrix{
		SourceCategories: sources,
		TargetCategories: targets,
		Counts:           counts,
		RowPercentages:   percentages,
	}, nil
}

// CountAt returns the transition count from a source to a target category,
// zero when either category is absent from the matrix.
func (m *Matrix) CountAt(source, target string) int {
	si := index(m.SourceCategories, source)
	ti := index(m.TargetCategories, target)
	if si < 0 || ti < 0 {
		return 0
	}
	return m.Counts[si][ti]
}

func index(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
