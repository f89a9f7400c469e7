package transitions

import "fmt"

// PatternType classifies a transition pattern.
type PatternType string

const (
	// PatternStable marks respondents who kept the same category.
	PatternStable PatternType = "Stable"
	// PatternChanged marks respondents who moved between categories.
	PatternChanged PatternType = "Changed"
)

// Pattern is one named transition pattern for the pattern-analysis report.
type Pattern struct {
	// Name renders the pattern as "source -> target".
	Name       string      `json:"name"`
	Source     string      `json:"source"`
	Target     string      `json:"target"`
	Type       PatternType `json:"type"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

// PatternSummary aggregates stability across a whole record set.
type PatternSummary struct {
	Patterns []Pattern `json:"patterns"`
	// Top holds the first topN patterns of the sorted sequence.
	Top []Pattern `json:"top"`

	StableCount       int     `json:"stable_count"`
	ChangedCount      int     `json:"changed_count"`
	StablePercentage  float64 `json:"stable_percentage"`
	ChangedPercentage float64 `json:"changed_percentage"`
}

// AnalyzePatterns classifies aggregated records into stable and changed
// patterns. Records are expected in aggregation order (count descending),
// which the pattern list and its top slice preserve. topN values outside
// 1..len(records) clamp to the full list.
func AnalyzePatterns(records []Record, topN int) PatternSummary {
	summary := PatternSummary{
		Patterns: make([]Pattern, 0, len(records)),
	}

	total := 0
	for _, r := range records {
		total += r.Count

		kind := PatternChanged
		if r.Source == r.Target {
			kind = PatternStable
			summary.StableCount += r.Count
		} else {
			summary.ChangedCount += r.Count
		}

		summary.Patterns = append(summary.Patterns, Pattern{
			Name:       fmt.Sprintf("%s -> %s", r.Source, r.Target),
			Source:     r.Source,
			Target:     r.Target,
			Type:       kind,
			Count:      r.Count,
			Percentage: r.Percentage,
		})
	}

	if total > 0 {
		summary.StablePercentage = 100 * float64(summary.StableCount) / float64(total)
		summary.ChangedPercentage = 100 * float64(summary.ChangedCount) / float64(total)
	}

	if topN <= 0 || topN > len(summary.Patterns) {
		topN = len(summary.Patterns)
	}
	summary.Top = make([]Pattern, topN)
	copy(summary.Top, summary.Patterns[:topN])

	return summary
}
