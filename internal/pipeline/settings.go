package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Settings file names inside the settings directory. The layouts match
// what earlier tooling wrote, so existing data directories keep working.
const (
	ValueLabelsFile     = "value_labels.csv"
	MissingSettingsFile = "missing_value_settings.csv"
	DropSettingsFile    = "drop_value_settings.csv"
	MergeSettingsFile   = "value_merging_settings.csv"
	RowFilterFile       = "row_reduction_settings.csv"
)

// Missing value strategies.
const (
	StrategyDropMissing = "drop_missing"
	StrategyMarkUnknown = "mark_unknown"
	StrategyKeepMissing = "keep_nan"
)

// DefaultUnknownLabel fills missing cells under mark_unknown when the
// settings row gives no custom label.
const DefaultUnknownLabel = "Unknown"

// MissingRule says how to treat missing values in one column.
type MissingRule struct {
	Column   string
	Strategy string
	Label    string
}

// DropRule removes rows where a column holds a specific value.
type DropRule struct {
	Column string
	Value  string
}

// MergeRule folds one category value into another.
type MergeRule struct {
	Column string
	Source string
	Target string
}

// RowFilter keeps only rows whose column value is in Values.
type RowFilter struct {
	Column string
	Values []string
}

// settingsTable is a parsed settings CSV with its header located.
type settingsTable struct {
	path   string
	fields map[string]int
	rows   [][]string
}

// readSettings parses a settings file and checks the required columns
// are present. A missing file yields a nil table and no error, so an
// unconfigured concern is simply skipped.
func readSettings(path string, required ...string) (*settingsTable, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open settings %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	fields := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		fields[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := fields[col]; !ok {
			return nil, fmt.Errorf("settings %s: header must contain %s, got %v", path, col, rows[0])
		}
	}

	return &settingsTable{path: path, fields: fields, rows: rows[1:]}, nil
}

// value returns the trimmed cell for a named field, or "" when the
// field is absent or the row is short.
func (t *settingsTable) value(row []string, field string) string {
	idx, ok := t.fields[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// has reports whether the file carried the named column at all.
func (t *settingsTable) has(field string) bool {
	_, ok := t.fields[field]
	return ok
}

// LoadValueLabels reads value label mappings keyed by column, then by
// raw value. A missing file yields an empty map.
func LoadValueLabels(path string) (map[string]map[string]string, error) {
	table, err := readSettings(path, "variable_name", "value", "value_label")
	if err != nil {
		return nil, err
	}

	labels := make(map[string]map[string]string)
	if table == nil {
		return labels, nil
	}

	for _, row := range table.rows {
		column := table.value(row, "variable_name")
		if column == "" {
			continue
		}
		value := table.value(row, "value")
		label := table.value(row, "value_label")
		if labels[column] == nil {
			labels[column] = make(map[string]string)
		}
		labels[column][value] = label
	}
	return labels, nil
}

// LoadMissingRules reads missing value strategies, one per column. The
// impute strategy from older tooling is rejected loudly rather than
// silently skipped.
func LoadMissingRules(path string) ([]MissingRule, error) {
	table, err := readSettings(path, "column", "strategy")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, nil
	}

	rules := make([]MissingRule, 0, len(table.rows))
	for i, row := range table.rows {
		column := table.value(row, "column")
		if column == "" {
			continue
		}
		strategy := table.value(row, "strategy")
		label := table.value(row, "custom_label")

		switch strategy {
		case StrategyDropMissing, StrategyKeepMissing:
		case StrategyMarkUnknown:
			if label == "" {
				label = DefaultUnknownLabel
			}
		default:
			return nil, fmt.Errorf("settings %s row %d: unsupported missing value strategy %q for column %s", path, i+2, strategy, column)
		}

		rules = append(rules, MissingRule{Column: column, Strategy: strategy, Label: label})
	}
	return rules, nil
}

// LoadDropRules reads value drop rules. Each rule removes every row
// where the column equals the value.
func LoadDropRules(path string) ([]DropRule, error) {
	table, err := readSettings(path, "column", "value_to_drop")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, nil
	}

	rules := make([]DropRule, 0, len(table.rows))
	for _, row := range table.rows {
		column := table.value(row, "column")
		if column == "" {
			continue
		}
		rules = append(rules, DropRule{Column: column, Value: table.value(row, "value_to_drop")})
	}
	return rules, nil
}

// LoadMergeRules reads category merge rules in file order. Order
// matters: a chain like A to B then B to C lands everything on C.
func LoadMergeRules(path string) ([]MergeRule, error) {
	table, err := readSettings(path, "column_name", "source_value", "target_value")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, nil
	}

	rules := make([]MergeRule, 0, len(table.rows))
	for _, row := range table.rows {
		column := table.value(row, "column_name")
		if column == "" {
			continue
		}
		rules = append(rules, MergeRule{
			Column: column,
			Source: table.value(row, "source_value"),
			Target: table.value(row, "target_value"),
		})
	}
	return rules, nil
}

// LoadRowFilters reads row filters grouped by column in first-seen
// order. Rows for the same column accumulate into one allowed set.
func LoadRowFilters(path string) ([]RowFilter, error) {
	table, err := readSettings(path, "column", "value")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, nil
	}

	var filters []RowFilter
	index := make(map[string]int)
	for i, row := range table.rows {
		column := table.value(row, "column")
		if column == "" {
			continue
		}
		if table.has("action") {
			action := table.value(row, "action")
			if action != "" && action != "keep" {
				return nil, fmt.Errorf("settings %s row %d: unsupported action %q, only keep is supported", path, i+2, action)
			}
		}
		value := table.value(row, "value")
		pos, ok := index[column]
		if !ok {
			pos = len(filters)
			index[column] = pos
			filters = append(filters, RowFilter{Column: column})
		}
		filters[pos].Values = append(filters[pos].Values, value)
	}
	return filters, nil
}
