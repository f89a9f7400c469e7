package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValueLabels(t *testing.T) {
	path := writeSettings(t, t.TempDir(), ValueLabelsFile,
		"variable_name,value,value_label\n"+
			"W1_mood,1,Happy\n"+
			"W1_mood,2,Sad\n"+
			"W2_status,1,Employed\n"+
			",9,Ignored\n")

	labels, err := LoadValueLabels(path)
	require.NoError(t, err)

	require.Len(t, labels, 2)
	assert.Equal(t, map[string]string{"1": "Happy", "2": "Sad"}, labels["W1_mood"])
	assert.Equal(t, map[string]string{"1": "Employed"}, labels["W2_status"])
}

func TestLoadValueLabels_MissingFile(t *testing.T) {
	labels, err := LoadValueLabels(filepath.Join(t.TempDir(), ValueLabelsFile))
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestLoadValueLabels_BadHeader(t *testing.T) {
	path := writeSettings(t, t.TempDir(), ValueLabelsFile, "column,code,text\nW1_mood,1,Happy\n")

	_, err := LoadValueLabels(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable_name")
}

func TestLoadMissingRules(t *testing.T) {
	path := writeSettings(t, t.TempDir(), MissingSettingsFile,
		"column,strategy,custom_label\n"+
			"W1_mood,mark_unknown,\n"+
			"W2_mood,mark_unknown,No Answer\n"+
			"W1_income,drop_missing,\n"+
			"W2_income,keep_nan,\n")

	rules, err := LoadMissingRules(path)
	require.NoError(t, err)

	require.Len(t, rules, 4)
	assert.Equal(t, MissingRule{Column: "W1_mood", Strategy: StrategyMarkUnknown, Label: DefaultUnknownLabel}, rules[0])
	assert.Equal(t, MissingRule{Column: "W2_mood", Strategy: StrategyMarkUnknown, Label: "No Answer"}, rules[1])
	assert.Equal(t, MissingRule{Column: "W1_income", Strategy: StrategyDropMissing}, rules[2])
	assert.Equal(t, MissingRule{Column: "W2_income", Strategy: StrategyKeepMissing}, rules[3])
}

func TestLoadMissingRules_UnsupportedStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
	}{
		{"impute from older tooling", "impute"},
		{"unknown strategy", "vanish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettings(t, t.TempDir(), MissingSettingsFile,
				"column,strategy,custom_label\nW1_mood,"+tt.strategy+",\n")

			_, err := LoadMissingRules(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "row 2")
			assert.Contains(t, err.Error(), tt.strategy)
		})
	}
}

func TestLoadDropRules(t *testing.T) {
	path := writeSettings(t, t.TempDir(), DropSettingsFile,
		"column,value_to_drop\n"+
			"W1_mood,Refused\n"+
			"region,Test Region\n")

	rules, err := LoadDropRules(path)
	require.NoError(t, err)

	assert.Equal(t, []DropRule{
		{Column: "W1_mood", Value: "Refused"},
		{Column: "region", Value: "Test Region"},
	}, rules)
}

func TestLoadMergeRules_KeepsFileOrder(t *testing.T) {
	path := writeSettings(t, t.TempDir(), MergeSettingsFile,
		"column_name,source_value,target_value\n"+
			"status,A,B\n"+
			"region,North,Upper\n"+
			"status,B,C\n")

	rules, err := LoadMergeRules(path)
	require.NoError(t, err)

	assert.Equal(t, []MergeRule{
		{Column: "status", Source: "A", Target: "B"},
		{Column: "region", Source: "North", Target: "Upper"},
		{Column: "status", Source: "B", Target: "C"},
	}, rules)
}

func TestLoadRowFilters_GroupsByColumn(t *testing.T) {
	path := writeSettings(t, t.TempDir(), RowFilterFile,
		"column,value,action\n"+
			"region,North,keep\n"+
			"status,Employed,keep\n"+
			"region,South,\n")

	filters, err := LoadRowFilters(path)
	require.NoError(t, err)

	require.Len(t, filters, 2)
	assert.Equal(t, RowFilter{Column: "region", Values: []string{"North", "South"}}, filters[0])
	assert.Equal(t, RowFilter{Column: "status", Values: []string{"Employed"}}, filters[1])
}

func TestLoadRowFilters_RejectsUnknownAction(t *testing.T) {
	path := writeSettings(t, t.TempDir(), RowFilterFile,
		"column,value,action\nregion,North,remove\n")

	_, err := LoadRowFilters(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "remove")
}

func TestLoadRowFilters_NoActionColumn(t *testing.T) {
	path := writeSettings(t, t.TempDir(), RowFilterFile,
		"column,value\nregion,North\n")

	filters, err := LoadRowFilters(path)
	require.NoError(t, err)
	assert.Equal(t, []RowFilter{{Column: "region", Values: []string{"North"}}}, filters)
}

func TestReadSettings_MissingFileAndEmptyFile(t *testing.T) {
	dir := t.TempDir()

	table, err := readSettings(filepath.Join(dir, "nope.csv"), "column")
	require.NoError(t, err)
	assert.Nil(t, table)

	empty := writeSettings(t, dir, "empty.csv", "")
	table, err = readSettings(empty, "column")
	require.NoError(t, err)
	assert.Nil(t, table)
}
