package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/dataset"
)

func buildTable(t *testing.T, columns []string, rows ...[]dataset.Value) *dataset.Table {
	t.Helper()
	table, err := dataset.NewTable(columns)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, table.AppendRow(row))
	}
	return table
}

func stateWithTable(table *dataset.Table) *RunState {
	state := NewRunState("run-test")
	state.SetContext(ContextKeyTable, table)
	return state
}

func cellValue(t *testing.T, table *dataset.Table, row int, column string) dataset.Value {
	t.Helper()
	cell, err := table.Cell(row, column)
	require.NoError(t, err)
	return cell
}

func TestLoadStep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,W1_mood\n1,Happy\n2,Sad\n"), 0644))

	step := NewLoadStep(nil, StepOptions{})
	state := NewRunState("run-test")
	state.SetConfig(ConfigKeyDatasetPath, path)
	state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))

	require.NoError(t, step.Validate(state))
	require.NoError(t, step.Execute(context.Background(), state))

	table, err := tableFromState(state)
	require.NoError(t, err)
	assert.Equal(t, 2, table.RowCount())

	loaded, ok := state.GetContext(ContextKeyRowsLoaded)
	require.True(t, ok)
	assert.Equal(t, 2, loaded)
}

func TestLoadStep_Validate(t *testing.T) {
	step := NewLoadStep(nil, StepOptions{})
	err := step.Validate(NewRunState("run-test"))
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ErrorKindValidation, runErr.Kind)
}

func TestLoadStep_MissingFile(t *testing.T) {
	step := NewLoadStep(nil, StepOptions{})
	state := NewRunState("run-test")
	state.SetConfig(ConfigKeyDatasetPath, filepath.Join(t.TempDir(), "nope.csv"))

	err := step.Execute(context.Background(), state)
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ErrorKindExecution, runErr.Kind)
	assert.False(t, runErr.Retryable)
}

func TestLabelStep(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, ValueLabelsFile,
		"variable_name,value,value_label\n"+
			"W1_mood,1,Happy\n"+
			"W1_mood,2,Sad\n"+
			"W2_mood,1,1\n"+
			"ghost,1,Boo\n")

	table := buildTable(t, []string{"id", "W1_mood", "W2_mood"},
		[]dataset.Value{dataset.String("1"), dataset.String("1"), dataset.String("1")},
		[]dataset.Value{dataset.String("2"), dataset.String("2"), dataset.String("1")},
		[]dataset.Value{dataset.String("3"), dataset.String("9"), dataset.Missing},
		[]dataset.Value{dataset.String("4"), dataset.Missing, dataset.String("1")},
	)
	state := stateWithTable(table)

	step := NewLabelStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)

	// W1_mood gains a labeled companion; unmapped code 9 passes through
	// and missing stays missing.
	require.True(t, result.HasColumn("W1_mood_labeled"))
	assert.Equal(t, "Happy", cellValue(t, result, 0, "W1_mood_labeled").Label)
	assert.Equal(t, "Sad", cellValue(t, result, 1, "W1_mood_labeled").Label)
	assert.Equal(t, "9", cellValue(t, result, 2, "W1_mood_labeled").Label)
	assert.False(t, cellValue(t, result, 3, "W1_mood_labeled").Valid)

	// W2_mood maps 1 to 1, so nothing changes and no column is added.
	assert.False(t, result.HasColumn("W2_mood_labeled"))

	// The raw column is untouched.
	assert.Equal(t, "1", cellValue(t, result, 0, "W1_mood").Label)
}

func TestLabelStep_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, ValueLabelsFile,
		"variable_name,value,value_label\nW1_mood,1,Happy\n")

	table := buildTable(t, []string{"W1_mood", "W1_mood_labeled"},
		[]dataset.Value{dataset.String("1"), dataset.String("Happy")},
	)
	state := stateWithTable(table)

	step := NewLabelStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ColumnCount())
}

func TestLabelStep_NoSettings(t *testing.T) {
	table := buildTable(t, []string{"id"}, []dataset.Value{dataset.String("1")})
	state := stateWithTable(table)

	step := NewLabelStep(t.TempDir(), nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ColumnCount())
}

func TestMissingStep(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, MissingSettingsFile,
		"column,strategy,custom_label\n"+
			"W1_mood,mark_unknown,\n"+
			"W2_mood,drop_missing,\n"+
			"ghost,mark_unknown,Spooky\n")
	writeSettings(t, dir, DropSettingsFile,
		"column,value_to_drop\nW1_mood,Garbage\n")

	table := buildTable(t, []string{"id", "W1_mood", "W2_mood"},
		[]dataset.Value{dataset.String("1"), dataset.String("Happy"), dataset.String("Ok")},
		[]dataset.Value{dataset.String("2"), dataset.Missing, dataset.String("Ok")},
		[]dataset.Value{dataset.String("3"), dataset.String("Happy"), dataset.Missing},
		[]dataset.Value{dataset.String("4"), dataset.String("Garbage"), dataset.String("Ok")},
	)
	state := stateWithTable(table)
	state.SetStep(StepIDMissing, NewStepState(StepIDMissing, StepNameMissing))

	step := NewMissingStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)

	// Row 3 dropped for missing W2_mood, row 4 dropped by the value drop
	// rule, row 2 marked Unknown.
	require.Equal(t, 2, result.RowCount())
	assert.Equal(t, "Happy", cellValue(t, result, 0, "W1_mood").Label)
	assert.Equal(t, DefaultUnknownLabel, cellValue(t, result, 1, "W1_mood").Label)

	dropped, ok := state.GetContext(ContextKeyRowsDropped)
	require.True(t, ok)
	assert.Equal(t, 2, dropped)
}

func TestMissingStep_KeepMissing(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, MissingSettingsFile,
		"column,strategy,custom_label\nW1_mood,keep_nan,\n")

	table := buildTable(t, []string{"W1_mood"},
		[]dataset.Value{dataset.Missing},
		[]dataset.Value{dataset.String("Happy")},
	)
	state := stateWithTable(table)

	step := NewMissingStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount())
	assert.False(t, cellValue(t, result, 0, "W1_mood").Valid)
}

func TestMergeStep(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, MergeSettingsFile,
		"column_name,source_value,target_value\n"+
			"status,A,B\n"+
			"status,B,C\n"+
			"ghost,X,Y\n")

	table := buildTable(t, []string{"id", "status", "status_labeled"},
		[]dataset.Value{dataset.String("1"), dataset.String("A"), dataset.String("Alpha")},
		[]dataset.Value{dataset.String("2"), dataset.String("B"), dataset.String("Beta")},
		[]dataset.Value{dataset.String("3"), dataset.String("X"), dataset.String("Xray")},
		[]dataset.Value{dataset.String("4"), dataset.Missing, dataset.Missing},
	)
	state := stateWithTable(table)

	step := NewMergeStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)

	// Chained rules land A on C via B; untouched values pass through.
	require.True(t, result.HasColumn("status_merged"))
	assert.Equal(t, "C", cellValue(t, result, 0, "status_merged").Label)
	assert.Equal(t, "C", cellValue(t, result, 1, "status_merged").Label)
	assert.Equal(t, "X", cellValue(t, result, 2, "status_merged").Label)
	assert.False(t, cellValue(t, result, 3, "status_merged").Valid)

	// The labeled companion gets its own merged column.
	require.True(t, result.HasColumn("status_labeled_merged"))
	assert.Equal(t, "Alpha", cellValue(t, result, 0, "status_labeled_merged").Label)
}

func TestFilterStep(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, RowFilterFile,
		"column,value,action\n"+
			"region,North,keep\n"+
			"region,South,keep\n")

	table := buildTable(t, []string{"id", "region"},
		[]dataset.Value{dataset.String("1"), dataset.String("North")},
		[]dataset.Value{dataset.String("2"), dataset.String("South")},
		[]dataset.Value{dataset.String("3"), dataset.String("East")},
	)
	state := stateWithTable(table)
	state.SetStep(StepIDFilter, NewStepState(StepIDFilter, StepNameFilter))

	step := NewFilterStep(dir, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	result, err := tableFromState(state)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount())

	dropped, ok := state.GetContext(ContextKeyRowsDropped)
	require.True(t, ok)
	assert.Equal(t, 1, dropped)
}

func TestFilterStep_AllRowsRemoved(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, RowFilterFile,
		"column,value,action\nregion,Nowhere,keep\n")

	table := buildTable(t, []string{"region"},
		[]dataset.Value{dataset.String("North")},
	)
	state := stateWithTable(table)

	step := NewFilterStep(dir, nil, StepOptions{})
	err := step.Execute(context.Background(), state)
	require.Error(t, err)

	var filterErr *dataset.FilterError
	assert.True(t, errors.As(err, &filterErr))
}

func TestFilterStep_UnknownColumn(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, RowFilterFile,
		"column,value,action\nghost,North,keep\n")

	table := buildTable(t, []string{"region"},
		[]dataset.Value{dataset.String("North")},
	)
	state := stateWithTable(table)

	step := NewFilterStep(dir, nil, StepOptions{})
	err := step.Execute(context.Background(), state)
	require.Error(t, err)

	var filterErr *dataset.FilterError
	assert.True(t, errors.As(err, &filterErr))
}

func TestSaveStep(t *testing.T) {
	table := buildTable(t, []string{"id", "region"},
		[]dataset.Value{dataset.String("1"), dataset.String("North")},
		[]dataset.Value{dataset.String("2"), dataset.Missing},
	)
	state := stateWithTable(table)
	path := filepath.Join(t.TempDir(), "processed", "processed_data.csv")
	state.SetConfig(ConfigKeyOutputPath, path)

	step := NewSaveStep("", nil, StepOptions{})
	require.NoError(t, step.Validate(state))
	require.NoError(t, step.Execute(context.Background(), state))

	written, ok := state.GetContext(ContextKeyOutputFile)
	require.True(t, ok)
	assert.Equal(t, path, written)

	loaded, err := dataset.LoadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.RowCount())
	assert.False(t, cellValue(t, loaded, 1, "region").Valid)
}

func TestSaveStep_DefaultOutput(t *testing.T) {
	table := buildTable(t, []string{"id"}, []dataset.Value{dataset.String("1")})
	state := stateWithTable(table)

	fallback := filepath.Join(t.TempDir(), "processed_data.csv")
	step := NewSaveStep(fallback, nil, StepOptions{})
	require.NoError(t, step.Execute(context.Background(), state))

	_, err := os.Stat(fallback)
	assert.NoError(t, err)
}

func TestSaveStep_Validate(t *testing.T) {
	step := NewSaveStep("", nil, StepOptions{})

	err := step.Validate(NewRunState("run-test"))
	require.Error(t, err)

	table := buildTable(t, []string{"id"}, []dataset.Value{dataset.String("1")})
	state := stateWithTable(table)
	err = step.Validate(state)
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Contains(t, runErr.Message, "output path")
}

func TestStepValidate_RequiresLoadedTable(t *testing.T) {
	dir := t.TempDir()
	steps := []Step{
		NewLabelStep(dir, nil, StepOptions{}),
		NewMissingStep(dir, nil, StepOptions{}),
		NewMergeStep(dir, nil, StepOptions{}),
		NewFilterStep(dir, nil, StepOptions{}),
	}

	for _, step := range steps {
		t.Run(step.ID(), func(t *testing.T) {
			err := step.Validate(NewRunState("run-test"))
			require.Error(t, err)

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, ErrorKindValidation, runErr.Kind)
		})
	}
}
