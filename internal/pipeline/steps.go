package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"wavecli/internal/dataset"
)

// reportProgress records progress on the run state and pushes it to
// connected clients when a broadcaster is wired.
func reportProgress(opts StepOptions, state *RunState, stepID string, progress int, message string) {
	if step := state.GetStep(stepID); step != nil {
		step.UpdateProgress(float64(progress), message)
	}
	if opts.Broadcaster != nil {
		opts.Broadcaster.UpdateStepProgress(state.ID, stepID, progress, message)
	}
}

// tableFromState fetches the working table shared through the run.
func tableFromState(state *RunState) (*dataset.Table, error) {
	val, ok := state.GetContext(ContextKeyTable)
	if !ok {
		return nil, fmt.Errorf("no dataset in run context")
	}
	table, ok := val.(*dataset.Table)
	if !ok || table == nil {
		return nil, fmt.Errorf("run context holds no usable dataset")
	}
	return table, nil
}

// stringConfig reads a string request parameter, or "" when unset.
func stringConfig(state *RunState, key string) string {
	val, ok := state.GetConfig(key)
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

// derivedColumn is a new column computed from an existing one.
type derivedColumn struct {
	name  string
	cells []dataset.Value
}

// appendColumns returns a new table with the derived columns appended
// after the existing ones.
func appendColumns(t *dataset.Table, derived []derivedColumn) (*dataset.Table, error) {
	if len(derived) == 0 {
		return t, nil
	}

	columns := make([]string, 0, t.ColumnCount()+len(derived))
	columns = append(columns, t.Columns()...)
	for _, d := range derived {
		columns = append(columns, d.name)
	}

	out, err := dataset.NewTable(columns)
	if err != nil {
		return nil, err
	}
	for row := 0; row < t.RowCount(); row++ {
		cells := make([]dataset.Value, 0, len(columns))
		for col := 0; col < t.ColumnCount(); col++ {
			cells = append(cells, t.At(row, col))
		}
		for _, d := range derived {
			cells = append(cells, d.cells[row])
		}
		if err := out.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rowsOf copies the table rows into a mutable slice.
func rowsOf(t *dataset.Table) [][]dataset.Value {
	rows := make([][]dataset.Value, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		cells := make([]dataset.Value, t.ColumnCount())
		for col := 0; col < t.ColumnCount(); col++ {
			cells[col] = t.At(row, col)
		}
		rows[row] = cells
	}
	return rows
}

// rebuildTable assembles a table from a column list and row slice.
func rebuildTable(columns []string, rows [][]dataset.Value) (*dataset.Table, error) {
	out, err := dataset.NewTable(columns)
	if err != nil {
		return nil, err
	}
	for _, cells := range rows {
		if err := out.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadStep reads the raw survey export into the run.
type LoadStep struct {
	BaseStep
	logger *slog.Logger
	opts   StepOptions
}

// NewLoadStep creates the dataset loading step.
func NewLoadStep(logger *slog.Logger, opts StepOptions) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStep{
		BaseStep: NewBaseStep(StepIDLoad, StepNameLoad, nil),
		logger:   logger,
		opts:     opts,
	}
}

// Validate checks that the request names a dataset file.
func (s *LoadStep) Validate(state *RunState) error {
	if stringConfig(state, ConfigKeyDatasetPath) == "" {
		return NewStepValidationError(s.ID(), "no dataset path configured")
	}
	return nil
}

// Execute loads the dataset and shares it with the rest of the run.
func (s *LoadStep) Execute(ctx context.Context, state *RunState) error {
	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	path := stringConfig(state, ConfigKeyDatasetPath)
	reportProgress(s.opts, state, s.ID(), 10, fmt.Sprintf("Loading %s", filepath.Base(path)))

	table, err := dataset.Load(path)
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("load dataset: %w", err), false)
	}

	state.SetContext(ContextKeyTable, table)
	state.SetContext(ContextKeyRowsLoaded, table.RowCount())
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("rows", table.RowCount())
		step.SetMetadata("columns", table.ColumnCount())
	}

	s.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Loaded %d rows, %d columns", table.RowCount(), table.ColumnCount()))
	return nil
}

// LabelStep derives labeled columns from the value label settings. A
// column gains a <name>_labeled companion only when at least one value
// actually maps to a different label, so unconfigured columns pass
// through untouched.
type LabelStep struct {
	BaseStep
	settingsDir string
	logger      *slog.Logger
	opts        StepOptions
}

// NewLabelStep creates the value labeling step reading settings from
// settingsDir.
func NewLabelStep(settingsDir string, logger *slog.Logger, opts StepOptions) *LabelStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelStep{
		BaseStep:    NewBaseStep(StepIDLabels, StepNameLabels, []string{StepIDLoad}),
		settingsDir: settingsDir,
		logger:      logger,
		opts:        opts,
	}
}

// Validate checks that a dataset has been loaded.
func (s *LabelStep) Validate(state *RunState) error {
	if _, err := tableFromState(state); err != nil {
		return NewStepValidationError(s.ID(), "no dataset loaded, run the load step first")
	}
	return nil
}

// Execute applies the value label mappings.
func (s *LabelStep) Execute(ctx context.Context, state *RunState) error {
	table, err := tableFromState(state)
	if err != nil {
		return NewStepValidationError(s.ID(), err.Error())
	}

	labels, err := LoadValueLabels(filepath.Join(s.settingsDir, ValueLabelsFile))
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if len(labels) == 0 {
		reportProgress(s.opts, state, s.ID(), 100, "No value labels configured")
		return nil
	}

	for _, column := range sortedKeys(labels) {
		if !table.HasColumn(column) {
			s.logger.Warn("value label column missing from dataset", slog.String("column", column))
		}
	}

	var derived []derivedColumn
	var labeled []string
	columns := table.Columns()
	for i, column := range columns {
		if err := ctx.Err(); err != nil {
			return NewCancellationError(s.ID())
		}
		mapping, ok := labels[column]
		if !ok {
			continue
		}
		derivedName := column + "_labeled"
		if table.HasColumn(derivedName) {
			s.logger.Debug("labeled column already present", slog.String("column", derivedName))
			continue
		}

		idx, _ := table.ColumnIndex(column)
		cells := make([]dataset.Value, table.RowCount())
		changed := false
		for row := 0; row < table.RowCount(); row++ {
			cell := table.At(row, idx)
			if cell.Valid {
				if label, mapped := mapping[cell.Label]; mapped && label != cell.Label {
					cell = dataset.String(label)
					changed = true
				}
			}
			cells[row] = cell
		}
		if !changed {
			continue
		}
		derived = append(derived, derivedColumn{name: derivedName, cells: cells})
		labeled = append(labeled, derivedName)

		reportProgress(s.opts, state, s.ID(), 10+(i+1)*85/len(columns),
			fmt.Sprintf("Labeled %s", column))
	}

	table, err = appendColumns(table, derived)
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("append labeled columns: %w", err), false)
	}
	state.SetContext(ContextKeyTable, table)
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("labeled_columns", labeled)
	}

	s.logger.Info("value labels applied", slog.Int("columns", len(labeled)))
	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Labeled %d columns", len(labeled)))
	return nil
}

func sortedKeys(m map[string]map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MissingStep applies the per-column missing value strategies, then the
// value drop rules. drop_missing removes rows with a missing cell,
// mark_unknown fills them with a label, keep_nan leaves them alone.
type MissingStep struct {
	BaseStep
	settingsDir string
	logger      *slog.Logger
	opts        StepOptions
}

// NewMissingStep creates the missing value handling step.
func NewMissingStep(settingsDir string, logger *slog.Logger, opts StepOptions) *MissingStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MissingStep{
		BaseStep:    NewBaseStep(StepIDMissing, StepNameMissing, []string{StepIDLabels}),
		settingsDir: settingsDir,
		logger:      logger,
		opts:        opts,
	}
}

// Validate checks that a dataset has been loaded.
func (s *MissingStep) Validate(state *RunState) error {
	if _, err := tableFromState(state); err != nil {
		return NewStepValidationError(s.ID(), "no dataset loaded, run the load step first")
	}
	return nil
}

// Execute applies missing value strategies and drop rules.
func (s *MissingStep) Execute(ctx context.Context, state *RunState) error {
	table, err := tableFromState(state)
	if err != nil {
		return NewStepValidationError(s.ID(), err.Error())
	}

	missingRules, err := LoadMissingRules(filepath.Join(s.settingsDir, MissingSettingsFile))
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	dropRules, err := LoadDropRules(filepath.Join(s.settingsDir, DropSettingsFile))
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if len(missingRules) == 0 && len(dropRules) == 0 {
		reportProgress(s.opts, state, s.ID(), 100, "No missing value settings configured")
		return nil
	}

	rowsBefore := table.RowCount()
	rows := rowsOf(table)
	marked := 0

	reportProgress(s.opts, state, s.ID(), 20, "Applying missing value strategies")
	for _, rule := range missingRules {
		if err := ctx.Err(); err != nil {
			return NewCancellationError(s.ID())
		}
		idx, ok := table.ColumnIndex(rule.Column)
		if !ok {
			s.logger.Warn("missing value column not in dataset", slog.String("column", rule.Column))
			continue
		}
		switch rule.Strategy {
		case StrategyDropMissing:
			kept := rows[:0]
			for _, cells := range rows {
				if cells[idx].Valid {
					kept = append(kept, cells)
				}
			}
			rows = kept
		case StrategyMarkUnknown:
			for _, cells := range rows {
				if !cells[idx].Valid {
					cells[idx] = dataset.String(rule.Label)
					marked++
				}
			}
		case StrategyKeepMissing:
		}
	}

	reportProgress(s.opts, state, s.ID(), 60, "Applying value drop rules")
	for _, rule := range dropRules {
		if err := ctx.Err(); err != nil {
			return NewCancellationError(s.ID())
		}
		idx, ok := table.ColumnIndex(rule.Column)
		if !ok {
			s.logger.Warn("drop rule column not in dataset", slog.String("column", rule.Column))
			continue
		}
		kept := rows[:0]
		for _, cells := range rows {
			if cells[idx].Valid && cells[idx].Label == rule.Value {
				continue
			}
			kept = append(kept, cells)
		}
		rows = kept
	}

	table, err = rebuildTable(table.Columns(), rows)
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("rebuild dataset: %w", err), false)
	}

	dropped := rowsBefore - table.RowCount()
	state.SetContext(ContextKeyTable, table)
	state.SetContext(ContextKeyRowsDropped, dropped)
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("rows_before", rowsBefore)
		step.SetMetadata("rows_after", table.RowCount())
		step.SetMetadata("rows_dropped", dropped)
		step.SetMetadata("cells_marked", marked)
	}

	s.logger.Info("missing values handled",
		slog.Int("rows_dropped", dropped),
		slog.Int("cells_marked", marked))
	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Dropped %d rows, marked %d cells", dropped, marked))
	return nil
}

// MergeStep folds category values together per the merge settings. For
// each configured base column it derives <name>_merged, plus
// <name>_labeled_merged when a labeled companion exists. Rules apply in
// file order, so chained merges land on the final target.
type MergeStep struct {
	BaseStep
	settingsDir string
	logger      *slog.Logger
	opts        StepOptions
}

// NewMergeStep creates the value merging step.
func NewMergeStep(settingsDir string, logger *slog.Logger, opts StepOptions) *MergeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeStep{
		BaseStep:    NewBaseStep(StepIDMerge, StepNameMerge, []string{StepIDMissing}),
		settingsDir: settingsDir,
		logger:      logger,
		opts:        opts,
	}
}

// Validate checks that a dataset has been loaded.
func (s *MergeStep) Validate(state *RunState) error {
	if _, err := tableFromState(state); err != nil {
		return NewStepValidationError(s.ID(), "no dataset loaded, run the load step first")
	}
	return nil
}

// Execute applies the category merge rules.
func (s *MergeStep) Execute(ctx context.Context, state *RunState) error {
	table, err := tableFromState(state)
	if err != nil {
		return NewStepValidationError(s.ID(), err.Error())
	}

	rules, err := LoadMergeRules(filepath.Join(s.settingsDir, MergeSettingsFile))
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if len(rules) == 0 {
		reportProgress(s.opts, state, s.ID(), 100, "No merge rules configured")
		return nil
	}

	groups := groupMergeRules(rules)
	var derived []derivedColumn
	var merged []string
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return NewCancellationError(s.ID())
		}
		if !table.HasColumn(group.column) {
			s.logger.Warn("merge column not in dataset", slog.String("column", group.column))
			continue
		}

		sources := []string{group.column, group.column + "_labeled"}
		for _, source := range sources {
			idx, ok := table.ColumnIndex(source)
			if !ok {
				continue
			}
			derivedName := source + "_merged"
			if table.HasColumn(derivedName) {
				s.logger.Debug("merged column already present", slog.String("column", derivedName))
				continue
			}
			derived = append(derived, derivedColumn{
				name:  derivedName,
				cells: applyMerge(table, idx, group.rules),
			})
			merged = append(merged, derivedName)
		}

		reportProgress(s.opts, state, s.ID(), 10+(i+1)*85/len(groups),
			fmt.Sprintf("Merged values in %s", group.column))
	}

	table, err = appendColumns(table, derived)
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("append merged columns: %w", err), false)
	}
	state.SetContext(ContextKeyTable, table)
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("merged_columns", merged)
	}

	s.logger.Info("category values merged", slog.Int("columns", len(merged)))
	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Merged values into %d columns", len(merged)))
	return nil
}

type mergeGroup struct {
	column string
	rules  []MergeRule
}

// groupMergeRules groups rules by column in first-seen order, keeping
// each group's rules in file order.
func groupMergeRules(rules []MergeRule) []mergeGroup {
	var groups []mergeGroup
	index := make(map[string]int)
	for _, rule := range rules {
		pos, ok := index[rule.Column]
		if !ok {
			pos = len(groups)
			index[rule.Column] = pos
			groups = append(groups, mergeGroup{column: rule.Column})
		}
		groups[pos].rules = append(groups[pos].rules, rule)
	}
	return groups
}

// applyMerge computes merged cells for one column. Each cell walks the
// rules in order, so a chain like A to B then B to C ends at C.
func applyMerge(t *dataset.Table, col int, rules []MergeRule) []dataset.Value {
	cells := make([]dataset.Value, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		cell := t.At(row, col)
		if cell.Valid {
			label := cell.Label
			for _, rule := range rules {
				if label == rule.Source {
					label = rule.Target
				}
			}
			if label != cell.Label {
				cell = dataset.String(label)
			}
		}
		cells[row] = cell
	}
	return cells
}

// FilterStep applies the persisted row filters. Unlike the earlier
// steps it fails hard on problems: a filter that names a missing column
// or would remove every row means the settings no longer match the
// dataset, and a silently empty result would poison every downstream
// analysis.
type FilterStep struct {
	BaseStep
	settingsDir string
	logger      *slog.Logger
	opts        StepOptions
}

// NewFilterStep creates the row filtering step.
func NewFilterStep(settingsDir string, logger *slog.Logger, opts StepOptions) *FilterStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterStep{
		BaseStep:    NewBaseStep(StepIDFilter, StepNameFilter, []string{StepIDMerge}),
		settingsDir: settingsDir,
		logger:      logger,
		opts:        opts,
	}
}

// Validate checks that a dataset has been loaded.
func (s *FilterStep) Validate(state *RunState) error {
	if _, err := tableFromState(state); err != nil {
		return NewStepValidationError(s.ID(), "no dataset loaded, run the load step first")
	}
	return nil
}

// Execute applies each row filter in settings order.
func (s *FilterStep) Execute(ctx context.Context, state *RunState) error {
	table, err := tableFromState(state)
	if err != nil {
		return NewStepValidationError(s.ID(), err.Error())
	}

	filters, err := LoadRowFilters(filepath.Join(s.settingsDir, RowFilterFile))
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if len(filters) == 0 {
		reportProgress(s.opts, state, s.ID(), 100, "No row filters configured")
		return nil
	}

	rowsBefore := table.RowCount()
	removed := 0
	for i, filter := range filters {
		if err := ctx.Err(); err != nil {
			return NewCancellationError(s.ID())
		}
		filtered, stats, err := table.FilterRows(filter.Column, filter.Values)
		if err != nil {
			return NewExecutionError(s.ID(), fmt.Errorf("row filter on %s: %w", filter.Column, err), false)
		}
		table = filtered
		removed += stats.Removed
		if len(stats.Unmatched) > 0 {
			s.logger.Warn("filter values matched no rows",
				slog.String("column", filter.Column),
				slog.Any("unmatched", stats.Unmatched))
		}

		if s.opts.Broadcaster != nil {
			s.opts.Broadcaster.UpdateStepWithMetadata(state.ID, s.ID(),
				10+(i+1)*85/len(filters),
				fmt.Sprintf("Kept %d of %d rows on %s", stats.After, stats.Before, filter.Column),
				map[string]any{"column": filter.Column, "rows_kept": stats.After})
		}
		s.logger.Info("row filter applied",
			slog.String("column", filter.Column),
			slog.Int("rows_before", stats.Before),
			slog.Int("rows_after", stats.After))
	}

	state.SetContext(ContextKeyTable, table)
	if prev, ok := state.GetContext(ContextKeyRowsDropped); ok {
		if n, isInt := prev.(int); isInt {
			state.SetContext(ContextKeyRowsDropped, n+removed)
		}
	} else {
		state.SetContext(ContextKeyRowsDropped, removed)
	}
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("rows_before", rowsBefore)
		step.SetMetadata("rows_after", table.RowCount())
		step.SetMetadata("rows_removed", removed)
	}

	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Filters kept %d of %d rows", table.RowCount(), rowsBefore))
	return nil
}

// SaveStep writes the processed dataset to disk.
type SaveStep struct {
	BaseStep
	defaultOutput string
	logger        *slog.Logger
	opts          StepOptions
}

// NewSaveStep creates the save step. defaultOutput is used when the
// request does not name an output path.
func NewSaveStep(defaultOutput string, logger *slog.Logger, opts StepOptions) *SaveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveStep{
		BaseStep:      NewBaseStep(StepIDSave, StepNameSave, []string{StepIDFilter}),
		defaultOutput: defaultOutput,
		logger:        logger,
		opts:          opts,
	}
}

// Validate checks for a loaded dataset and a usable output path.
func (s *SaveStep) Validate(state *RunState) error {
	if _, err := tableFromState(state); err != nil {
		return NewStepValidationError(s.ID(), "no dataset loaded, run the load step first")
	}
	if stringConfig(state, ConfigKeyOutputPath) == "" && s.defaultOutput == "" {
		return NewStepValidationError(s.ID(), "no output path configured")
	}
	return nil
}

// Execute writes the processed CSV.
func (s *SaveStep) Execute(ctx context.Context, state *RunState) error {
	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	table, err := tableFromState(state)
	if err != nil {
		return NewStepValidationError(s.ID(), err.Error())
	}

	path := stringConfig(state, ConfigKeyOutputPath)
	if path == "" {
		path = s.defaultOutput
	}

	reportProgress(s.opts, state, s.ID(), 20, fmt.Sprintf("Writing %s", filepath.Base(path)))
	if err := dataset.WriteCSVFile(path, table); err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("write processed dataset: %w", err), false)
	}

	state.SetContext(ContextKeyOutputFile, path)
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("output_file", path)
		step.SetMetadata("rows_written", table.RowCount())
		step.SetMetadata("columns_written", table.ColumnCount())
	}

	s.logger.Info("processed dataset written",
		slog.String("path", path),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))
	reportProgress(s.opts, state, s.ID(), 100,
		fmt.Sprintf("Wrote %d rows to %s", table.RowCount(), filepath.Base(path)))
	return nil
}
