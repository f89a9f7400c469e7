package colormap

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store keeps color mappings in memory and persists them as a
// value_color_mappings.csv file with the columns variable_name,
// value_name, color_hex and description. Lookups are exact string
// matches on both variable and value.
type Store struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger
	vars   map[string]map[string]Mapping
}

// NewStore creates a store backed by the CSV file at path. Call Load
// before first use; a missing file simply means no mappings yet.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		vars:   make(map[string]map[string]Mapping),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the mappings file, replacing the in-memory set. A missing
// file is not an error; every value then colors from the default palette.
// On duplicate (variable, value) rows the later row wins.
func (s *Store) Load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no value color mappings file, defaults will be used",
				slog.String("path", s.path))
			return nil
		}
		return fmt.Errorf("open color mappings: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read color mappings: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	cols, err := mappingColumns(rows[0])
	if err != nil {
		return fmt.Errorf("color mappings %s: %w", s.path, err)
	}

	loaded := make(map[string]map[string]Mapping)
	for i, row := range rows[1:] {
		m := Mapping{
			Variable: strings.TrimSpace(row[cols.variable]),
			Value:    strings.TrimSpace(row[cols.value]),
			ColorHex: strings.TrimSpace(row[cols.color]),
		}
		if m.Variable == "" && m.Value == "" {
			continue
		}
		if cols.description >= 0 && cols.description < len(row) {
			m.Description = strings.TrimSpace(row[cols.description])
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("color mappings %s row %d: %w", s.path, i+2, err)
		}
		if loaded[m.Variable] == nil {
			loaded[m.Variable] = make(map[string]Mapping)
		}
		loaded[m.Variable][m.Value] = m
	}

	s.mu.Lock()
	s.vars = loaded
	s.mu.Unlock()

	s.logger.Info("color mappings loaded",
		slog.String("path", s.path),
		slog.Int("variables", len(loaded)))
	return nil
}

// Add validates and upserts a mapping, then persists the full set. An
// empty description defaults to "Color for <value>".
func (s *Store) Add(m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Description == "" {
		m.Description = fmt.Sprintf("Color for %s", m.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vars[m.Variable] == nil {
		s.vars[m.Variable] = make(map[string]Mapping)
	}
	s.vars[m.Variable][m.Value] = m

	if err := s.save(); err != nil {
		return err
	}

	s.logger.Info("color mapping added",
		slog.String("variable", m.Variable),
		slog.String("value", m.Value),
		slog.String("color", m.ColorHex))
	return nil
}

// Colors returns a hex code per value, in order: the semantic mapping
// when one exists, otherwise the default palette. The palette index
// advances only over unmapped values, so adding a mapping for one value
// never shifts the colors of its mapped neighbours.
func (s *Store) Colors(variable string, values []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappings := s.vars[variable]
	colors := make([]string, 0, len(values))
	unmapped := 0
	for _, value := range values {
		if m, ok := mappings[value]; ok {
			colors = append(colors, m.ColorHex)
			continue
		}
		colors = append(colors, DefaultPalette[unmapped%len(DefaultPalette)])
		unmapped++
	}
	return colors
}

// VariableMappings returns value to hex for one variable. The result is
// a copy; mutating it does not touch the store.
func (s *Store) VariableMappings(variable string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.vars[variable]))
	for value, m := range s.vars[variable] {
		out[value] = m.ColorHex
	}
	return out
}

// List returns every mapping sorted by variable then value.
func (s *Store) List() []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Variables returns the variables with at least one mapping, sorted.
func (s *Store) Variables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of mappings across all variables.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, values := range s.vars {
		n += len(values)
	}
	return n
}

// save writes the full mapping set atomically via a temp file rename.
// Callers hold s.mu.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create mappings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "value_color_mappings-*.csv")
	if err != nil {
		return fmt.Errorf("create temp mappings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"variable_name", "value_name", "color_hex", "description"}); err != nil {
		tmp.Close()
		return fmt.Errorf("write mappings header: %w", err)
	}
	for _, m := range s.sortedLocked() {
		if err := writer.Write([]string{m.Variable, m.Value, m.ColorHex, m.Description}); err != nil {
			tmp.Close()
			return fmt.Errorf("write mapping %s/%s: %w", m.Variable, m.Value, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush mappings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync mappings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp mappings file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace color mappings: %w", err)
	}
	return nil
}

// sortedLocked flattens the mapping set ordered by variable then value.
// Callers hold s.mu.
func (s *Store) sortedLocked() []Mapping {
	out := make([]Mapping, 0, 16)
	for _, values := range s.vars {
		for _, m := range values {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Variable != out[j].Variable {
			return out[i].Variable < out[j].Variable
		}
		return out[i].Value < out[j].Value
	})
	return out
}

type mappingLayout struct {
	variable    int
	value       int
	color       int
	description int
}

// mappingColumns locates the expected columns in the header row.
// Description is optional.
func mappingColumns(header []string) (mappingLayout, error) {
	layout := mappingLayout{variable: -1, value: -1, color: -1, description: -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "variable_name":
			layout.variable = i
		case "value_name":
			layout.value = i
		case "color_hex":
			layout.color = i
		case "description":
			layout.description = i
		}
	}
	if layout.variable < 0 || layout.value < 0 || layout.color < 0 {
		return layout, fmt.Errorf("header must contain variable_name, value_name and color_hex, got %v", header)
	}
	return layout, nil
}
