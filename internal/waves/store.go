package waves

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefinitionStore persists wave definitions between runs.
type DefinitionStore interface {
	// Load returns the persisted definitions. A store with nothing
	// persisted yet returns an empty slice and no error.
	Load() ([]Wave, error)
	// Save replaces the persisted definitions with the given set.
	Save(defs []Wave) error
}

// CSVStore persists wave definitions as a wave_definitions.csv file with
// the columns wave_name, column_prefix and description. The format matches
// what earlier tooling wrote, so existing data directories keep working.
type CSVStore struct {
	path   string
	logger *slog.Logger
}

// NewCSVStore creates a store backed by the CSV file at path.
func NewCSVStore(path string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the definitions file. A missing file is not an error; it
// yields an empty slice so the registry can seed its defaults.
func (s *CSVStore) Load() ([]Wave, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open wave definitions: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read wave definitions: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := definitionColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("wave definitions %s: %w", s.path, err)
	}

	defs := make([]Wave, 0, len(rows)-1)
	for i, row := range rows[1:] {
		name := strings.TrimSpace(row[cols.name])
		if name == "" {
			continue
		}
		number, err := NumberFromName(name)
		if err != nil {
			return nil, fmt.Errorf("wave definitions %s row %d: %w", s.path, i+2, err)
		}
		def := Wave{
			Number: number,
			Name:   name,
			Prefix: strings.TrimSpace(row[cols.prefix]),
		}
		if cols.description >= 0 && cols.description < len(row) {
			def.Description = strings.TrimSpace(row[cols.description])
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("wave definitions %s row %d: %w", s.path, i+2, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Save writes the definitions atomically: the new content goes to a
// temporary file in the same directory which then replaces the target, so
// a crash mid-write never leaves a truncated definitions file behind.
func (s *CSVStore) Save(defs []Wave) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create definitions directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "wave_definitions-*.csv")
	if err != nil {
		return fmt.Errorf("create temp definitions file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	sorted := make([]Wave, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"wave_name", "column_prefix", "description"}); err != nil {
		tmp.Close()
		return fmt.Errorf("write definitions header: %w", err)
	}
	for _, def := range sorted {
		if err := writer.Write([]string{def.Name, def.Prefix, def.Description}); err != nil {
			tmp.Close()
			return fmt.Errorf("write definition %s: %w", def.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush definitions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync definitions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp definitions file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace wave definitions: %w", err)
	}

	s.logger.Debug("wave definitions saved",
		slog.String("path", s.path),
		slog.Int("count", len(sorted)))
	return nil
}

type definitionLayout struct {
	name        int
	prefix      int
	description int
}

// definitionColumns locates the expected columns in the header row.
// Description is optional in older files.
func definitionColumns(header []string) (definitionLayout, error) {
	layout := definitionLayout{name: -1, prefix: -1, description: -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "wave_name":
			layout.name = i
		case "column_prefix":
			layout.prefix = i
		case "description":
			layout.description = i
		}
	}
	if layout.name < 0 || layout.prefix < 0 {
		return layout, fmt.Errorf("header must contain wave_name and column_prefix, got %v", header)
	}
	return layout, nil
}
