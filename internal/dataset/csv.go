package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Load reads a dataset file, picking the reader by extension. CSV and
// Excel (.xlsx) files are supported.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSVFile(path)
	case ".xlsx":
		return LoadExcel(path, "")
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (expected .csv or .xlsx)", filepath.Ext(path))
	}
}

// LoadCSVFile reads a CSV dataset from disk.
func LoadCSVFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	table, err := LoadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// WriteCSVFile writes a table to disk, creating parent directories as
// needed. The write goes through a temp file and rename so readers never
// observe a partial dataset.
func WriteCSVFile(path string, t *Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteCSV writes a table as CSV: the header row, then one record per
// row. Missing cells become empty fields, which Load maps back to the
// missing sentinel.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, t.ColumnCount())
	for row := 0; row < t.RowCount(); row++ {
		for col := range record {
			cell := t.At(row, col)
			if cell.Valid {
				record[col] = cell.Label
			} else {
				record[col] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row+2, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// LoadCSV reads a CSV dataset from a stream. The first record is the
// header; every following record becomes one row, with recognized
// missing-value placeholders mapped to missing cells.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty dataset: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	table, err := NewTable(header)
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		cells := make([]Value, len(record))
		for i, raw := range record {
			cells[i] = parseCell(raw)
		}
		if err := table.AppendRow(cells); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
	}
	return table, nil
}
