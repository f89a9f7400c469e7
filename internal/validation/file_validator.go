package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DatasetExtensions are the raw survey formats the pipeline can load.
var DatasetExtensions = []string{".csv", ".xlsx"}

// FileValidator provides the pre-flight file checks shared by the
// executables, so a bad path fails before a pipeline run starts.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateDatasetFile checks that path names a readable survey dataset in
// a supported format. Excel lock files ("~$...") are rejected early since
// excelize cannot open them.
func (v *FileValidator) ValidateDatasetFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Dataset file does not exist",
			slog.String("file", path))
		return fmt.Errorf("dataset %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat dataset file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat dataset %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Dataset path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		v.logger.Error("Dataset file is empty",
			slog.String("file", path))
		return fmt.Errorf("dataset %s is empty", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtension(ext) {
		v.logger.Error("Unsupported dataset format",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("dataset %s has unsupported format %q (want %s)",
			path, ext, strings.Join(DatasetExtensions, ", "))
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Skipping temporary Excel file",
			slog.String("file", path))
		return fmt.Errorf("%s is an Excel lock file, not a dataset", path)
	}

	// Check it is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Dataset file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("dataset %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures the directory exists or can be created,
// and that it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateOutputPath checks that path can receive the processed CSV: the
// parent directory must be writable and the extension must be .csv. An
// empty path is valid and means the configured default location.
func (v *FileValidator) ValidateOutputPath(path string) error {
	if path == "" {
		return nil
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		v.logger.Error("Output path is not a CSV file",
			slog.String("path", path),
			slog.String("extension", ext))
		return fmt.Errorf("output path %s must end in .csv", path)
	}

	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// CountDatasets counts the loadable dataset files directly under dir.
func (v *FileValidator) CountDatasets(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		v.logger.Error("Failed to read dataset directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to read dataset directory %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "~$") {
			continue
		}
		if supportedExtension(strings.ToLower(filepath.Ext(name))) {
			count++
		}
	}

	v.logger.Debug("Datasets counted",
		slog.String("directory", dir),
		slog.Int("count", count))
	return count, nil
}

func supportedExtension(ext string) bool {
	for _, supported := range DatasetExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
