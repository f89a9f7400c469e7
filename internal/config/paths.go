package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	WebDir        string
	StaticDir     string
	DataDir       string
	CacheDir      string
	ExportsDir    string
	LogsDir       string

	// Settings directories
	SettingsDir              string
	CleaningSettingsDir      string
	VisualizationSettingsDir string

	// Config files
	CredentialsFile  string
	SheetsConfigFile string

	// Well-known settings files
	WaveDefinitionsCSV string
	ColorMappingsCSV   string
	MissingValueCSV    string
	ValueMergingCSV    string
	ProcessedDataCSV   string
}

// GetPaths returns the application paths relative to the executable location
// All paths are ALWAYS relative to the executable directory, never the current working directory
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	exeDir := filepath.Dir(exe)

	// All paths are relative to the executable directory.
	// Directory structure:
	//   credentials.json
	//   sheets-config.json
	//   data/              (survey dataset files, .csv or .xlsx)
	//     cache/           (temporary files)
	//   settings/
	//     cleaning/        (missing value and merge rules)
	//     visualization/   (wave definitions, color mappings)
	//     processed_data.csv
	//   exports/           (analysis exports)
	//   logs/
	//   web/               (frontend assets)

	dataDir := filepath.Join(exeDir, "data")
	settingsDir := filepath.Join(exeDir, "settings")
	cleaningDir := filepath.Join(settingsDir, "cleaning")
	visualizationDir := filepath.Join(settingsDir, "visualization")

	paths := &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		ExportsDir:    filepath.Join(exeDir, "exports"),
		LogsDir:       filepath.Join(exeDir, "logs"),
		WebDir:        filepath.Join(exeDir, "web"),
		StaticDir:     filepath.Join(exeDir, "web", "static"),

		SettingsDir:              settingsDir,
		CleaningSettingsDir:      cleaningDir,
		VisualizationSettingsDir: visualizationDir,

		// Configuration files (root of executable directory)
		CredentialsFile:  filepath.Join(exeDir, "credentials.json"),
		SheetsConfigFile: filepath.Join(exeDir, "sheets-config.json"),

		// Well-known settings files
		WaveDefinitionsCSV: filepath.Join(visualizationDir, "wave_definitions.csv"),
		ColorMappingsCSV:   filepath.Join(visualizationDir, "value_color_mappings.csv"),
		MissingValueCSV:    filepath.Join(cleaningDir, "missing_value_settings.csv"),
		ValueMergingCSV:    filepath.Join(cleaningDir, "value_merging_settings.csv"),
		ProcessedDataCSV:   filepath.Join(settingsDir, "processed_data.csv"),
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.CacheDir,
		p.ExportsDir,
		p.LogsDir,
		p.WebDir,
		p.StaticDir,
		p.SettingsDir,
		p.CleaningSettingsDir,
		p.VisualizationSettingsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetDatasetPath returns the path for a survey dataset file
func (p *Paths) GetDatasetPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// GetExportPath returns the path for an export file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetWebFilePath returns the path to a web file
func (p *Paths) GetWebFilePath(filename string) string {
	return filepath.Join(p.WebDir, filename)
}

// GetStaticFilePath returns the path to a static file
func (p *Paths) GetStaticFilePath(filename string) string {
	return filepath.Join(p.StaticDir, filename)
}

// GetCredentialsPath returns the path for the Google Sheets credentials file
func (p *Paths) GetCredentialsPath() string {
	path := p.CredentialsFile
	logger := slog.Default()
	if logger != nil {
		logger.Debug("Credentials path resolved",
			slog.String("path", path),
			slog.Bool("exists", FileExists(path)))
	}
	return path
}

// GetSheetsConfigPath returns the path for the sheets configuration file
func (p *Paths) GetSheetsConfigPath() string {
	path := p.SheetsConfigFile
	logger := slog.Default()
	if logger != nil {
		logger.Debug("Sheets config path resolved",
			slog.String("path", path),
			slog.Bool("exists", FileExists(path)))
	}
	return path
}

// GetWaveDefinitionsPath returns the path for the wave_definitions.csv file
func (p *Paths) GetWaveDefinitionsPath() string {
	return p.WaveDefinitionsCSV
}

// GetColorMappingsPath returns the path for the value_color_mappings.csv file
func (p *Paths) GetColorMappingsPath() string {
	return p.ColorMappingsCSV
}

// GetProcessedDataPath returns the path for the processed_data.csv file
func (p *Paths) GetProcessedDataPath() string {
	return p.ProcessedDataCSV
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	logger := slog.Default()
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("settings", p.SettingsDir),
			slog.String("exports", p.ExportsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
			slog.String("web", p.WebDir),
		),
		slog.Group("config_files",
			slog.String("credentials", p.CredentialsFile),
			slog.String("sheets_config", p.SheetsConfigFile),
		),
		slog.Group("settings_files",
			slog.String("wave_definitions", p.WaveDefinitionsCSV),
			slog.String("color_mappings", p.ColorMappingsCSV),
			slog.String("processed_data", p.ProcessedDataCSV),
		))
}

// ValidateRequiredFiles checks if critical files exist and returns detailed error information
func (p *Paths) ValidateRequiredFiles(sheetsEnabled bool) error {
	requiredFiles := map[string]string{}
	if sheetsEnabled {
		requiredFiles["Credentials"] = p.CredentialsFile
	}

	var missingFiles []string
	for name, path := range requiredFiles {
		if !FileExists(path) {
			missingFiles = append(missingFiles, fmt.Sprintf("%s (%s)", name, path))
		}
	}

	if len(missingFiles) > 0 {
		return fmt.Errorf("required files missing: %s", strings.Join(missingFiles, ", "))
	}

	return nil
}
