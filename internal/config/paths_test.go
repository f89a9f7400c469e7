package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)
	require.NotNil(t, paths)

	assert.NotEmpty(t, paths.ExecutableDir)
	assert.True(t, filepath.IsAbs(paths.ExecutableDir))

	// Every directory hangs off the executable directory
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(paths.DataDir, "cache"), paths.CacheDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "exports"), paths.ExportsDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "logs"), paths.LogsDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "web"), paths.WebDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "web", "static"), paths.StaticDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "settings"), paths.SettingsDir)
	assert.Equal(t, filepath.Join(paths.SettingsDir, "cleaning"), paths.CleaningSettingsDir)
	assert.Equal(t, filepath.Join(paths.SettingsDir, "visualization"), paths.VisualizationSettingsDir)
}

func TestGetPaths_WellKnownFiles(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(paths.VisualizationSettingsDir, "wave_definitions.csv"), paths.WaveDefinitionsCSV)
	assert.Equal(t, filepath.Join(paths.VisualizationSettingsDir, "value_color_mappings.csv"), paths.ColorMappingsCSV)
	assert.Equal(t, filepath.Join(paths.CleaningSettingsDir, "missing_value_settings.csv"), paths.MissingValueCSV)
	assert.Equal(t, filepath.Join(paths.CleaningSettingsDir, "value_merging_settings.csv"), paths.ValueMergingCSV)
	assert.Equal(t, filepath.Join(paths.SettingsDir, "processed_data.csv"), paths.ProcessedDataCSV)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "credentials.json"), paths.CredentialsFile)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "sheets-config.json"), paths.SheetsConfigFile)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()

	paths := &Paths{
		ExecutableDir:            base,
		DataDir:                  filepath.Join(base, "data"),
		CacheDir:                 filepath.Join(base, "data", "cache"),
		ExportsDir:               filepath.Join(base, "exports"),
		LogsDir:                  filepath.Join(base, "logs"),
		WebDir:                   filepath.Join(base, "web"),
		StaticDir:                filepath.Join(base, "web", "static"),
		SettingsDir:              filepath.Join(base, "settings"),
		CleaningSettingsDir:      filepath.Join(base, "settings", "cleaning"),
		VisualizationSettingsDir: filepath.Join(base, "settings", "visualization"),
	}

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{
		paths.DataDir, paths.CacheDir, paths.ExportsDir, paths.LogsDir,
		paths.WebDir, paths.StaticDir, paths.SettingsDir,
		paths.CleaningSettingsDir, paths.VisualizationSettingsDir,
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "directory %s should exist", dir)
		assert.True(t, info.IsDir())
	}

	// Idempotent on a second run
	assert.NoError(t, paths.EnsureDirectories())
}

func TestPathHelperMethods(t *testing.T) {
	paths := &Paths{
		ExecutableDir: "/app",
		DataDir:       "/app/data",
		CacheDir:      "/app/data/cache",
		ExportsDir:    "/app/exports",
		LogsDir:       "/app/logs",
		WebDir:        "/app/web",
		StaticDir:     "/app/web/static",
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dataset", paths.GetDatasetPath("survey_2024.csv"), filepath.Join("/app/data", "survey_2024.csv")},
		{"export", paths.GetExportPath("transitions_w1_to_w2.csv"), filepath.Join("/app/exports", "transitions_w1_to_w2.csv")},
		{"log", paths.GetLogPath("app.log"), filepath.Join("/app/logs", "app.log")},
		{"cache", paths.GetCachePath("tmp.csv"), filepath.Join("/app/data/cache", "tmp.csv")},
		{"web", paths.GetWebFilePath("index.html"), filepath.Join("/app/web", "index.html")},
		{"static", paths.GetStaticFilePath("app.js"), filepath.Join("/app/web/static", "app.js")},
		{"relative", paths.GetRelativePath("settings"), filepath.Join("/app", "settings")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.csv")
	require.NoError(t, os.WriteFile(existing, []byte("a,b\n"), 0644))

	assert.True(t, FileExists(existing))
	assert.False(t, FileExists(filepath.Join(dir, "absent.csv")))
}

func TestValidateRequiredFiles(t *testing.T) {
	dir := t.TempDir()
	paths := &Paths{
		CredentialsFile: filepath.Join(dir, "credentials.json"),
	}

	// Sheets disabled: nothing is required
	assert.NoError(t, paths.ValidateRequiredFiles(false))

	// Sheets enabled but credentials missing
	err := paths.ValidateRequiredFiles(true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Credentials"))

	// Credentials present
	require.NoError(t, os.WriteFile(paths.CredentialsFile, []byte("{}"), 0644))
	assert.NoError(t, paths.ValidateRequiredFiles(true))
}

func TestGetCredentialsAndSheetsConfigPaths(t *testing.T) {
	paths := &Paths{
		CredentialsFile:  "/app/credentials.json",
		SheetsConfigFile: "/app/sheets-config.json",
	}

	assert.Equal(t, "/app/credentials.json", paths.GetCredentialsPath())
	assert.Equal(t, "/app/sheets-config.json", paths.GetSheetsConfigPath())
}

func TestWellKnownFileAccessors(t *testing.T) {
	paths := &Paths{
		WaveDefinitionsCSV: "/app/settings/visualization/wave_definitions.csv",
		ColorMappingsCSV:   "/app/settings/visualization/value_color_mappings.csv",
		ProcessedDataCSV:   "/app/settings/processed_data.csv",
	}

	assert.Equal(t, paths.WaveDefinitionsCSV, paths.GetWaveDefinitionsPath())
	assert.Equal(t, paths.ColorMappingsCSV, paths.GetColorMappingsPath())
	assert.Equal(t, paths.ProcessedDataCSV, paths.GetProcessedDataPath())
}
