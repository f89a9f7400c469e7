package config

import (
	"os"
	"strconv"
)

// RuntimeSettings contains deployment settings read from environment
// variables with sensible defaults. Sensitive values (credentials paths,
// spreadsheet targets) must be set via environment in production.
type RuntimeSettings struct {
	// Google Sheets Configuration
	SheetsSpreadsheetID   string
	SheetsCredentialsFile string

	// Feature toggles
	EnableSheetsExport bool
	EnableMockData     bool

	// Analysis guard rails
	MaxConcurrentAnalyses int
	MaxUploadSizeMB       int
}

// getEnvBool returns a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvInt returns an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// getEnvString returns a string environment variable with a default value
func getEnvString(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetRuntimeSettings returns the configuration from environment variables
func GetRuntimeSettings() *RuntimeSettings {
	return &RuntimeSettings{
		SheetsSpreadsheetID:   getEnvString("WAVE_SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsFile: getEnvString("WAVE_SHEETS_CREDENTIALS_FILE", "credentials.json"),

		EnableSheetsExport: getEnvBool("WAVE_ENABLE_SHEETS_EXPORT", false),
		EnableMockData:     getEnvBool("WAVE_ENABLE_MOCK_DATA", false),

		MaxConcurrentAnalyses: getEnvInt("WAVE_MAX_CONCURRENT_ANALYSES", 4),
		MaxUploadSizeMB:       getEnvInt("WAVE_MAX_UPLOAD_SIZE_MB", 64),
	}
}

// Singleton instance for easy access
var runtimeSettings *RuntimeSettings

// GetSettings returns the singleton runtime settings instance
func GetSettings() *RuntimeSettings {
	if runtimeSettings == nil {
		runtimeSettings = GetRuntimeSettings()
	}
	return runtimeSettings
}
