// Package config provides centralized configuration management for the Wave
// Pulse system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration files (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern WAVE_* for namespacing:
//
//	WAVE_SERVER_PORT=8080
//	WAVE_LOGGING_LEVEL=info
//	WAVE_ANALYSIS_TOP_PATTERNS=10
//	WAVE_SHEETS_ENABLED=true
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	datasetPath := paths.GetDatasetPath("survey_2024.csv")
//	exportPath := paths.GetExportPath("transitions_w1_to_w2.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Required fields are present
//	- Values are within acceptable ranges
//	- Directories exist or can be created
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
