package config

import "time"

// Application constants - all hardcoded values for the Wave Pulse system
const (
	// Application Info
	AppName    = "Wave Pulse"
	AppVersion = "1.0.0"

	// Transition Analysis
	DefaultMinCategories = 2
	DefaultMaxCategories = 50
	DefaultTopPatterns   = 10
	MaxTopPatterns       = 100

	// Rate Limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	SheetsExportTimeout = 45 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir     = "data"
	DefaultSettingsDir = "settings"
	DefaultExportsDir  = "exports"
	DefaultLogsDir     = "logs"
	DefaultWebDir      = "web"

	// Settings file names
	WaveDefinitionsFileName = "wave_definitions.csv"
	ColorMappingsFileName   = "value_color_mappings.csv"
	ProcessedDataFileName   = "processed_data.csv"

	// Cache Settings
	DatasetCacheDuration  = 15 * time.Minute
	AnalysisCacheDuration = 5 * time.Minute

	// Operation Timeouts
	DefaultPipelineTimeout = 30 * time.Minute
	AnalysisTimeout        = 5 * time.Minute
	ExportTimeout          = 5 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// Dataset file patterns
	DatasetCSVPattern   = ".*\\.csv$"
	DatasetExcelPattern = ".*\\.xlsx?$"

	// Error Messages
	ErrDatasetMissing    = "Dataset file not found. Place survey data files in the data directory."
	ErrNoWavesRegistered = "No waves registered. Add wave definitions before resolving transitions."
	ErrAnalysisFailed    = "Transition analysis failed. Check the dataset columns and try again."

	// Success Messages
	MsgAnalysisComplete = "Transition analysis completed successfully."
	MsgExportComplete   = "Export completed successfully."
	MsgOperationSuccess = "Operation completed successfully."
)

// Feature Flags - compile-time configuration
const (
	// Core Features
	FeatureWebSocketEnabled    = true
	FeatureMetricsEnabled      = true
	FeatureHealthCheckEnabled  = true
	FeatureSheetsExportEnabled = true

	// Security Features
	FeatureRateLimitingEnabled = true

	// Development Features
	FeatureDebugLoggingEnabled = false
	FeatureVerboseModeEnabled  = false
	FeatureMockDataEnabled     = false
)

// URLs and Endpoints (all embedded)
const (
	// API Endpoints (internal)
	APIBasePath      = "/api"
	WavesEndpoint    = "/api/waves"
	DatasetsEndpoint = "/api/datasets"
	AnalyzeEndpoint  = "/api/analyze"
	ColorsEndpoint   = "/api/colors"
	PipelineEndpoint = "/api/pipeline"
	HealthEndpoint   = "/healthz"
	MetricsEndpoint  = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)

// GetFeatureFlag returns the value of a feature flag
func GetFeatureFlag(flag string) bool {
	switch flag {
	case "websocket":
		return FeatureWebSocketEnabled
	case "metrics":
		return FeatureMetricsEnabled
	case "health_check":
		return FeatureHealthCheckEnabled
	case "sheets_export":
		return FeatureSheetsExportEnabled
	case "rate_limiting":
		return FeatureRateLimitingEnabled
	case "debug_logging":
		return FeatureDebugLoggingEnabled
	case "verbose_mode":
		return FeatureVerboseModeEnabled
	case "mock_data":
		return FeatureMockDataEnabled
	default:
		return false
	}
}
