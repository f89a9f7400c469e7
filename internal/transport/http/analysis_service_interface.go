package http

import (
	"context"

	"wavecli/internal/services"
)

// AnalysisServiceInterface defines the contract the analysis handler
// depends on, allowing the service to be substituted in tests.
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req services.AnalysisRequest) (*services.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, req services.BatchRequest) ([]services.BatchEntry, error)
}
