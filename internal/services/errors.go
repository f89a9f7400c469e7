package services

import "errors"

// Service errors. Handlers translate these into problem documents; see
// internal/errors for the mapping.
var (
	// Dataset errors
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrInvalidDatasetName = errors.New("invalid dataset name")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
