// Package services implements the business logic layer between the
// transport handlers and the domain packages.
//
// Services own orchestration and policy; the domain packages they call
// (waves, dataset, transitions, colormap, pipeline) stay transport-free.
// Four services cover the application:
//
//   - DatasetService resolves processed-survey dataset names to files,
//     loads them through internal/dataset, and caches loaded tables by
//     modification time.
//   - WaveService manages wave definitions and previews transition-token
//     resolution against the live registry.
//   - AnalysisService runs the full transition analysis for one variable,
//     or for several variables concurrently, returning records,
//     statistics, the crosstab matrix, the pattern summary, and node
//     colors in a single result.
//   - PipelineService wires the cleaning steps into a pipeline manager
//     and runs them in the background for HTTP callers or synchronously
//     for command-line use.
//
// Construction follows the same shape everywhere: explicit dependencies,
// a *slog.Logger (nil falls back to slog.Default), and errors returned
// unwrapped enough for the HTTP error handler to translate. Request
// structs carry go-playground/validator tags and are checked at the
// service boundary, so command-line callers get the same validation as
// HTTP ones.
package services
