// Package shared provides common utilities and test helpers used across the
// wavecli codebase. It serves as a central location for functionality that
// doesn't belong to any specific domain or architectural layer.
//
// # Structure
//
//   - testutil: slog capture handler and log assertion helpers used by
//     package tests that verify what a component logged
//
// This package should only contain utilities used by multiple packages,
// with no domain-specific logic. Anything tied to waves, datasets or the
// cleaning pipeline belongs in the owning package instead.
package shared
