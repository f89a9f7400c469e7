package exporter

import (
	"fmt"
	"regexp"
	"strings"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	// Always format with exactly 2 decimal places for consistency
	// This ensures values like 13.4 appear as 13.40 in CSV
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// sanitizeFilename makes a base name safe for file system operations.
// Unsafe characters become underscores, surrounding whitespace and dots
// are trimmed, and the result is capped at 100 characters. An empty
// result becomes "untitled".
func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" {
		return "untitled"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
