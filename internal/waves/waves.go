package waves

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Wave describes one measurement round of a longitudinal survey.
type Wave struct {
	// Number identifies the wave. Positive and unique within a registry.
	Number int `json:"number"`
	// Name is the display name, conventionally "Wave<N>".
	Name string `json:"name"`
	// Prefix namespaces the wave's variables in the processed dataset,
	// conventionally "W<N>_". Column names are Prefix + variable.
	Prefix string `json:"prefix"`
	// Description is free-form operator text and may be empty.
	Description string `json:"description,omitempty"`
}

// Validate checks the structural invariants of a single wave definition.
func (w Wave) Validate() error {
	if w.Number <= 0 {
		return fmt.Errorf("wave number must be positive, got %d", w.Number)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("wave %d: name cannot be empty", w.Number)
	}
	if strings.TrimSpace(w.Prefix) == "" {
		return fmt.Errorf("wave %d: column prefix cannot be empty", w.Number)
	}
	return nil
}

// Column returns the dataset column name for a variable measured at this wave.
func (w Wave) Column(variable string) string {
	return w.Prefix + variable
}

var digitRun = regexp.MustCompile(`\d+`)

// NumberFromName extracts the wave number from a display name such as
// "Wave3" or "wave 12". The first run of digits wins.
func NumberFromName(name string) (int, error) {
	match := digitRun.FindString(name)
	if match == "" {
		return 0, fmt.Errorf("wave name %q contains no wave number", name)
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("wave name %q: parse number: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("wave name %q: wave number must be positive", name)
	}
	return n, nil
}

// DefaultWaves returns the standard three-wave layout used when no
// definitions have been persisted yet.
func DefaultWaves() []Wave {
	return []Wave{
		{Number: 1, Name: "Wave1", Prefix: "W1_", Description: "First measurement"},
		{Number: 2, Name: "Wave2", Prefix: "W2_", Description: "Second measurement"},
		{Number: 3, Name: "Wave3", Prefix: "W3_", Description: "Third measurement"},
	}
}

// formatNumbers renders registered wave numbers for error messages.
func formatNumbers(numbers []int) string {
	if len(numbers) == 0 {
		return "none"
	}
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
