// Package colormap persists semantic color assignments for variable
// values, so that a category like "Republican" renders in the same color
// in every chart. Values without an assignment fall back to a default
// palette.
package colormap

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Mapping is one persisted color assignment: this value of this variable
// renders as this color.
type Mapping struct {
	Variable    string `json:"variable"`
	Value       string `json:"value"`
	ColorHex    string `json:"color_hex"`
	Description string `json:"description,omitempty"`
}

// DefaultPalette colors values without a semantic mapping, cycling in
// order. The first eight colors of the tab10 palette.
var DefaultPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
}

// hexPattern accepts #RGB and #RRGGBB forms.
var hexPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// InvalidColorError reports a color that is not a hex code.
type InvalidColorError struct {
	Color string
}

func (e *InvalidColorError) Error() string {
	return fmt.Sprintf("invalid color %q, want a hex code like #1f77b4", e.Color)
}

// Validate checks a mapping before it is stored.
func (m Mapping) Validate() error {
	if strings.TrimSpace(m.Variable) == "" {
		return errors.New("mapping variable is required")
	}
	if strings.TrimSpace(m.Value) == "" {
		return errors.New("mapping value is required")
	}
	if !hexPattern.MatchString(m.ColorHex) {
		return &InvalidColorError{Color: m.ColorHex}
	}
	return nil
}
