package exporter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"whole number gains decimals", 100, "100.00"},
		{"single decimal padded", 13.4, "13.40"},
		{"two decimals kept", 54.55, "54.55"},
		{"zero", 0, "0.00"},
		{"negative", -3.5, "-3.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFloat(tt.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "42", formatInt(42))
	assert.Equal(t, "-7", formatInt(-7))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"safe name unchanged", "w1_to_w3_political_leaning", "w1_to_w3_political_leaning"},
		{"path separators replaced", `a/b\c`, "a_b_c"},
		{"unsafe characters replaced", `re<sult>:"x"?*`, "re_sult___x___"},
		{"surrounding whitespace and dots trimmed", "  name. ", "name"},
		{"empty becomes untitled", "", "untitled"},
		{"only dots becomes untitled", "...", "untitled"},
		{"long name capped at 100", strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.input))
		})
	}
}
