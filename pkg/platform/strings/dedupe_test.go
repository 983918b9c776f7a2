package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"12086"},
			expected: []string{"12086"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  12086  ", "12011  ", "  13001"},
			expected: []string{"12086", "12011", "13001"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"12086", "12011", "12086", "13001", "12011"},
			expected: []string{"12086", "12011", "13001"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"12086", "", "  ", "12011"},
			expected: []string{"12086", "12011"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  12086 ", "12011", "12086", "", "  ", "12011"},
			expected: []string{"12086", "12011"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
