package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single value", input: "http://localhost", expected: []string{"http://localhost"}},
		{
			name:     "varied spacing",
			input:    "http://localhost ,  http://localhost:3000",
			expected: []string{"http://localhost", "http://localhost:3000"},
		},
		{name: "only separators", input: " , ,", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestUpperAll(t *testing.T) {
	assert.Equal(t, []string{"U123", "U456"}, UpperAll([]string{" u123", "U456", "  "}))
	assert.Empty(t, UpperAll(nil))
}
