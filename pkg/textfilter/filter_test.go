package textfilter

import (
	"testing"
)

func TestPromptFilter_Filter(t *testing.T) {
	filter := NewPromptFilter()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "named cocktail becomes generic potion",
			input:    "A bartender sliding a bloody mary across the counter",
			expected: "A bartender sliding a dark potion across the counter",
		},
		{
			name:     "specific pattern wins over generic",
			input:    "A Bloody Mary next to a bloody rag",
			expected: "A Dark Potion next to a grimy rag",
		},
		{
			name:     "brand replaced",
			input:    "A neon Coca-Cola sign flickering above the diner",
			expected: "A neon Fizzy Drink sign flickering above the diner",
		},
		{
			name:     "violence subdued",
			input:    "A corpse slumped by the door, blood on the tiles",
			expected: "A fallen figure slumped by the door, dark stains on the tiles",
		},
		{
			name:     "case preservation uppercase",
			input:    "WHISKEY bottles line the shelf",
			expected: "AMBER BREW bottles line the shelf",
		},
		{
			name:     "word boundaries respected",
			input:    "A ruminating sailor on the winery tour",
			expected: "A ruminating sailor on the winery tour",
		},
		{
			name:     "clean prompt untouched",
			input:    "A quiet plaza at dusk, pigeons near a fountain",
			expected: "A quiet plaza at dusk, pigeons near a fountain",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.Filter(tt.input); got != tt.expected {
				t.Errorf("Filter(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPromptFilter_ContainsSensitive(t *testing.T) {
	filter := NewPromptFilter()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "intoxicant detected",
			input:    "a glass of vodka",
			expected: true,
		},
		{
			name:     "case insensitive detection",
			input:    "STARBUCKS cup on the dashboard",
			expected: true,
		},
		{
			name:     "partial word does not trigger",
			input:    "a rumpled coat and winery brochures",
			expected: false,
		},
		{
			name:     "clean text",
			input:    "a lighthouse on the cliff",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.ContainsSensitive(tt.input); got != tt.expected {
				t.Errorf("ContainsSensitive(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
