// Package sanitize cleans generative-service output before it reaches game
// state or the display layer. Model-produced item names routinely carry
// technical artifacts: snake_case joins, hex IDs, version suffixes, error
// annotations. Sanitization is pure and total; it never fails.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

const (
	// MaxNameLength is the display bound for item names, in runes.
	MaxNameLength = 40

	// PlaceholderName labels an item whose name was nothing but artifacts.
	PlaceholderName = "Unidentified item"

	// PlaceholderDescription fills in for an absent item description.
	PlaceholderDescription = "An object of uncertain purpose."
)

var (
	errAnnotation  = regexp.MustCompile(`(?i)\s*-\s*error\b.*$`)
	hexToken       = regexp.MustCompile(`(?i)\b[0-9a-f]{8,}\b`)
	versionToken   = regexp.MustCompile(`(?i)\b(x86|x64|v\d+(\.\d+)*)\b`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// Name cleans a single item name of technical artifacts and enforces the
// display bound. The result is never empty.
func Name(raw string) string {
	s := strings.ReplaceAll(raw, "_", " ")
	s = errAnnotation.ReplaceAllString(s, "")
	s = hexToken.ReplaceAllString(s, "")
	s = versionToken.ReplaceAllString(s, "")
	s = repeatedSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = capitalize(s)
	s = truncate(s, MaxNameLength)
	if s == "" {
		return PlaceholderName
	}
	return s
}

// Inventory returns a sanitized copy of items. It runs on every inventory
// update, including fallback paths, and is the single point guaranteeing no
// raw model artifact ever reaches the display layer.
func Inventory(items []state.InventoryItem) []state.InventoryItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]state.InventoryItem, 0, len(items))
	for _, item := range items {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			desc = PlaceholderDescription
		}
		out = append(out, state.InventoryItem{
			Name:        Name(item.Name),
			Description: desc,
		})
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
