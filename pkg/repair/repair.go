// Package repair decodes structured documents out of raw generative-service
// output. Replies should contain a single JSON object but are routinely
// wrapped in code fences, surrounded by prose, or truncated mid-value by the
// token budget. Truncation is almost always near the end of the document, so
// a short ladder of speculative structural fixes recovers most cases.
package repair

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnrepairable is returned when no repair strategy yields a valid
// document. Callers treat this as a recoverable soft failure, not a crash.
var ErrUnrepairable = errors.New("repair: no valid document recovered")

// Extract returns the brace-delimited window of raw: the substring from the
// first '{' to the last '}'. This strips fences and incidental prose without
// parsing fence syntax. When no closing brace follows the opening one, the
// tail from the first '{' is returned so the repair ladder can work on it.
func Extract(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(raw, '}')
	if end < start {
		return raw[start:], true
	}
	return raw[start : end+1], true
}

// Decode parses the structured document in raw into v, attempting
// progressive repair of truncated output before giving up. The first
// speculative decode that succeeds wins; each attempt is side-effect free
// because decoding happens into a fresh buffer until one parses.
func Decode(raw string, v any) error {
	doc, ok := Extract(raw)
	if !ok {
		return ErrUnrepairable
	}

	for _, candidate := range candidates(doc) {
		if json.Valid([]byte(candidate)) {
			return json.Unmarshal([]byte(candidate), v)
		}
	}
	return ErrUnrepairable
}

// candidates returns the document followed by its repaired variants, ordered
// from least to most invasive.
func candidates(doc string) []string {
	out := []string{doc}

	// Dropped final object close.
	out = append(out, doc+"}")

	// Dropped trailing array/object close.
	out = append(out, doc+"]}")

	trimmed := strings.TrimRight(doc, " \t\r\n")
	if endsInsideString(trimmed) {
		// Ends mid-string: close the string, then the object.
		out = append(out, trimmed+`"}`)
		out = append(out, trimmed+`"]}`)
	} else {
		// Assume truncation landed inside a string value anyway; closing
		// the string first costs nothing if wrong.
		out = append(out, trimmed+`"}`)
	}

	return out
}

// endsInsideString reports whether doc terminates inside an unterminated
// JSON string literal, accounting for escaped quotes.
func endsInsideString(doc string) bool {
	inString := false
	escaped := false
	for _, r := range doc {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		}
	}
	return inString
}
