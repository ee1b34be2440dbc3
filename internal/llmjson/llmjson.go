// Package llmjson pulls JSON payloads out of free-form model output.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNoJSON = errors.New("no valid JSON found in response")

	codeFenceRegex = regexp.MustCompile("```(?:json)?\\s*")
)

// Clean removes markdown code fences and surrounding whitespace.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = codeFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// FixInvalidEscapes doubles backslashes that do not start a valid JSON
// escape, so "\N" survives decoding as a literal.
func FixInvalidEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch next {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			b.WriteByte('\\')
		default:
			b.WriteString(`\\`)
		}
		b.WriteByte(next)
		i++
	}

	return b.String()
}

// Decode scans text for the first JSON object or array that unmarshals into
// T and satisfies accept (nil accepts anything). Leading prose, trailing
// chatter and code fences are tolerated.
func Decode[T any](text string, accept func(T) bool) (T, error) {
	var zero T
	text = FixInvalidEscapes(Clean(text))

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}

		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}

		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if accept == nil || accept(v) {
			return v, nil
		}
	}

	return zero, ErrNoJSON
}

// Truncate shortens s for log and error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
