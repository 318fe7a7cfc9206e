// Package redact removes sensitive substrings from log text.
package redact

import "regexp"

// Marker replaces every sensitive match
const Marker = "[REDACTED]"

// three digits, a hyphen, four digits
var sensitivePattern = regexp.MustCompile(`\d{3}-\d{4}`)

// Text replaces every non-overlapping sensitive match in s with Marker.
// Text without matches is returned unchanged.
func Text(s string) string {
	return sensitivePattern.ReplaceAllLiteralString(s, Marker)
}

// Count returns how many sensitive matches s contains
func Count(s string) int {
	return len(sensitivePattern.FindAllStringIndex(s, -1))
}
