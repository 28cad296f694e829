package ui

import "strings"

// EnsureNewline guarantees the string ends with exactly one trailing newline.
func EnsureNewline(s string) string {
	return strings.TrimRight(s, "\n") + "\n"
}

// Indent prefixes every line of s with the given prefix.
func Indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
