package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Percent returns part/total as an integer percentage, rounding halves up.
// It returns 0 when total is not positive.
func Percent(part, total int) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
