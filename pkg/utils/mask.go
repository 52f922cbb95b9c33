package utils

import "strings"

// MaskSensitiveString keeps the first and last four characters of a secret.
// Short values are fully masked.
func MaskSensitiveString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// IsMasked reports whether s looks like the output of MaskSensitiveString.
// Clients echo masked keys back on edit; those must not overwrite the stored secret.
func IsMasked(s string) bool {
	return s != "" && strings.Contains(s, "****")
}
