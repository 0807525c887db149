// Package masking redacts free-text payment details before they are audited.
package masking

import "strings"

const maskToken = "****"

// MaskReference keeps only the last four characters of a payment reference.
func MaskReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= 4 {
		return maskToken
	}
	return maskToken + string(runes[len(runes)-4:])
}
