// Package util contains small helpers shared across packages.
package util

import (
	"fmt"
	"unicode/utf8"
)

// SafeLogMessage shortens message to at most maxLen bytes for logging,
// cutting on a rune boundary and noting how much was dropped.
func SafeLogMessage(message string, maxLen int) string {
	if maxLen <= 0 || len(message) <= maxLen {
		return message
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... (%d more bytes)", message[:cut], len(message)-cut)
}
