package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeLogMessage(t *testing.T) {
	assert.Equal(t, "short", SafeLogMessage("short", 500))
	assert.Equal(t, "unbounded", SafeLogMessage("unbounded", 0))

	long := strings.Repeat("a", 600)
	got := SafeLogMessage(long, 500)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 500)+"..."))
	assert.Contains(t, got, "(100 more bytes)")
}

func TestSafeLogMessageKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a cut at byte 3 would split the second one
	got := SafeLogMessage("éé-tail", 3)
	assert.Equal(t, "é... (7 more bytes)", got)
}
