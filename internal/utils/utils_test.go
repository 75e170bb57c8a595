package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactly-ten", TruncateString("exactly-ten", 11))
	assert.Equal(t, "long-st...", TruncateString("long-string-here", 10))
	// Strings shorter than the ellipsis are returned untouched.
	assert.Equal(t, "abc", TruncateString("abc", 2))
}

func TestFormatTimeDuration(t *testing.T) {
	assert.Equal(t, "5s", FormatTimeDuration(5*time.Second))
	assert.Equal(t, "1m 5s", FormatTimeDuration(65*time.Second))
	assert.Equal(t, "2h 3m 4s", FormatTimeDuration(2*time.Hour+3*time.Minute+4*time.Second))
}
