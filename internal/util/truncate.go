package util

import (
	"fmt"
	"os"
	"strings"
)

// DefaultLogMaxLen caps truncated log output at 1KB.
const DefaultLogMaxLen = 1024

// TruncateLog truncates long strings for verbose logging so payload dumps
// do not flood the log.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is a convenience wrapper for TruncateLog with the default cap.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}

// IsVerbose checks the GATEWAY_VERBOSE environment variable.
// Accepts: "1", "true", "yes" (case-insensitive).
func IsVerbose() bool {
	switch strings.ToLower(os.Getenv("GATEWAY_VERBOSE")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
