package logger

import (
	"strconv"
	"strings"
	"time"
)

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were
// dropped. A dropped tail is noted as "+N more".
func SummarizeStrings(values []string, limit int) (string, bool) {
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	if limit <= 0 {
		return "+" + strconv.Itoa(len(values)) + " more", true
	}
	return strings.Join(values[:limit], ", ") + ", +" + strconv.Itoa(len(values)-limit) + " more", true
}
