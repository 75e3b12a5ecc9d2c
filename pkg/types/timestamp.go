package types

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimestamp renders elapsed seconds as HH:MM:SS, or MM:SS when the
// duration is under an hour. Fractional seconds are truncated.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hrs > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

// ParseTimestamp converts an HH:MM:SS or MM:SS timestamp to elapsed seconds.
// Unrecognized input parses to 0.
func ParseTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	switch len(parts) {
	case 3:
		hrs, e1 := strconv.Atoi(parts[0])
		mins, e2 := strconv.Atoi(parts[1])
		secs, e3 := strconv.Atoi(parts[2])
		if e1 != nil || e2 != nil || e3 != nil {
			return 0
		}
		return float64(hrs*3600 + mins*60 + secs)
	case 2:
		mins, e1 := strconv.Atoi(parts[0])
		secs, e2 := strconv.Atoi(parts[1])
		if e1 != nil || e2 != nil {
			return 0
		}
		return float64(mins*60 + secs)
	default:
		return 0
	}
}
