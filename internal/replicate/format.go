package replicate

import (
	"math"
	"strconv"
	"strings"
)

var sizeUnits = [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatSize renders a byte count as a human-readable base-1024 string,
// rounded to at most two decimals: 0 -> "0 B", 1024 -> "1.0 KB",
// 1536 -> "1.5 KB". Values below 1 KB are whole byte counts and carry
// no decimal; scaled values always show at least one. Negative counts
// render as "0 B".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	if bytes < 1024 {
		return strconv.FormatInt(bytes, 10) + " B"
	}

	value := float64(bytes)
	unit := 0

	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	value = math.Round(value*100) / 100

	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s + " " + sizeUnits[unit]
}
