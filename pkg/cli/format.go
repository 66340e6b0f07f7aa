package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes formats a byte count using IEC units ("1.0 KiB").
func FormatBytes(n int) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FormatCount formats a transfer total with thousands separators.
func FormatCount(n uint64) string {
	return humanize.Comma(int64(n))
}

// FormatAge formats how long ago t was relative to now.
func FormatAge(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Bar renders used/total as a fixed-width bar: "[####......]".
func Bar(used, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = min(width, max(0, used*width/total))
		if used > 0 && filled == 0 {
			filled = 1
		}
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// Percent formats used/total as a percentage.
func Percent(used, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", used*100/total)
}
