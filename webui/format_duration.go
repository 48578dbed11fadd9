package webui

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration in the largest sensible unit for
// dashboard display: "850ms", "12.4s", "3m05s", "1h12m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	default:
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
}

// FormatDurationCompact renders a duration as whole seconds, used where
// space is tight ("retry in 42s").
func FormatDurationCompact(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("%ds", seconds)
}
