package peerdata

import (
	"fmt"
	"time"
)

// FormatBytes renders a byte total in the dashboard's compact form:
// whole bytes below 1KB, one decimal for KB and MB, two for GB.
func FormatBytes(n uint64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)

	switch {
	case n < kb:
		return fmt.Sprintf("%dB", n)
	case n < mb:
		return fmt.Sprintf("%.1fKB", float64(n)/kb)
	case n < gb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	}

	return fmt.Sprintf("%.2fGB", float64(n)/gb)
}

// FormatAge renders a connection age as its two most significant
// non-zero units with no separators, e.g. "3d4h", "2m10s", "45s". A
// negative age renders as "-"; callers are expected to special case
// connections whose establishment time is unknown.
func FormatAge(age time.Duration) string {
	if age < 0 {
		return "-"
	}

	total := int64(age / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		switch {
		case hours > 0:
			return fmt.Sprintf("%dd%dh", days, hours)
		case minutes > 0:
			return fmt.Sprintf("%dd%dm", days, minutes)
		case seconds > 0:
			return fmt.Sprintf("%dd%ds", days, seconds)
		}

		return fmt.Sprintf("%dd", days)

	case hours > 0:
		switch {
		case minutes > 0:
			return fmt.Sprintf("%dh%dm", hours, minutes)
		case seconds > 0:
			return fmt.Sprintf("%dh%ds", hours, seconds)
		}

		return fmt.Sprintf("%dh", hours)

	case minutes > 0:
		if seconds > 0 {
			return fmt.Sprintf("%dm%ds", minutes, seconds)
		}

		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%ds", seconds)
}
