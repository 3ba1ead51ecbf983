package model

import "fmt"

// FormatTiming renders a microsecond duration the way the @busy/@idle tags
// must appear once rendered for a reader: "us" below 1e3, two-decimal "ms"
// below 1e6, two-decimal "s" otherwise.
func FormatTiming(micros uint64) string {
	switch {
	case micros < 1_000:
		return fmt.Sprintf("%dus", micros)
	case micros < 1_000_000:
		return fmt.Sprintf("%.2fms", float64(micros)/1_000)
	default:
		return fmt.Sprintf("%.2fs", float64(micros)/1_000_000)
	}
}
