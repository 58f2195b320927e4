// Package utils provides common utility functions for EpiCurve.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCount formats a daily count for display in a data table: grouped
// thousands, right-aligned to width. NaN renders as blanks (or "---" when
// width is 0, for inline use). A positive value that rounds to zero renders
// as "< 0.5" so small tails stay visible.
func FormatCount(v float64, width int) string {
	if math.IsNaN(v) {
		if width == 0 {
			return "---"
		}
		return strings.Repeat(" ", width)
	}
	n := int64(math.Round(v))
	var s string
	if n == 0 && v > 0 {
		s = "< 0.5"
	} else {
		s = GroupThousands(n)
	}
	if width == 0 {
		return s
	}
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// GroupThousands renders an integer with comma-grouped digits.
func GroupThousands(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if negative {
		return "-" + s
	}
	return s
}

// FormatPercent renders a 0-100 percentage with one decimal place.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
