package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseIntervalWidth parses an interval width from either p-notation (p80,
// p95) or decimal notation (0.8, 0.95).
//
// Examples:
//   - "p80"  → 0.80
//   - "0.95" → 0.95
//   - ""     → DefaultIntervalWidth
//
// Returns an error if the format is invalid or the width is outside (0, 1).
func ParseIntervalWidth(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultIntervalWidth, nil
	}

	var width float64
	if strings.HasPrefix(strings.ToLower(s), "p") {
		pct, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid p-notation %q: %w", s, err)
		}
		width = pct / 100.0
	} else {
		w, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval width %q: %w", s, err)
		}
		width = w
	}

	if width <= 0 || width >= 1 {
		return 0, fmt.Errorf("interval width %v out of range (0, 1)", width)
	}
	return width, nil
}

// FormatIntervalWidth formats a width as p-notation, e.g. 0.8 → "p80".
func FormatIntervalWidth(w float64) string {
	return fmt.Sprintf("p%.0f", w*100)
}

// zScore returns the standard normal quantile bounding a central interval
// of the given coverage.
func zScore(width float64) float64 {
	return math.Sqrt2 * math.Erfinv(width)
}

// horizonFactor widens the band as the projection moves away from the data.
func horizonFactor(step int) float64 {
	return math.Sqrt(1.0 + float64(step)*0.1)
}

// band builds a point whose interval is value ± halfWidth.
func band(p Point, halfWidth float64) Point {
	if halfWidth < 0 || math.IsNaN(halfWidth) {
		halfWidth = 0
	}
	p.Lower = p.Value - halfWidth
	p.Upper = p.Value + halfWidth
	return p
}

// residualStdDev returns the sample standard deviation of residuals around
// zero, correcting for the given number of fitted parameters.
func residualStdDev(residuals []float64, params int) float64 {
	dof := len(residuals) - params
	if dof < 1 {
		dof = len(residuals) - 1
	}
	if dof < 1 {
		return 0
	}
	sumSq := 0.0
	for _, r := range residuals {
		sumSq += r * r
	}
	return math.Sqrt(sumSq / float64(dof))
}
