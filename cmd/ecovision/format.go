package main

import (
	"encoding/json"
	"io"
	"math"

	"github.com/dustin/go-humanize"
)

// kwh formats an energy value with thousands separators.
func kwh(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return humanize.FormatFloat("#,###.##", v) + " kWh"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
