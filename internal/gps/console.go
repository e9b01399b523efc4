package gps

import (
	"fmt"
	"io"
	"strconv"
)

// FormatFix renders a fix the way existing consumers of stdout expect it:
// "Latitude::<lat>\tLongitude::<lon>".
func FormatFix(f Fix) string {
	return "Latitude::" + formatDegrees(f.Latitude) + "\tLongitude::" + formatDegrees(f.Longitude)
}

// formatDegrees uses the shortest representation that round-trips. Like .NET's
// default double rendering, 'G' switches to exponent form below 1e-4 (and at
// 1e21 and above, which no coordinate reaches).
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'G', -1, 64)
}

// ConsoleWriter returns a fix callback that writes one FormatFix line per fix
// to w.
func ConsoleWriter(w io.Writer) func(Fix) error {
	return func(f Fix) error {
		_, err := fmt.Fprintln(w, FormatFix(f))
		return err
	}
}
