// Package sizeutil formats byte counts for the sync planner's end-of-run
// summary.
package sizeutil

import "github.com/dustin/go-humanize"

// units is the fixed set of decimal units the planner's summary reports in,
// smallest to largest.
var units = [...]string{"B", "KB", "MB", "GB", "TB"}

// ByteSize accumulates a byte count (the sync planner's running "still to
// transfer" total) and formats it to the largest fitting decimal unit.
type ByteSize uint64

// Add accumulates n bytes into the total.
func (s *ByteSize) Add(n uint64) {
	*s += ByteSize(n)
}

// Uint64 returns the raw byte count.
func (s ByteSize) Uint64() uint64 {
	return uint64(s)
}

// String formats the byte count using the largest unit from {B, KB, MB, GB,
// TB} (decimal, 1000-based steps) under which the value still fits,
// truncating (not rounding) to an integer in that unit. This exact
// truncate-to-largest-unit rule is spelled out by the specification's
// end-of-planning summary (§4.5) and tested directly in size_test.go, so it is
// implemented by hand here rather than through go-humanize: humanize.Bytes
// rounds to one decimal place and uses mixed-case SI suffixes ("kB"), neither
// of which matches the mandated format. go-humanize is still used below, for
// the approximate, human-friendly rendering used in per-file trace logging,
// where exact truncation semantics don't matter.
func (s ByteSize) String() string {
	value := uint64(s)

	unitIndex := 0
	divisor := uint64(1)
	for i := 1; i < len(units); i++ {
		step := divisor * 1000
		if value < step {
			break
		}
		divisor = step
		unitIndex = i
	}

	return formatUnit(value/divisor, units[unitIndex])
}

func formatUnit(value uint64, unit string) string {
	return humanize.Comma(int64(value)) + " " + unit
}

// Approximate renders the byte count using go-humanize's standard
// human-readable form (e.g. "4.2 MB"), suitable for trace-level logging where
// a friendly approximation is preferable to the planner's exact truncation
// rule.
func Approximate(n uint64) string {
	return humanize.Bytes(n)
}
