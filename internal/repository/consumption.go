package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ComputeConsumption derives the consumption recorded on a reading from the
// observed index and the baseline taken from the latest prior reading of the
// same meter. A current index below the baseline (meter swap, dial reset,
// agent typo) yields 0 rather than a negative value; the raw indices are
// kept on the row so the case stays auditable.
func ComputeConsumption(currentIndex, previousIndex float64) float64 {
	c := currentIndex - previousIndex
	if c < 0 {
		return 0
	}
	return c
}

// Round2 rounds half-up to two decimal places. Stats figures are reported
// in m3 or kWh with centesimal precision, matching what the billing exports
// expect.
func Round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// Meter ids look like COMP-2026-001: a fixed prefix, the registration year
// and a sequence that restarts every year. The sequence is zero-padded to
// three digits but keeps growing past 999 (COMP-2026-1000).

// formatMeterID renders a meter id from its parts.
func formatMeterID(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// meterIDYearPrefix returns the LIKE pattern matching all ids issued under
// the given prefix in the given year.
func meterIDYearPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-", prefix, year)
}

// nextSequence extracts the sequence number from the highest existing meter
// id and increments it. lastID carries the full id (e.g. COMP-2026-042); an
// empty lastID means no meter was registered this year yet and the sequence
// starts at 1. Malformed ids produce an error instead of silently reusing a
// sequence.
func nextSequence(lastID string) (int, error) {
	if lastID == "" {
		return 1, nil
	}
	parts := strings.Split(lastID, "-")
	if len(parts) < 3 {
		return 0, fmt.Errorf("malformed meter id %q", lastID)
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, fmt.Errorf("malformed meter id %q: %w", lastID, err)
	}
	return n + 1, nil
}

// currentYear is a variable so tests can pin the registration year.
var currentYear = func() int { return time.Now().UTC().Year() }
