package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeConsumption(t *testing.T) {
	t.Run("first reading of a fresh meter", func(t *testing.T) {
		assert.Equal(t, 1200.0, ComputeConsumption(1200, 0))
	})

	t.Run("normal follow-up reading", func(t *testing.T) {
		assert.Equal(t, 300.0, ComputeConsumption(1500, 1200))
	})

	t.Run("index rollback clamps to zero", func(t *testing.T) {
		// Meter swap or agent typo: 1400 after 1500 must not go negative.
		assert.Equal(t, 0.0, ComputeConsumption(1400, 1500))
	})

	t.Run("equal indices", func(t *testing.T) {
		assert.Equal(t, 0.0, ComputeConsumption(1500, 1500))
	})

	t.Run("fractional indices", func(t *testing.T) {
		assert.InDelta(t, 0.5, ComputeConsumption(10.75, 10.25), 1e-9)
	})
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1500, 1500},
		{500.004, 500.00},
		{500.005, 500.01}, // half rounds up
		{499.999, 500.00},
		{0.125, 0.13},
		{33.333333, 33.33},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Round2(c.in), "Round2(%v)", c.in)
	}
}

func TestFormatMeterID(t *testing.T) {
	assert.Equal(t, "COMP-2026-001", formatMeterID("COMP", 2026, 1))
	assert.Equal(t, "COMP-2026-042", formatMeterID("COMP", 2026, 42))
	// Padding stops at three digits, the sequence keeps growing.
	assert.Equal(t, "COMP-2026-1000", formatMeterID("COMP", 2026, 1000))
}

func TestMeterIDYearPrefix(t *testing.T) {
	assert.Equal(t, "COMP-2026-", meterIDYearPrefix("COMP", 2026))
}

func TestNextSequence(t *testing.T) {
	t.Run("empty means first of the year", func(t *testing.T) {
		seq, err := nextSequence("")
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
	})

	t.Run("increments the last segment", func(t *testing.T) {
		seq, err := nextSequence("COMP-2026-042")
		require.NoError(t, err)
		assert.Equal(t, 43, seq)
	})

	t.Run("crosses the padding boundary", func(t *testing.T) {
		seq, err := nextSequence("COMP-2026-999")
		require.NoError(t, err)
		assert.Equal(t, 1000, seq)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		_, err := nextSequence("garbage")
		assert.Error(t, err)

		_, err = nextSequence("COMP-2026-xyz")
		assert.Error(t, err)
	})
}
