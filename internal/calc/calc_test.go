package calc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetention(t *testing.T) {
	cases := []struct {
		expr string
		want time.Duration
	}{
		{"", 0},
		{"5d", 5 * 24 * time.Hour},
		{"1y", 365 * 24 * time.Hour},
		{"1m", 28 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"1y2m3w4d", (365 + 2*28 + 3*7 + 4) * 24 * time.Hour},
	}

	for _, tc := range cases {
		got, err := ParseRetention(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestParseRetentionInvalid(t *testing.T) {
	_, err := ParseRetention("invalid")
	assert.Error(t, err)
}

func TestComputeStart(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	start, err := ComputeStart(now, "5d")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-5*24*time.Hour), start)
}
