package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sariahouse/racebot/internal/lang"
)

func TestParseBreaks(t *testing.T) {
	cfg, err := ParseBreaks("5m every 2h30")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Duration)
	assert.Equal(t, 2*time.Hour+30*time.Minute, cfg.Interval)

	// Bare numbers: minutes for the duration, hours for the interval.
	cfg, err = ParseBreaks("10 every 2")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Interval)
}

func TestParseBreaksRejectsBadConfigs(t *testing.T) {
	cases := []string{
		"5m",               // no interval
		"30s every 1h",     // too short
		"5m every 8m",      // intervals must leave 5 minutes of racing
		"23h every 23h",    // more than a day apart
		"soon every 2h",    // not a duration
		"5m every forever", // not a duration
	}
	for _, input := range cases {
		_, err := ParseBreaks(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestBreakConfigFormat(t *testing.T) {
	cfg := BreakConfig{Duration: 5 * time.Minute, Interval: 2*time.Hour + 30*time.Minute}
	assert.Equal(t, "5 minutes every 2 hours and 30 minutes", cfg.Format(lang.English))
}

func TestParseScore(t *testing.T) {
	score, err := ParseScore([]string{"2", "1h5m"})
	require.NoError(t, err)
	assert.Equal(t, 2, score.Pieces)
	assert.Equal(t, time.Hour+5*time.Minute, score.LastCollectionTime)
	assert.Equal(t, "2/3 in 1 hour and 5 minutes", score.Format(lang.English))

	// A bare number is hours.
	score, err = ParseScore([]string{"3", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, score.LastCollectionTime)

	// Zero pieces needs no time.
	score, err = ParseScore([]string{"0"})
	require.NoError(t, err)
	assert.Equal(t, 0, score.Pieces)
}

func TestParseScoreRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{},            // missing pieces
		{"4", "1h"},   // too many pieces
		{"-1", "1h"},  // negative
		{"2"},         // pieces without a time
		{"2", "soon"}, // not a duration
	} {
		_, err := ParseScore(args)
		assert.Error(t, err, "args %v", args)
	}
}
