package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/store"
)

func TestTeamsBySide(t *testing.T) {
	high := []store.TeamMember{
		{TeamID: "t1", UserID: "u1", RacetimeID: "rt1", HighSeed: true},
		{TeamID: "t1", UserID: "u2", RacetimeID: "rt2"},
	}
	low := []store.TeamMember{
		{TeamID: "t2", UserID: "u3", RacetimeID: "rt3"},
		// No platform account on record; they can't be matched in chat.
		{TeamID: "t2", UserID: "u4"},
	}

	teams := teamsBySide(high, low)
	assert.Equal(t, map[string]draft.Team{
		"rt1": draft.HighSeed,
		"rt2": draft.HighSeed,
		"rt3": draft.LowSeed,
	}, teams)
}
