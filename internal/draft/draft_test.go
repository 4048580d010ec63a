package draft

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() *MessageContext {
	return &MessageContext{HighSeedName: "Team A", LowSeedName: "Team B", ReplyTo: "someone"}
}

func TestGoFirstRequired(t *testing.T) {
	s := NewState("team-a")

	step := s.NextStep(MultiworldS3, 0, ctx())
	assert.Equal(t, StepGoFirst, step.Kind)
	assert.Equal(t, HighSeed, step.Team)

	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionBan, Setting: "wincon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first pick hasn't been chosen yet")

	msg, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionGoFirst, First: true})
	require.NoError(t, err)
	assert.Contains(t, msg, "chosen to go first")

	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionGoFirst, First: false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been chosen")
}

func TestMultiworldTurnOrder(t *testing.T) {
	s := NewState("team-a")
	first := true
	s.WentFirst = &first

	// Bans: first-goer, then the other team.
	step := s.NextStep(MultiworldS3, 0, ctx())
	assert.Equal(t, StepBan, step.Kind)
	assert.Equal(t, HighSeed, step.Team)
	assert.True(t, step.Skippable)

	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionBan, Setting: "trials"})
	require.NoError(t, err)
	assert.Equal(t, "0", s.Picks["trials"])

	step = s.NextStep(MultiworldS3, 0, ctx())
	assert.Equal(t, StepBan, step.Kind)
	assert.Equal(t, LowSeed, step.Team)

	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionSkip})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), s.SkippedBans)

	// Picks run A-B-B-A for the team that went first.
	wantTeams := []Team{HighSeed, LowSeed, LowSeed, HighSeed}
	picks := [][2]string{{"wincon", "th"}, {"dungeons", "skulls"}, {"er", "dungeon"}, {"fountain", "open"}}
	for i, p := range picks {
		step = s.NextStep(MultiworldS3, 0, ctx())
		require.Equal(t, StepPick, step.Kind)
		assert.Equal(t, wantTeams[i], step.Team, "pick %d", i)
		assert.Equal(t, i == 3, step.Skippable, "pick %d", i)
		_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: p[0], Value: p[1]})
		require.NoError(t, err)
	}

	step = s.NextStep(MultiworldS3, 0, ctx())
	require.Equal(t, StepDone, step.Kind)
	assert.Equal(t, "dungeons", step.Settings["bridge"])
	assert.Equal(t, "triforce", step.Settings["shuffle_ganon_bosskey"])
	assert.Equal(t, "simple", step.Settings["shuffle_dungeon_entrances"])
	assert.Equal(t, "open", step.Settings["zora_fountain"])
}

func TestNoDoublePick(t *testing.T) {
	s := NewState("team-a")
	first := false
	s.WentFirst = &first
	s.SkippedBans = 2

	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: "shops", Value: "off"})
	require.NoError(t, err)

	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: "shops", Value: "off"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already locked in")

	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: "shops", Value: "4"})
	require.Error(t, err)

	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: "nonsense", Value: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "don't recognize that setting")
}

func TestBadValueRejected(t *testing.T) {
	s := NewState("team-a")
	first := true
	s.WentFirst = &first
	s.SkippedBans = 2

	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: "wincon", Value: "banana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "don't recognize that value")
	assert.Empty(t, s.Picks)
}

func TestSkipOnlyWhenSkippable(t *testing.T) {
	s := NewState("team-a")
	first := true
	s.WentFirst = &first
	s.SkippedBans = 2

	// Picks 2 through 4 are mandatory.
	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionSkip})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't be skipped")

	for _, p := range [][2]string{{"wincon", "scrubs"}, {"er", "dungeon"}, {"trials", "2"}} {
		_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionPick, Setting: p[0], Value: p[1]})
		require.NoError(t, err)
	}

	// The last pick may be skipped.
	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionSkip})
	require.NoError(t, err)
	assert.Equal(t, StepDone, s.NextStep(MultiworldS3, 0, ctx()).Kind)
}

func TestIsActiveTeam(t *testing.T) {
	s := NewState("team-a")
	assert.True(t, s.IsActiveTeam(MultiworldS3, 0, HighSeed))
	assert.False(t, s.IsActiveTeam(MultiworldS3, 0, LowSeed))

	first := false
	s.WentFirst = &first
	assert.True(t, s.IsActiveTeam(MultiworldS3, 0, LowSeed))
	assert.False(t, s.IsActiveTeam(MultiworldS3, 0, HighSeed))
}

func TestTournamentMajorMinorPhases(t *testing.T) {
	s := NewState("team-a")
	first := true
	s.WentFirst = &first
	s.SkippedBans = 2

	step := s.NextStep(TournamentS7, 0, ctx())
	require.Equal(t, StepPick, step.Kind)
	for _, available := range step.Available {
		assert.True(t, available.Major)
	}
	assert.False(t, step.Skippable)

	_, err := s.Apply(TournamentS7, 0, ctx(), Action{Kind: ActionPick, Setting: "fountain", Value: "open"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "don't recognize that setting")

	for _, p := range [][2]string{{"bridge", "open"}, {"dungeons", "on"}} {
		_, err = s.Apply(TournamentS7, 0, ctx(), Action{Kind: ActionPick, Setting: p[0], Value: p[1]})
		require.NoError(t, err)
	}

	step = s.NextStep(TournamentS7, 0, ctx())
	require.Equal(t, StepPick, step.Kind)
	for _, available := range step.Available {
		assert.False(t, available.Major)
	}

	for _, p := range [][2]string{{"trials", "3"}, {"camc", "off"}} {
		_, err = s.Apply(TournamentS7, 0, ctx(), Action{Kind: ActionPick, Setting: p[0], Value: p[1]})
		require.NoError(t, err)
	}

	step = s.NextStep(TournamentS7, 0, ctx())
	require.Equal(t, StepDone, step.Kind)
	assert.Equal(t, "open", step.Settings["bridge"])
	assert.Equal(t, "simple", step.Settings["shuffle_dungeon_entrances"])
	assert.Equal(t, 3, step.Settings["trials"])
	assert.Equal(t, "off", step.Settings["correct_chest_appearances"])
}

func TestCompleteRandomlyTerminates(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		for _, kind := range []Kind{MultiworldS3, TournamentS7} {
			s := NewState("team-a")
			picks := s.CompleteRandomly(kind, rng)
			assert.Equal(t, StepDone, s.NextStep(kind, 0, nil).Kind)
			for name := range picks {
				_, ok := findSetting(kind.Settings(), name)
				assert.True(t, ok, "unknown pick %q", name)
			}
		}
	}
}

func TestDisplayPicks(t *testing.T) {
	s := NewState("team-a")
	assert.Equal(t, "base settings", s.DisplayPicks(MultiworldS3))

	s.Picks["wincon"] = "th"
	s.Picks["fountain"] = "closed"
	assert.Equal(t, "Triforce Hunt, closed fountain", s.DisplayPicks(MultiworldS3))
}

func TestBoolAnswers(t *testing.T) {
	s := NewState("team-a")

	_, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionBool, Confirm: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "!first")

	first := true
	s.WentFirst = &first

	// "no" on a skippable ban skips it.
	msg, err := s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionBool, Confirm: false})
	require.NoError(t, err)
	assert.Contains(t, msg, "skipped their ban")
	assert.Equal(t, uint8(1), s.SkippedBans)

	// "yes" alone doesn't name a setting.
	_, err = s.Apply(MultiworldS3, 0, ctx(), Action{Kind: ActionBool, Confirm: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "!ban")
}
