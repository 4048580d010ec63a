// Package goal maps race-platform goals to the tournaments the bot knows,
// with per-goal lookup tables for language, draft rules, seed prerolling,
// and spoiler log policy.
package goal

import (
	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/lang"
)

// PrerollMode controls when a seed for a scheduled race starts rolling.
type PrerollMode int

const (
	// PrerollNone waits until the rolling deadline.
	PrerollNone PrerollMode = iota
	// PrerollShort rolls within the 5 minutes before the deadline.
	PrerollShort
	// PrerollMedium starts rolling between room open and 15 minutes
	// before the deadline.
	PrerollMedium
	// PrerollLong keeps one seed in reserve for the whole event and
	// fetches or rolls immediately as the room is opened.
	PrerollLong
)

// UnlockPolicy says when a race's spoiler log becomes visible.
type UnlockPolicy int

const (
	UnlockNow UnlockPolicy = iota
	UnlockAfter
	UnlockNever
)

// Goal is one recognized tournament goal.
type Goal int

const (
	ChallengeCup7 Goal = iota
	CopaDoBrasil
	MixedPoolsS3
	MultiworldS3
	RandomSettingsLeague
	StandardWeekly
	TriforceBlitz
	WeTryToBeBetter
)

var all = []Goal{
	ChallengeCup7,
	CopaDoBrasil,
	MixedPoolsS3,
	MultiworldS3,
	RandomSettingsLeague,
	StandardWeekly,
	TriforceBlitz,
	WeTryToBeBetter,
}

// ForEvent returns the goal used by the given tournament event.
func ForEvent(series, event string) (Goal, bool) {
	for _, g := range all {
		if g.MatchesEvent(series, event) {
			return g, true
		}
	}
	return 0, false
}

// FromRaceData matches a room's goal name and custom flag to a known goal.
func FromRaceData(name string, custom bool) (Goal, bool) {
	for _, g := range all {
		if g.Name() == name && g.IsCustom() == custom {
			return g, true
		}
	}
	return 0, false
}

// MatchesEvent reports whether the goal belongs to the event.
func (g Goal) MatchesEvent(series, event string) bool {
	switch g {
	case ChallengeCup7:
		return series == "standard" && event == "7cc"
	case CopaDoBrasil:
		return series == "br" && event == "1"
	case MixedPoolsS3:
		return series == "mp" && event == "3"
	case MultiworldS3:
		return series == "mw" && event == "3"
	case RandomSettingsLeague:
		return series == "rsl"
	case StandardWeekly:
		return series == "standard" && event == "w"
	case TriforceBlitz:
		return series == "tfb"
	case WeTryToBeBetter:
		return series == "wttbb" && event == "1"
	}
	return false
}

// Name is the goal name as it appears on the race platform.
func (g Goal) Name() string {
	switch g {
	case ChallengeCup7:
		return "Standard Tournament Season 7 Challenge Cup"
	case CopaDoBrasil:
		return "Copa do Brasil"
	case MixedPoolsS3:
		return "3rd Mixed Pools Tournament"
	case MultiworldS3:
		return "3rd Multiworld Tournament"
	case RandomSettingsLeague:
		return "Random settings league"
	case StandardWeekly:
		return "Standard Ruleset"
	case TriforceBlitz:
		return "Triforce Blitz"
	case WeTryToBeBetter:
		return "WeTryToBeBetter"
	}
	return ""
}

// IsCustom reports whether the platform goal is a custom goal rather than
// one of the category's fixed goals.
func (g Goal) IsCustom() bool {
	switch g {
	case RandomSettingsLeague, StandardWeekly, TriforceBlitz:
		return false
	}
	return true
}

// Language is the language the bot speaks in this goal's rooms.
func (g Goal) Language() lang.Language {
	switch g {
	case CopaDoBrasil:
		return lang.Portuguese
	case WeTryToBeBetter:
		return lang.French
	}
	return lang.English
}

// DraftKind returns the settings draft rules, if the goal drafts settings.
func (g Goal) DraftKind() (draft.Kind, bool) {
	switch g {
	case ChallengeCup7:
		return draft.TournamentS7, true
	case MultiworldS3:
		return draft.MultiworldS3, true
	}
	return 0, false
}

// PrerollMode says when seed rolling starts relative to the deadline.
func (g Goal) PrerollMode() PrerollMode {
	switch g {
	case TriforceBlitz:
		return PrerollNone
	case ChallengeCup7, StandardWeekly:
		return PrerollShort
	case MixedPoolsS3:
		return PrerollLong
	}
	return PrerollMedium
}

// SpoilerPolicy determines spoiler log visibility for a race.
func (g Goal) SpoilerPolicy(official, spoilerSeed bool) UnlockPolicy {
	if spoilerSeed {
		return UnlockNow
	}
	switch g {
	case ChallengeCup7, StandardWeekly:
		if official {
			return UnlockNever
		}
	}
	return UnlockAfter
}

// MultiworldCount is the number of worlds per seed, 1 for solo goals.
func (g Goal) MultiworldCount() int {
	if g == MultiworldS3 {
		return 3
	}
	return 1
}

// UsesBlitzSite reports whether seeds come from the alternate generator
// site instead of the regular web or local generators.
func (g Goal) UsesBlitzSite() bool {
	return g == TriforceBlitz
}

// AuditsSeeds reports whether each rolled seed is recorded in the audit
// log in addition to the race row.
func (g Goal) AuditsSeeds() bool {
	return g == RandomSettingsLeague
}

// ShouldCreateRooms reports whether the bot opens rooms for this goal's
// scheduled races, as opposed to attaching to rooms opened by hand.
func (g Goal) ShouldCreateRooms() bool {
	switch g {
	case MixedPoolsS3, RandomSettingsLeague:
		return false
	}
	return true
}

// PrerollCacheable reports whether seeds for this goal can be rolled ahead
// of time and stored, which requires fixed settings and long preroll.
func (g Goal) PrerollCacheable() bool {
	return g.PrerollMode() == PrerollLong && g.SingleSettings() != nil
}
