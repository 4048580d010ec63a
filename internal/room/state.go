// Package room drives one race room: it tracks the race through its
// lifecycle, runs the settings draft, rolls the seed, and answers chat
// commands.
package room

import (
	"fmt"
	"time"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/gen"
	"github.com/sariahouse/racebot/internal/goal"
	"github.com/sariahouse/racebot/internal/lang"
)

// Phase is where the room is in its seed lifecycle. Transitions only move
// forward: Init, optionally Draft, then Rolling, Rolled, SpoilerSent.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseDraft
	PhaseRolling
	PhaseRolled
	PhaseSpoilerSent
)

// RaceState is the per-room seed state, guarded by the handler's lock.
type RaceState struct {
	Phase     Phase
	Draft     *draft.State
	DraftKind draft.Kind
	Unlock    goal.UnlockPolicy
	Seed      *gen.SeedInfo
}

// Restream is one restream assigned to the race.
type Restream struct {
	Language     lang.Language
	RestreamerID string
	Ready        bool
}

// Score is a reported collectible-mode result: how many pieces were found
// and when the last one was collected.
type Score struct {
	Pieces             int
	LastCollectionTime time.Duration
}

// Format renders the score for chat, e.g. "2/3 in 1 hour and 5 minutes".
func (s Score) Format(l lang.Language) string {
	return fmt.Sprintf("%d/3 in %s", s.Pieces, l.FormatDuration(s.LastCollectionTime))
}

// ParseScore parses "!score <pieces> <last collection time>". The time
// defaults to hours for bare numbers and may be omitted when no pieces
// were collected.
func ParseScore(args []string) (Score, error) {
	if len(args) == 0 {
		return Score{}, fmt.Errorf("specify how many pieces you found, e.g. “!score 2 1h30”")
	}
	var score Score
	if _, err := fmt.Sscanf(args[0], "%d", &score.Pieces); err != nil || score.Pieces < 0 || score.Pieces > 3 {
		return Score{}, fmt.Errorf("the number of pieces must be between 0 and 3")
	}
	if len(args) > 1 {
		d, ok := lang.ParseDuration(args[1], lang.UnitHours)
		if !ok {
			return Score{}, fmt.Errorf("I don't understand that collection time, try e.g. “1h23m45s”")
		}
		score.LastCollectionTime = d
	} else if score.Pieces > 0 {
		return Score{}, fmt.Errorf("please include the time of your most recent collection")
	}
	return score, nil
}
