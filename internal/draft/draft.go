// Package draft implements the turn-based settings draft run before
// tournament races. The engine is pure: NextStep derives the current step
// from the state, and Apply validates one action against that step before
// mutating anything.
package draft

import (
	"fmt"
	"math/rand"
	"strings"
)

// Team identifies a side of the draft relative to seeding.
type Team int

const (
	HighSeed Team = iota
	LowSeed
)

// Choose returns high or low depending on the team.
func (t Team) Choose(high, low string) string {
	if t == HighSeed {
		return high
	}
	return low
}

func (t Team) String() string {
	if t == HighSeed {
		return "high seed"
	}
	return "low seed"
}

// State is the persistent state of one draft.
type State struct {
	HighSeed    string            `json:"high_seed"`
	WentFirst   *bool             `json:"went_first,omitempty"`
	SkippedBans uint8             `json:"skipped_bans"`
	Picks       map[string]string `json:"picks"`
}

// NewState starts a draft with the given high-seeded team.
func NewState(highSeed string) *State {
	return &State{HighSeed: highSeed, Picks: map[string]string{}}
}

// StepKind is the kind of action the draft is waiting for.
type StepKind int

const (
	StepGoFirst StepKind = iota
	StepBan
	StepPick
	// StepBooleanChoice is a standalone yes-or-no question, answered with
	// ActionBool.
	StepBooleanChoice
	StepDone
)

// Step describes what the draft expects next.
type Step struct {
	Kind      StepKind
	Team      Team
	Skippable bool
	Available []Setting
	Message   string
	// Settings holds the fully resolved settings once Kind is StepDone.
	Settings map[string]any
}

// ActionKind enumerates draft actions.
type ActionKind int

const (
	ActionGoFirst ActionKind = iota
	ActionBan
	ActionPick
	ActionSkip
	// ActionBool is a bare yes or no; "no" declines a skippable turn.
	ActionBool
)

// Action is one attempted draft move.
type Action struct {
	Kind    ActionKind
	First   bool
	Confirm bool
	Setting string
	Value   string
}

// MessageContext carries the names used to render step prompts and errors.
type MessageContext struct {
	HighSeedName string
	LowSeedName  string
	ReplyTo      string
}

func (c *MessageContext) teamName(t Team) string {
	if c == nil {
		return ""
	}
	return t.Choose(c.HighSeedName, c.LowSeedName)
}

func (c *MessageContext) sorry(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if c == nil || c.ReplyTo == "" {
		return fmt.Errorf("Sorry, %s", msg)
	}
	return fmt.Errorf("Sorry %s, %s", c.ReplyTo, msg)
}

// pickCount is the number of completed ban/pick turns.
func (s *State) pickCount(kind Kind) int {
	n := int(s.SkippedBans)
	for _, setting := range kind.Settings() {
		if _, ok := s.Picks[setting.Name]; ok {
			n++
		}
	}
	return n
}

// available lists the settings still open for a ban or pick, optionally
// restricted to major or minor settings.
func (s *State) available(kind Kind, major *bool) []Setting {
	var out []Setting
	for _, setting := range kind.Settings() {
		if major != nil && setting.Major != *major {
			continue
		}
		if _, ok := s.Picks[setting.Name]; ok {
			continue
		}
		out = append(out, setting)
	}
	return out
}

// NextStep derives the current step of the draft. Game numbers above 1
// change the go-first prompt since the previous loser chooses.
func (s *State) NextStep(kind Kind, game int, ctx *MessageContext) Step {
	if s.WentFirst == nil {
		msg := fmt.Sprintf("%s, you have the higher seed. Choose whether you want to go !first or !second", ctx.teamName(HighSeed))
		if game > 1 {
			msg = fmt.Sprintf("%s, as the loser of game %d, choose whether you want to go !first or !second", ctx.teamName(HighSeed), game-1)
		}
		return Step{Kind: StepGoFirst, Team: HighSeed, Message: msg}
	}
	n := s.pickCount(kind)
	switch kind {
	case MultiworldS3:
		switch {
		case n <= 1:
			team := banTurn(n, *s.WentFirst)
			return Step{
				Kind:      StepBan,
				Team:      team,
				Skippable: true,
				Available: s.available(kind, nil),
				Message:   banPrompt(ctx.teamName(team), n == 0),
			}
		case n <= 5:
			team := pickTurn(n, *s.WentFirst)
			return Step{
				Kind:      StepPick,
				Team:      team,
				Skippable: n == 5,
				Available: s.available(kind, nil),
				Message:   pickPrompt(ctx.teamName(team), n, "setting"),
			}
		default:
			return Step{
				Kind:     StepDone,
				Settings: kind.Resolve(s.Picks),
				Message:  s.DisplayPicks(kind),
			}
		}
	case TournamentS7:
		switch {
		case n <= 1:
			team := banTurn(n, *s.WentFirst)
			return Step{
				Kind:      StepBan,
				Team:      team,
				Skippable: true,
				Available: s.available(kind, nil),
				Message:   banPrompt(ctx.teamName(team), n == 0),
			}
		case n <= 5:
			team := pickTurn(n, *s.WentFirst)
			major := n < 4
			class := "major setting"
			if !major {
				class = "minor setting"
			}
			return Step{
				Kind:      StepPick,
				Team:      team,
				Available: s.available(kind, &major),
				Message:   pickPrompt(ctx.teamName(team), n, class),
			}
		default:
			return Step{
				Kind:     StepDone,
				Settings: kind.Resolve(s.Picks),
				Message:  s.DisplayPicks(kind),
			}
		}
	}
	return Step{Kind: StepDone, Settings: kind.Resolve(s.Picks), Message: s.DisplayPicks(kind)}
}

// Ban order: the team that went first bans first, then the other team.
func banTurn(n int, wentFirst bool) Team {
	if (n == 0) == wentFirst {
		return HighSeed
	}
	return LowSeed
}

// Pick order is A-B-B-A across turns 2 through 5.
func pickTurn(n int, wentFirst bool) Team {
	first := n == 2 || n == 5
	if first == wentFirst {
		return HighSeed
	}
	return LowSeed
}

func banPrompt(team string, firstBan bool) string {
	msg := fmt.Sprintf("%s, lock a setting to its default using “!ban <setting>”, or use “!skip” if you don't want to ban anything.", team)
	if firstBan {
		msg += " Use “!settings” for a list of available settings."
	}
	return msg
}

func pickPrompt(team string, n int, class string) string {
	if n == 2 {
		return fmt.Sprintf("%s, pick a %s using “!draft <setting> <value>”", team, class)
	}
	return fmt.Sprintf("%s, pick a %s.", team, class)
}

// IsActiveTeam reports whether the given team may act right now.
func (s *State) IsActiveTeam(kind Kind, game int, team Team) bool {
	step := s.NextStep(kind, game, nil)
	return step.Kind != StepDone && step.Team == team
}

// Apply validates and applies one action. On success the state is mutated
// and an optional confirmation message returned; on failure the state is
// unchanged and the error text is suitable to show to the actor.
func (s *State) Apply(kind Kind, game int, ctx *MessageContext, action Action) (string, error) {
	step := s.NextStep(kind, game, nil)
	switch action.Kind {
	case ActionGoFirst:
		switch step.Kind {
		case StepGoFirst:
			first := action.First
			s.WentFirst = &first
			choice := "second"
			if first {
				choice = "first"
			}
			return fmt.Sprintf("%s has chosen to go %s in the settings draft.", ctx.teamName(HighSeed), choice), nil
		case StepDone:
			return "", ctx.sorry("this settings draft is already completed.")
		default:
			return "", ctx.sorry("first pick has already been chosen.")
		}
	case ActionBan:
		switch step.Kind {
		case StepGoFirst:
			return "", ctx.sorry("first pick hasn't been chosen yet, use “!first” or “!second”")
		case StepBan:
			setting, ok := findSetting(step.Available, action.Setting)
			if !ok {
				if _, picked := s.Picks[action.Setting]; picked {
					return "", ctx.sorry("that setting is already locked in. Use one of the following: %s", settingNames(step.Available))
				}
				return "", ctx.sorry("I don't recognize that setting. Use one of the following: %s", settingNames(step.Available))
			}
			s.Picks[setting.Name] = setting.Default
			return fmt.Sprintf("%s has locked in %s.", ctx.teamName(step.Team), setting.DefaultDisplay), nil
		case StepPick:
			return "", ctx.sorry("bans have already been chosen. Use “!draft <setting> <value>”")
		default:
			return "", ctx.sorry("this settings draft is already completed.")
		}
	case ActionPick:
		switch step.Kind {
		case StepGoFirst:
			return "", ctx.sorry("first pick hasn't been chosen yet, use “!first” or “!second”")
		case StepBan:
			// Picking a setting's default during the ban phase is a ban.
			setting, ok := findSetting(step.Available, action.Setting)
			if ok && action.Value == setting.Default {
				s.Picks[setting.Name] = setting.Default
				return fmt.Sprintf("%s has locked in %s.", ctx.teamName(step.Team), setting.DefaultDisplay), nil
			}
			return "", ctx.sorry("bans haven't been chosen yet. Use “!ban <setting>”")
		case StepPick:
			setting, ok := findSetting(step.Available, action.Setting)
			if !ok {
				if _, picked := s.Picks[action.Setting]; picked {
					return "", ctx.sorry("that setting is already locked in. Use one of the following: %s", settingNames(step.Available))
				}
				return "", ctx.sorry("I don't recognize that setting. Use one of the following: %s", settingNames(step.Available))
			}
			choice, ok := setting.choice(action.Value)
			if !ok {
				return "", ctx.sorry("I don't recognize that value for %s. Use one of the following: %s", setting.Name, setting.valueNames())
			}
			s.Picks[setting.Name] = choice.Name
			return fmt.Sprintf("%s has picked %s.", ctx.teamName(step.Team), choice.Display), nil
		default:
			return "", ctx.sorry("this settings draft is already completed.")
		}
	case ActionSkip:
		if step.Kind == StepDone {
			return "", ctx.sorry("this settings draft is already completed.")
		}
		if !step.Skippable {
			return "", ctx.sorry("this part of the draft can't be skipped.")
		}
		s.SkippedBans++
		return fmt.Sprintf("%s has skipped their ban.", ctx.teamName(step.Team)), nil
	case ActionBool:
		switch step.Kind {
		case StepGoFirst:
			return "", ctx.sorry("please answer with “!first” or “!second”.")
		case StepDone:
			return "", ctx.sorry("this settings draft is already completed.")
		}
		if !action.Confirm && step.Skippable {
			s.SkippedBans++
			return fmt.Sprintf("%s has skipped their ban.", ctx.teamName(step.Team)), nil
		}
		if step.Kind == StepBan {
			return "", ctx.sorry("please choose a setting to ban with “!ban <setting>”.")
		}
		return "", ctx.sorry("please pick a setting with “!draft <setting> <value>”.")
	}
	return "", ctx.sorry("I don't recognize that action.")
}

// CompleteRandomly plays out the remainder of the draft with random legal
// moves and returns the resulting picks.
func (s *State) CompleteRandomly(kind Kind, rng *rand.Rand) map[string]string {
	for {
		step := s.NextStep(kind, 0, nil)
		var action Action
		switch step.Kind {
		case StepGoFirst:
			action = Action{Kind: ActionGoFirst, First: rng.Intn(2) == 0}
		case StepBan:
			n := len(step.Available)
			if step.Skippable {
				n++
			}
			if i := rng.Intn(n); i == len(step.Available) {
				action = Action{Kind: ActionSkip}
			} else {
				action = Action{Kind: ActionBan, Setting: step.Available[i].Name}
			}
		case StepPick:
			n := len(step.Available)
			if step.Skippable {
				n++
			}
			i := rng.Intn(n)
			if i == len(step.Available) {
				action = Action{Kind: ActionSkip}
			} else {
				setting := step.Available[i]
				values := setting.values()
				action = Action{Kind: ActionPick, Setting: setting.Name, Value: values[rng.Intn(len(values))]}
			}
		case StepDone:
			return s.Picks
		}
		if _, err := s.Apply(kind, 0, nil, action); err != nil {
			panic(fmt.Sprintf("random draft made illegal action: %v", err))
		}
	}
}

// DisplayPicks renders the drafted settings for chat.
func (s *State) DisplayPicks(kind Kind) string {
	var parts []string
	for _, setting := range kind.Settings() {
		value, ok := s.Picks[setting.Name]
		if !ok {
			continue
		}
		choice, ok := setting.choice(value)
		if !ok {
			continue
		}
		parts = append(parts, choice.Display)
	}
	if len(parts) == 0 {
		return "base settings"
	}
	return strings.Join(parts, ", ")
}

func findSetting(settings []Setting, name string) (Setting, bool) {
	for _, s := range settings {
		if s.Name == name {
			return s, true
		}
	}
	return Setting{}, false
}

func settingNames(settings []Setting) string {
	names := make([]string, len(settings))
	for i, s := range settings {
		names[i] = s.Name
	}
	return strings.Join(names, " or ")
}
