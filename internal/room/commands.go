package room

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/gen"
	"github.com/sariahouse/racebot/internal/lang"
	"github.com/sariahouse/racebot/internal/racing"
)

func (h *Handler) handleChat(ctx context.Context, msg *racing.ChatMessage) {
	if msg.IsBot || msg.IsSystem || msg.User == nil {
		return
	}
	text := msg.MessagePlain
	if text == "" {
		text = msg.Message
	}
	if !strings.HasPrefix(text, "!") {
		return
	}
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "!"))
	args := fields[1:]

	switch cmd {
	case "first":
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionGoFirst, First: true})
	case "second":
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionGoFirst, First: false})
	case "ban":
		if len(args) != 1 {
			h.reply(msg, "use “!ban <setting>”")
			return
		}
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionBan, Setting: strings.ToLower(args[0])})
	case "draft", "pick":
		if len(args) != 2 {
			h.reply(msg, "use “!draft <setting> <value>”")
			return
		}
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionPick, Setting: strings.ToLower(args[0]), Value: strings.ToLower(args[1])})
	case "skip":
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionSkip})
	case "yes":
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionBool, Confirm: true})
	case "no":
		h.draftAction(ctx, msg, draft.Action{Kind: draft.ActionBool, Confirm: false})
	case "settings":
		h.cmdSettings(msg)
	case "seed":
		h.cmdSeed(ctx, msg, args, false)
	case "spoilerseed":
		h.cmdSeed(ctx, msg, args, true)
	case "presets":
		h.cmdPresets(msg)
	case "breaks", "break":
		h.cmdBreaks(msg, args)
	case "fpa":
		h.cmdFpa(ctx, msg, args)
	case "lock":
		h.cmdLock(ctx, msg, true)
	case "unlock":
		h.cmdLock(ctx, msg, false)
	case "monitor":
		h.cmdMonitor(ctx, msg)
	case "restreamer":
		h.cmdRestreamer(ctx, msg, args)
	case "ready":
		h.cmdReady(ctx, msg)
	case "score":
		h.cmdScore(msg, args)
	}
}

// completedDraftSettings returns the resolved settings of a finished
// draft whose seed hasn't been rolled, or nil.
func (h *Handler) completedDraftSettings() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state.Phase != PhaseInit || h.state.Draft == nil {
		return nil
	}
	step := h.state.Draft.NextStep(h.state.DraftKind, h.gameNumber(), nil)
	if step.Kind != draft.StepDone {
		return nil
	}
	return step.Settings
}

// actorTeam decides which draft side a sender is acting for. In official
// rooms the sender must be on one of the scheduled teams; in practice
// rooms anyone may move for the team whose turn it is.
func (h *Handler) actorTeam(msg *racing.ChatMessage) (draft.Team, bool) {
	if !h.official() || len(h.teams) == 0 {
		h.mu.RLock()
		defer h.mu.RUnlock()
		if h.state.Draft == nil {
			return 0, false
		}
		step := h.state.Draft.NextStep(h.state.DraftKind, h.gameNumber(), nil)
		if step.Kind == draft.StepDone {
			return 0, false
		}
		return step.Team, true
	}
	team, ok := h.teams[msg.User.ID]
	return team, ok
}

func (h *Handler) draftAction(ctx context.Context, msg *racing.ChatMessage, action draft.Action) {
	h.mu.RLock()
	inDraft := h.state.Phase == PhaseDraft && h.state.Draft != nil
	h.mu.RUnlock()
	if !inDraft {
		h.reply(msg, "Sorry, this room's settings draft isn't active.")
		return
	}
	team, ok := h.actorTeam(msg)
	if !ok {
		h.reply(msg, "Sorry, only entrants in this match can participate in the draft.")
		return
	}

	h.mu.Lock()
	if h.official() && !h.state.Draft.IsActiveTeam(h.state.DraftKind, h.gameNumber(), team) {
		h.mu.Unlock()
		h.reply(msg, "Sorry, it's not your turn in the settings draft.")
		return
	}
	names := h.names
	names.ReplyTo = msg.User.Name
	confirmation, err := h.state.Draft.Apply(h.state.DraftKind, h.gameNumber(), &names, action)
	if err != nil {
		h.mu.Unlock()
		h.say(err.Error())
		return
	}
	step := h.state.Draft.NextStep(h.state.DraftKind, h.gameNumber(), &names)
	h.mu.Unlock()

	h.say(confirmation)
	if step.Kind == draft.StepDone {
		h.say(fmt.Sprintf("Settings draft completed! The settings are: %s", step.Message))
		if h.beginRolling() {
			policy := h.goal.SpoilerPolicy(h.official(), false)
			h.rollSeed(ctx, policy, step.Settings)
		}
		return
	}
	h.say(step.Message)
}

func (h *Handler) cmdSettings(msg *racing.ChatMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state.Draft == nil {
		h.reply(msg, "this goal doesn't use a settings draft.")
		return
	}
	if h.state.Phase != PhaseDraft {
		h.say(fmt.Sprintf("The drafted settings are: %s", h.state.Draft.DisplayPicks(h.state.DraftKind)))
		return
	}
	step := h.state.Draft.NextStep(h.state.DraftKind, h.gameNumber(), &h.names)
	if len(step.Available) == 0 {
		h.say("No settings are available right now.")
		return
	}
	lines := make([]string, 0, len(step.Available)+1)
	lines = append(lines, "Currently available settings:")
	for _, s := range step.Available {
		lines = append(lines, fmt.Sprintf("%s: %s", s.Name, s.Description))
	}
	h.say(strings.Join(lines, "\n"))
}

func (h *Handler) cmdPresets(msg *racing.ChatMessage) {
	if _, ok := h.goal.DraftKind(); ok {
		h.say("Available presets: “!seed base” for the default settings, “!seed random” for a random draft, “!seed draft” to run the draft here in chat.")
		return
	}
	if h.goal.SingleSettings() != nil {
		h.say("This goal has fixed settings; just use “!seed”.")
		return
	}
	h.reply(msg, "this goal has no presets.")
}

func (h *Handler) cmdSeed(ctx context.Context, msg *racing.ChatMessage, args []string, spoiler bool) {
	h.mu.RLock()
	locked := h.locked
	h.mu.RUnlock()
	if locked && !h.canMonitor(ctx, msg) {
		h.reply(msg, "seed rolling is locked. Only race monitors may roll a seed right now.")
		return
	}
	if h.official() {
		// The only manual roll in an official room is a monitor retrying
		// after a failed generation of already-drafted settings.
		if settings := h.completedDraftSettings(); settings != nil && h.canMonitor(ctx, msg) {
			if !h.beginRolling() {
				h.reply(msg, "a seed is already being rolled for this race.")
				return
			}
			h.rollSeed(ctx, h.goal.SpoilerPolicy(true, spoiler), settings)
			return
		}
		h.reply(msg, "this is an official race room; the seed is handled automatically.")
		return
	}
	policy := h.goal.SpoilerPolicy(false, spoiler)

	if h.goal.UsesBlitzSite() {
		if !h.beginRolling() {
			h.reply(msg, "a seed is already being rolled for this race.")
			return
		}
		h.rollBlitzSeed(ctx, policy)
		return
	}

	if kind, ok := h.goal.DraftKind(); ok {
		if len(args) == 0 {
			// A completed draft whose roll failed can be rerolled plain.
			if settings := h.completedDraftSettings(); settings != nil {
				if !h.beginRolling() {
					h.reply(msg, "a seed is already being rolled for this race.")
					return
				}
				h.rollSeed(ctx, policy, settings)
				return
			}
			h.cmdPresets(msg)
			return
		}
		switch strings.ToLower(args[0]) {
		case "base":
			if !h.beginRolling() {
				h.reply(msg, "a seed is already being rolled for this race.")
				return
			}
			h.rollSeed(ctx, policy, kind.Resolve(map[string]string{}))
		case "random":
			if !h.beginRolling() {
				h.reply(msg, "a seed is already being rolled for this race.")
				return
			}
			state := draft.NewState("high")
			picks := state.CompleteRandomly(kind, rand.New(rand.NewSource(time.Now().UnixNano())))
			h.say(fmt.Sprintf("Random draft: %s", state.DisplayPicks(kind)))
			h.rollSeed(ctx, policy, kind.Resolve(picks))
		case "draft":
			h.mu.Lock()
			if h.state.Phase != PhaseInit {
				h.mu.Unlock()
				h.reply(msg, "a draft or seed is already underway.")
				return
			}
			h.state = RaceState{
				Phase:     PhaseDraft,
				Draft:     draft.NewState("high"),
				DraftKind: kind,
				Unlock:    policy,
			}
			h.names = draft.MessageContext{HighSeedName: "Team A", LowSeedName: "Team B"}
			step := h.state.Draft.NextStep(kind, 0, &h.names)
			h.mu.Unlock()
			h.say(step.Message)
		default:
			h.reply(msg, "I don't recognize that preset. Use “!presets” for the list.")
		}
		return
	}

	if h.goal.AuditsSeeds() {
		h.reply(msg, "seeds for this goal are rolled by the league's own tooling; I can't roll one here.")
		return
	}

	settings := h.goal.SingleSettings()
	if settings == nil {
		h.reply(msg, "I don't know how to roll seeds for this goal.")
		return
	}
	if !h.beginRolling() {
		h.reply(msg, "a seed is already being rolled for this race.")
		return
	}
	if h.goal.PrerollCacheable() && !spoiler {
		if cached, err := h.gen.TakePrerolledSeed(ctx, h.goal); err == nil && cached != nil {
			h.seedRolled(ctx, &gen.SeedInfo{
				FileStem:    cached.FileStem,
				HashIcons:   cached.HashIcons,
				SpoilerPath: cached.Spoiler,
			}, policy)
			return
		}
	}
	h.rollSeed(ctx, policy, settings)
}

func (h *Handler) cmdBreaks(msg *racing.ChatMessage, args []string) {
	if len(args) == 0 {
		h.mu.RLock()
		cfg := h.breaks
		h.mu.RUnlock()
		if cfg == nil {
			h.say("No breaks are scheduled. Schedule one with e.g. “!breaks 5m every 2h30”.")
			return
		}
		h.say(fmt.Sprintf("Breaks are scheduled: %s.", cfg.Format(h.language)))
		return
	}
	if h.raceRunning() {
		h.reply(msg, "breaks can't be changed while the race is running.")
		return
	}
	if strings.EqualFold(args[0], "off") {
		h.mu.Lock()
		h.breaks = nil
		h.mu.Unlock()
		h.say("Breaks are now disabled.")
		return
	}
	cfg, err := ParseBreaks(strings.Join(args, " "))
	if err != nil {
		h.reply(msg, err.Error())
		return
	}
	h.mu.Lock()
	h.breaks = &cfg
	h.mu.Unlock()
	h.say(fmt.Sprintf("Breaks scheduled: %s.", cfg.Format(h.language)))
}

func (h *Handler) cmdFpa(ctx context.Context, msg *racing.ChatMessage, args []string) {
	if len(args) == 0 {
		h.mu.RLock()
		enabled := h.fpaEnabled
		h.mu.RUnlock()
		if !enabled {
			h.reply(msg, "fair play agreement is not active in this room. A race monitor can enable it with “!fpa on”.")
			return
		}
		if !h.raceRunning() {
			h.reply(msg, "FPA can only be invoked during the race.")
			return
		}
		h.mu.Lock()
		h.fpaInvoked = true
		h.mu.Unlock()
		h.say(fmt.Sprintf(h.text(textFpaInvoked), msg.User.Name))
		if h.official() {
			if err := h.store.SetRaceFPAInvoked(ctx, h.race.ID); err != nil {
				h.log.WithError(err).Error("recording FPA invocation failed")
			}
			h.notify(fmt.Sprintf("%s invoked FPA in %s.", msg.User.Name, h.raceName))
		}
		return
	}
	if h.official() {
		h.reply(msg, "FPA is always enabled for official races.")
		return
	}
	if !h.canMonitor(ctx, msg) {
		h.reply(msg, "only race monitors can toggle FPA.")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		h.mu.Lock()
		h.fpaEnabled = true
		h.mu.Unlock()
		h.say(h.text(textFpaEnabled))
	case "off":
		h.mu.Lock()
		h.fpaEnabled = false
		h.mu.Unlock()
		h.say(h.text(textFpaDisabled))
	default:
		h.reply(msg, "use “!fpa on”, “!fpa off”, or just “!fpa” to invoke it.")
	}
}

func (h *Handler) cmdLock(ctx context.Context, msg *racing.ChatMessage, lock bool) {
	if !h.canMonitor(ctx, msg) {
		h.reply(msg, "only race monitors can lock or unlock seed rolling.")
		return
	}
	h.mu.Lock()
	h.locked = lock
	h.mu.Unlock()
	if lock {
		h.say(h.text(textRaceLocked))
		return
	}
	h.say(h.text(textRaceUnlocked))
}

// cmdMonitor promotes an event organizer to race monitor so they can use
// the platform's own moderation tools.
func (h *Handler) cmdMonitor(ctx context.Context, msg *racing.ChatMessage) {
	if !h.canMonitor(ctx, msg) {
		h.reply(msg, "only event organizers can become race monitors.")
		return
	}
	if err := h.conn.AddMonitor(msg.User.ID); err != nil {
		h.log.WithError(err).Error("adding monitor failed")
		h.reply(msg, "sorry, I couldn't make you a monitor. You may need to join the race first.")
	}
}

func (h *Handler) cmdRestreamer(ctx context.Context, msg *racing.ChatMessage, args []string) {
	if !h.canMonitor(ctx, msg) {
		h.reply(msg, "only race monitors can assign restreams.")
		return
	}
	if len(args) == 0 {
		h.reply(msg, "use “!restreamer <url> [language] [restreamer]”")
		return
	}
	url := args[0]
	restream := &Restream{Language: h.language}
	rest := args[1:]
	if len(rest) > 0 {
		if l, ok := parseLanguage(rest[0]); ok {
			restream.Language = l
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		users, err := h.rest.SearchUsers(ctx, rest[0])
		if err != nil || len(users) == 0 {
			h.reply(msg, fmt.Sprintf("I couldn't find a user named %q on the platform.", rest[0]))
			return
		}
		restream.RestreamerID = users[0].ID
		if err := h.conn.Invite(users[0].ID); err != nil {
			h.log.WithError(err).Error("inviting restreamer failed")
		}
		if err := h.conn.AddMonitor(users[0].ID); err != nil {
			h.log.WithError(err).Error("promoting restreamer failed")
		}
	}

	h.mu.Lock()
	h.restreams[url] = restream
	h.mu.Unlock()

	h.say(fmt.Sprintf("Restream %s assigned. The race will not start automatically until every restreamer reports !ready.", url))
	h.updateAutoStart(ctx)
}

func (h *Handler) cmdReady(ctx context.Context, msg *racing.ChatMessage) {
	h.mu.Lock()
	marked := false
	for _, r := range h.restreams {
		if r.RestreamerID == msg.User.ID || r.RestreamerID == "" {
			r.Ready = true
			marked = true
		}
	}
	h.mu.Unlock()
	if !marked {
		h.reply(msg, "you're not assigned to a restream of this race.")
		return
	}
	h.reply(msg, "thanks, your restream is marked ready.")
	h.updateAutoStart(ctx)
}

func (h *Handler) cmdScore(msg *racing.ChatMessage, args []string) {
	if !h.goal.UsesBlitzSite() {
		h.reply(msg, "scores are only reported for Triforce Blitz races.")
		return
	}
	score, err := ParseScore(args)
	if err != nil {
		h.reply(msg, err.Error())
		return
	}
	h.mu.Lock()
	h.scores[msg.User.ID] = score
	h.mu.Unlock()
	h.reply(msg, fmt.Sprintf("score recorded: %s.", score.Format(h.language)))
}

func parseLanguage(s string) (lang.Language, bool) {
	switch strings.ToLower(s) {
	case "en", "english":
		return lang.English, true
	case "fr", "french", "français", "francais":
		return lang.French, true
	case "pt", "portuguese", "português", "portugues":
		return lang.Portuguese, true
	case "es", "spanish", "español", "espanol":
		return lang.Spanish, true
	}
	return 0, false
}
