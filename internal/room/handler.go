package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/gen"
	"github.com/sariahouse/racebot/internal/goal"
	"github.com/sariahouse/racebot/internal/lang"
	"github.com/sariahouse/racebot/internal/racing"
	"github.com/sariahouse/racebot/internal/store"
)

// RoomClient is the subset of the room websocket the handler uses.
type RoomClient interface {
	SendMessage(msg string, actions map[string]racing.ActionButton) error
	SetInfo(info string) error
	AcceptRequest(userID string) error
	Invite(userID string) error
	AddMonitor(userID string) error
}

// RestClient is the subset of the platform REST API the handler uses.
type RestClient interface {
	EditRace(ctx context.Context, raceName string, cfg racing.StartRace) error
	SearchUsers(ctx context.Context, name string) ([]racing.User, error)
}

// Notifier posts to Discord.
type Notifier interface {
	Announce(channelID, msg string) error
	Alert(msg string) error
}

// Config wires up a Handler.
type Config struct {
	Log          *logrus.Logger
	Conn         RoomClient
	Rest         RestClient
	Store        store.Store
	Gen          *gen.Service
	Notifier     Notifier
	Goal         goal.Goal
	RaceName     string
	BlitzBaseURL string

	// Official race context; nil for rooms opened by hand.
	Race  *store.Race
	Event *store.Event
	// Teams maps platform user IDs to draft sides for official draft
	// races.
	Teams map[string]draft.Team
	// HighSeedName and LowSeedName label the draft sides in chat.
	HighSeedName string
	LowSeedName  string

	StartRace racing.StartRace
}

// Handler drives one race room.
type Handler struct {
	log      *logrus.Entry
	conn     RoomClient
	rest     RestClient
	store    store.Store
	gen      *gen.Service
	notifier Notifier
	goal     goal.Goal
	language lang.Language
	raceName string
	blitzURL string

	race  *store.Race
	event *store.Event
	teams map[string]draft.Team
	names draft.MessageContext

	startRace racing.StartRace

	mu             sync.RWMutex
	state          RaceState
	data           *racing.RaceData
	breaks         *BreakConfig
	loopsStarted   bool
	fpaEnabled     bool
	fpaInvoked     bool
	locked         bool
	restreams      map[string]*Restream
	scores         map[string]Score
	resultRecorded bool
}

// New builds a handler for one room.
func New(cfg Config) *Handler {
	h := &Handler{
		log:       cfg.Log.WithField("room", cfg.RaceName),
		conn:      cfg.Conn,
		rest:      cfg.Rest,
		store:     cfg.Store,
		gen:       cfg.Gen,
		notifier:  cfg.Notifier,
		goal:      cfg.Goal,
		language:  cfg.Goal.Language(),
		raceName:  cfg.RaceName,
		blitzURL:  cfg.BlitzBaseURL,
		race:      cfg.Race,
		event:     cfg.Event,
		teams:     cfg.Teams,
		names:     draft.MessageContext{HighSeedName: cfg.HighSeedName, LowSeedName: cfg.LowSeedName},
		startRace: cfg.StartRace,
		restreams: map[string]*Restream{},
		scores:    map[string]Score{},
	}
	if h.race != nil {
		h.fpaEnabled = true
		h.fpaInvoked = h.race.FPAInvoked
	}
	switch {
	case h.official() && h.race.FileStem != nil:
		// A restart must not roll a second seed for a race that already
		// has one.
		seed := &gen.SeedInfo{FileStem: *h.race.FileStem, HashIcons: h.race.HashIcons}
		if h.race.WebID != nil {
			seed.WebID = *h.race.WebID
		}
		if h.race.WebGenTime != nil {
			seed.GenTime = *h.race.WebGenTime
		}
		h.state = RaceState{
			Phase:  PhaseRolled,
			Seed:   seed,
			Unlock: cfg.Goal.SpoilerPolicy(true, false),
		}
	default:
		if kind, ok := cfg.Goal.DraftKind(); ok && h.official() {
			h.state = RaceState{
				Phase:     PhaseDraft,
				Draft:     draft.NewState("high"),
				DraftKind: kind,
				Unlock:    cfg.Goal.SpoilerPolicy(true, false),
			}
		}
	}
	return h
}

func (h *Handler) official() bool { return h.race != nil }

// Run consumes room events until the channel closes or ctx ends.
func (h *Handler) Run(ctx context.Context, events <-chan racing.Event) {
	if h.official() {
		if step := h.currentDraftStep(); step != nil && step.Kind != draft.StepDone {
			h.say(step.Message)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case "race.data":
				if ev.Race != nil {
					h.handleRaceData(ctx, ev.Race)
				}
			case "chat.message":
				if ev.Chat != nil {
					h.handleChat(ctx, ev.Chat)
				}
			}
		}
	}
}

func (h *Handler) say(msg string) {
	if msg == "" {
		return
	}
	if err := h.conn.SendMessage(msg, nil); err != nil {
		h.log.WithError(err).Error("sending chat message failed")
	}
}

func (h *Handler) reply(msg *racing.ChatMessage, text string) {
	if msg.User != nil {
		h.say(fmt.Sprintf("%s, %s", msg.User.Name, text))
		return
	}
	h.say(text)
}

func (h *Handler) raceRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data != nil && h.data.Status.Value == racing.StatusInProgress
}

func (h *Handler) handleRaceData(ctx context.Context, data *racing.RaceData) {
	h.mu.Lock()
	prev := ""
	if h.data != nil {
		prev = h.data.Status.Value
	}
	h.data = data
	h.mu.Unlock()

	if h.official() {
		h.admitEntrants(data)
	}

	switch data.Status.Value {
	case racing.StatusInProgress:
		if prev != racing.StatusInProgress {
			h.onRaceStarted(ctx)
		}
	case racing.StatusFinished:
		h.onRaceFinished(ctx, data)
	case racing.StatusCancelled:
		h.onRaceCancelled(ctx)
	}
}

// admitEntrants lets scheduled racers into the invitational room. When
// the race has teams on record, only their members get in; anyone else
// stays in the request queue for a monitor to judge.
func (h *Handler) admitEntrants(data *racing.RaceData) {
	for _, e := range data.Entrants {
		if e.Status.Value != racing.EntrantRequested {
			continue
		}
		if len(h.teams) > 0 {
			if _, ok := h.teams[e.User.ID]; !ok {
				continue
			}
		}
		if err := h.conn.AcceptRequest(e.User.ID); err != nil {
			h.log.WithError(err).WithField("user", e.User.Name).Error("accepting entrant failed")
		}
	}
}

func (h *Handler) onRaceStarted(ctx context.Context) {
	h.mu.Lock()
	if h.loopsStarted {
		h.mu.Unlock()
		return
	}
	h.loopsStarted = true
	breaks := h.breaks
	h.mu.Unlock()

	h.log.Info("race started")
	if breaks != nil {
		go h.runBreaks(ctx, *breaks)
	}
	if h.goal.UsesBlitzSite() {
		// Blitz races are time-limited; remind entrants near the cap.
		go h.runGoalReminders(ctx, 2*time.Hour, "@entrants Reminder: the time limit is approaching. Remember to !done with your !score when you stop.")
	}
}

// onRaceFinished unlocks the spoiler log exactly once and records the
// result. Repeat finish events are answered but change nothing.
func (h *Handler) onRaceFinished(ctx context.Context, data *racing.RaceData) {
	h.mu.Lock()
	if h.state.Phase == PhaseSpoilerSent {
		h.mu.Unlock()
		h.log.Debug("race finish already handled")
		return
	}
	seed := h.state.Seed
	unlock := h.state.Unlock
	if h.state.Phase == PhaseRolled {
		h.state.Phase = PhaseSpoilerSent
	}
	alreadyRecorded := h.resultRecorded
	h.resultRecorded = true
	fpaInvoked := h.fpaInvoked
	h.mu.Unlock()

	if seed != nil && unlock == goal.UnlockAfter {
		switch {
		case seed.WebID != 0:
			if err := h.gen.UnlockSpoilerLog(ctx, seed.WebID); err != nil {
				h.log.WithError(err).Error("unlocking spoiler log failed")
				h.say("Sorry, something went wrong unlocking the spoiler log. An admin can unlock it by hand.")
			} else {
				h.say(fmt.Sprintf("Race finished! The spoiler log is now unlocked: %s", seed.URL(h.blitzURL)))
			}
		case seed.BlitzUUID != "":
			// Unlocked automatically by the site once the room finishes.
		default:
			h.say("Race finished! The spoiler log will be published by the organizers.")
		}
	}

	if h.official() && !alreadyRecorded {
		if err := h.store.MarkRaceRecorded(ctx, h.race.ID, data.StartedAt); err != nil {
			h.log.WithError(err).Error("recording race result failed")
		}
		if fpaInvoked {
			h.notify(fmt.Sprintf("FPA was invoked in %s; the result needs review before being confirmed.", h.raceName))
		}
	}
}

func (h *Handler) onRaceCancelled(ctx context.Context) {
	h.log.Info("race cancelled")
	if !h.official() {
		return
	}
	if err := h.store.ClearRaceRoom(ctx, h.race.ID); err != nil {
		h.log.WithError(err).Error("clearing room association failed")
	}
	h.notify(fmt.Sprintf("The race room %s was cancelled and needs to be rescheduled.", h.raceName))
}

// notify posts to the event's Discord channel, falling back to the
// operator alert channel.
func (h *Handler) notify(msg string) {
	if h.notifier == nil {
		return
	}
	if h.event != nil && h.event.DiscordChannel != nil {
		if err := h.notifier.Announce(*h.event.DiscordChannel, msg); err == nil {
			return
		}
	}
	if err := h.notifier.Alert(msg); err != nil {
		h.log.WithError(err).Error("discord alert failed")
	}
}

// canMonitor reports whether the sender may use monitor commands: either
// the platform already trusts them, or they organize the event.
func (h *Handler) canMonitor(ctx context.Context, msg *racing.ChatMessage) bool {
	if msg.IsMonitor {
		return true
	}
	if !h.official() || msg.User == nil {
		return false
	}
	user, err := h.store.GetUserByRacetimeID(ctx, msg.User.ID)
	if err != nil || user == nil {
		return false
	}
	ok, err := h.store.IsOrganizer(ctx, h.race.Series, h.race.Event, user.ID)
	if err != nil {
		h.log.WithError(err).Error("organizer lookup failed")
		return false
	}
	return ok
}

// currentDraftStep returns the draft's pending step, or nil when the room
// has no draft.
func (h *Handler) currentDraftStep() *draft.Step {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state.Phase != PhaseDraft || h.state.Draft == nil {
		return nil
	}
	step := h.state.Draft.NextStep(h.state.DraftKind, h.gameNumber(), &h.names)
	return &step
}

func (h *Handler) gameNumber() int {
	if h.race != nil {
		return h.race.Game
	}
	return 0
}

// beginRolling moves the room into the Rolling phase. It returns false if
// a seed is already rolling or rolled, which makes at most one generation
// task per room.
func (h *Handler) beginRolling() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Phase == PhaseRolling || h.state.Phase == PhaseRolled || h.state.Phase == PhaseSpoilerSent {
		return false
	}
	h.state.Phase = PhaseRolling
	return true
}

// rollSeed starts seed generation and reports progress in chat. The
// Rolling guard must be taken by the caller via beginRolling.
func (h *Handler) rollSeed(ctx context.Context, policy goal.UnlockPolicy, settings map[string]any) {
	version, ok := h.goal.RandoVersion()
	if !ok {
		h.rollFailed(fmt.Errorf("no randomizer version configured for this goal"))
		return
	}
	delayUntil := h.rollDeadline()
	updates := h.gen.RollSeed(ctx, h.goal.PrerollMode(), true, delayUntil, version, policy, settings)
	go h.consumeRollUpdates(ctx, updates, policy)
}

// rollBlitzSeed rolls on the alternate site instead.
func (h *Handler) rollBlitzSeed(ctx context.Context, policy goal.UnlockPolicy) {
	roomURL := fmt.Sprintf("https://%s/%s", hostFromRaceName(h.raceName), h.raceName)
	updates := h.gen.RollBlitzSeed(ctx, h.rollDeadline(), policy, roomURL, "LATEST")
	go h.consumeRollUpdates(ctx, updates, policy)
}

// hostFromRaceName is a placeholder for the platform host in room URLs;
// the full URL matters only to the blitz site's unlock hook.
func hostFromRaceName(string) string { return "racetime.gg" }

// rollDeadline is 15 minutes before the scheduled start, the latest
// point where the seed is still useful. Preroll modes carve their
// windows out of the time before it.
func (h *Handler) rollDeadline() time.Time {
	if h.race != nil && h.race.StartTime != nil {
		return h.race.StartTime.Add(-15 * time.Minute)
	}
	return time.Time{}
}

func (h *Handler) consumeRollUpdates(ctx context.Context, updates <-chan gen.SeedRollUpdate, policy goal.UnlockPolicy) {
	for u := range updates {
		switch u.Kind {
		case gen.UpdateQueued:
			h.say(fmt.Sprintf("I'm already rolling other multiworld seeds so your seed has been queued. There are %d seeds in front of it in the queue.", u.Position))
		case gen.UpdateMovedForward:
			h.say(fmt.Sprintf("The queue has moved and there are now %d seeds in front of yours.", u.Position))
		case gen.UpdateStarted:
			h.say("Rolling seed…")
		case gen.UpdateDone:
			h.seedRolled(ctx, u.Seed, policy)
			return
		case gen.UpdateError:
			h.log.WithError(u.Err).Error("seed roll failed")
			h.rollFailed(u.Err)
			return
		}
	}
}

func (h *Handler) rollFailed(err error) {
	// Back to Init rather than Rolled so the roll can be reissued. The
	// draft result, if any, is kept for the retry.
	h.mu.Lock()
	if h.state.Phase == PhaseRolling {
		h.state.Phase = PhaseInit
	}
	h.mu.Unlock()
	h.say(fmt.Sprintf("Sorry, something went wrong while rolling the seed: %v. You can try again with !seed.", err))
	if h.notifier != nil {
		_ = h.notifier.Alert(fmt.Sprintf("seed roll failed in %s: %v", h.raceName, err))
	}
}

func (h *Handler) seedRolled(ctx context.Context, seed *gen.SeedInfo, policy goal.UnlockPolicy) {
	h.mu.Lock()
	h.state.Phase = PhaseRolled
	h.state.Seed = seed
	h.state.Unlock = policy
	h.mu.Unlock()

	info := seed.URL(h.blitzURL)
	if info == "" {
		info = seed.FileStem
	}
	if len(seed.HashIcons) == 5 {
		info = fmt.Sprintf("%s Hash: %s", info, strings.Join(seed.HashIcons, ", "))
	}
	h.say(fmt.Sprintf("@entrants Here is your seed: %s", info))
	if err := h.conn.SetInfo(info); err != nil {
		h.log.WithError(err).Error("setting race info failed")
	}

	if h.official() {
		var webID *int64
		var genTime *time.Time
		if seed.WebID != 0 {
			webID = &seed.WebID
			genTime = &seed.GenTime
		}
		if err := h.store.SetRaceSeed(ctx, h.race.ID, seed.FileStem, webID, genTime, seed.HashIcons); err != nil {
			h.log.WithError(err).Error("persisting seed failed")
		}
	}
	if h.goal.AuditsSeeds() {
		var webID *int64
		if seed.WebID != 0 {
			webID = &seed.WebID
		}
		genTime := seed.GenTime
		if err := h.store.RecordAuditedSeed(ctx, &store.AuditedSeed{
			RoomURL:   h.raceName,
			FileStem:  seed.FileStem,
			Preset:    h.goal.Name(),
			WebID:     webID,
			GenTime:   &genTime,
			HashIcons: seed.HashIcons,
		}); err != nil {
			h.log.WithError(err).Error("recording seed audit row failed")
		}
	}
}

// updateAutoStart gates automatic race start on restream readiness: the
// race only auto-starts once every assigned restream reports ready.
func (h *Handler) updateAutoStart(ctx context.Context) {
	h.mu.RLock()
	allReady := true
	for _, r := range h.restreams {
		if !r.Ready {
			allReady = false
			break
		}
	}
	h.mu.RUnlock()

	cfg := h.startRace
	cfg.AutoStart = allReady
	if err := h.rest.EditRace(ctx, h.raceName, cfg); err != nil {
		h.log.WithError(err).Error("editing race auto-start failed")
		return
	}
	if allReady {
		h.say("All restreams are ready, the race will now start automatically when everyone is ready.")
	}
}
