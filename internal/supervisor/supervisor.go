// Package supervisor watches the schedule and the category feed, opens
// race rooms, and runs one room handler per room.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/gen"
	"github.com/sariahouse/racebot/internal/goal"
	"github.com/sariahouse/racebot/internal/racing"
	"github.com/sariahouse/racebot/internal/room"
	"github.com/sariahouse/racebot/internal/store"
)

const (
	// Rooms open half an hour before the scheduled start.
	roomOpenLead = 30 * time.Minute
	scanPeriod   = 30 * time.Second
	// Reconnect delays at or above this are worth telling the operators
	// about.
	alertBackoff = 16 * time.Second
)

type Supervisor struct {
	log      *logrus.Logger
	store    store.Store
	racing   *racing.Client
	gen      *gen.Service
	notifier room.Notifier
	shutdown *CleanShutdown
	blitzURL string

	// newRoomMu serializes room creation against the feed so a room the
	// scanner just opened isn't picked up twice.
	newRoomMu sync.Mutex

	handledMu sync.Mutex
	handled   map[string]struct{}
}

func New(log *logrus.Logger, st store.Store, rc *racing.Client, g *gen.Service, notifier room.Notifier, shutdown *CleanShutdown, blitzURL string) *Supervisor {
	return &Supervisor{
		log:      log,
		store:    st,
		racing:   rc,
		gen:      g,
		notifier: notifier,
		shutdown: shutdown,
		blitzURL: blitzURL,
		handled:  map[string]struct{}{},
	}
}

// ScanRaces opens rooms for scheduled races as their start approaches.
func (s *Supervisor) ScanRaces(ctx context.Context) error {
	ticker := time.NewTicker(scanPeriod)
	defer ticker.Stop()
	for {
		if s.shutdown.ShouldHandleNew() {
			if err := s.openDueRooms(ctx); err != nil {
				s.log.WithError(err).Error("room scan failed")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) openDueRooms(ctx context.Context) error {
	s.newRoomMu.Lock()
	defer s.newRoomMu.Unlock()

	races, err := s.store.ListUnopenedRaces(ctx, time.Now().Add(roomOpenLead))
	if err != nil {
		return err
	}
	for i := range races {
		race := &races[i]
		g, ok := goal.ForEvent(race.Series, race.Event)
		if !ok || !g.ShouldCreateRooms() {
			continue
		}
		if err := s.openRoom(ctx, race, g); err != nil {
			s.log.WithError(err).WithField("race", race.ID).Error("opening room failed")
			_ = s.notifier.Alert(fmt.Sprintf("failed to open a room for race %s: %v", race.ID, err))
		}
	}
	return nil
}

func (s *Supervisor) openRoom(ctx context.Context, race *store.Race, g goal.Goal) error {
	cfg := startRaceConfig(g, race)
	raceName, err := s.racing.StartRace(ctx, cfg)
	if err != nil {
		return err
	}
	raceName = strings.TrimPrefix(strings.TrimSuffix(raceName, "/"), "/")

	// Persist the room before anything can fail so the scanner never
	// opens a second room for the same race.
	if err := s.store.SetRaceRoom(ctx, race.ID, raceName); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"race": race.ID, "room": raceName}).Info("race room opened")

	if ev, err := s.store.GetEvent(ctx, race.Series, race.Event); err == nil && ev != nil && ev.DiscordChannel != nil {
		msg := fmt.Sprintf("The race room for %s is open: https://racetime.gg/%s", raceLabel(race), raceName)
		if err := s.notifier.Announce(*ev.DiscordChannel, msg); err != nil {
			s.log.WithError(err).Error("room announcement failed")
		}
	}

	roomURL := raceName
	race.RoomURL = &roomURL
	return s.attach(ctx, raceName, g, race, cfg)
}

func raceLabel(race *store.Race) string {
	label := race.Round
	if label == "" {
		label = race.Phase
	}
	if race.Game > 1 {
		label = fmt.Sprintf("%s game %d", label, race.Game)
	}
	return label
}

func startRaceConfig(g goal.Goal, race *store.Race) racing.StartRace {
	return racing.StartRace{
		Goal:                g.Name(),
		CustomGoal:          g.IsCustom(),
		Invitational:        true,
		InfoUser:            raceLabel(race),
		StartDelay:          15,
		TimeLimit:           24,
		StreamingRequired:   true,
		AutoStart:           true,
		AllowComments:       true,
		AllowPreraceChat:    true,
		AllowMidraceChat:    true,
		AllowNonEntrantChat: false,
		ChatMessageDelay:    0,
		TeamRace:            g.MultiworldCount() > 1,
	}
}

// RunFeed follows the category feed and attaches to rooms opened by hand,
// reconnecting with exponential backoff when the socket drops.
func (s *Supervisor) RunFeed(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	lastFailure := time.Now()

	for {
		connected := time.Now()
		err := s.followFeed(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A day without trouble resets the backoff schedule.
		if time.Since(lastFailure) > 24*time.Hour {
			bo.Reset()
		}
		lastFailure = time.Now()
		delay := bo.NextBackOff()
		s.log.WithError(err).WithField("retry_in", delay).Warn("category feed disconnected")
		if delay >= alertBackoff {
			_ = s.notifier.Alert(fmt.Sprintf("category feed has been down since %s, next reconnect in %s", connected.Format(time.RFC3339), delay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) followFeed(ctx context.Context) error {
	events := make(chan racing.Event, 64)
	done := make(chan error, 1)
	go func() { done <- s.racing.CategoryFeed(ctx, events) }()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case ev := <-events:
			if ev.Type == "race.data" && ev.Race != nil {
				s.handleFeedRace(ctx, ev.Race)
			}
		}
	}
}

func (s *Supervisor) handleFeedRace(ctx context.Context, data *racing.RaceData) {
	if !s.shouldHandle(data) {
		return
	}
	g, _ := goal.FromRaceData(data.Goal.Name, data.Goal.Custom)

	s.newRoomMu.Lock()
	defer s.newRoomMu.Unlock()

	race, err := s.store.GetRaceByRoom(ctx, data.Name)
	if err != nil {
		s.log.WithError(err).Error("race lookup failed")
		return
	}
	cfg := racing.StartRace{Goal: data.Goal.Name, CustomGoal: data.Goal.Custom, AutoStart: data.AutoStart}
	if err := s.attach(ctx, data.Name, g, race, cfg); err != nil {
		s.log.WithError(err).WithField("room", data.Name).Error("attaching to room failed")
	}
}

func (s *Supervisor) shouldHandle(data *racing.RaceData) bool {
	if _, ok := goal.FromRaceData(data.Goal.Name, data.Goal.Custom); !ok {
		return false
	}
	switch data.Status.Value {
	case racing.StatusFinished, racing.StatusCancelled:
		return false
	}
	s.handledMu.Lock()
	_, already := s.handled[data.Name]
	s.handledMu.Unlock()
	if already {
		return false
	}
	return s.shutdown.ShouldHandleNew()
}

// attach dials the room and runs a handler for it until the room ends.
func (s *Supervisor) attach(ctx context.Context, raceName string, g goal.Goal, race *store.Race, cfg racing.StartRace) error {
	s.handledMu.Lock()
	if _, already := s.handled[raceName]; already {
		s.handledMu.Unlock()
		return nil
	}
	s.handled[raceName] = struct{}{}
	s.handledMu.Unlock()

	data, err := s.racing.RaceData(ctx, raceName)
	if err != nil {
		s.forget(raceName)
		return err
	}
	conn, err := s.racing.DialRoom(ctx, data.WebsocketBotURL)
	if err != nil {
		s.forget(raceName)
		return err
	}

	var ev *store.Event
	if race != nil {
		ev, _ = s.store.GetEvent(ctx, race.Series, race.Event)
	}
	teams, highName, lowName, err := s.draftTeams(ctx, race)
	if err != nil {
		s.log.WithError(err).WithField("room", raceName).Error("team lookup failed")
	}
	handler := room.New(room.Config{
		Log:          s.log,
		Conn:         conn,
		Rest:         s.racing,
		Store:        s.store,
		Gen:          s.gen,
		Notifier:     s.notifier,
		Goal:         g,
		RaceName:     raceName,
		BlitzBaseURL: s.blitzURL,
		Race:         race,
		Event:        ev,
		Teams:        teams,
		HighSeedName: highName,
		LowSeedName:  lowName,
		StartRace:    cfg,
	})

	s.shutdown.RoomOpened(raceName)
	events := make(chan racing.Event, 64)
	go func() {
		defer conn.Close()
		if err := conn.Listen(ctx, events); err != nil && ctx.Err() == nil {
			s.log.WithError(err).WithField("room", raceName).Warn("room connection lost")
		}
		close(events)
	}()
	go func() {
		defer s.roomEnded(raceName)
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("room", raceName).Errorf("room handler panicked: %v", r)
				_ = s.notifier.Alert(fmt.Sprintf("room handler for %s panicked: %v", raceName, r))
			}
		}()
		handler.Run(ctx, events)
	}()
	return nil
}

// draftTeams resolves which platform accounts may act for each draft
// side of an official race. The labels fall back to generic names when
// the race has no teams on record.
func (s *Supervisor) draftTeams(ctx context.Context, race *store.Race) (map[string]draft.Team, string, string, error) {
	highName, lowName := "Team A", "Team B"
	if race == nil || race.Team1 == nil || race.Team2 == nil {
		return nil, highName, lowName, nil
	}
	high, err := s.store.GetTeamMembers(ctx, race.Series, race.Event, *race.Team1)
	if err != nil {
		return nil, highName, lowName, err
	}
	low, err := s.store.GetTeamMembers(ctx, race.Series, race.Event, *race.Team2)
	if err != nil {
		return nil, highName, lowName, err
	}
	return teamsBySide(high, low), *race.Team1, *race.Team2, nil
}

// teamsBySide keys draft sides by platform account ID.
func teamsBySide(high, low []store.TeamMember) map[string]draft.Team {
	teams := make(map[string]draft.Team, len(high)+len(low))
	for _, m := range high {
		if m.RacetimeID != "" {
			teams[m.RacetimeID] = draft.HighSeed
		}
	}
	for _, m := range low {
		if m.RacetimeID != "" {
			teams[m.RacetimeID] = draft.LowSeed
		}
	}
	return teams
}

func (s *Supervisor) forget(raceName string) {
	s.handledMu.Lock()
	delete(s.handled, raceName)
	s.handledMu.Unlock()
}

func (s *Supervisor) roomEnded(raceName string) {
	s.forget(raceName)
	s.shutdown.RoomClosed(raceName)
	s.log.WithField("room", raceName).Info("room handler stopped")
}
