package room

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sariahouse/racebot/internal/draft"
	"github.com/sariahouse/racebot/internal/goal"
	"github.com/sariahouse/racebot/internal/racing"
	"github.com/sariahouse/racebot/internal/store"
)

type fakeRoom struct {
	mu       sync.Mutex
	messages []string
	info     string
	monitors []string
	accepted []string
}

func (f *fakeRoom) SendMessage(msg string, _ map[string]racing.ActionButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeRoom) SetInfo(info string) error { f.info = info; return nil }
func (f *fakeRoom) AcceptRequest(userID string) error {
	f.accepted = append(f.accepted, userID)
	return nil
}
func (f *fakeRoom) Invite(string) error { return nil }
func (f *fakeRoom) AddMonitor(userID string) error {
	f.monitors = append(f.monitors, userID)
	return nil
}

func (f *fakeRoom) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeRoom) anyMessageContains(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type fakeRest struct {
	edits []racing.StartRace
}

func (f *fakeRest) EditRace(_ context.Context, _ string, cfg racing.StartRace) error {
	f.edits = append(f.edits, cfg)
	return nil
}

func (f *fakeRest) SearchUsers(_ context.Context, name string) ([]racing.User, error) {
	return []racing.User{{ID: "found-" + name, Name: name}}, nil
}

type fakeNotifier struct {
	announcements []string
	alerts        []string
}

func (f *fakeNotifier) Announce(_, msg string) error {
	f.announcements = append(f.announcements, msg)
	return nil
}

func (f *fakeNotifier) Alert(msg string) error {
	f.alerts = append(f.alerts, msg)
	return nil
}

// fakeStore implements store.Store for handler tests; only the methods the
// handler touches do anything.
type fakeStore struct {
	organizers    map[string]bool
	users         map[string]*store.User
	recorded      int
	fpaInvoked    bool
	clearedRooms  []string
	seedFileStems []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{organizers: map[string]bool{}, users: map[string]*store.User{}}
}

func (f *fakeStore) CreateRace(context.Context, *store.Race) error        { return nil }
func (f *fakeStore) GetRace(context.Context, string) (*store.Race, error) { return nil, nil }
func (f *fakeStore) GetRaceByRoom(context.Context, string) (*store.Race, error) {
	return nil, nil
}
func (f *fakeStore) ListUnopenedRaces(context.Context, time.Time) ([]store.Race, error) {
	return nil, nil
}
func (f *fakeStore) SetRaceRoom(context.Context, string, string) error { return nil }
func (f *fakeStore) ClearRaceRoom(_ context.Context, id string) error {
	f.clearedRooms = append(f.clearedRooms, id)
	return nil
}
func (f *fakeStore) SetRaceSeed(_ context.Context, _ string, fileStem string, _ *int64, _ *time.Time, _ []string) error {
	f.seedFileStems = append(f.seedFileStems, fileStem)
	return nil
}
func (f *fakeStore) SetRaceFPAInvoked(context.Context, string) error {
	f.fpaInvoked = true
	return nil
}
func (f *fakeStore) MarkRaceRecorded(context.Context, string, *time.Time) error {
	f.recorded++
	return nil
}
func (f *fakeStore) UpsertEvent(context.Context, *store.Event) error { return nil }
func (f *fakeStore) GetEvent(context.Context, string, string) (*store.Event, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveEvents(context.Context, time.Time) ([]store.Event, error) {
	return nil, nil
}
func (f *fakeStore) AddOrganizer(context.Context, string, string, string) error { return nil }
func (f *fakeStore) IsOrganizer(_ context.Context, _, _, userID string) (bool, error) {
	return f.organizers[userID], nil
}
func (f *fakeStore) UpsertUser(context.Context, *store.User) error { return nil }
func (f *fakeStore) GetUserByRacetimeID(_ context.Context, racetimeID string) (*store.User, error) {
	return f.users[racetimeID], nil
}
func (f *fakeStore) GetTeamMembers(context.Context, string, string, string) ([]store.TeamMember, error) {
	return nil, nil
}
func (f *fakeStore) PutPrerolledSeed(context.Context, *store.PrerolledSeed) error { return nil }
func (f *fakeStore) HasPrerolledSeed(context.Context, string) (bool, error)       { return false, nil }
func (f *fakeStore) TakePrerolledSeed(context.Context, string) (*store.PrerolledSeed, error) {
	return nil, nil
}
func (f *fakeStore) RecordAuditedSeed(context.Context, *store.AuditedSeed) error { return nil }
func (f *fakeStore) Close() error                                                { return nil }

func chat(userID, name, text string, monitor bool) *racing.ChatMessage {
	return &racing.ChatMessage{
		User:         &racing.User{ID: userID, Name: name},
		MessagePlain: text,
		IsMonitor:    monitor,
	}
}

func newTestHandler(t *testing.T, g goal.Goal, race *store.Race, teams map[string]draft.Team) (*Handler, *fakeRoom, *fakeStore, *fakeNotifier) {
	t.Helper()
	conn := &fakeRoom{}
	st := newFakeStore()
	notifier := &fakeNotifier{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	h := New(Config{
		Log:          log,
		Conn:         conn,
		Rest:         &fakeRest{},
		Store:        st,
		Notifier:     notifier,
		Goal:         g,
		RaceName:     "ootr/clever-volvagia-1234",
		Race:         race,
		Teams:        teams,
		HighSeedName: "Team A",
		LowSeedName:  "Team B",
	})
	return h, conn, st, notifier
}

func TestOfficialDraftTurnEnforcement(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "standard", Event: "7cc", Game: 1}
	teams := map[string]draft.Team{"u1": draft.HighSeed, "u2": draft.LowSeed}
	h, conn, _, _ := newTestHandler(t, goal.ChallengeCup7, race, teams)

	require.Equal(t, PhaseDraft, h.state.Phase)

	// The low seed can't choose the draft order.
	h.handleChat(ctx, chat("u2", "beta", "!first", false))
	assert.Contains(t, conn.lastMessage(), "not your turn")

	h.handleChat(ctx, chat("u1", "alpha", "!first", false))
	assert.Contains(t, conn.lastMessage(), "lock a setting")

	// Outsiders can't draft at all.
	h.handleChat(ctx, chat("u3", "gamma", "!skip", false))
	assert.Contains(t, conn.lastMessage(), "only entrants in this match")

	h.handleChat(ctx, chat("u1", "alpha", "!skip", false))
	assert.True(t, conn.anyMessageContains("skipped their ban"))
	assert.Equal(t, uint8(1), h.state.Draft.SkippedBans)
}

func TestPracticeDraftOpenToAnyone(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.ChallengeCup7, nil, nil)

	require.Equal(t, PhaseInit, h.state.Phase)
	h.handleChat(ctx, chat("u1", "alpha", "!seed draft", false))
	require.Equal(t, PhaseDraft, h.state.Phase)
	assert.Contains(t, conn.lastMessage(), "!first or !second")

	// In a practice room anyone acts for the active team.
	h.handleChat(ctx, chat("u2", "beta", "!second", false))
	assert.True(t, conn.anyMessageContains("chosen to go second"))
}

func TestSeedCommandRefusedInOfficialRoom(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "br", Event: "1"}
	h, conn, _, _ := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	h.handleChat(ctx, chat("u1", "alpha", "!seed", false))
	assert.Contains(t, conn.lastMessage(), "handled automatically")
}

func TestLockBlocksSeedRolling(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.StandardWeekly, nil, nil)

	// Non-monitors can't lock.
	h.handleChat(ctx, chat("u1", "alpha", "!lock", false))
	assert.Contains(t, conn.lastMessage(), "only race monitors")

	h.handleChat(ctx, chat("mon", "monica", "!lock", true))
	assert.Contains(t, conn.lastMessage(), "Lock initiated")

	h.handleChat(ctx, chat("u1", "alpha", "!seed", false))
	assert.Contains(t, conn.lastMessage(), "locked")

	h.handleChat(ctx, chat("mon", "monica", "!unlock", true))
	assert.Contains(t, conn.lastMessage(), "Lock released")
}

func TestOrganizerCountsAsMonitor(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "standard", Event: "7cc"}
	h, conn, st, _ := newTestHandler(t, goal.ChallengeCup7, race, nil)
	st.users["rt-org"] = &store.User{ID: "org", RacetimeID: "rt-org", Name: "orga"}
	st.organizers["org"] = true

	h.handleChat(ctx, chat("rt-org", "orga", "!lock", false))
	assert.Contains(t, conn.lastMessage(), "Lock initiated")
}

func TestFpaInvocation(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "br", Event: "1"}
	h, conn, st, notifier := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	// Official rooms have FPA on by default, but it only works mid-race.
	h.handleChat(ctx, chat("u1", "alpha", "!fpa", false))
	assert.Contains(t, conn.lastMessage(), "during the race")

	h.handleRaceData(ctx, &racing.RaceData{Status: racing.Status{Value: racing.StatusInProgress}})
	h.handleChat(ctx, chat("u1", "alpha", "!fpa", false))
	assert.True(t, conn.anyMessageContains("FPA foi invocado por alpha"))
	assert.True(t, st.fpaInvoked)
	assert.NotEmpty(t, notifier.alerts)
}

func TestFpaToggleNeedsMonitor(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.StandardWeekly, nil, nil)

	h.handleChat(ctx, chat("u1", "alpha", "!fpa on", false))
	assert.Contains(t, conn.lastMessage(), "only race monitors")

	h.handleChat(ctx, chat("mon", "monica", "!fpa on", true))
	assert.Contains(t, conn.lastMessage(), "Fair play agreement is now active")
}

func TestFpaImmutableInOfficialRooms(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "br", Event: "1"}
	h, conn, _, _ := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	h.handleChat(ctx, chat("mon", "monica", "!fpa off", true))
	assert.Contains(t, conn.lastMessage(), "always enabled for official races")
	assert.True(t, h.fpaEnabled)

	h.handleChat(ctx, chat("mon", "monica", "!fpa on", true))
	assert.Contains(t, conn.lastMessage(), "always enabled for official races")
	assert.True(t, h.fpaEnabled)
}

func TestScoreOnlyForBlitz(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.StandardWeekly, nil, nil)
	h.handleChat(ctx, chat("u1", "alpha", "!score 2 1h", false))
	assert.Contains(t, conn.lastMessage(), "Triforce Blitz")

	h, conn, _, _ = newTestHandler(t, goal.TriforceBlitz, nil, nil)
	h.handleChat(ctx, chat("u1", "alpha", "!score 2 1h", false))
	assert.Contains(t, conn.lastMessage(), "score recorded: 2/3 in 1 hour")
}

func TestFinishHandledOnce(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "br", Event: "1"}
	h, _, st, _ := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	startedAt := time.Now()
	data := &racing.RaceData{Status: racing.Status{Value: racing.StatusFinished}, StartedAt: &startedAt}
	h.handleRaceData(ctx, data)
	h.handleRaceData(ctx, data)
	assert.Equal(t, 1, st.recorded)
}

func TestCancelledClearsRoom(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "br", Event: "1"}
	h, _, st, notifier := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	h.handleRaceData(ctx, &racing.RaceData{Status: racing.Status{Value: racing.StatusCancelled}})
	assert.Equal(t, []string{"r1"}, st.clearedRooms)
	assert.NotEmpty(t, notifier.alerts)
}

func TestRestreamGatesAutoStart(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.StandardWeekly, nil, nil)
	rest := &fakeRest{}
	h.rest = rest

	h.handleChat(ctx, chat("mon", "monica", "!restreamer https://twitch.tv/zsr fr streamy", true))
	require.NotEmpty(t, rest.edits)
	assert.False(t, rest.edits[len(rest.edits)-1].AutoStart)
	assert.Contains(t, conn.monitors, "found-streamy")

	h.handleChat(ctx, chat("found-streamy", "streamy", "!ready", false))
	assert.True(t, rest.edits[len(rest.edits)-1].AutoStart)
	assert.True(t, conn.anyMessageContains("marked ready"))
}

func TestRollDeadlineLeavesSetupTime(t *testing.T) {
	start := time.Now().Add(40 * time.Minute)
	race := &store.Race{ID: "r1", Series: "br", Event: "1", StartTime: &start}
	h, _, _, _ := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	// Seeds are due 15 minutes before the start so entrants can set up.
	assert.Equal(t, start.Add(-15*time.Minute), h.rollDeadline())

	h, _, _, _ = newTestHandler(t, goal.CopaDoBrasil, nil, nil)
	assert.True(t, h.rollDeadline().IsZero())
}

func TestRequestedEntrantsAdmitted(t *testing.T) {
	ctx := context.Background()
	race := &store.Race{ID: "r1", Series: "standard", Event: "7cc"}
	teams := map[string]draft.Team{"u1": draft.HighSeed, "u2": draft.LowSeed}
	h, conn, _, _ := newTestHandler(t, goal.ChallengeCup7, race, teams)

	h.handleRaceData(ctx, &racing.RaceData{
		Status: racing.Status{Value: racing.StatusInvitational},
		Entrants: []racing.Entrant{
			{User: racing.User{ID: "u1", Name: "alpha"}, Status: racing.Status{Value: racing.EntrantRequested}},
			{User: racing.User{ID: "u2", Name: "beta"}, Status: racing.Status{Value: racing.EntrantReady}},
			{User: racing.User{ID: "u9", Name: "lurker"}, Status: racing.Status{Value: racing.EntrantRequested}},
		},
	})
	assert.Equal(t, []string{"u1"}, conn.accepted)
}

func TestExistingSeedKeptAcrossRestart(t *testing.T) {
	ctx := context.Background()
	stem := "OoTR_1234_A1B2C3"
	webID := int64(77)
	race := &store.Race{
		ID:        "r1",
		Series:    "br",
		Event:     "1",
		FileStem:  &stem,
		WebID:     &webID,
		HashIcons: []string{"Beans", "Bow", "Frog", "Saw", "Mask"},
	}
	h, conn, st, _ := newTestHandler(t, goal.CopaDoBrasil, race, nil)

	require.Equal(t, PhaseRolled, h.state.Phase)
	require.NotNil(t, h.state.Seed)
	assert.Equal(t, stem, h.state.Seed.FileStem)
	assert.Equal(t, webID, h.state.Seed.WebID)

	// No second roll, by command or otherwise.
	assert.False(t, h.beginRolling())
	h.handleChat(ctx, chat("mon", "monica", "!seed", true))
	assert.Contains(t, conn.lastMessage(), "handled automatically")
	assert.Empty(t, st.seedFileStems)
}

func TestBreaksLifecycle(t *testing.T) {
	ctx := context.Background()
	h, conn, _, _ := newTestHandler(t, goal.StandardWeekly, nil, nil)

	h.handleChat(ctx, chat("u1", "alpha", "!breaks", false))
	assert.Contains(t, conn.lastMessage(), "No breaks are scheduled")

	h.handleChat(ctx, chat("u1", "alpha", "!breaks 5m every 2h30", false))
	assert.Contains(t, conn.lastMessage(), "5 minutes every 2 hours and 30 minutes")

	h.handleChat(ctx, chat("u1", "alpha", "!breaks off", false))
	assert.Contains(t, conn.lastMessage(), "disabled")
}
