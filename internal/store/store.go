package store

import (
	"context"
	"time"
)

// Race is one scheduled or completed tournament race.
type Race struct {
	ID           string
	Series       string
	Event        string
	Phase        string
	Round        string
	Game         int
	Team1        *string // high seed team, when the event runs team matches
	Team2        *string
	RoomURL      *string
	FileStem     *string
	WebID        *int64
	WebGenTime   *time.Time
	HashIcons    []string // five icons, empty when no seed yet
	StartTime    *time.Time
	RoomOpenTime *time.Time
	FPAInvoked   bool
	Recorded     bool
}

// Event is one tournament event (a series plus an event name within it).
type Event struct {
	Series         string
	Name           string
	EndTime        *time.Time
	DiscordChannel *string
}

// User maps a racing-platform account to an internal user.
type User struct {
	ID         string
	RacetimeID string
	Name       string
}

// TeamMember is one user's membership on an event team.
type TeamMember struct {
	TeamID     string
	UserID     string
	RacetimeID string
	HighSeed   bool
}

// PrerolledSeed is a cached seed rolled ahead of time for a goal whose
// settings never vary.
type PrerolledSeed struct {
	Goal      string
	FileStem  string
	Spoiler   string
	HashIcons []string
}

// AuditedSeed is one row of the per-room seed log kept for goals that
// require it.
type AuditedSeed struct {
	RoomURL   string
	FileStem  string
	Preset    string
	WebID     *int64
	GenTime   *time.Time
	HashIcons []string
	StartTime *time.Time
}

type Store interface {
	CreateRace(ctx context.Context, race *Race) error
	GetRace(ctx context.Context, id string) (*Race, error)
	GetRaceByRoom(ctx context.Context, roomURL string) (*Race, error)
	ListUnopenedRaces(ctx context.Context, by time.Time) ([]Race, error)
	SetRaceRoom(ctx context.Context, id, roomURL string) error
	ClearRaceRoom(ctx context.Context, id string) error
	SetRaceSeed(ctx context.Context, id, fileStem string, webID *int64, genTime *time.Time, hashIcons []string) error
	SetRaceFPAInvoked(ctx context.Context, id string) error
	MarkRaceRecorded(ctx context.Context, id string, startTime *time.Time) error

	UpsertEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, series, name string) (*Event, error)
	ListActiveEvents(ctx context.Context, now time.Time) ([]Event, error)

	AddOrganizer(ctx context.Context, series, event, userID string) error
	IsOrganizer(ctx context.Context, series, event, userID string) (bool, error)

	UpsertUser(ctx context.Context, user *User) error
	GetUserByRacetimeID(ctx context.Context, racetimeID string) (*User, error)
	GetTeamMembers(ctx context.Context, series, event, teamID string) ([]TeamMember, error)

	PutPrerolledSeed(ctx context.Context, seed *PrerolledSeed) error
	HasPrerolledSeed(ctx context.Context, goal string) (bool, error)
	TakePrerolledSeed(ctx context.Context, goal string) (*PrerolledSeed, error)

	RecordAuditedSeed(ctx context.Context, row *AuditedSeed) error

	Close() error
}
