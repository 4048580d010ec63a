package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS races (
			id TEXT PRIMARY KEY,
			series TEXT NOT NULL,
			event TEXT NOT NULL,
			phase TEXT NOT NULL DEFAULT '',
			round TEXT NOT NULL DEFAULT '',
			game INTEGER NOT NULL DEFAULT 0,
			team1 TEXT,
			team2 TEXT,
			room_url TEXT,
			file_stem TEXT,
			web_id INTEGER,
			web_gen_time TIMESTAMP,
			hash1 TEXT, hash2 TEXT, hash3 TEXT, hash4 TEXT, hash5 TEXT,
			start_time TIMESTAMP,
			room_open_time TIMESTAMP,
			fpa_invoked INTEGER NOT NULL DEFAULT 0,
			recorded INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_races_room ON races(room_url)`,
		`CREATE INDEX IF NOT EXISTS idx_races_open ON races(room_open_time)`,
		`CREATE TABLE IF NOT EXISTS events (
			series TEXT NOT NULL,
			name TEXT NOT NULL,
			end_time TIMESTAMP,
			discord_channel TEXT,
			PRIMARY KEY (series, name)
		)`,
		`CREATE TABLE IF NOT EXISTS organizers (
			series TEXT NOT NULL,
			event TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (series, event, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			racetime_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			series TEXT NOT NULL,
			event TEXT NOT NULL,
			team_id TEXT NOT NULL,
			user_id TEXT NOT NULL REFERENCES users(id),
			high_seed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (series, event, team_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS prerolled_seeds (
			goal TEXT NOT NULL,
			file_stem TEXT NOT NULL,
			spoiler TEXT NOT NULL,
			hash1 TEXT, hash2 TEXT, hash3 TEXT, hash4 TEXT, hash5 TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prerolled_goal ON prerolled_seeds(goal)`,
		`CREATE TABLE IF NOT EXISTS seed_audit (
			room_url TEXT NOT NULL,
			file_stem TEXT NOT NULL,
			preset TEXT NOT NULL,
			web_id INTEGER,
			gen_time TIMESTAMP,
			hash1 TEXT, hash2 TEXT, hash3 TEXT, hash4 TEXT, hash5 TEXT,
			start_time TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func hashCols(icons []string) [5]any {
	var out [5]any
	for i := range out {
		if i < len(icons) && icons[i] != "" {
			out[i] = icons[i]
		}
	}
	return out
}

func hashIcons(cols [5]sql.NullString) []string {
	if !cols[0].Valid {
		return nil
	}
	out := make([]string, 0, 5)
	for _, c := range cols {
		out = append(out, c.String)
	}
	return out
}

// CreateRace inserts a scheduled race.
func (s *SQLiteStore) CreateRace(ctx context.Context, race *Race) error {
	h := hashCols(race.HashIcons)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO races (id, series, event, phase, round, game, team1, team2, room_url, file_stem,
			web_id, web_gen_time, hash1, hash2, hash3, hash4, hash5,
			start_time, room_open_time, fpa_invoked, recorded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		race.ID, race.Series, race.Event, race.Phase, race.Round, race.Game,
		race.Team1, race.Team2, race.RoomURL, race.FileStem, race.WebID, race.WebGenTime,
		h[0], h[1], h[2], h[3], h[4],
		race.StartTime, race.RoomOpenTime, race.FPAInvoked, race.Recorded,
	)
	return err
}

func scanRace(row interface{ Scan(...any) error }) (*Race, error) {
	var (
		race Race
		h    [5]sql.NullString
	)
	err := row.Scan(
		&race.ID, &race.Series, &race.Event, &race.Phase, &race.Round, &race.Game,
		&race.Team1, &race.Team2, &race.RoomURL, &race.FileStem, &race.WebID, &race.WebGenTime,
		&h[0], &h[1], &h[2], &h[3], &h[4],
		&race.StartTime, &race.RoomOpenTime, &race.FPAInvoked, &race.Recorded,
	)
	if err != nil {
		return nil, err
	}
	race.HashIcons = hashIcons(h)
	return &race, nil
}

const raceColumns = `id, series, event, phase, round, game, team1, team2, room_url, file_stem,
	web_id, web_gen_time, hash1, hash2, hash3, hash4, hash5,
	start_time, room_open_time, fpa_invoked, recorded`

// GetRace retrieves a race by ID.
func (s *SQLiteStore) GetRace(ctx context.Context, id string) (*Race, error) {
	race, err := scanRace(s.db.QueryRowContext(ctx,
		`SELECT `+raceColumns+` FROM races WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return race, err
}

// GetRaceByRoom retrieves the race associated with a room URL.
func (s *SQLiteStore) GetRaceByRoom(ctx context.Context, roomURL string) (*Race, error) {
	race, err := scanRace(s.db.QueryRowContext(ctx,
		`SELECT `+raceColumns+` FROM races WHERE room_url = ?`, roomURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return race, err
}

// ListUnopenedRaces returns races whose room should be open by the given
// time but has not been created yet.
func (s *SQLiteStore) ListUnopenedRaces(ctx context.Context, by time.Time) ([]Race, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+raceColumns+` FROM races
		 WHERE room_url IS NULL AND room_open_time IS NOT NULL AND room_open_time <= ?
		 ORDER BY room_open_time`, by)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, *race)
	}
	return races, rows.Err()
}

// SetRaceRoom records the room URL for a race.
func (s *SQLiteStore) SetRaceRoom(ctx context.Context, id, roomURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET room_url = ? WHERE id = ?`, roomURL, id)
	return err
}

// ClearRaceRoom removes the room association, e.g. after a cancelled race.
func (s *SQLiteStore) ClearRaceRoom(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET room_url = NULL WHERE id = ?`, id)
	return err
}

// SetRaceSeed records the rolled seed for a race.
func (s *SQLiteStore) SetRaceSeed(ctx context.Context, id, fileStem string, webID *int64, genTime *time.Time, icons []string) error {
	h := hashCols(icons)
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET file_stem = ?, web_id = ?, web_gen_time = ?,
			hash1 = ?, hash2 = ?, hash3 = ?, hash4 = ?, hash5 = ?
		 WHERE id = ?`,
		fileStem, webID, genTime, h[0], h[1], h[2], h[3], h[4], id)
	return err
}

// SetRaceFPAInvoked marks that fair play was invoked during the race.
func (s *SQLiteStore) SetRaceFPAInvoked(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET fpa_invoked = 1 WHERE id = ?`, id)
	return err
}

// MarkRaceRecorded marks the race finished and stores its actual start time.
func (s *SQLiteStore) MarkRaceRecorded(ctx context.Context, id string, startTime *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET recorded = 1, start_time = COALESCE(?, start_time) WHERE id = ?`,
		startTime, id)
	return err
}

// UpsertEvent creates or updates an event.
func (s *SQLiteStore) UpsertEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (series, name, end_time, discord_channel)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(series, name) DO UPDATE SET
			end_time = excluded.end_time,
			discord_channel = excluded.discord_channel`,
		ev.Series, ev.Name, ev.EndTime, ev.DiscordChannel,
	)
	return err
}

// GetEvent retrieves an event by series and name.
func (s *SQLiteStore) GetEvent(ctx context.Context, series, name string) (*Event, error) {
	var ev Event
	err := s.db.QueryRowContext(ctx,
		`SELECT series, name, end_time, discord_channel FROM events
		 WHERE series = ? AND name = ?`, series, name).Scan(
		&ev.Series, &ev.Name, &ev.EndTime, &ev.DiscordChannel,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListActiveEvents returns events that have not ended by the given time.
func (s *SQLiteStore) ListActiveEvents(ctx context.Context, now time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series, name, end_time, discord_channel FROM events
		 WHERE end_time IS NULL OR end_time > ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Series, &ev.Name, &ev.EndTime, &ev.DiscordChannel); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AddOrganizer registers a user as an organizer of an event.
func (s *SQLiteStore) AddOrganizer(ctx context.Context, series, event, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizers (series, event, user_id) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		series, event, userID)
	return err
}

// IsOrganizer reports whether the user organizes the event.
func (s *SQLiteStore) IsOrganizer(ctx context.Context, series, event, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organizers WHERE series = ? AND event = ? AND user_id = ?`,
		series, event, userID).Scan(&n)
	return n > 0, err
}

// UpsertUser creates or updates a user.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, racetime_id, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			racetime_id = excluded.racetime_id,
			name = excluded.name`,
		user.ID, user.RacetimeID, user.Name,
	)
	return err
}

// GetUserByRacetimeID looks up a user by their racing-platform account ID.
func (s *SQLiteStore) GetUserByRacetimeID(ctx context.Context, racetimeID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, racetime_id, name FROM users WHERE racetime_id = ?`,
		racetimeID).Scan(&user.ID, &user.RacetimeID, &user.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTeamMembers lists the members of one event team with their
// racing-platform account IDs.
func (s *SQLiteStore) GetTeamMembers(ctx context.Context, series, event, teamID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tm.team_id, tm.user_id, u.racetime_id, tm.high_seed
		 FROM team_members tm
		 JOIN users u ON u.id = tm.user_id
		 WHERE tm.series = ? AND tm.event = ? AND tm.team_id = ?
		 ORDER BY tm.high_seed DESC, tm.user_id`,
		series, event, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.RacetimeID, &m.HighSeed); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// PutPrerolledSeed adds a seed to the cache for a goal.
func (s *SQLiteStore) PutPrerolledSeed(ctx context.Context, seed *PrerolledSeed) error {
	h := hashCols(seed.HashIcons)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prerolled_seeds (goal, file_stem, spoiler, hash1, hash2, hash3, hash4, hash5)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.Goal, seed.FileStem, seed.Spoiler, h[0], h[1], h[2], h[3], h[4],
	)
	return err
}

// HasPrerolledSeed reports whether the cache holds a seed for the goal.
func (s *SQLiteStore) HasPrerolledSeed(ctx context.Context, goal string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prerolled_seeds WHERE goal = ?`, goal).Scan(&n)
	return n > 0, err
}

// TakePrerolledSeed removes and returns one cached seed for the goal, in a
// single transaction so concurrent callers cannot take the same seed.
func (s *SQLiteStore) TakePrerolledSeed(ctx context.Context, goal string) (*PrerolledSeed, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		seed  PrerolledSeed
		rowid int64
		h     [5]sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT rowid, goal, file_stem, spoiler, hash1, hash2, hash3, hash4, hash5
		 FROM prerolled_seeds WHERE goal = ? LIMIT 1`, goal).Scan(
		&rowid, &seed.Goal, &seed.FileStem, &seed.Spoiler,
		&h[0], &h[1], &h[2], &h[3], &h[4],
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seed.HashIcons = hashIcons(h)

	if _, err := tx.ExecContext(ctx, `DELETE FROM prerolled_seeds WHERE rowid = ?`, rowid); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// RecordAuditedSeed appends a row to the seed audit log.
func (s *SQLiteStore) RecordAuditedSeed(ctx context.Context, row *AuditedSeed) error {
	h := hashCols(row.HashIcons)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seed_audit (room_url, file_stem, preset, web_id, gen_time,
			hash1, hash2, hash3, hash4, hash5, start_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RoomURL, row.FileStem, row.Preset, row.WebID, row.GenTime,
		h[0], h[1], h[2], h[3], h[4], row.StartTime,
	)
	return err
}
