// Package racing is a client for the race platform: REST calls for
// creating and configuring races, and websockets for the category feed and
// per-room traffic.
package racing

import "time"

// RaceStatus values as reported by the platform.
const (
	StatusOpen         = "open"
	StatusInvitational = "invitational"
	StatusPending      = "pending"
	StatusInProgress   = "in_progress"
	StatusFinished     = "finished"
	StatusCancelled    = "cancelled"
)

// Entrant statuses.
const (
	EntrantRequested  = "requested"
	EntrantInvited    = "invited"
	EntrantReady      = "ready"
	EntrantNotReady   = "not_ready"
	EntrantInProgress = "in_progress"
	EntrantDone       = "done"
	EntrantDNF        = "dnf"
	EntrantDQ         = "dq"
)

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Discriminator string `json:"discriminator"`
}

type Status struct {
	Value string `json:"value"`
}

type GoalData struct {
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

type Entrant struct {
	User       User       `json:"user"`
	Status     Status     `json:"status"`
	Team       *Team      `json:"team"`
	FinishTime *string    `json:"finish_time"`
	FinishedAt *time.Time `json:"finished_at"`
}

type Team struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// RaceData is the platform's full snapshot of one race room.
type RaceData struct {
	Name            string     `json:"name"` // "category/adjective-noun-1234"
	Status          Status     `json:"status"`
	Goal            GoalData   `json:"goal"`
	Info            string     `json:"info"`
	InfoBot         string     `json:"info_bot"`
	InfoUser        string     `json:"info_user"`
	URL             string     `json:"url"`
	DataURL         string     `json:"data_url"`
	WebsocketBotURL string     `json:"websocket_bot_url"`
	Entrants        []Entrant  `json:"entrants"`
	OpenedBy        *User      `json:"opened_by"`
	StartedAt       *time.Time `json:"started_at"`
	StartDelay      string     `json:"start_delay"`
	TimeLimit       string     `json:"time_limit"`
	AutoStart       bool       `json:"auto_start"`
	Unlisted        bool       `json:"unlisted"`
	TeamRace        bool       `json:"team_race"`
}

// ChatMessage is one chat line in a race room.
type ChatMessage struct {
	ID           string `json:"id"`
	User         *User  `json:"user"`
	Bot          string `json:"bot"`
	Message      string `json:"message"`
	MessagePlain string `json:"message_plain"`
	IsBot        bool   `json:"is_bot"`
	IsSystem     bool   `json:"is_system"`
	IsMonitor    bool   `json:"is_monitor"`
}

// Event is one parsed message from a room or category websocket.
type Event struct {
	Type string
	Race *RaceData
	Chat *ChatMessage
}

// StartRace is the configuration for creating or editing a race room.
type StartRace struct {
	Goal                string
	CustomGoal          bool
	Invitational        bool
	Unlisted            bool
	InfoUser            string
	InfoBot             string
	StartDelay          int
	TimeLimit           int
	StreamingRequired   bool
	AutoStart           bool
	AllowComments       bool
	AllowPreraceChat    bool
	AllowMidraceChat    bool
	AllowNonEntrantChat bool
	ChatMessageDelay    int
	TeamRace            bool
}
