// Package gen rolls randomizer seeds, either through the web generator's
// API, a local generator subprocess, or the alternate blitz website.
package gen

import (
	"fmt"
	"time"
)

// SeedInfo describes one successfully rolled seed.
type SeedInfo struct {
	// WebID is set for seeds rolled on the web generator.
	WebID int64
	// BlitzUUID is set for seeds from the alternate site.
	BlitzUUID string
	GenTime   time.Time
	FileStem  string
	HashIcons []string
	// SpoilerPath is set for locally rolled seeds.
	SpoilerPath string
}

// URL returns the seed's public page, if it has one.
func (s *SeedInfo) URL(blitzBase string) string {
	switch {
	case s.WebID != 0:
		return fmt.Sprintf("https://ootrandomizer.com/seed/get?id=%d", s.WebID)
	case s.BlitzUUID != "":
		return fmt.Sprintf("%s/seed/%s", blitzBase, s.BlitzUUID)
	}
	return ""
}

// UpdateKind enumerates progress updates during a seed roll.
type UpdateKind int

const (
	// UpdateQueued: the roll is waiting in line at the given position.
	UpdateQueued UpdateKind = iota
	// UpdateMovedForward: the queue position decreased.
	UpdateMovedForward
	// UpdateStarted: the generator has started working.
	UpdateStarted
	// UpdateDone: the seed is ready.
	UpdateDone
	// UpdateError: the roll failed for good.
	UpdateError
)

// SeedRollUpdate is one progress report from a seed roll.
type SeedRollUpdate struct {
	Kind     UpdateKind
	Position int
	Seed     *SeedInfo
	Err      error
}

// RetriesExceededError is returned when the generator kept failing and the
// retry budget ran out.
type RetriesExceededError struct {
	Attempts  int
	LastError string
}

func (e *RetriesExceededError) Error() string {
	if e.LastError != "" {
		return fmt.Sprintf("max retries exceeded after %d attempts, last error: %s", e.Attempts, e.LastError)
	}
	return fmt.Sprintf("max retries exceeded after %d attempts", e.Attempts)
}

// UnexpectedStatusError is returned when the seed status endpoint reports a
// value the client doesn't know.
type UnexpectedStatusError struct {
	Status int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("seed status API endpoint returned unknown value %d", e.Status)
}
