package room

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sariahouse/racebot/internal/lang"
)

// BreakConfig is a scheduled recurring break, e.g. "5m every 2h30".
type BreakConfig struct {
	Duration time.Duration
	Interval time.Duration
}

func (b BreakConfig) Format(l lang.Language) string {
	return fmt.Sprintf("%s every %s", l.FormatDuration(b.Duration), l.FormatDuration(b.Interval))
}

// ParseBreaks parses "<duration> every <interval>". Bare numbers mean
// minutes for the duration and hours for the interval.
func ParseBreaks(input string) (BreakConfig, error) {
	durationPart, intervalPart, found := strings.Cut(strings.TrimSpace(input), " every ")
	if !found {
		return BreakConfig{}, fmt.Errorf("breaks look like “!breaks 5m every 2h30”")
	}
	duration, ok := lang.ParseDuration(durationPart, lang.UnitMinutes)
	if !ok {
		return BreakConfig{}, fmt.Errorf("I don't understand that break duration, try e.g. “5m”")
	}
	interval, ok := lang.ParseDuration(intervalPart, lang.UnitHours)
	if !ok {
		return BreakConfig{}, fmt.Errorf("I don't understand that break interval, try e.g. “2h30”")
	}
	cfg := BreakConfig{Duration: duration, Interval: interval}
	if err := cfg.validate(); err != nil {
		return BreakConfig{}, err
	}
	return cfg, nil
}

func (b BreakConfig) validate() error {
	if b.Duration < time.Minute {
		return fmt.Errorf("breaks must be at least one minute long")
	}
	if b.Interval < b.Duration+5*time.Minute {
		return fmt.Errorf("there must be at least 5 minutes between breaks")
	}
	if b.Duration+b.Interval >= 24*time.Hour {
		return fmt.Errorf("breaks can't be more than 24 hours apart")
	}
	return nil
}

// runBreaks announces breaks for the whole race: a warning 5 minutes
// ahead, the break start, and the end. Each cycle re-checks that the race
// is still running and stops quietly once it isn't.
func (h *Handler) runBreaks(ctx context.Context, cfg BreakConfig) {
	warn := cfg.Interval - 5*time.Minute
	if !sleepCtx(ctx, warn) {
		return
	}
	for {
		if !h.raceRunning() {
			return
		}
		h.say(h.text(textBreakWarning))
		if !sleepCtx(ctx, 5*time.Minute) {
			return
		}
		if !h.raceRunning() {
			return
		}
		h.say(h.text(textBreakStart))
		if !sleepCtx(ctx, cfg.Duration) {
			return
		}
		if !h.raceRunning() {
			return
		}
		h.say(h.text(textBreakEnd))
		if !sleepCtx(ctx, cfg.Interval-5*time.Minute-cfg.Duration) {
			return
		}
	}
}

// runGoalReminders posts the goal-specific reminder on a fixed schedule,
// used by timed goals where entrants must stop at a time limit.
func (h *Handler) runGoalReminders(ctx context.Context, period time.Duration, message string) {
	for {
		if !sleepCtx(ctx, period) {
			return
		}
		if !h.raceRunning() {
			return
		}
		h.say(message)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
