package lang

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultUnit is the unit assumed for a bare number in free-text durations,
// e.g. "5" means 5 minutes for break durations but 5 hours for intervals.
type DefaultUnit int

const (
	UnitHours DefaultUnit = iota
	UnitMinutes
	UnitSeconds
)

func (u DefaultUnit) duration() time.Duration {
	switch u {
	case UnitHours:
		return time.Hour
	case UnitMinutes:
		return time.Minute
	default:
		return time.Second
	}
}

// next returns the unit one step smaller, used for trailing bare numbers as
// in "2h30" (2 hours 30 minutes) or "1m30" (1 minute 30 seconds).
func (u DefaultUnit) next() DefaultUnit {
	switch u {
	case UnitHours:
		return UnitMinutes
	default:
		return UnitSeconds
	}
}

func unitFor(s string) (DefaultUnit, bool) {
	switch strings.ToLower(s) {
	case "h", "hr", "hrs", "hour", "hours", "heure", "heures", "hora", "horas":
		return UnitHours, true
	case "m", "min", "mins", "minute", "minutes", "minuto", "minutos":
		return UnitMinutes, true
	case "s", "sec", "secs", "second", "seconds", "seconde", "secondes", "segundo", "segundos":
		return UnitSeconds, true
	}
	return 0, false
}

// ParseDuration parses free-text durations like "5m", "2h30", "1h23m45s",
// "90 sec", or a bare "5" interpreted in the given default unit. It returns
// false if the text isn't a duration.
func ParseDuration(s string, def DefaultUnit) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var (
		total    time.Duration
		lastUnit = def
		sawUnit  bool
		i        = 0
	)
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		start := i
		for i < len(s) && unicode.IsDigit(rune(s[i])) {
			i++
		}
		if start == i {
			return 0, false
		}
		n, err := strconv.Atoi(s[start:i])
		if err != nil {
			return 0, false
		}
		for i < len(s) && s[i] == ' ' {
			i++
		}
		start = i
		for i < len(s) && unicode.IsLetter(rune(s[i])) {
			i++
		}
		if start == i {
			// Bare trailing number: one unit below the previous one,
			// or the default unit if this is the only component.
			unit := def
			if sawUnit {
				unit = lastUnit.next()
			}
			total += time.Duration(n) * unit.duration()
			continue
		}
		unit, ok := unitFor(s[start:i])
		if !ok {
			return 0, false
		}
		total += time.Duration(n) * unit.duration()
		lastUnit = unit
		sawUnit = true
	}
	return total, true
}

type durationWords struct {
	hour, hours, minute, minutes, second, seconds, and string
}

var wordsByLanguage = map[Language]durationWords{
	English:    {"hour", "hours", "minute", "minutes", "second", "seconds", " and "},
	French:     {"heure", "heures", "minute", "minutes", "seconde", "secondes", " et "},
	Portuguese: {"hora", "horas", "minuto", "minutos", "segundo", "segundos", " e "},
	Spanish:    {"hora", "horas", "minuto", "minutos", "segundo", "segundos", " y "},
}

// FormatDuration renders a duration as prose, e.g. "2 hours and 30 minutes".
func (l Language) FormatDuration(d time.Duration) string {
	words, ok := wordsByLanguage[l]
	if !ok {
		words = wordsByLanguage[English]
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	var parts []string
	if h > 0 {
		parts = append(parts, plural(h, words.hour, words.hours))
	}
	if m > 0 {
		parts = append(parts, plural(m, words.minute, words.minutes))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, plural(s, words.second, words.seconds))
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + words.and + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + words.and + parts[len(parts)-1]
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
