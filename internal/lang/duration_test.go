package lang

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		input string
		def   DefaultUnit
		want  time.Duration
		ok    bool
	}{
		{"5m", UnitHours, 5 * time.Minute, true},
		{"2h30", UnitHours, 2*time.Hour + 30*time.Minute, true},
		{"1h23m45s", UnitHours, time.Hour + 23*time.Minute + 45*time.Second, true},
		{"90 sec", UnitHours, 90 * time.Second, true},
		{"5", UnitMinutes, 5 * time.Minute, true},
		{"5", UnitHours, 5 * time.Hour, true},
		{"1m30", UnitHours, time.Minute + 30*time.Second, true},
		{"2 hours 15 minutes", UnitHours, 2*time.Hour + 15*time.Minute, true},
		{"2 heures 5 minutes", UnitHours, 2*time.Hour + 5*time.Minute, true},
		{"", UnitHours, 0, false},
		{"soon", UnitHours, 0, false},
		{"5x", UnitHours, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDuration(c.input, c.def)
		assert.Equal(t, c.ok, ok, "input %q", c.input)
		if c.ok {
			assert.Equal(t, c.want, got, "input %q", c.input)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2 hours and 30 minutes", English.FormatDuration(2*time.Hour+30*time.Minute))
	assert.Equal(t, "1 hour", English.FormatDuration(time.Hour))
	assert.Equal(t, "0 seconds", English.FormatDuration(0))
	assert.Equal(t, "1 hour, 2 minutes and 3 seconds", English.FormatDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "2 heures et 5 minutes", French.FormatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "1 hora e 1 segundo", Portuguese.FormatDuration(time.Hour+time.Second))
	assert.Equal(t, "45 minutos", Spanish.FormatDuration(45*time.Minute))
}
