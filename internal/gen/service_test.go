package gen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sariahouse/racebot/internal/goal"
)

func TestSleepForPrerollWindows(t *testing.T) {
	ctx := context.Background()

	// Long preroll rolls right away regardless of the deadline.
	begin := time.Now()
	require.True(t, sleepForPreroll(ctx, goal.PrerollLong, time.Now().Add(time.Hour)))
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	// Medium preroll picks a point between now and the deadline, never
	// past it.
	begin = time.Now()
	require.True(t, sleepForPreroll(ctx, goal.PrerollMedium, time.Now().Add(150*time.Millisecond)))
	assert.Less(t, time.Since(begin), 250*time.Millisecond)

	// No preroll waits out the whole window.
	begin = time.Now()
	require.True(t, sleepForPreroll(ctx, goal.PrerollNone, time.Now().Add(120*time.Millisecond)))
	assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)

	// A deadline in the past means rolling immediately.
	require.True(t, sleepForPreroll(ctx, goal.PrerollShort, time.Now().Add(-time.Minute)))
}

func TestSleepForPrerollCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepForPreroll(ctx, goal.PrerollNone, time.Now().Add(time.Hour)))
}
