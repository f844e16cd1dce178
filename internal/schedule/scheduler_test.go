package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

func TestAddAndUnschedule(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	require.NoError(t, s.Add("morning", Spec{Kind: KindDaily, Hour: 9}))
	assert.True(t, s.Has("morning"))
	assert.Equal(t, []string{"morning"}, s.IDs())

	assert.True(t, s.Unschedule("morning"))
	assert.False(t, s.Has("morning"))
	assert.Empty(t, s.IDs())
}

func TestUnscheduleUnknownID(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)
	assert.False(t, s.Unschedule("never-registered"))
}

func TestAddReplacesExisting(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	require.NoError(t, s.Add("job", Spec{Kind: KindDaily, Hour: 9}))
	require.NoError(t, s.Add("job", Spec{Kind: KindDaily, Hour: 10}))

	// Still exactly one live registration for the id.
	assert.Equal(t, []string{"job"}, s.IDs())
	assert.Len(t, s.cron.Entries(), 1)
	assert.True(t, s.Unschedule("job"))
	assert.False(t, s.Unschedule("job"))
}

func TestFailedReplacementKeepsOldJob(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	require.NoError(t, s.AddCron("job", "0 9 * * *"))
	require.Error(t, s.AddCron("job", "not a cron expr"))

	// The bad expression must not have torn down the live timer.
	assert.True(t, s.Has("job"))
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.AddCron("job", "0 10 * * *"))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestAddEmptyID(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)
	assert.Error(t, s.Add("", Spec{Kind: KindDaily}))
	assert.Error(t, s.AddCron("", "0 0 * * *"))
}

func TestAddDSL(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	assert.True(t, s.AddDSL("standup", "every monday at 10:00"))
	assert.True(t, s.Has("standup"))

	assert.False(t, s.AddDSL("broken", "whenever I feel like it"))
	assert.False(t, s.Has("broken"))
}

func TestAddCronInvalidExpression(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)
	assert.Error(t, s.AddCron("bad", "not a cron expr"))
	assert.False(t, s.Has("bad"))
}

func TestIntervalJobFires(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	require.NoError(t, s.Add("tick", Spec{Kind: KindInterval, Every: 100 * time.Millisecond}))
	s.Start()
	defer s.Stop()

	select {
	case firing := <-s.Fires():
		assert.Equal(t, "tick", firing.ID)
		assert.WithinDuration(t, time.Now(), firing.At, time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("interval job never fired")
	}
}

func TestUnscheduledJobStopsFiring(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	require.NoError(t, s.Add("tick", Spec{Kind: KindInterval, Every: 50 * time.Millisecond}))
	s.Start()
	defer s.Stop()

	select {
	case <-s.Fires():
	case <-time.After(2 * time.Second):
		t.Fatal("interval job never fired")
	}

	assert.True(t, s.Unschedule("tick"))

	// Drain anything queued before the removal took effect, then verify
	// silence.
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case <-s.Fires():
		case <-deadline:
			select {
			case f := <-s.Fires():
				t.Fatalf("unscheduled job fired: %+v", f)
			case <-time.After(200 * time.Millisecond):
				return
			}
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewScheduler(logger.Discard(), nil)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

type countingRecorder struct {
	fired   atomic.Int64
	dropped atomic.Int64
}

func (c *countingRecorder) RecordJobFired()   { c.fired.Add(1) }
func (c *countingRecorder) RecordJobDropped() { c.dropped.Add(1) }

func TestRecorderCountsFirings(t *testing.T) {
	rec := &countingRecorder{}
	s := NewScheduler(logger.Discard(), rec)

	require.NoError(t, s.Add("tick", Spec{Kind: KindInterval, Every: 50 * time.Millisecond}))
	s.Start()
	defer s.Stop()

	select {
	case <-s.Fires():
	case <-time.After(2 * time.Second):
		t.Fatal("interval job never fired")
	}

	assert.GreaterOrEqual(t, rec.fired.Load(), int64(1))
}
