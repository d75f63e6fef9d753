package cron

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests run with one interval "minute" compressed to a millisecond.
func newTestScheduler(interval int) *Scheduler {
	return NewScheduler("activity", interval, WithUnit(time.Millisecond))
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{3, 5},
		{-10, 5},
		{5, 5},
		{180, 180},
		{1440, 1440},
		{2000, 1440},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampInterval(tt.in), "ClampInterval(%d)", tt.in)
	}
}

func TestScheduler_SetIntervalClamps(t *testing.T) {
	s := newTestScheduler(60)
	assert.Equal(t, 5, s.SetInterval(3))
	assert.Equal(t, 5, s.Interval())
	assert.Equal(t, 1440, s.SetInterval(2000))
	assert.Equal(t, 1440, s.Interval())

	assert.Equal(t, 5, NewScheduler("x", 0).Interval())
}

func TestScheduler_IdleSetIntervalDoesNotStart(t *testing.T) {
	s := newTestScheduler(60)
	s.SetInterval(30)
	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 30, st.IntervalMinutes)
	assert.True(t, st.NextScheduled.IsZero())
}

func TestScheduler_FiresRepeatedly(t *testing.T) {
	s := newTestScheduler(20)
	var fires atomic.Int32
	s.OnFire = func(tr Trigger) {
		assert.Equal(t, "activity", tr.Name)
		assert.False(t, tr.Forced)
		assert.Equal(t, 20, tr.IntervalMinutes)
		fires.Add(1)
	}

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return fires.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StartTwiceKeepsOneEntry(t *testing.T) {
	s := newTestScheduler(1440)
	s.Start()
	defer s.Stop()
	first := s.cron

	s.Start()
	assert.Same(t, first, s.cron)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_SetIntervalWhileRunningReplacesEntry(t *testing.T) {
	s := newTestScheduler(1440)
	s.OnFire = func(Trigger) {}
	s.Start()
	defer s.Stop()
	oldEntry := s.entry

	s.SetInterval(720)

	entries := s.cron.Entries()
	require.Len(t, entries, 1, "old timer must be gone before the new one fires")
	assert.NotEqual(t, oldEntry, entries[0].ID)

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, 720, st.IntervalMinutes)
	assert.False(t, st.NextScheduled.IsZero())
}

func TestScheduler_SetIntervalNoDoubleFire(t *testing.T) {
	s := newTestScheduler(40)
	var mu sync.Mutex
	var fired []int
	s.OnFire = func(tr Trigger) {
		mu.Lock()
		fired = append(fired, tr.IntervalMinutes)
		mu.Unlock()
	}
	s.Start()
	defer s.Stop()

	s.SetInterval(1440)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, fired, "the 40ms cadence must not survive the change")
}

func TestScheduler_SetIntervalUnchangedIsNoop(t *testing.T) {
	s := newTestScheduler(1440)
	s.Start()
	defer s.Stop()
	entry := s.entry

	s.SetInterval(1440)
	s.SetInterval(5000)
	assert.Equal(t, entry, s.entry)
}

func TestScheduler_ForceFire(t *testing.T) {
	s := newTestScheduler(1440)
	got := make(chan Trigger, 1)
	s.OnFire = func(tr Trigger) { got <- tr }

	s.ForceFire()

	select {
	case tr := <-got:
		assert.True(t, tr.Forced)
		assert.Equal(t, 1440, tr.IntervalMinutes)
	case <-time.After(time.Second):
		t.Fatal("forced trigger not emitted")
	}
	assert.False(t, s.Status().Running, "forcing does not start the schedule")
}

func TestScheduler_ForceFireKeepsSchedule(t *testing.T) {
	s := newTestScheduler(1440)
	s.OnFire = func(Trigger) {}
	s.Start()
	defer s.Stop()
	before := s.Status().NextScheduled

	s.ForceFire()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, s.Status().NextScheduled)
}

func TestScheduler_OverlappingFires(t *testing.T) {
	s := newTestScheduler(10)
	release := make(chan struct{})
	var active, peak atomic.Int32
	s.OnFire = func(Trigger) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		active.Add(-1)
	}
	s.Start()

	require.Eventually(t, func() bool { return peak.Load() >= 2 }, 2*time.Second, 5*time.Millisecond,
		"a blocked fire must not hold back the next tick")
	close(release)
	s.Stop()
}

func TestScheduler_Status(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler("burn", 60, WithClock(func() time.Time { return now }))

	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 60, st.IntervalMinutes)
	assert.Equal(t, now.Add(time.Hour), st.NextFireEstimate)
	assert.True(t, st.NextScheduled.IsZero())
}

func TestScheduler_StopIdempotent(t *testing.T) {
	s := newTestScheduler(1440)
	s.Stop()

	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.Status().Running)

	s.Start()
	assert.True(t, s.Status().Running)
	s.Stop()
}

func TestScheduler_NoHandler(t *testing.T) {
	s := newTestScheduler(5)
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
}
