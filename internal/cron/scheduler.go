package cron

import (
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	MinIntervalMinutes = 5
	MaxIntervalMinutes = 1440
)

// ClampInterval bounds minutes to the supported report cadence.
func ClampInterval(minutes int) int {
	return min(max(minutes, MinIntervalMinutes), MaxIntervalMinutes)
}

// Trigger is emitted each time a scheduler fires.
type Trigger struct {
	Name            string
	IntervalMinutes int
	Forced          bool
	FiredAt         time.Time
}

// Status is a point-in-time view of a scheduler.
type Status struct {
	Running         bool
	IntervalMinutes int
	// NextFireEstimate is now plus the interval. It is not the registered
	// deadline and drifts after ForceFire or a mid-cycle SetInterval.
	NextFireEstimate time.Time
	// NextScheduled is the registered deadline, zero when idle.
	NextScheduled time.Time
}

// every fires at a fixed delay after the previous activation.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type Option func(*Scheduler)

// WithUnit sets the duration of one interval "minute".
func WithUnit(d time.Duration) Option {
	return func(s *Scheduler) { s.unit = d }
}

// WithClock replaces the time source used for triggers and estimates.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler fires a named trigger on a reconfigurable fixed cadence. Fires
// run on their own goroutines, so a slow OnFire never delays or skips the
// next tick.
type Scheduler struct {
	name   string
	unit   time.Duration
	now    func() time.Time
	logger zerolog.Logger

	OnFire func(Trigger)

	mu              sync.Mutex
	intervalMinutes int
	running         bool
	cron            *rcron.Cron
	entry           rcron.EntryID
}

func NewScheduler(name string, intervalMinutes int, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:            name,
		unit:            time.Minute,
		now:             time.Now,
		intervalMinutes: ClampInterval(intervalMinutes),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().Str("component", "cron").Str("scheduler", name).Logger()
	return s
}

func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Info().Msg("scheduler already running")
		return
	}
	s.cron = rcron.New()
	s.register()
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("interval_minutes", s.intervalMinutes).Msg("scheduler started")
}

// register adds the single repeating entry. Callers hold s.mu.
func (s *Scheduler) register() {
	d := time.Duration(s.intervalMinutes) * s.unit
	s.entry = s.cron.Schedule(every(d), rcron.FuncJob(s.tick))
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	interval := s.intervalMinutes
	s.mu.Unlock()
	s.emit(Trigger{Name: s.name, IntervalMinutes: interval, FiredAt: s.now()})
}

func (s *Scheduler) emit(tr Trigger) {
	if s.OnFire == nil {
		s.logger.Warn().Msg("no OnFire handler set")
		return
	}
	s.logger.Debug().Bool("forced", tr.Forced).Msg("firing")
	s.OnFire(tr)
}

// Stop cancels the timer. In-flight fires are waited on briefly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("stop timeout waiting for running fires")
	}
	s.logger.Info().Msg("scheduler stopped")
}

// SetInterval stores the clamped cadence and returns it. A running
// scheduler swaps its entry so the old cadence can never fire again.
func (s *Scheduler) SetInterval(minutes int) int {
	minutes = ClampInterval(minutes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if minutes == s.intervalMinutes {
		return minutes
	}
	old := s.intervalMinutes
	s.intervalMinutes = minutes
	if s.running {
		s.cron.Remove(s.entry)
		s.register()
	}
	s.logger.Info().Int("from", old).Int("to", minutes).Bool("running", s.running).Msg("interval changed")
	return minutes
}

func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalMinutes
}

// ForceFire emits a trigger now without touching the schedule.
func (s *Scheduler) ForceFire() {
	s.mu.Lock()
	interval := s.intervalMinutes
	s.mu.Unlock()
	go s.emit(Trigger{Name: s.name, IntervalMinutes: interval, Forced: true, FiredAt: s.now()})
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:          s.running,
		IntervalMinutes:  s.intervalMinutes,
		NextFireEstimate: s.now().Add(time.Duration(s.intervalMinutes) * s.unit),
	}
	if s.running {
		st.NextScheduled = s.cron.Entry(s.entry).Next
	}
	return st
}
