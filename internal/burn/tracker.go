package burn

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// SupplyReader reads the token's current circulating supply.
type SupplyReader interface {
	CurrentSupply(ctx context.Context) (float64, error)
}

// FetchError reports a failed supply read.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Baseline is the last supply observed for one interval.
type Baseline struct {
	IntervalMinutes int
	LastSupply      float64
	LastCheckedAt   time.Time
}

// Data is one burn report.
type Data struct {
	CurrentSupply  float64
	TotalBurned    float64
	BurnedInPeriod float64
	PeriodMinutes  int
	Timestamp      time.Time
}

// Tracker computes burn per interval from successive supply reads. Each
// distinct interval keeps its own baseline, and concurrent requests for the
// same interval share one supply read.
type Tracker struct {
	reader      SupplyReader
	totalSupply float64
	now         func() time.Time
	logger      zerolog.Logger

	mu        sync.Mutex
	baselines map[int]Baseline
	flight    *singleflight.Group
}

// NewTracker returns a Tracker measuring burn against totalSupply.
func NewTracker(reader SupplyReader, totalSupply float64) *Tracker {
	return &Tracker{
		reader:      reader,
		totalSupply: totalSupply,
		now:         time.Now,
		logger:      log.With().Str("component", "burn").Logger(),
		baselines:   make(map[int]Baseline),
		flight:      &singleflight.Group{},
	}
}

// SetClock replaces the tracker's time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) group() *singleflight.Group {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flight
}

// GetBurnData reads the supply once and reports burn since the interval's
// baseline. Callers asking for the same interval while a read is in flight
// receive that read's result, error included.
func (t *Tracker) GetBurnData(ctx context.Context, intervalMinutes int) (Data, error) {
	key := strconv.Itoa(intervalMinutes)
	// The shared read must not die with whichever caller started it.
	readCtx := context.WithoutCancel(ctx)
	ch := t.group().DoChan(key, func() (any, error) {
		return t.compute(readCtx, intervalMinutes)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Data{}, res.Err
		}
		if res.Shared {
			t.logger.Debug().Int("interval", intervalMinutes).Msg("joined in-flight supply read")
		}
		return res.Val.(Data), nil
	case <-ctx.Done():
		return Data{}, ctx.Err()
	}
}

func (t *Tracker) compute(ctx context.Context, intervalMinutes int) (Data, error) {
	supply, err := t.reader.CurrentSupply(ctx)
	if err != nil {
		return Data{}, &FetchError{Source: "supply", Err: err}
	}
	now := t.now()

	t.mu.Lock()
	prev, ok := t.baselines[intervalMinutes]
	t.baselines[intervalMinutes] = Baseline{
		IntervalMinutes: intervalMinutes,
		LastSupply:      supply,
		LastCheckedAt:   now,
	}
	t.mu.Unlock()

	var burned float64
	if ok {
		window := 2 * time.Duration(intervalMinutes) * time.Minute
		if now.Sub(prev.LastCheckedAt) <= window {
			burned = max(0, prev.LastSupply-supply)
		} else {
			t.logger.Info().
				Int("interval", intervalMinutes).
				Dur("elapsed", now.Sub(prev.LastCheckedAt)).
				Msg("baseline is stale, reporting zero period burn")
		}
	}

	data := Data{
		CurrentSupply:  supply,
		TotalBurned:    t.totalSupply - supply,
		BurnedInPeriod: burned,
		PeriodMinutes:  intervalMinutes,
		Timestamp:      now,
	}
	t.logger.Info().
		Int("interval", intervalMinutes).
		Float64("burned_in_period", data.BurnedInPeriod).
		Float64("total_burned", data.TotalBurned).
		Msg("burn data computed")
	return data, nil
}

// InitializeBaseline seeds the interval's baseline from a fresh read
// without reporting any burn. On failure the existing baseline is kept.
func (t *Tracker) InitializeBaseline(ctx context.Context, intervalMinutes int) error {
	supply, err := t.reader.CurrentSupply(ctx)
	if err != nil {
		return &FetchError{Source: "supply", Err: err}
	}
	now := t.now()

	t.mu.Lock()
	t.baselines[intervalMinutes] = Baseline{
		IntervalMinutes: intervalMinutes,
		LastSupply:      supply,
		LastCheckedAt:   now,
	}
	t.mu.Unlock()

	t.logger.Info().
		Int("interval", intervalMinutes).
		Float64("supply", supply).
		Time("at", now).
		Msg("burn baseline initialized")
	return nil
}

// Baseline returns the stored baseline for an interval.
func (t *Tracker) Baseline(intervalMinutes int) (Baseline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.baselines[intervalMinutes]
	return b, ok
}

// Reset drops the baseline and in-flight marker for the given intervals,
// or for every interval when none are given.
func (t *Tracker) Reset(intervals ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(intervals) == 0 {
		t.baselines = make(map[int]Baseline)
		t.flight = &singleflight.Group{}
		return
	}
	for _, iv := range intervals {
		delete(t.baselines, iv)
		t.flight.Forget(strconv.Itoa(iv))
	}
}

// TestConnectivity reports whether a supply read succeeds. It never
// touches baselines.
func (t *Tracker) TestConnectivity(ctx context.Context) bool {
	if _, err := t.reader.CurrentSupply(ctx); err != nil {
		t.logger.Error().Err(err).Msg("supply connection test failed")
		return false
	}
	return true
}
