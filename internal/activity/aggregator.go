package activity

import (
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Aggregator filters, bundles and orders raw events. The zero value uses
// the wall clock.
type Aggregator struct {
	now func() time.Time
}

// NewAggregator returns an Aggregator reading time from now. A nil now
// means time.Now.
func NewAggregator(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

// Aggregate is shorthand for a wall-clock Aggregator.
func Aggregate(events []Event, windowMinutes int) []Event {
	var a Aggregator
	return a.Aggregate(events, windowMinutes)
}

type bundleKey struct {
	subject   string
	timestamp string
	item      string
}

type stamped struct {
	ev   Event
	unix int64
}

// Aggregate returns the events no older than windowMinutes, with item
// consumption bundled by (subject, timestamp, item), sorted newest first.
// Events with a non-numeric timestamp are dropped. The input is never
// modified; an empty result means nothing qualified.
func (a *Aggregator) Aggregate(events []Event, windowMinutes int) []Event {
	now := time.Now
	if a != nil && a.now != nil {
		now = a.now
	}
	cutoff := now().Unix() - int64(windowMinutes)*60

	out := make([]stamped, 0, len(events))
	bundles := make(map[bundleKey]int)

	for _, ev := range events {
		if ev == nil {
			continue
		}
		unix, err := strconv.ParseInt(ev.Timestamp(), 10, 64)
		if err != nil {
			log.Warn().Str("component", "activity").
				Str("id", ev.EventID()).
				Str("kind", string(ev.Kind())).
				Str("timestamp", ev.Timestamp()).
				Msg("dropping event with malformed timestamp")
			continue
		}
		if unix < cutoff {
			continue
		}

		var b BundledConsumption
		switch v := ev.(type) {
		case ItemConsumed:
			b = BundledConsumption{Header: v.Header, NftID: v.NftID, NftName: v.NftName, Giver: v.Giver, ItemID: v.ItemID, Count: 1}
		case BundledConsumption:
			b = v
			if b.Count < 1 {
				b.Count = 1
			}
		default:
			out = append(out, stamped{ev: ev, unix: unix})
			continue
		}

		key := bundleKey{subject: b.NftID, timestamp: b.Time, item: b.ItemID}
		if idx, ok := bundles[key]; ok {
			existing := out[idx].ev.(BundledConsumption)
			existing.Count += b.Count
			if b.ID < existing.ID {
				existing.ID = b.ID
			}
			out[idx].ev = existing
			continue
		}
		bundles[key] = len(out)
		out = append(out, stamped{ev: b, unix: unix})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].unix != out[j].unix {
			return out[i].unix > out[j].unix
		}
		if idI, idJ := out[i].ev.EventID(), out[j].ev.EventID(); idI != idJ {
			return idI < idJ
		}
		return out[i].ev.Kind() < out[j].ev.Kind()
	})

	result := make([]Event, len(out))
	for i, s := range out {
		result[i] = s.ev
	}
	return result
}
