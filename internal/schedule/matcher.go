package schedule

import (
	"math"
	"slices"
	"time"
)

const (
	// StaleAnchorAfter is how far behind now the anchor may fall before its
	// deviation is no longer meaningful and is reported as zero.
	StaleAnchorAfter = 30 * time.Minute
	// UnreliableBeyond caps plausible deviations; anything larger points at the
	// wrong slot.
	UnreliableBeyond = 60 * time.Minute

	minTodaySlots = 2
)

// Deviation is predicted minus scheduled, in seconds. Positive means late.
type Deviation float64

// Unreliable marks a deviation too large to trust.
var Unreliable = Deviation(math.Inf(1))

func (d Deviation) IsUnreliable() bool {
	return math.IsInf(float64(d), 0)
}

// ScheduleContext is the formatted previous, anchor and next scheduled
// arrivals. Empty strings mean there is no such slot.
type ScheduleContext struct {
	Past    string
	Current string
	Next    string
}

// MatchResult is the outcome of MatchSlot. Anchor is nil when nothing matched.
type MatchResult struct {
	Anchor     *Slot
	AnchorTime time.Time
	Context    ScheduleContext
	Deviation  Deviation
}

func (m MatchResult) Matched() bool {
	return m.Anchor != nil
}

type candidate struct {
	slot Slot
	at   time.Time
}

// MatchSlot picks the scheduled slot a predicted arrival should be compared
// with. Slots are resolved on the prediction's own service day. When today has
// fewer than two distinct slots for the pair, full is consulted instead. The
// anchor is the first slot at or after now, or the last slot if all are past.
func MatchSlot(stopID, routeID string, now, predicted time.Time, today, full SlotSource) MatchResult {
	cands := candidates(today, stopID, routeID, predicted)
	if len(cands) < minTodaySlots && full != nil {
		if all := candidates(full, stopID, routeID, predicted); len(all) > 0 {
			cands = all
		}
	}
	if len(cands) == 0 {
		return MatchResult{}
	}

	i, _ := slices.BinarySearchFunc(cands, now, func(c candidate, t time.Time) int {
		return c.at.Compare(t)
	})
	if i == len(cands) {
		i = len(cands) - 1
	}
	anchor := cands[i]

	deviation := Deviation(predicted.Sub(anchor.at).Seconds())
	if now.Sub(anchor.at) > StaleAnchorAfter {
		deviation = 0
	}
	if math.Abs(float64(deviation)) > UnreliableBeyond.Seconds() {
		deviation = Unreliable
	}

	ctx := ScheduleContext{Current: FormatClock(anchor.at)}
	if i > 0 {
		ctx.Past = FormatClock(cands[i-1].at)
	}
	if i < len(cands)-1 {
		ctx.Next = FormatClock(cands[i+1].at)
	}

	slot := anchor.slot
	return MatchResult{
		Anchor:     &slot,
		AnchorTime: anchor.at,
		Context:    ctx,
		Deviation:  deviation,
	}
}

// candidates resolves the pair's slots to instants on serviceDay, keeping only
// the first slot of each distinct arrival time.
func candidates(src SlotSource, stopID, routeID string, serviceDay time.Time) []candidate {
	if src == nil {
		return nil
	}
	slots := src.SlotsFor(stopID, routeID)
	if len(slots) == 0 {
		return nil
	}

	seen := make(map[TimeOfDay]struct{}, len(slots))
	out := make([]candidate, 0, len(slots))
	for _, s := range slots {
		if _, dup := seen[s.Arrival]; dup {
			continue
		}
		seen[s.Arrival] = struct{}{}
		out = append(out, candidate{slot: s, at: s.Arrival.On(serviceDay)})
	}
	slices.SortStableFunc(out, func(a, b candidate) int { return a.at.Compare(b.at) })
	return out
}
