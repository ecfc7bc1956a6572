package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotList []Slot

func (s slotList) SlotsFor(stopID, routeID string) []Slot {
	var out []Slot
	for _, slot := range s {
		if slot.StopID == stopID && slot.RouteID == routeID {
			out = append(out, slot)
		}
	}
	return out
}

func slotAt(tripID, hms string) Slot {
	tod, err := ParseTimeOfDay(hms)
	if err != nil {
		panic(err)
	}
	return Slot{TripID: tripID, RouteID: "12", StopID: "5049", Arrival: tod, Sequence: NoSequence}
}

func at(hour, minute, second int) time.Time {
	return time.Date(2025, time.March, 14, hour, minute, second, 0, time.UTC)
}

func TestMatchSlotAnchorsToFirstSlotAtOrAfterNow(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00"), slotAt("b", "09:30:00"), slotAt("c", "10:00:00")}

	res := MatchSlot("5049", "12", at(9, 25, 0), at(9, 33, 0), today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, "b", res.Anchor.TripID)
	assert.Equal(t, at(9, 30, 0), res.AnchorTime)
	assert.Equal(t, Deviation(180), res.Deviation)
	assert.Equal(t, ScheduleContext{Past: "9:00 AM", Current: "9:30 AM", Next: "10:00 AM"}, res.Context)
	assert.Equal(t, LabelLate, Classify(res.Deviation).Label)

	exact := MatchSlot("5049", "12", at(9, 30, 0), at(9, 30, 0), today, nil)
	assert.Equal(t, "b", exact.Anchor.TripID, "a slot equal to now is still current")
}

func TestMatchSlotEarlyPrediction(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00"), slotAt("b", "09:30:00")}

	res := MatchSlot("5049", "12", at(9, 20, 0), at(9, 27, 0), today, nil)
	assert.Equal(t, Deviation(-180), res.Deviation)
	assert.Equal(t, LabelEarly, Classify(res.Deviation).Label)
}

func TestMatchSlotFallsBackToLastSlot(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00"), slotAt("b", "09:30:00")}

	res := MatchSlot("5049", "12", at(9, 40, 0), at(9, 42, 0), today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, "b", res.Anchor.TripID)
	assert.Equal(t, Deviation(720), res.Deviation)
	assert.Equal(t, ScheduleContext{Past: "9:00 AM", Current: "9:30 AM"}, res.Context)
}

func TestMatchSlotStaleAnchorReportsZero(t *testing.T) {
	today := slotList{slotAt("a", "08:00:00"), slotAt("b", "09:00:00")}

	res := MatchSlot("5049", "12", at(9, 31, 0), at(9, 45, 0), today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, "b", res.Anchor.TripID)
	assert.Equal(t, Deviation(0), res.Deviation)
	assert.Equal(t, LabelOnTime, Classify(res.Deviation).Label)
}

func TestMatchSlotUnreliableBeyondAnHour(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00"), slotAt("b", "12:00:00")}

	res := MatchSlot("5049", "12", at(9, 10, 0), at(10, 30, 0), today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, "b", res.Anchor.TripID)
	assert.True(t, res.Deviation.IsUnreliable())

	status := Classify(res.Deviation)
	assert.Equal(t, LabelOnTime, status.Label)
	assert.Equal(t, SeverityNeutral, status.Severity)
}

func TestMatchSlotAnchorAheadOfPrediction(t *testing.T) {
	// 09:00 passed five minutes ago, so 09:30 anchors even though the bus
	// is clearly the 09:00 running late. The gap is under an hour, so the
	// deviation stays numeric.
	today := slotList{slotAt("a", "09:00:00"), slotAt("b", "09:30:00")}

	res := MatchSlot("5049", "12", at(9, 5, 0), at(9, 7, 30), today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, at(9, 30, 0), res.AnchorTime)
	assert.Equal(t, Deviation(-1350), res.Deviation)
	assert.False(t, res.Deviation.IsUnreliable())
	assert.Equal(t, LabelEarly, Classify(res.Deviation).Label)
}

func TestMatchSlotDeduplicatesEqualArrivals(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00"), slotAt("a2", "09:00:00"), slotAt("b", "09:30:00")}

	res := MatchSlot("5049", "12", at(8, 50, 0), at(9, 0, 0), today, nil)
	assert.Equal(t, "a", res.Anchor.TripID)
	assert.Equal(t, ScheduleContext{Current: "9:00 AM", Next: "9:30 AM"}, res.Context)
}

func TestMatchSlotFallsBackToFullSchedule(t *testing.T) {
	today := slotList{slotAt("a", "09:00:00")}
	full := slotList{slotAt("a", "09:00:00"), slotAt("b", "09:30:00"), slotAt("c", "10:00:00")}

	res := MatchSlot("5049", "12", at(9, 10, 0), at(9, 31, 0), today, full)
	require.True(t, res.Matched())
	assert.Equal(t, "b", res.Anchor.TripID)
	assert.Equal(t, Deviation(60), res.Deviation)

	res = MatchSlot("5049", "12", at(9, 10, 0), at(9, 31, 0), nil, full)
	assert.Equal(t, "b", res.Anchor.TripID, "missing today schedule uses the full one")
}

func TestMatchSlotUsesPredictionServiceDay(t *testing.T) {
	today := slotList{slotAt("a", "23:50:00"), slotAt("b", "24:20:00")}

	now := time.Date(2025, time.March, 14, 23, 55, 0, 0, time.UTC)
	predicted := time.Date(2025, time.March, 15, 0, 22, 0, 0, time.UTC)

	// on the prediction's day 23:50 becomes March 15 23:50, nowhere near 00:22
	res := MatchSlot("5049", "12", now, predicted, today, nil)
	require.True(t, res.Matched())
	assert.Equal(t, "a", res.Anchor.TripID)
	assert.Equal(t, time.Date(2025, time.March, 15, 23, 50, 0, 0, time.UTC), res.AnchorTime)
	assert.True(t, res.Deviation.IsUnreliable())
}

func TestMatchSlotNoSlots(t *testing.T) {
	res := MatchSlot("5049", "12", at(9, 0, 0), at(9, 5, 0), slotList{}, slotList{})
	assert.False(t, res.Matched())
	assert.Nil(t, res.Anchor)
	assert.Equal(t, Deviation(0), res.Deviation)
	assert.Equal(t, ScheduleContext{}, res.Context)

	var nilDay *DailySchedule
	var nilIndex *Index
	res = MatchSlot("5049", "12", at(9, 0, 0), at(9, 5, 0), nilDay, nilIndex)
	assert.False(t, res.Matched())
}

func TestMatchSlotIsIdempotent(t *testing.T) {
	idx, cal := fixtureIndex(t)
	day := FilterForDate(idx, cal, Date{2025, time.March, 14})

	first := MatchSlot("5049", "12", at(9, 10, 0), at(9, 32, 0), day, idx)
	second := MatchSlot("5049", "12", at(9, 10, 0), at(9, 32, 0), day, idx)
	assert.Equal(t, first, second)
	assert.Equal(t, "T12_0930", first.Anchor.TripID)
}
