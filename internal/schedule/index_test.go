package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture: route 12 serves stop 5049 on weekdays and weekends, route 7 only on weekdays.
func fixtureTables() ([]StopTime, []Trip, []Route, []CalendarRule) {
	stopTimes := []StopTime{
		{TripID: "T12_0930", StopID: "5049", ArrivalTime: "09:30:00", StopSequence: "4"},
		{TripID: "T12_0900", StopID: "5049", ArrivalTime: "09:00:00", StopSequence: "4"},
		{TripID: "T12_0900_dup", StopID: "5049", ArrivalTime: "09:00:00", StopSequence: "4"},
		{TripID: "T12_late", StopID: "5049", ArrivalTime: "24:15:00", StopSequence: "4"},
		{TripID: "T12_sat", StopID: "5049", ArrivalTime: "10:00:00", StopSequence: "4"},
		{TripID: "T7_1000", StopID: "5049", ArrivalTime: "10:00:00"},
		{TripID: "T7_1000", StopID: "6000", ArrivalTime: "10:10:00", StopSequence: "2"},
		{TripID: "T7_1000", StopID: "6001", ArrivalTime: "", StopSequence: "3"},
		{TripID: "GHOST", StopID: "5049", ArrivalTime: "11:00:00", StopSequence: "1"},
	}
	trips := []Trip{
		{TripID: "T12_0900", RouteID: "12", ServiceID: "WKDY"},
		{TripID: "T12_0900_dup", RouteID: "12", ServiceID: "WKDY"},
		{TripID: "T12_0930", RouteID: "12", ServiceID: "WKDY"},
		{TripID: "T12_late", RouteID: "12", ServiceID: "WKDY"},
		{TripID: "T12_sat", RouteID: "12", ServiceID: "SAT"},
		{TripID: "T7_1000", RouteID: "7", ServiceID: "WKDY"},
	}
	routes := []Route{
		{RouteID: "12", ShortName: "12", LongName: "Crosstown", Color: "ff8800", TextColor: "000000"},
		{RouteID: "7", ShortName: "", LongName: ""},
	}
	rules := []CalendarRule{
		weekdayRule("WKDY", "20250101", "20251231"),
		{ServiceID: "SAT", Monday: "0", Tuesday: "0", Wednesday: "0", Thursday: "0", Friday: "0", Saturday: "1", Sunday: "0", StartDate: "20250101", EndDate: "20251231"},
	}
	return stopTimes, trips, routes, rules
}

func fixtureIndex(t *testing.T) (*Index, *Calendar) {
	t.Helper()
	stopTimes, trips, routes, rules := fixtureTables()
	idx, err := Build(stopTimes, trips, routes)
	require.NoError(t, err)
	return idx, NewCalendar(rules, nil)
}

func TestBuildGroupsAndSortsSlots(t *testing.T) {
	idx, _ := fixtureIndex(t)

	slots := idx.SlotsFor("5049", "12")
	require.Len(t, slots, 5)

	var trips []string
	for _, s := range slots {
		trips = append(trips, s.TripID)
	}
	assert.Equal(t, []string{"T12_0900", "T12_0900_dup", "T12_0930", "T12_sat", "T12_late"}, trips)
	assert.Equal(t, 4, slots[0].Sequence)

	route7 := idx.SlotsFor("5049", "7")
	require.Len(t, route7, 1)
	assert.Equal(t, NoSequence, route7[0].Sequence)

	assert.Empty(t, idx.SlotsFor("5049", "99"))
	assert.Empty(t, idx.SlotsFor("6001", "7"), "blank arrival time is skipped")
}

func TestBuildStats(t *testing.T) {
	idx, _ := fixtureIndex(t)
	stats := idx.Stats()

	assert.Equal(t, 7, stats.Slots)
	assert.Equal(t, 2, stats.SkippedStopTimes)
	assert.Equal(t, 6, stats.Trips)
	assert.Equal(t, 2, stats.Routes)
	assert.Equal(t, 3, stats.StopRoutePairs)
}

func TestBuildRequiresRows(t *testing.T) {
	stopTimes, trips, routes, _ := fixtureTables()

	_, err := Build(nil, trips, routes)
	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "stop_times.txt", loadErr.File)
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = Build(stopTimes, nil, routes)
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "trips.txt", loadErr.File)

	_, err = Build(stopTimes, trips, nil)
	assert.NoError(t, err, "routes.txt may be empty")
}

func TestRouteOf(t *testing.T) {
	idx, _ := fixtureIndex(t)

	info, ok := idx.RouteOf("T12_0900")
	require.True(t, ok)
	assert.Equal(t, "12", info.RouteID)
	assert.Equal(t, "#FF8800", info.Color)
	assert.Equal(t, "#000000", info.TextColor)
	assert.Equal(t, "Crosstown", info.DisplayName())
	assert.Equal(t, "12", info.Badge())

	info, ok = idx.RouteOf("T7_1000")
	require.True(t, ok)
	assert.Equal(t, DefaultRouteColor, info.Color)
	assert.Equal(t, DefaultRouteTextColor, info.TextColor)
	assert.Equal(t, "Unknown Route", info.DisplayName())
	assert.Equal(t, "Bus", info.Badge())

	info, ok = idx.RouteOf("nope")
	assert.False(t, ok)
	assert.Equal(t, DefaultRouteColor, info.Color)
	assert.Empty(t, info.RouteID)
}

func TestServiceOf(t *testing.T) {
	idx, _ := fixtureIndex(t)

	svc, ok := idx.ServiceOf("T12_sat")
	assert.True(t, ok)
	assert.Equal(t, "SAT", svc)

	_, ok = idx.ServiceOf("GHOST")
	assert.False(t, ok)
}

func TestFilterForDate(t *testing.T) {
	idx, cal := fixtureIndex(t)

	t.Run("weekday keeps weekday trips only", func(t *testing.T) {
		day := FilterForDate(idx, cal, Date{2025, time.March, 14})
		slots := day.SlotsFor("5049", "12")
		require.Len(t, slots, 4)
		for _, s := range slots {
			assert.NotEqual(t, "T12_sat", s.TripID)
		}
		assert.True(t, day.HasRoute("7"))
		assert.Equal(t, 6, day.Len())
	})

	t.Run("saturday keeps saturday trips only", func(t *testing.T) {
		day := FilterForDate(idx, cal, Date{2025, time.March, 15})
		slots := day.SlotsFor("5049", "12")
		require.Len(t, slots, 1)
		assert.Equal(t, "T12_sat", slots[0].TripID)
		assert.False(t, day.HasRoute("7"))
		assert.Equal(t, []PairCount{{StopID: "5049", RouteID: "12", Slots: 1}}, day.Counts())
	})

	t.Run("sunday is empty", func(t *testing.T) {
		day := FilterForDate(idx, cal, Date{2025, time.March, 16})
		assert.Zero(t, day.Len())
		assert.Empty(t, day.SlotsFor("5049", "12"))
	})
}

func TestDailyCacheRebuildsOnRollover(t *testing.T) {
	idx, cal := fixtureIndex(t)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var builds []Date
	cache := NewDailyCache(idx, cal, loc, func(ds *DailySchedule, _ time.Duration) {
		builds = append(builds, ds.Date)
	})
	assert.Nil(t, cache.Peek())

	friday := time.Date(2025, time.March, 14, 23, 59, 0, 0, loc)
	first := cache.Get(friday)
	again := cache.Get(friday.Add(30 * time.Second))
	assert.Same(t, first, again)
	assert.Equal(t, Date{2025, time.March, 14}, first.Date)

	saturday := cache.Get(friday.Add(2 * time.Minute))
	assert.Equal(t, Date{2025, time.March, 15}, saturday.Date)
	assert.Same(t, saturday, cache.Peek())

	// the cache resolves the date in its own location, not the caller's
	utc := time.Date(2025, time.March, 16, 2, 0, 0, 0, time.UTC)
	assert.Same(t, saturday, cache.Get(utc))

	assert.Equal(t, []Date{{2025, time.March, 14}, {2025, time.March, 15}}, builds)
}

func TestDailyCacheKeepsNewerDate(t *testing.T) {
	idx, cal := fixtureIndex(t)
	cache := NewDailyCache(idx, cal, time.UTC, nil)

	newer := cache.Get(time.Date(2025, time.March, 15, 0, 0, 1, 0, time.UTC))
	older := cache.Get(time.Date(2025, time.March, 14, 23, 59, 59, 0, time.UTC))

	assert.Equal(t, Date{2025, time.March, 14}, older.Date)
	assert.Same(t, newer, cache.Peek())
}

func TestDailyCacheServesPastDatesWithoutPublishing(t *testing.T) {
	idx, cal := fixtureIndex(t)
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	var builds []Date
	cache := NewDailyCache(idx, cal, loc, func(ds *DailySchedule, _ time.Duration) {
		builds = append(builds, ds.Date)
	})

	friday := cache.Get(time.Date(2025, time.March, 14, 9, 0, 0, 0, loc))

	sundayNoon := time.Date(2025, time.March, 9, 12, 0, 0, 0, loc)
	sunday := cache.Get(sundayNoon)
	assert.Equal(t, Date{2025, time.March, 9}, sunday.Date)
	for i := 0; i < 3; i++ {
		assert.Same(t, sunday, cache.Get(sundayNoon.Add(time.Duration(i)*time.Hour)))
	}

	assert.Same(t, friday, cache.Peek())
	assert.Same(t, friday, cache.Get(time.Date(2025, time.March, 14, 18, 0, 0, 0, loc)))
	assert.Equal(t, []Date{{2025, time.March, 14}}, builds)

	saturday := cache.Get(time.Date(2025, time.March, 15, 0, 5, 0, 0, loc))
	assert.Same(t, saturday, cache.Peek())
	assert.Equal(t, []Date{{2025, time.March, 14}, {2025, time.March, 15}}, builds)
}

func TestLookupRoute(t *testing.T) {
	idx, _ := fixtureIndex(t)

	info, ok := idx.LookupRoute("12")
	assert.True(t, ok)
	assert.Equal(t, "Crosstown", info.LongName)

	_, ok = idx.LookupRoute("99")
	assert.False(t, ok)
	assert.Equal(t, DefaultRouteColor, idx.Route("99").Color)
}
