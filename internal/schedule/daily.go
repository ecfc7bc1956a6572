package schedule

import (
	"cmp"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// SlotSource is anything that can list the slots of a (stop, route) pair.
type SlotSource interface {
	SlotsFor(stopID, routeID string) []Slot
}

// DailySchedule is the subset of an Index whose trips run on one service date.
type DailySchedule struct {
	Date     Date
	Services ServiceSet

	slots  map[stopRouteKey][]Slot
	routes map[string]struct{}
	size   int
}

// FilterForDate keeps the slots whose trip's service is active on date.
// Per-pair ordering is preserved.
func FilterForDate(index *Index, calendar *Calendar, date Date) *DailySchedule {
	ds := &DailySchedule{
		Date:     date,
		Services: calendar.ActiveServices(date),
		slots:    make(map[stopRouteKey][]Slot),
		routes:   make(map[string]struct{}),
	}
	if index == nil {
		return ds
	}

	for key, slots := range index.slots {
		var kept []Slot
		for _, s := range slots {
			serviceID, ok := index.ServiceOf(s.TripID)
			if ok && ds.Services.Contains(serviceID) {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			ds.slots[key] = kept
			ds.routes[key.routeID] = struct{}{}
			ds.size += len(kept)
		}
	}
	return ds
}

func (d *DailySchedule) SlotsFor(stopID, routeID string) []Slot {
	if d == nil {
		return nil
	}
	return d.slots[stopRouteKey{stopID: stopID, routeID: routeID}]
}

// HasRoute reports whether any trip of the route runs that day.
func (d *DailySchedule) HasRoute(routeID string) bool {
	if d == nil {
		return false
	}
	_, ok := d.routes[routeID]
	return ok
}

// Len is the number of slots in the day.
func (d *DailySchedule) Len() int {
	if d == nil {
		return 0
	}
	return d.size
}

// PairCount is the number of slots one route has at one stop.
type PairCount struct {
	StopID  string
	RouteID string
	Slots   int
}

// Counts lists slot counts per stop and route, ordered by stop then route.
func (d *DailySchedule) Counts() []PairCount {
	if d == nil {
		return nil
	}
	counts := make([]PairCount, 0, len(d.slots))
	for key, slots := range d.slots {
		counts = append(counts, PairCount{StopID: key.stopID, RouteID: key.routeID, Slots: len(slots)})
	}
	slices.SortFunc(counts, func(a, b PairCount) int {
		return cmp.Or(strings.Compare(a.StopID, b.StopID), strings.Compare(a.RouteID, b.RouteID))
	})
	return counts
}

// DailyCache holds the DailySchedule for the current service date and rebuilds
// it the first time it is asked for a newer date. Concurrent callers that hit
// a rollover share one rebuild. Requests for an older date are served from a
// single side slot so they never replace the current day.
type DailyCache struct {
	index    *Index
	calendar *Calendar
	location *time.Location
	onBuild  func(*DailySchedule, time.Duration)

	current atomic.Pointer[DailySchedule]
	past    atomic.Pointer[DailySchedule]
	group   singleflight.Group
}

// NewDailyCache creates a cache that resolves dates in loc. onBuild, if set,
// is called once for every schedule that becomes the current one.
func NewDailyCache(index *Index, calendar *Calendar, loc *time.Location, onBuild func(*DailySchedule, time.Duration)) *DailyCache {
	if loc == nil {
		loc = time.Local
	}
	return &DailyCache{
		index:    index,
		calendar: calendar,
		location: loc,
		onBuild:  onBuild,
	}
}

// Get returns the schedule for now's date in the cache's location.
func (c *DailyCache) Get(now time.Time) *DailySchedule {
	date := DateOf(now.In(c.location))
	if ds := c.cached(date); ds != nil {
		return ds
	}

	v, _, _ := c.group.Do(date.String(), func() (any, error) {
		if ds := c.cached(date); ds != nil {
			return ds, nil
		}
		start := time.Now()
		ds := FilterForDate(c.index, c.calendar, date)
		// a straggler from before midnight must not replace the newer day
		if cur := c.current.Load(); cur != nil && cur.Date.After(date) {
			c.past.Store(ds)
			return ds, nil
		}
		c.current.Store(ds)
		if c.onBuild != nil {
			c.onBuild(ds, time.Since(start))
		}
		return ds, nil
	})
	return v.(*DailySchedule)
}

func (c *DailyCache) cached(date Date) *DailySchedule {
	if cur := c.current.Load(); cur != nil && cur.Date == date {
		return cur
	}
	if old := c.past.Load(); old != nil && old.Date == date {
		return old
	}
	return nil
}

// Peek returns the cached schedule without rebuilding it.
func (c *DailyCache) Peek() *DailySchedule {
	return c.current.Load()
}
