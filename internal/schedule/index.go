package schedule

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// NoSequence marks a slot or prediction without a stop_sequence.
const NoSequence = -1

const (
	DefaultRouteColor     = "#000000"
	DefaultRouteTextColor = "#FFFFFF"
)

// StopTime is one stop_times.txt row.
type StopTime struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopSequence  string `csv:"stop_sequence"`
}

// Trip is one trips.txt row.
type Trip struct {
	TripID       string `csv:"trip_id"`
	RouteID      string `csv:"route_id"`
	ServiceID    string `csv:"service_id"`
	ShapeID      string `csv:"shape_id"`
	TripHeadsign string `csv:"trip_headsign"`
}

// Route is one routes.txt row.
type Route struct {
	RouteID   string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Color     string `csv:"route_color"`
	TextColor string `csv:"route_text_color"`
}

// RouteInfo is a route's display attributes with colors normalized to "#RRGGBB".
type RouteInfo struct {
	RouteID   string
	ShortName string
	LongName  string
	Color     string
	TextColor string
}

// DisplayName prefers the long name, then the short name.
func (r RouteInfo) DisplayName() string {
	switch {
	case r.LongName != "":
		return r.LongName
	case r.ShortName != "":
		return r.ShortName
	default:
		return "Unknown Route"
	}
}

// Badge is the short label shown on a bus chip.
func (r RouteInfo) Badge() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return "Bus"
}

// Slot is one scheduled arrival of a trip at a stop.
type Slot struct {
	TripID   string
	RouteID  string
	StopID   string
	Arrival  TimeOfDay
	Sequence int
}

type IndexStats struct {
	Slots            int
	Trips            int
	Routes           int
	StopRoutePairs   int
	SkippedStopTimes int
}

type stopRouteKey struct {
	stopID  string
	routeID string
}

type tripInfo struct {
	routeID   string
	serviceID string
}

// Index holds every scheduled slot grouped by (stop, route), each group sorted
// by arrival. It is immutable once built and safe for concurrent reads.
type Index struct {
	slots  map[stopRouteKey][]Slot
	trips  map[string]tripInfo
	routes map[string]RouteInfo
	stats  IndexStats
}

// Build joins stop_times with trips and routes. Rows that reference an unknown
// trip or carry an unparsable arrival time are skipped.
func Build(stopTimes []StopTime, trips []Trip, routes []Route) (*Index, error) {
	if len(stopTimes) == 0 {
		return nil, &DataLoadError{File: "stop_times.txt", Err: ErrNoRows}
	}
	if len(trips) == 0 {
		return nil, &DataLoadError{File: "trips.txt", Err: ErrNoRows}
	}

	idx := &Index{
		slots:  make(map[stopRouteKey][]Slot),
		trips:  make(map[string]tripInfo, len(trips)),
		routes: make(map[string]RouteInfo, len(routes)),
	}

	for _, r := range routes {
		id := strings.TrimSpace(r.RouteID)
		if id == "" {
			continue
		}
		idx.routes[id] = RouteInfo{
			RouteID:   id,
			ShortName: strings.TrimSpace(r.ShortName),
			LongName:  strings.TrimSpace(r.LongName),
			Color:     normalizeColor(r.Color, DefaultRouteColor),
			TextColor: normalizeColor(r.TextColor, DefaultRouteTextColor),
		}
	}

	for _, t := range trips {
		id := strings.TrimSpace(t.TripID)
		if id == "" {
			continue
		}
		idx.trips[id] = tripInfo{
			routeID:   strings.TrimSpace(t.RouteID),
			serviceID: strings.TrimSpace(t.ServiceID),
		}
	}

	for _, st := range stopTimes {
		tripID := strings.TrimSpace(st.TripID)
		stopID := strings.TrimSpace(st.StopID)
		trip, ok := idx.trips[tripID]
		if !ok || stopID == "" {
			idx.stats.SkippedStopTimes++
			continue
		}
		arrival, err := ParseTimeOfDay(st.ArrivalTime)
		if err != nil {
			idx.stats.SkippedStopTimes++
			continue
		}
		seq := NoSequence
		if n, err := strconv.Atoi(strings.TrimSpace(st.StopSequence)); err == nil {
			seq = n
		}

		key := stopRouteKey{stopID: stopID, routeID: trip.routeID}
		idx.slots[key] = append(idx.slots[key], Slot{
			TripID:   tripID,
			RouteID:  trip.routeID,
			StopID:   stopID,
			Arrival:  arrival,
			Sequence: seq,
		})
		idx.stats.Slots++
	}

	for key := range idx.slots {
		slices.SortStableFunc(idx.slots[key], compareSlots)
	}

	idx.stats.Trips = len(idx.trips)
	idx.stats.Routes = len(idx.routes)
	idx.stats.StopRoutePairs = len(idx.slots)
	return idx, nil
}

func compareSlots(a, b Slot) int {
	return cmp.Or(
		cmp.Compare(a.Arrival, b.Arrival),
		strings.Compare(a.TripID, b.TripID),
		cmp.Compare(a.Sequence, b.Sequence),
	)
}

func normalizeColor(raw, fallback string) string {
	c := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if c == "" {
		return fallback
	}
	return "#" + strings.ToUpper(c)
}

// SlotsFor returns the slots at a stop for a route, sorted by arrival. The
// returned slice is shared and must not be modified.
func (idx *Index) SlotsFor(stopID, routeID string) []Slot {
	if idx == nil {
		return nil
	}
	return idx.slots[stopRouteKey{stopID: stopID, routeID: routeID}]
}

// RouteOf resolves a trip to its route's display attributes. For unknown trips
// it returns default colors and false.
func (idx *Index) RouteOf(tripID string) (RouteInfo, bool) {
	trip, ok := idx.trips[tripID]
	if !ok {
		return RouteInfo{Color: DefaultRouteColor, TextColor: DefaultRouteTextColor}, false
	}
	return idx.Route(trip.routeID), true
}

// Route returns the display attributes of a route, falling back to default
// colors when routes.txt does not list it.
func (idx *Index) Route(routeID string) RouteInfo {
	if info, ok := idx.routes[routeID]; ok {
		return info
	}
	return RouteInfo{RouteID: routeID, Color: DefaultRouteColor, TextColor: DefaultRouteTextColor}
}

// LookupRoute reports whether routes.txt lists the route.
func (idx *Index) LookupRoute(routeID string) (RouteInfo, bool) {
	info, ok := idx.routes[routeID]
	return info, ok
}

// ServiceOf returns the service ID a trip runs under.
func (idx *Index) ServiceOf(tripID string) (string, bool) {
	trip, ok := idx.trips[tripID]
	if !ok {
		return "", false
	}
	return trip.serviceID, true
}

// Routes lists every route from routes.txt sorted by ID.
func (idx *Index) Routes() []RouteInfo {
	out := make([]RouteInfo, 0, len(idx.routes))
	for _, r := range idx.routes {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b RouteInfo) int { return strings.Compare(a.RouteID, b.RouteID) })
	return out
}

func (idx *Index) Stats() IndexStats {
	return idx.stats
}
