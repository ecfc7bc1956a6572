package reconcile

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"busstatus.transit.org/internal/models"
	"busstatus.transit.org/internal/schedule"
)

const (
	unknownVehicle    = "Unknown"
	unknownRouteColor = "#E310D2"
)

// StatusObserver is told about every classified bus.
type StatusObserver interface {
	ObserveBusStatus(label string)
}

// Reconciler turns realtime predictions for a stop into rider-facing views.
type Reconciler struct {
	index    *schedule.Index
	daily    *schedule.DailyCache
	location *time.Location
	logger   *slog.Logger
	observer StatusObserver
}

func NewReconciler(index *schedule.Index, daily *schedule.DailyCache, loc *time.Location, logger *slog.Logger, observer StatusObserver) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		index:    index,
		daily:    daily,
		location: loc,
		logger:   logger,
		observer: observer,
	}
}

// StopStatus builds the bus list for stopID as of now. Predictions for other
// stops and arrivals already in the past are ignored. The result holds at most
// one bus per route, the soonest, sorted by eta.
func (r *Reconciler) StopStatus(stopID string, now time.Time, predictions []Prediction) models.StopStatus {
	now = now.In(r.location)
	today := r.daily.Get(now)

	buses := make([]models.BusView, 0)
	for _, p := range predictions {
		if p.StopID != stopID {
			continue
		}
		bus, ok := r.busView(stopID, now, today, p)
		if !ok {
			continue
		}
		buses = append(buses, bus)
	}

	return models.StopStatus{StopID: stopID, Buses: collapseByRoute(buses)}
}

func (r *Reconciler) busView(stopID string, now time.Time, today *schedule.DailySchedule, p Prediction) (models.BusView, bool) {
	predicted := p.Predicted.In(r.location)
	secondsAway := predicted.Sub(now).Seconds()
	if secondsAway < 0 {
		return models.BusView{}, false
	}

	route, known := r.index.RouteOf(p.TripID)
	routeID := route.RouteID
	if !known {
		// trips missing from the static feed fall back to the descriptor's route
		routeID = p.RouteID
		route = schedule.RouteInfo{RouteID: routeID, Color: unknownRouteColor, TextColor: schedule.DefaultRouteTextColor}
		if info, ok := r.index.LookupRoute(routeID); ok {
			route = info
		}
	}

	bus := models.BusView{
		TripID:         p.TripID,
		RouteID:        routeID,
		RouteBadge:     route.Badge(),
		RouteName:      route.DisplayName(),
		RouteColor:     route.Color,
		RouteTextColor: route.TextColor,
		BusNumber:      p.VehicleLabel,
		EtaMinutes:     int(math.Ceil(secondsAway / 60)),
	}
	if bus.BusNumber == "" {
		bus.BusNumber = unknownVehicle
	}

	status := schedule.StatusScheduled
	if routeID != "" {
		match := schedule.MatchSlot(stopID, routeID, now, predicted, today, r.index)
		if match.Matched() {
			status = schedule.Classify(match.Deviation)
			bus.ScheduledTime = optional(match.Context.Current)
			bus.ScheduleContext = models.ScheduleContext{
				Past:    optional(match.Context.Past),
				Current: optional(match.Context.Current),
				Next:    optional(match.Context.Next),
			}
			if !match.Deviation.IsUnreliable() {
				seconds := int(math.Round(float64(match.Deviation)))
				bus.DeviationSeconds = &seconds
				bus.DeviationReliable = true
			}
		}
	}

	bus.StatusLabel = status.Label
	bus.Severity = string(status.Severity)
	bus.StatusColor = status.Color

	if r.observer != nil {
		r.observer.ObserveBusStatus(status.Label)
	}
	r.logger.Debug("reconciled prediction",
		slog.String("stop_id", stopID),
		slog.String("trip_id", p.TripID),
		slog.String("route_id", routeID),
		slog.Int("eta_minutes", bus.EtaMinutes),
		slog.String("status", status.Label))

	return bus, true
}

// collapseByRoute keeps the soonest bus of each route and records the next
// one's eta on it.
func collapseByRoute(buses []models.BusView) []models.BusView {
	slices.SortStableFunc(buses, func(a, b models.BusView) int {
		return a.EtaMinutes - b.EtaMinutes
	})

	out := make([]models.BusView, 0, len(buses))
	positions := make(map[string]int, len(buses))
	for _, bus := range buses {
		key := bus.RouteID
		if key == "" {
			key = bus.RouteBadge
		}
		if i, seen := positions[key]; seen {
			if out[i].AlsoInMinutes == nil {
				eta := bus.EtaMinutes
				out[i].AlsoInMinutes = &eta
			}
			continue
		}
		positions[key] = len(out)
		out = append(out, bus)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
