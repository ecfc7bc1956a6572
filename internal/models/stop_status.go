package models

// ScheduleContext holds the scheduled arrivals around the anchor slot,
// formatted for display. Nil means there is no such slot.
type ScheduleContext struct {
	Past    *string `json:"past"`
	Current *string `json:"current"`
	Next    *string `json:"next"`
}

// BusView is one upcoming bus at a stop, reconciled against the timetable.
type BusView struct {
	TripID            string          `json:"trip_id"`
	RouteID           string          `json:"route_id"`
	RouteBadge        string          `json:"route_badge"`
	RouteName         string          `json:"route_name"`
	RouteColor        string          `json:"route_color"`
	RouteTextColor    string          `json:"route_text_color"`
	BusNumber         string          `json:"bus_number"`
	ScheduledTime     *string         `json:"scheduled_time"`
	ScheduleContext   ScheduleContext `json:"schedule_context"`
	EtaMinutes        int             `json:"eta_minutes"`
	StatusLabel       string          `json:"status_label"`
	Severity          string          `json:"severity"`
	StatusColor       string          `json:"status_color"`
	DeviationSeconds  *int            `json:"deviation_seconds"`
	DeviationReliable bool            `json:"deviation_reliable"`
	AlsoInMinutes     *int            `json:"also_in_minutes,omitempty"`
}

type StopStatus struct {
	StopID string    `json:"stop_id"`
	Buses  []BusView `json:"buses"`
}
