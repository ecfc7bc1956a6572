package models

type Health struct {
	Status         string `json:"status"`
	StaticLoadedAt int64  `json:"static_loaded_at,omitempty"`
	ServiceDate    string `json:"service_date,omitempty"`
	TodaySlots     int    `json:"today_slots"`
	Stops          int    `json:"stops"`
	Routes         int    `json:"routes"`
}
