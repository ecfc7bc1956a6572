package models

// Stop is a boarding location listed in stops.txt.
type Stop struct {
	StopID string  `json:"stop_id"`
	Code   string  `json:"code,omitempty"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// RegionBounds is the center and span of the area covered by the feed.
type RegionBounds struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	LatSpan float64 `json:"latSpan"`
	LonSpan float64 `json:"lonSpan"`
}

type StopsResponse struct {
	Stops  []Stop       `json:"stops"`
	Bounds RegionBounds `json:"bounds"`
}
