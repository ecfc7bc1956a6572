package reconcile

import "time"

// Prediction is one predicted arrival of a trip at a stop, taken from a
// realtime trip update.
type Prediction struct {
	TripID  string
	RouteID string // from the trip descriptor; may be empty
	StopID  string
	// Sequence is schedule.NoSequence when the feed omits stop_sequence.
	Sequence     int
	Predicted    time.Time
	VehicleLabel string
}
