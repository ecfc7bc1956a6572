package schedule

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityNeutral  Severity = "neutral"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	LabelEarly     = "Early"
	LabelOnTime    = "On Time"
	LabelLate      = "Late"
	LabelVeryLate  = "Very Late"
	LabelScheduled = "Scheduled"
)

// Status is the rider-facing classification of a deviation.
type Status struct {
	Label    string
	Severity Severity
	Color    string
}

// StatusScheduled is used when a prediction has no schedule slot to compare against.
var StatusScheduled = Status{Label: LabelScheduled, Severity: SeverityOK, Color: "Green"}

// Classify maps a deviation in seconds to a status. Boundaries are inclusive
// on the lower-severity side: exactly -60s is on time, exactly 120s is on time,
// exactly 300s is late.
func Classify(d Deviation) Status {
	switch {
	case d.IsUnreliable():
		return Status{Label: LabelOnTime, Severity: SeverityNeutral, Color: "Green"}
	case d < -60:
		return Status{Label: LabelEarly, Severity: SeverityInfo, Color: "Blue"}
	case d <= 120:
		return Status{Label: LabelOnTime, Severity: SeverityOK, Color: "Green"}
	case d <= 300:
		return Status{Label: LabelLate, Severity: SeverityWarning, Color: "Orange"}
	default:
		return Status{Label: LabelVeryLate, Severity: SeverityCritical, Color: "Red"}
	}
}
