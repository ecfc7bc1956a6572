package schedule

import (
	"slices"
	"strings"
	"time"
)

// CalendarRule is one calendar.txt row.
type CalendarRule struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

// CalendarException is one calendar_dates.txt row.
type CalendarException struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

type ExceptionKind int

const (
	ExceptionAdded   ExceptionKind = 1
	ExceptionRemoved ExceptionKind = 2
)

// ServiceSet is the set of service IDs running on a given date.
type ServiceSet map[string]struct{}

func (s ServiceSet) Contains(serviceID string) bool {
	_, ok := s[serviceID]
	return ok
}

// IDs returns the members in sorted order.
func (s ServiceSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type weeklyRule struct {
	serviceID string
	days      [7]bool // indexed by time.Weekday
	start     Date
	end       Date
}

type dateException struct {
	serviceID string
	kind      ExceptionKind
}

// Calendar answers which services run on a date. Rows that cannot be parsed
// are dropped when the calendar is built.
type Calendar struct {
	rules      []weeklyRule
	exceptions map[Date][]dateException
	skipped    int
}

// NewCalendar parses the raw calendar tables.
func NewCalendar(rules []CalendarRule, exceptions []CalendarException) *Calendar {
	c := &Calendar{exceptions: make(map[Date][]dateException)}

	for _, row := range rules {
		rule, ok := parseWeeklyRule(row)
		if !ok {
			c.skipped++
			continue
		}
		c.rules = append(c.rules, rule)
	}

	for _, row := range exceptions {
		serviceID := strings.TrimSpace(row.ServiceID)
		date, err := ParseDate(strings.TrimSpace(row.Date))
		if serviceID == "" || err != nil {
			c.skipped++
			continue
		}
		var kind ExceptionKind
		switch strings.TrimSpace(row.ExceptionType) {
		case "1":
			kind = ExceptionAdded
		case "2":
			kind = ExceptionRemoved
		default:
			c.skipped++
			continue
		}
		c.exceptions[date] = append(c.exceptions[date], dateException{serviceID: serviceID, kind: kind})
	}

	return c
}

func parseWeeklyRule(row CalendarRule) (weeklyRule, bool) {
	rule := weeklyRule{serviceID: strings.TrimSpace(row.ServiceID)}
	if rule.serviceID == "" {
		return rule, false
	}

	flags := map[time.Weekday]string{
		time.Monday:    row.Monday,
		time.Tuesday:   row.Tuesday,
		time.Wednesday: row.Wednesday,
		time.Thursday:  row.Thursday,
		time.Friday:    row.Friday,
		time.Saturday:  row.Saturday,
		time.Sunday:    row.Sunday,
	}
	for day, flag := range flags {
		switch strings.TrimSpace(flag) {
		case "1":
			rule.days[day] = true
		case "0":
		default:
			return rule, false
		}
	}

	var err error
	if rule.start, err = ParseDate(strings.TrimSpace(row.StartDate)); err != nil {
		return rule, false
	}
	if rule.end, err = ParseDate(strings.TrimSpace(row.EndDate)); err != nil {
		return rule, false
	}
	return rule, true
}

// ActiveServices applies the weekly rules, then removals, then additions for
// the date. An ADDED exception wins over a REMOVED one for the same service.
func (c *Calendar) ActiveServices(date Date) ServiceSet {
	active := ServiceSet{}
	if c == nil {
		return active
	}

	weekday := date.Weekday()
	for _, rule := range c.rules {
		if rule.days[weekday] && !date.Before(rule.start) && !date.After(rule.end) {
			active[rule.serviceID] = struct{}{}
		}
	}

	exceptions := c.exceptions[date]
	for _, e := range exceptions {
		if e.kind == ExceptionRemoved {
			delete(active, e.serviceID)
		}
	}
	for _, e := range exceptions {
		if e.kind == ExceptionAdded {
			active[e.serviceID] = struct{}{}
		}
	}

	return active
}

// Skipped reports how many calendar rows were dropped as malformed.
func (c *Calendar) Skipped() int {
	return c.skipped
}

// ActiveServices is a convenience over NewCalendar for one-off lookups.
func ActiveServices(date Date, rules []CalendarRule, exceptions []CalendarException) ServiceSet {
	return NewCalendar(rules, exceptions).ActiveServices(date)
}
