package utils

import (
	"time"
	_ "time/tzdata" // America/New_York must resolve in minimal containers
)

// NewYork is the timezone of the US equity sessions.
var NewYork *time.Location

func init() {
	var err error
	NewYork, err = time.LoadLocation("America/New_York")
	if err != nil {
		NewYork = time.FixedZone("EST", -5*60*60)
	}
}

// Regular session bounds in New York wall time.
const (
	sessionOpenHour    = 9
	sessionOpenMinute  = 30
	sessionCloseHour   = 16
	sessionCloseMinute = 0
)

// LastTradingSession returns the New York calendar day of the most recent
// completed session before now: Saturday, Sunday and Monday map to the
// preceding Friday, any other weekday to the previous day. Exchange holidays
// are not modelled; a holiday simply yields an empty window upstream.
func LastTradingSession(now time.Time) time.Time {
	local := now.In(NewYork)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, NewYork)

	switch day.Weekday() {
	case time.Saturday:
		return day.AddDate(0, 0, -1)
	case time.Sunday:
		return day.AddDate(0, 0, -2)
	case time.Monday:
		return day.AddDate(0, 0, -3)
	default:
		return day.AddDate(0, 0, -1)
	}
}

// SessionWindow returns the regular-hours window of day as UTC instants.
// Daylight saving is resolved per day.
func SessionWindow(day time.Time) (openAt, closeAt time.Time) {
	d := day.In(NewYork)
	openAt = time.Date(d.Year(), d.Month(), d.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, NewYork)
	closeAt = time.Date(d.Year(), d.Month(), d.Day(), sessionCloseHour, sessionCloseMinute, 0, 0, NewYork)
	return openAt.UTC(), closeAt.UTC()
}

// LastSessionWindow combines LastTradingSession and SessionWindow.
func LastSessionWindow(now time.Time) (openAt, closeAt time.Time) {
	return SessionWindow(LastTradingSession(now))
}

// IsWeekend reports whether now falls on a weekend in New York.
func IsWeekend(now time.Time) bool {
	wd := now.In(NewYork).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsRegularSession reports whether now is inside weekday regular hours.
func IsRegularSession(now time.Time) bool {
	if IsWeekend(now) {
		return false
	}
	openAt, closeAt := SessionWindow(now)
	return !now.Before(openAt) && now.Before(closeAt)
}
