package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ResolutionUnit is the time unit of a bar resolution.
type ResolutionUnit string

const (
	UnitMinute ResolutionUnit = "Min"
	UnitHour   ResolutionUnit = "Hour"
	UnitDay    ResolutionUnit = "Day"
	UnitWeek   ResolutionUnit = "Week"
	UnitMonth  ResolutionUnit = "Month"
)

// Resolution is the granularity of one bar, e.g. 5Min or 1Day.
type Resolution struct {
	Amount int
	Unit   ResolutionUnit
}

// Common resolutions.
var (
	OneMinute      = Resolution{1, UnitMinute}
	FiveMinutes    = Resolution{5, UnitMinute}
	FifteenMinutes = Resolution{15, UnitMinute}
	OneHour        = Resolution{1, UnitHour}
	OneDay         = Resolution{1, UnitDay}
	OneWeek        = Resolution{1, UnitWeek}
)

var resolutionPattern = regexp.MustCompile(`(?i)^(\d+)(min|hour|day|week|month)$`)

// ParseResolution parses a resolution token case-insensitively ("1min", "1Min").
func ParseResolution(token string) (Resolution, error) {
	m := resolutionPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return Resolution{}, fmt.Errorf("unsupported resolution %q", token)
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return Resolution{}, fmt.Errorf("unsupported resolution %q", token)
	}

	var unit ResolutionUnit
	switch strings.ToLower(m[2]) {
	case "min":
		unit = UnitMinute
	case "hour":
		unit = UnitHour
	case "day":
		unit = UnitDay
	case "week":
		unit = UnitWeek
	case "month":
		unit = UnitMonth
	}
	return Resolution{Amount: amount, Unit: unit}, nil
}

// String returns the canonical token, e.g. "15Min".
func (r Resolution) String() string {
	return strconv.Itoa(r.Amount) + string(r.Unit)
}

// Duration returns the wall-clock span of one bar.
func (r Resolution) Duration() time.Duration {
	n := time.Duration(r.Amount)
	switch r.Unit {
	case UnitMinute:
		return n * time.Minute
	case UnitHour:
		return n * time.Hour
	case UnitDay:
		return n * 24 * time.Hour
	case UnitWeek:
		return n * 7 * 24 * time.Hour
	case UnitMonth:
		return n * 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// IsDailyScale reports whether the resolution is hourly or coarser.
func (r Resolution) IsDailyScale() bool {
	return r.Unit != UnitMinute
}
