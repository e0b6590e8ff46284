// Package period encodes cooldown periods as compact ISO-8601-like duration strings.
//
// Time units use the "PT" prefix (PT30M, PT2H) and calendar units use the bare "P"
// prefix (P7D, P1M, P1Y). The letter M means minutes after "PT" and months after "P",
// so decoding always branches on the prefix before looking at the unit letter.
package period

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unit is the granularity of a Period.
type Unit string

// Supported units.
const (
	Minutes Unit = "MINUTES"
	Hours   Unit = "HOURS"
	Days    Unit = "DAYS"
	Months  Unit = "MONTHS"
	Years   Unit = "YEARS"
)

const (
	timePrefix     = "PT"
	calendarPrefix = "P"
)

// maxDays is the longest whole number of days a time.Duration can hold (about 292 years).
const maxDays = math.MaxInt64 / int64(24*time.Hour)

// maxValues bounds each unit to the span of a time.Duration so window
// arithmetic can never overflow and wrap into the past.
var maxValues = map[Unit]int64{
	Minutes: math.MaxInt64 / int64(time.Minute),
	Hours:   math.MaxInt64 / int64(time.Hour),
	Days:    maxDays,
	Months:  maxDays / 31,
	Years:   maxDays / 366,
}

// Period is a positive amount of a single unit.
type Period struct {
	Value int
	Unit  Unit
}

// Units returns every supported unit in ascending order of size.
func Units() []Unit {
	return []Unit{Minutes, Hours, Days, Months, Years}
}

// Encode formats value and unit as a duration string.
func Encode(value int, unit Unit) (string, error) {
	if value <= 0 {
		return "", fmt.Errorf("period value must be positive, got %d", value)
	}
	if limit, ok := maxValues[unit]; ok && int64(value) > limit {
		return "", fmt.Errorf("period value %d exceeds the maximum of %d for %s", value, limit, unit)
	}

	n := strconv.Itoa(value)
	switch unit {
	case Minutes:
		return timePrefix + n + "M", nil
	case Hours:
		return timePrefix + n + "H", nil
	case Days:
		return calendarPrefix + n + "D", nil
	case Months:
		return calendarPrefix + n + "M", nil
	case Years:
		return calendarPrefix + n + "Y", nil
	default:
		return "", fmt.Errorf("unknown period unit: %q", unit)
	}
}

// Decode parses a duration string produced by Encode.
// Empty or malformed input yields ok == false.
func Decode(s string) (p Period, ok bool) {
	s = strings.TrimSpace(s)

	var body string
	var units map[byte]Unit
	switch {
	case strings.HasPrefix(s, timePrefix):
		body = s[len(timePrefix):]
		units = timeUnits
	case strings.HasPrefix(s, calendarPrefix):
		body = s[len(calendarPrefix):]
		units = calendarUnits
	default:
		return Period{}, false
	}

	if len(body) < 2 {
		return Period{}, false
	}

	unit, found := units[body[len(body)-1]]
	if !found {
		return Period{}, false
	}

	digits := body[:len(body)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Period{}, false
		}
	}

	value, err := strconv.Atoi(digits)
	if err != nil || value <= 0 || int64(value) > maxValues[unit] {
		return Period{}, false
	}

	return Period{Value: value, Unit: unit}, true
}

var timeUnits = map[byte]Unit{
	'M': Minutes,
	'H': Hours,
}

var calendarUnits = map[byte]Unit{
	'D': Days,
	'M': Months,
	'Y': Years,
}

// IsZero reports whether p is the empty period.
func (p Period) IsZero() bool {
	return p.Value == 0 && p.Unit == ""
}

// String returns the encoded form, or "" for an invalid period.
func (p Period) String() string {
	s, err := Encode(p.Value, p.Unit)
	if err != nil {
		return ""
	}
	return s
}

// AddTo returns t advanced by p. Minutes and hours are exact durations;
// days, months and years follow calendar arithmetic in t's location.
// Values above the unit maximum are clamped to it, so the result never
// lands before t.
func (p Period) AddTo(t time.Time) time.Time {
	value := int64(p.Value)
	if limit, ok := maxValues[p.Unit]; ok && value > limit {
		value = limit
	}

	switch p.Unit {
	case Minutes:
		return t.Add(time.Duration(value) * time.Minute)
	case Hours:
		return t.Add(time.Duration(value) * time.Hour)
	case Days:
		return t.AddDate(0, 0, int(value))
	case Months:
		return t.AddDate(0, int(value), 0)
	case Years:
		return t.AddDate(int(value), 0, 0)
	default:
		return t
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	s, err := Encode(p.Value, p.Unit)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(text []byte) error {
	decoded, ok := Decode(string(text))
	if !ok {
		return fmt.Errorf("malformed period: %q", string(text))
	}
	*p = decoded
	return nil
}
