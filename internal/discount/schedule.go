// Package discount holds the pure rule checks: schedule admission, usage policy
// resolution and rule validation. Nothing here touches storage.
package discount

import (
	"time"
	// Venue zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"discount-rules/internal/model"

	"github.com/samber/lo"
)

// Admits reports whether the schedule allows a redemption at instant.
// Expiry, weekday and time-of-day checks are independent and all must pass.
func Admits(s model.Schedule, instant time.Time) bool {
	// Expired rules are dead regardless of the other fields
	if s.ExpiryDate != nil && instant.After(*s.ExpiryDate) {
		return false
	}

	loc, err := s.Location()
	if err != nil {
		// Validated rules never carry an unknown zone; fall back to UTC
		loc = time.UTC
	}
	local := instant.In(loc)

	if len(s.DaysOfWeek) > 0 && !lo.ContainsBy(s.DaysOfWeek, func(d model.Weekday) bool {
		return d.Matches(local.Weekday())
	}) {
		return false
	}

	// A window needs both ends
	if s.StartTime == nil || s.EndTime == nil {
		return true
	}

	return inWindow(model.TimeOfDayOf(local), *s.StartTime, *s.EndTime)
}

// inWindow treats start > end as a window that wraps past midnight.
func inWindow(t, start, end model.TimeOfDay) bool {
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}
