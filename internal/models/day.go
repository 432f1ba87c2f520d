package models

import "time"

// DayHour is the hour every stored calendar date is anchored to. Noon keeps the
// calendar day intact under any UTC offset a client may re-serialize with.
const DayHour = 12

// Day returns the calendar day of t (in t's own location) anchored to noon UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), DayHour, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day in loc, anchored like Day.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// AddDays shifts an anchored day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

func dayPtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}
