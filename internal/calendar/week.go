// Package calendar holds the Monday-anchored week key algebra used to address
// client calendars. Everything here is pure; no I/O.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// DateLayout is the YYYY-MM-DD layout used in session assignment keys.
	DateLayout = "2006-01-02"
	daysInWeek = 7
)

var (
	ErrInvalidWeekKey = errors.New("invalid week key")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidCount   = errors.New("week count must not be negative")
)

var weekKeyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// civil strips the clock from t, keeping the calendar date as seen in t's own location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayIndex converts Go's Sunday-first weekday into the Monday=0 .. Sunday=6
// convention used by plans and calendars.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % daysInWeek
}

// mondayOf returns the Monday on or before t.
func mondayOf(t time.Time) time.Time {
	c := civil(t)
	return c.AddDate(0, 0, -DayIndex(c))
}

// firstMonday returns the first Monday on or after Jan 1 of year.
func firstMonday(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (daysInWeek - DayIndex(jan1)) % daysInWeek
	return jan1.AddDate(0, 0, offset)
}

// MondayWeek returns the week key of the week containing t.
// The year of the key is the year of that week's Monday, and weeks are counted
// from that year's first Monday, starting at 1.
func MondayWeek(t time.Time) string {
	monday := mondayOf(t)
	year := monday.Year()
	days := int(monday.Sub(firstMonday(year)).Hours() / 24)
	return FormatWeekKey(year, days/daysInWeek+1)
}

// FormatWeekKey renders a YYYY-Www key.
func FormatWeekKey(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeekKey splits a week key into year and week number.
func ParseWeekKey(key string) (year, week int, err error) {
	m := weekKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	return year, week, nil
}

// WeekDates returns the Monday and Sunday (as UTC civil dates) of a week key.
func WeekDates(key string) (start, end time.Time, err error) {
	year, week, err := ParseWeekKey(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = firstMonday(year).AddDate(0, 0, (week-1)*daysInWeek)
	// Week 53 only exists when it still starts inside the same year.
	if start.Year() != year {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q has no week %d", ErrInvalidWeekKey, key, week)
	}
	return start, start.AddDate(0, 0, daysInWeek-1), nil
}

// IsDateInWeek reports whether t falls inside the week identified by key.
func IsDateInWeek(t time.Time, key string) bool {
	start, end, err := WeekDates(key)
	if err != nil {
		return false
	}
	c := civil(t)
	return !c.Before(start) && !c.After(end)
}

// WeeksBetween walks from start to end in 7-day steps and returns every week
// key touched, in order and without duplicates. The week of end is always
// included when end is not before start.
func WeeksBetween(start, end time.Time) []string {
	s, e := civil(start), civil(end)
	if e.Before(s) {
		return nil
	}
	var keys []string
	seen := make(map[string]struct{})
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for cursor := s; !cursor.After(e); cursor = cursor.AddDate(0, 0, daysInWeek) {
		add(MondayWeek(cursor))
	}
	add(MondayWeek(e))
	return keys
}

// ConsecutiveWeekKeys returns count week keys beginning with startKey.
func ConsecutiveWeekKeys(startKey string, count int) ([]string, error) {
	if count < 0 {
		return nil, ErrInvalidCount
	}
	start, _, err := WeekDates(startKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, count)
	for i := 0; i < count; i++ {
		keys[i] = MondayWeek(start.AddDate(0, 0, i*daysInWeek))
	}
	return keys, nil
}

// DateInWeek returns the civil date of dayIndex (Monday=0) within the week.
func DateInWeek(key string, dayIndex int) (time.Time, error) {
	if dayIndex < 0 || dayIndex >= daysInWeek {
		return time.Time{}, fmt.Errorf("%w: day index %d", ErrInvalidDate, dayIndex)
	}
	start, _, err := WeekDates(key)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, dayIndex), nil
}

// DateKey renders t as YYYY-MM-DD using its own location.
func DateKey(t time.Time) string {
	return civil(t).Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD string into a UTC civil date.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
