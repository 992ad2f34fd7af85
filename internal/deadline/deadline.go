package deadline

import (
	"strings"
	"time"

	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const (
	MinWeek = 1
	MaxWeek = 53

	endOfDayHour   = 23
	endOfDayMinute = 59
	openingHour    = 9
)

var (
	autoKeywords     = []string{"auto", "авто"}
	nowKeywords      = []string{"now", "сейчас"}
	tomorrowKeywords = []string{"tomorrow", "завтра"}
	weekKeywords     = []string{"week", "неделя"}
)

// manual formats accepted verbatim, in the reference location.
var dateTimeLayouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04",
}

var dateOnlyLayouts = []string{
	"02.01.2006",
	"2006-01-02",
}

// Calculator turns week numbers and manual strings into deadline instants.
type Calculator struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a calculator for the given reference location.
func New(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{Location: loc, Now: time.Now}
}

func (c *Calculator) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c *Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

// ValidWeek reports whether week is a usable ISO week number.
func ValidWeek(week int) bool {
	return week >= MinWeek && week <= MaxWeek
}

// ForWeek returns Saturday 23:59 of the ISO week in the current year.
func (c *Calculator) ForWeek(week int) (time.Time, error) {
	if !ValidWeek(week) {
		return time.Time{}, apperrors.ErrInvalidWeek.WithDetails(map[string]any{"week": week})
	}
	return SaturdayOfISOWeek(c.now().Year(), week, c.location()), nil
}

// SaturdayOfISOWeek returns 23:59:00 on the Saturday of the given ISO week.
func SaturdayOfISOWeek(year, week int, loc *time.Location) time.Time {
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+7*(week-1))
	return time.Date(monday.Year(), monday.Month(), monday.Day()+5, endOfDayHour, endOfDayMinute, 0, 0, loc)
}

// Parse interprets an administrator's deadline input for a task of the given week.
func (c *Calculator) Parse(raw string, week int) (time.Time, error) {
	value := strings.TrimSpace(raw)
	keyword := strings.ToLower(value)
	loc := c.location()

	switch {
	case value == "" || matches(keyword, autoKeywords):
		return c.ForWeek(week)
	case matches(keyword, tomorrowKeywords):
		return endOfDay(c.now().AddDate(0, 0, 1)), nil
	case matches(keyword, weekKeywords):
		return endOfDay(c.now().AddDate(0, 0, 7)), nil
	}

	if t, ok := parseManual(value, loc, endOfDay); ok {
		return t, nil
	}
	return time.Time{}, apperrors.ErrInvalidDeadlineFormat.WithDetails(map[string]any{"input": value})
}

// parseManual reads the typed layouts. dateOnly places a bare date inside its day.
func parseManual(value string, loc *time.Location, dateOnly func(time.Time) time.Time) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return dateOnly(t), true
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}

// ParseOpening interprets a publication date. Empty input, "-" and "now"
// return nil, meaning the task is visible at once. Keyword and date-only
// inputs open at 09:00.
func (c *Calculator) ParseOpening(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	keyword := strings.ToLower(value)
	loc := c.location()

	var opens time.Time
	switch {
	case value == "" || value == "-" || matches(keyword, nowKeywords):
		return nil, nil
	case matches(keyword, tomorrowKeywords):
		opens = openingTime(c.now().AddDate(0, 0, 1))
	case matches(keyword, weekKeywords):
		opens = openingTime(c.now().AddDate(0, 0, 7))
	default:
		parsed, ok := parseManual(value, loc, openingTime)
		if !ok {
			return nil, apperrors.ErrInvalidOpeningDate.WithDetails(map[string]any{"input": value})
		}
		opens = parsed
	}
	return &opens, nil
}

// Format renders a deadline the way administrators type it.
func (c *Calculator) Format(t time.Time) string {
	return t.In(c.location()).Format(dateTimeLayouts[0])
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), endOfDayHour, endOfDayMinute, 0, 0, t.Location())
}

func openingTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), openingHour, 0, 0, 0, t.Location())
}

func matches(value string, keywords []string) bool {
	for _, k := range keywords {
		if value == k {
			return true
		}
	}
	return false
}
