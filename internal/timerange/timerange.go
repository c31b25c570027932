// Package timerange resolves freeform time range expressions into concrete
// timestamp pairs for range filtering.
package timerange

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/floodwatch/pipeline/internal/domain"
)

const dayMinusSecond = 24*time.Hour - time.Second

// Convert resolves a time range expression relative to now. Accepted forms
// are the keywords "today", "yesterday", "this week", "last week",
// "this month", "last month", "this year", "last year", or a "start|end"
// pair where each side is a parseable date or the keyword "now". A bare
// date on the end side is stretched to the end of its day. An end that
// precedes the start is a MalformedValueError.
func Convert(trange string, now time.Time) (time.Time, time.Time, error) {
	expr := strings.ToLower(strings.TrimSpace(trange))
	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	today := midnight(now)
	// Days since Monday.
	weekday := (int(now.Weekday()) + 6) % 7

	var from, to time.Time
	switch expr {
	case "today":
		from = today
		to = from.Add(dayMinusSecond)
	case "yesterday":
		from = today.AddDate(0, 0, -1)
		to = from.Add(dayMinusSecond)
	case "this week":
		from = today.AddDate(0, 0, -weekday)
		to = from.AddDate(0, 0, 7).Add(-time.Second)
	case "last week":
		thisWeek := today.AddDate(0, 0, -weekday)
		from = thisWeek.AddDate(0, 0, -7)
		to = thisWeek.Add(-time.Second)
	case "this month":
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 1, 0).Add(-time.Second)
	case "last month":
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		from = thisMonth.AddDate(0, -1, 0)
		to = thisMonth.Add(-time.Second)
	case "this year":
		from = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(1, 0, 0).Add(-time.Second)
	case "last year":
		thisYear := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		from = thisYear.AddDate(-1, 0, 0)
		to = thisYear.Add(-time.Second)
	default:
		parts := strings.Split(expr, "|")
		if len(parts) != 2 {
			return time.Time{}, time.Time{}, &domain.MalformedValueError{
				Field:  "time_range",
				Value:  trange,
				Reason: "expected two date values divided by a vertical bar",
			}
		}
		var err error
		from, err = parseSide(parts[0], now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to, err = parseSide(parts[1], now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// Stretch bare dates on the end side to the end of their day.
		if to.Minute() == 0 && to.Second() == 0 {
			to = to.Add(dayMinusSecond)
		}
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, &domain.MalformedValueError{
			Field:  "time_range",
			Value:  trange,
			Reason: "start date cannot be greater than the end date",
		}
	}
	return from, to, nil
}

// Parse parses a single timestamp value in any common format.
func Parse(value string) (time.Time, error) {
	ts, err := dateparse.ParseAny(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &domain.MalformedValueError{
			Field: "timestamp",
			Value: value,
		}
	}
	return ts, nil
}

func parseSide(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "now" {
		return now, nil
	}
	return Parse(value)
}
