package downloader

import (
	"time"

	"indistocks/pkg/contracts/domain"
)

// Calendar knows which dates the exchange could have traded on.
// Weekends are always closed; holidays come from configuration. A date
// the calendar admits may still turn out closed, which the upstream
// signals with a not-found response.
type Calendar struct {
	holidays map[string]bool
}

// NewCalendar builds a calendar from the configured holiday set.
func NewCalendar(holidays []time.Time) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[domain.Day(h).Format("2006-01-02")] = true
	}
	return &Calendar{holidays: set}
}

// IsTradingDay reports whether date is a candidate trading day.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[domain.Day(date).Format("2006-01-02")]
}

// TradingDays lists the candidate trading days in [start, end] in
// chronological order.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := domain.Day(start); !d.After(domain.Day(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
