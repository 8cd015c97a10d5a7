package execution

import (
	"time"

	"github.com/wonny/reversal/internal/contracts"
)

// usHolidays lists NYSE full-day closures by date string.
var usHolidays = map[string]bool{
	// 2025
	"2025-01-01": true, // New Year's Day
	"2025-01-20": true, // Martin Luther King Jr. Day
	"2025-02-17": true, // Presidents' Day
	"2025-04-18": true, // Good Friday
	"2025-05-26": true, // Memorial Day
	"2025-06-19": true, // Juneteenth
	"2025-07-04": true, // Independence Day
	"2025-09-01": true, // Labor Day
	"2025-11-27": true, // Thanksgiving
	"2025-12-25": true, // Christmas
	// 2026
	"2026-01-01": true,
	"2026-01-19": true,
	"2026-02-16": true,
	"2026-04-03": true,
	"2026-05-25": true,
	"2026-06-19": true,
	"2026-07-03": true, // Independence Day observed
	"2026-09-07": true,
	"2026-11-26": true,
	"2026-12-25": true,
}

// marketLocation is the exchange time zone. Falls back to a fixed
// UTC-5 offset if the zone database is unavailable.
var marketLocation = loadMarketLocation()

func loadMarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*3600)
	}
	return loc
}

// IsTradingDay reports whether t falls on a weekday that is not an
// exchange holiday.
func IsTradingDay(t time.Time) bool {
	et := t.In(marketLocation)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !usHolidays[et.Format("2006-01-02")]
}

// CurrentSession classifies t into a trading session in exchange time.
func CurrentSession(t time.Time) contracts.Session {
	if !IsTradingDay(t) {
		return contracts.SessionClosed
	}

	et := t.In(marketLocation)
	minutes := et.Hour()*60 + et.Minute()

	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return contracts.SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return contracts.SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		return contracts.SessionAfterHours
	default:
		return contracts.SessionClosed
	}
}
