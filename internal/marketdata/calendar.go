package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/reversal/internal/contracts"
)

const calendarPageSize = 100

// GetUpcomingEarnings scrapes the Yahoo earnings calendar for every day
// in [from, to] and returns the raw rows. A day that fails to fetch is
// logged and skipped so a single bad page does not lose the window.
func (c *YahooClient) GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	var events []contracts.EarningsEvent

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		dayEvents, err := c.fetchEarningsDay(ctx, day)
		if err != nil {
			c.logger.WithError(err).WithField("date", day.Format("2006-01-02")).Warn("Failed to fetch earnings calendar day")
			continue
		}
		events = append(events, dayEvents...)
	}

	c.logger.WithFields(map[string]interface{}{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"count": len(events),
	}).Info("Fetched earnings calendar")
	return events, nil
}

// fetchEarningsDay pulls all pages of one calendar day.
func (c *YahooClient) fetchEarningsDay(ctx context.Context, day time.Time) ([]contracts.EarningsEvent, error) {
	var events []contracts.EarningsEvent

	for offset := 0; ; offset += calendarPageSize {
		pageEvents, err := c.fetchEarningsPage(ctx, day, offset)
		if err != nil {
			return nil, err
		}
		events = append(events, pageEvents...)

		if len(pageEvents) < calendarPageSize {
			break
		}
	}

	return events, nil
}

// fetchEarningsPage scrapes one result page of the calendar table.
func (c *YahooClient) fetchEarningsPage(ctx context.Context, day time.Time, offset int) ([]contracts.EarningsEvent, error) {
	fullURL := fmt.Sprintf("%s?day=%s&offset=%d&size=%d",
		c.cfg.CalendarBaseURL, day.Format("2006-01-02"), offset, calendarPageSize)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar HTML: %w", err)
	}

	var events []contracts.EarningsEvent
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		symbol := strings.TrimSpace(cells.Eq(0).Text())
		if symbol == "" {
			return
		}

		event := contracts.EarningsEvent{
			Symbol:       symbol,
			CompanyName:  strings.TrimSpace(cells.Eq(1).Text()),
			EarningsDate: day,
			Timing:       parseTiming(cells.Eq(2).Text()),
		}

		if cells.Length() > 3 {
			if eps, err := strconv.ParseFloat(strings.TrimSpace(cells.Eq(3).Text()), 64); err == nil {
				event.EstimatedEPS = eps
			}
		}

		events = append(events, event)
	})

	return events, nil
}

// parseTiming maps the calendar's call-time column to a timing code.
func parseTiming(raw string) contracts.EarningsTiming {
	switch {
	case strings.Contains(raw, "Before Market Open"):
		return contracts.TimingBeforeOpen
	case strings.Contains(raw, "After Market Close"):
		return contracts.TimingAfterClose
	default:
		return contracts.TimingUnknown
	}
}
