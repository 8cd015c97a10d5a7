package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

const (
	calendarFileName = "filtered_earnings_calendar.csv"
	backupFileName   = "filtered_earnings_calendar_backup.csv"
)

// otcPattern matches symbols that trade OTC or carry share-class
// suffixes: five or more characters, or a dot or dash anywhere.
var otcPattern = regexp.MustCompile(`^\w{5,}$|\.|\-`)

// CalendarStore maintains the filtered earnings calendar on disk. The
// calendar is rebuilt at most once per calendar day; within a day the
// stored file is reused, and if a rebuild fails the last good backup
// is served instead.
type CalendarStore struct {
	yahoo  *YahooClient
	clock  clock.Clock
	logger *logger.Logger
	cfg    config.StrategyConfig
	dir    string
}

// NewCalendarStore creates a calendar store rooted at dataDir.
func NewCalendarStore(yahoo *YahooClient, clk clock.Clock, log *logger.Logger, cfg config.StrategyConfig, dataDir string) *CalendarStore {
	return &CalendarStore{
		yahoo:  yahoo,
		clock:  clk,
		logger: log,
		cfg:    cfg,
		dir:    dataDir,
	}
}

// Current returns today's filtered calendar. The on-disk file is
// reused when it was written today; otherwise the calendar is rebuilt,
// falling back to the backup file if the rebuild fails.
func (s *CalendarStore) Current(ctx context.Context) ([]contracts.EarningsEvent, error) {
	path := filepath.Join(s.dir, calendarFileName)

	if info, err := os.Stat(path); err == nil {
		if sameDay(info.ModTime(), s.clock.Now()) {
			events, err := s.load(path)
			if err == nil {
				s.logger.WithField("count", len(events)).Debug("Reusing today's earnings calendar")
				return events, nil
			}
			s.logger.WithError(err).Warn("Stored calendar unreadable, rebuilding")
		}
	}

	events, err := s.Refresh(ctx)
	if err == nil {
		return events, nil
	}

	s.logger.WithError(err).Warn("Calendar refresh failed, trying backup")
	backup, backupErr := s.load(filepath.Join(s.dir, backupFileName))
	if backupErr != nil {
		return nil, fmt.Errorf("calendar refresh failed and no backup: %w", err)
	}
	return backup, nil
}

// Refresh rebuilds the filtered calendar from Yahoo and persists it.
func (s *CalendarStore) Refresh(ctx context.Context) ([]contracts.EarningsEvent, error) {
	now := s.clock.Now()
	from := now
	to := now.AddDate(0, 0, s.cfg.DaysRange)

	raw, err := s.yahoo.GetUpcomingEarnings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch earnings calendar: %w", err)
	}

	var filtered []contracts.EarningsEvent
	for _, event := range raw {
		if s.cfg.ExcludeOTC && otcPattern.MatchString(event.Symbol) {
			continue
		}

		snap, err := s.yahoo.GetCompanySnapshot(ctx, event.Symbol, now)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", event.Symbol).Debug("No company snapshot, dropping symbol")
			continue
		}

		if snap.Price < s.cfg.MinPrice || snap.Volume < s.cfg.MinVolume {
			continue
		}

		event.MarketCap = snap.MarketCap
		event.Price = snap.Price
		event.Volume = snap.Volume
		filtered = append(filtered, event)
	}

	if err := s.save(filtered); err != nil {
		return nil, fmt.Errorf("save filtered calendar: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"raw":      len(raw),
		"filtered": len(filtered),
	}).Info("Rebuilt earnings calendar")
	return filtered, nil
}

// save writes the calendar file and rotates the previous one to backup.
func (s *CalendarStore) save(events []contracts.EarningsEvent) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(s.dir, calendarFileName)
	backup := filepath.Join(s.dir, backupFileName)

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			s.logger.WithError(err).Warn("Failed to rotate calendar backup")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create calendar file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"symbol", "company", "earnings_date", "timing", "estimated_eps", "market_cap", "price", "volume"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			e.Symbol,
			e.CompanyName,
			e.EarningsDate.Format("2006-01-02"),
			string(e.Timing),
			strconv.FormatFloat(e.EstimatedEPS, 'f', -1, 64),
			strconv.FormatFloat(e.MarketCap, 'f', -1, 64),
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			strconv.FormatInt(e.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// load reads a calendar file back into events. Malformed rows are
// skipped rather than failing the whole file.
func (s *CalendarStore) load(path string) ([]contracts.EarningsEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calendar file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	var events []contracts.EarningsEvent
	for i, row := range rows {
		if i == 0 || len(row) < 8 {
			continue // Skip header
		}

		date, err := time.Parse("2006-01-02", row[2])
		if err != nil {
			continue
		}

		eps, _ := strconv.ParseFloat(row[4], 64)
		marketCap, _ := strconv.ParseFloat(row[5], 64)
		price, _ := strconv.ParseFloat(row[6], 64)
		volume, _ := strconv.ParseInt(row[7], 10, 64)

		events = append(events, contracts.EarningsEvent{
			Symbol:       row[0],
			CompanyName:  row[1],
			EarningsDate: date,
			Timing:       contracts.EarningsTiming(row[3]),
			EstimatedEPS: eps,
			MarketCap:    marketCap,
			Price:        price,
			Volume:       volume,
		})
	}

	return events, nil
}

// sameDay reports whether two times fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
