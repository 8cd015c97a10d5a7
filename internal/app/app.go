package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/reversal/internal/allocation"
	"github.com/wonny/reversal/internal/api"
	"github.com/wonny/reversal/internal/api/handlers"
	"github.com/wonny/reversal/internal/audit"
	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/internal/marketdata"
	"github.com/wonny/reversal/internal/risk"
	"github.com/wonny/reversal/internal/selection"
	"github.com/wonny/reversal/internal/strategy"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/database"
	"github.com/wonny/reversal/pkg/httputil"
	"github.com/wonny/reversal/pkg/logger"
	"github.com/wonny/reversal/pkg/redis"
)

// stopCheckInterval is how often the run loop re-checks for
// cancellation while sleeping between cycles. A cycle in progress is
// never preempted; cancellation lands at the next cycle boundary.
const stopCheckInterval = 10 * time.Second

// calendarRefreshSchedule rebuilds the earnings calendar before the
// pre-market session on weekdays (cron with seconds field).
const calendarRefreshSchedule = "0 30 3 * * 1-5"

// App wires the engine together and owns the run loop.
type App struct {
	cfg    *config.Config
	logger *logger.Logger
	clock  clock.Clock

	broker   broker.Broker
	redis    *redis.Client
	db       *database.DB
	calendar *marketdata.CalendarStore
	ledger   *ledger.Ledger
	engine   *strategy.Engine
	cron     *cron.Cron
	server   *api.Server
}

// New builds the application from config. brk supplies the broker
// gateway; tests and dry runs pass a paper broker.
func New(cfg *config.Config, log *logger.Logger, brk broker.Broker) (*App, error) {
	clk := clock.Real{}

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	marketCapCache := redis.NewCache(redisClient, "reversal")

	httpClient := httputil.New(cfg, log).
		WithRateLimit(cfg.Yahoo.RequestsPerSec).
		WithUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	yahoo := marketdata.NewYahooClient(httpClient, marketCapCache, log, cfg.Yahoo)
	calendar := marketdata.NewCalendarStore(yahoo, clk, log, cfg.Strategy, cfg.DataDir)

	led, err := ledger.New(clk, log, cfg.DataDir, cfg.Strategy.Cooldown())
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	var db *database.DB
	var recorder execution.Recorder
	if cfg.Database.Enabled() {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		repo := audit.NewRepository(db.Pool)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("init audit schema: %w", err)
		}
		recorder = repo
	}

	prices := execution.NewPriceService(brk, yahoo, clk, log, cfg.Strategy.PriceCacheTTL)
	executor := execution.NewExecutor(brk, prices, led, clk, log, cfg.Strategy, recorder)
	monitor := risk.NewMonitor(led, prices, executor, clk, log)
	selector := selection.NewSelector(yahoo, brk, clk, log, cfg.Strategy)
	allocator := allocation.NewAllocator(log, cfg.Strategy)

	engine := strategy.NewEngine(calendar, selector, allocator, executor, prices, monitor, led, brk, clk, log)

	statusHandler := handlers.NewStatusHandler(led, brk, calendar, clk, log)
	server := api.New(cfg, log, api.NewRouter(statusHandler, log))

	return &App{
		cfg:      cfg,
		logger:   log,
		clock:    clk,
		broker:   brk,
		redis:    redisClient,
		db:       db,
		calendar: calendar,
		ledger:   led,
		engine:   engine,
		cron:     cron.New(cron.WithSeconds()),
		server:   server,
	}, nil
}

// Connect establishes the broker session, retrying per config.
func (a *App) Connect(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= a.cfg.Broker.ReconnectAttempts; attempt++ {
		if err = a.broker.Connect(ctx); err == nil {
			a.logger.WithField("attempt", attempt).Info("Broker connected")
			return nil
		}

		a.logger.WithError(err).WithField("attempt", attempt).Warn("Broker connection failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.Broker.ReconnectDelay):
		}
	}
	return fmt.Errorf("broker connection failed after %d attempts: %w", a.cfg.Broker.ReconnectAttempts, err)
}

// Run connects the broker and repeats strategy cycles on the
// configured interval until ctx is cancelled. A cycle failure logs
// and, when the broker session dropped, reconnects before the next
// cycle.
func (a *App) Run(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.cron.AddFunc(calendarRefreshSchedule, func() {
		if _, err := a.calendar.Refresh(context.Background()); err != nil {
			a.logger.WithError(err).Error("Scheduled calendar refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule calendar refresh: %w", err)
	}
	a.cron.Start()
	defer a.cron.Stop()

	a.logger.WithField("interval", a.cfg.RunInterval.String()).Info("Run loop started")

	for {
		if err := a.engine.RunCycle(ctx); err != nil {
			a.logger.WithError(err).Error("Cycle failed")
			if !a.broker.IsConnected() {
				if err := a.Connect(ctx); err != nil {
					a.logger.WithError(err).Error("Reconnect failed, will retry next cycle")
				}
			}
		}

		if err := a.sleep(ctx, a.cfg.RunInterval); err != nil {
			a.logger.Info("Run loop stopped")
			return nil
		}
	}
}

// RunOnce executes a single cycle, used by the cycle command.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	defer a.Close()

	return a.engine.RunCycle(ctx)
}

// RefreshCalendar rebuilds the earnings calendar, used by the
// calendar command. No broker session is needed.
func (a *App) RefreshCalendar(ctx context.Context) error {
	events, err := a.calendar.Refresh(ctx)
	if err != nil {
		return err
	}
	a.logger.WithField("count", len(events)).Info("Calendar refreshed")
	return nil
}

// Calendar returns the calendar store for read-only consumers.
func (a *App) Calendar() *marketdata.CalendarStore {
	return a.calendar
}

// ServeAPI runs the status API server until ctx is cancelled.
func (a *App) ServeAPI(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

// sleep waits for d in short slices so cancellation is noticed
// promptly between cycles.
func (a *App) sleep(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		wait := stopCheckInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// Close releases the broker session and backing connections.
func (a *App) Close() {
	a.broker.Disconnect()
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Redis close failed")
		}
	}
}
