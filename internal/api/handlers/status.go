package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/internal/marketdata"
	"github.com/wonny/reversal/pkg/logger"
)

// StatusHandler serves the read-only engine status endpoints.
type StatusHandler struct {
	ledger   *ledger.Ledger
	broker   broker.Broker
	calendar *marketdata.CalendarStore
	clock    clock.Clock
	logger   *logger.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(led *ledger.Ledger, brk broker.Broker, calendar *marketdata.CalendarStore, clk clock.Clock, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		ledger:   led,
		broker:   brk,
		calendar: calendar,
		clock:    clk,
		logger:   log,
	}
}

// GetPositions returns the ledger's position snapshot.
func (h *StatusHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": h.ledger.Positions(),
	})
}

// GetTrades returns today's trade records.
func (h *StatusHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": h.ledger.Trades(),
	})
}

// GetAccount returns the live broker account snapshot.
func (h *StatusHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.broker.GetAccountSummary(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Account summary request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "broker unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetExecutions returns today's broker-reported fills.
func (h *StatusHandler) GetExecutions(w http.ResponseWriter, r *http.Request) {
	executions, err := h.broker.GetExecutions(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Executions request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "broker unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"executions": executions,
	})
}

// GetCalendar returns the current filtered earnings calendar.
func (h *StatusHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.calendar.Current(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Calendar request failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "calendar unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// GetSession reports the current trading session.
func (h *StatusHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	session := execution.CurrentSession(now)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":         string(session),
		"trading_allowed": session.TradingAllowed(),
		"trading_day":     execution.IsTradingDay(now),
		"time":            now,
	})
}

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
