package allocation

import (
	"errors"

	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

// ErrNoNetLiquidation indicates the account snapshot carried no usable
// net liquidation value, which aborts the cycle's trading step.
var ErrNoNetLiquidation = errors.New("net liquidation not positive")

// Plan is the per-direction capital split for one cycle.
type Plan struct {
	TotalCapital    float64
	LongCapital     float64
	ShortCapital    float64
	PerLongCapital  float64
	PerShortCapital float64
}

// Allocator converts the account value and candidate counts into
// per-symbol order capital.
type Allocator struct {
	logger *logger.Logger
	cfg    config.StrategyConfig
}

// NewAllocator creates a capital allocator.
func NewAllocator(log *logger.Logger, cfg config.StrategyConfig) *Allocator {
	return &Allocator{logger: log, cfg: cfg}
}

// Allocate computes the capital plan for the candidate set.
func (a *Allocator) Allocate(account *contracts.AccountSummary, candidates contracts.CandidateSet) (*Plan, error) {
	if account == nil || account.NetLiquidation <= 0 {
		a.logger.Error("Account has no positive net liquidation, skipping trading step")
		return nil, ErrNoNetLiquidation
	}

	total := account.NetLiquidation * a.cfg.CapitalRatio
	longCapital := total * a.cfg.LongAllocation
	shortCapital := total * a.cfg.ShortAllocation

	plan := &Plan{
		TotalCapital: total,
		LongCapital:  longCapital,
		ShortCapital: shortCapital,
	}
	plan.PerLongCapital = longCapital / float64(max(len(candidates.Long), 1))
	plan.PerShortCapital = shortCapital / float64(max(len(candidates.Short), 1))

	a.logger.WithFields(map[string]interface{}{
		"net_liquidation": account.NetLiquidation,
		"total_capital":   total,
		"per_long":        plan.PerLongCapital,
		"per_short":       plan.PerShortCapital,
	}).Info("Allocated capital")
	return plan, nil
}
