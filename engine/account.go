package engine

import (
	"github.com/quantfix/pyra/logger"
	"github.com/quantfix/pyra/metrics"
	"github.com/quantfix/pyra/types"
)

// OnAccount updates the equity aggregates and runs the drawdown
// kill-switch: once the balance decays to the configured fraction of its
// peak, every open position is flattened with aggressive close orders.
func (e *Engine) OnAccount(report types.AccountReport) {
	e.mu.Lock()
	e.balance = report.Balance
	e.available = report.Available

	triggered := e.peak > 0 && e.balance <= e.peak*e.cfg.MaxDrawdownFraction
	resumed := !triggered && e.suspended
	if resumed {
		// Balance recovered above the trigger threshold: entries resume.
		e.suspended = false
	}
	if e.balance > e.peak {
		e.peak = e.balance
	}
	if triggered && e.cfg.SuspendEntriesOnDrawdown {
		e.suspended = true
	}
	peak := e.peak
	e.mu.Unlock()

	if resumed {
		e.log.Info("entries_resumed", logger.Float64("balance", report.Balance))
	}

	metrics.EquityGauge.Set(report.Balance)
	metrics.PeakEquityGauge.Set(peak)

	if triggered {
		metrics.DrawdownLiquidations.Inc()
		e.log.Error("drawdown_limit_hit",
			logger.Float64("balance", report.Balance),
			logger.Float64("peak", peak),
			logger.Float64("fraction", e.cfg.MaxDrawdownFraction),
		)
		e.CloseAll()
	}
}

// CloseAll emits aggressive close orders for every instrument holding a
// nonzero position. Internal bookkeeping is untouched; the resulting
// fills flow back through the reconciler like any stop-out. Runs on the
// event loop: it walks the unguarded runtime map.
func (e *Engine) CloseAll() {
	for _, rt := range e.runtimes {
		total := rt.pos.TotalPosition()
		if total == 0 {
			continue
		}
		var req types.OrderRequest
		if total > 0 {
			req = types.OrderRequest{
				Instrument: rt.instrument,
				Direction:  types.DirectionShort,
				Offset:     types.OffsetClose,
				Price:      rt.lastPrice - e.cfg.CloseSlippageTicks,
				Volume:     total,
			}
		} else {
			req = types.OrderRequest{
				Instrument: rt.instrument,
				Direction:  types.DirectionLong,
				Offset:     types.OffsetClose,
				Price:      rt.lastPrice + e.cfg.CloseSlippageTicks,
				Volume:     -total,
			}
		}
		id := e.gw.Place(req)
		if id == "" {
			metrics.OrdersRefused.Inc()
			e.log.Warn("close_all_order_refused",
				logger.String("instrument", rt.instrument),
				logger.Int("volume", req.Volume),
			)
			continue
		}
		metrics.OrdersPlaced.WithLabelValues("close_all").Inc()
		e.log.Info("close_all_order_placed",
			logger.String("instrument", rt.instrument),
			logger.String("direction", string(req.Direction)),
			logger.Float64("price", req.Price),
			logger.Int("volume", req.Volume),
			logger.String("order_id", id),
		)
	}
}
