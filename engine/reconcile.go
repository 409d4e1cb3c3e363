package engine

import (
	"github.com/quantfix/pyra/logger"
	"github.com/quantfix/pyra/metrics"
	"github.com/quantfix/pyra/types"
)

// OnFill reconciles an executed trade: it clears the matching working
// order, classifies the fill as an entry or a stop-out, advances or
// resets the pyramid, and cross-checks the result against the externally
// reported position. Anomalies are logged and processing continues; the
// reported position is authoritative.
func (e *Engine) OnFill(fill types.Fill) {
	rt := e.runtime(fill.Instrument)

	e.log.Info("fill_received",
		logger.String("instrument", fill.Instrument),
		logger.String("order_id", fill.OrderID),
		logger.String("direction", string(fill.Direction)),
		logger.Float64("price", fill.Price),
		logger.Int("volume", fill.Volume),
		logger.Int("reported_position", fill.ReportedPosition),
	)

	e.clearWorkingOrder(rt, fill)

	pos := rt.pos
	entry := pos.TotalPosition() == 0 || fill.Direction == pos.Direction()
	if entry {
		if err := pos.ApplyFill(fill); err != nil {
			metrics.FillsProcessed.WithLabelValues("anomaly").Inc()
			e.log.Error("entry_fill_rejected",
				logger.String("instrument", fill.Instrument),
				logger.String("state", pos.State().String()),
				logger.Err(err),
			)
		} else {
			metrics.FillsProcessed.WithLabelValues("entry").Inc()
			e.log.Info("tranche_filled",
				logger.String("instrument", fill.Instrument),
				logger.String("state", pos.State().String()),
				logger.Float64("price", fill.Price),
				logger.Int("total_position", pos.TotalPosition()),
			)
		}
	} else {
		// Opposite direction: a protective stop traded. Only a fill that
		// flattens the externally reported position qualifies for the
		// reset transition.
		if fill.ReportedPosition != 0 {
			metrics.FillsProcessed.WithLabelValues("anomaly").Inc()
			e.log.Error("partial_stop_fill",
				logger.String("instrument", fill.Instrument),
				logger.String("state", pos.State().String()),
				logger.Int("reported_position", fill.ReportedPosition),
			)
		} else {
			metrics.FillsProcessed.WithLabelValues("stop").Inc()
			e.log.Info("stop_fill_reset",
				logger.String("instrument", fill.Instrument),
				logger.String("state", pos.State().String()),
				logger.Float64("price", fill.Price),
			)
			pos.Reset()
			rt.stopPrice = types.NoSignal
			rt.lastIssuedStop = 0
			rt.working.stop = ""
		}
	}

	if pos.TotalPosition() != fill.ReportedPosition {
		metrics.BookkeepingMismatches.Inc()
		e.log.Error("position_mismatch",
			logger.String("instrument", fill.Instrument),
			logger.String("state", pos.State().String()),
			logger.Int("internal", pos.TotalPosition()),
			logger.Int("reported", fill.ReportedPosition),
		)
	}

	e.setPriceLevels(rt)
}

// clearWorkingOrder removes the filled order id from the slot it occupied
// and flags id disagreements.
func (e *Engine) clearWorkingOrder(rt *Runtime, fill types.Fill) {
	if fill.OrderID != "" && fill.OrderID == rt.working.stop {
		rt.working.stop = ""
		return
	}
	had, matched := rt.working.clearEntry(fill.Direction, fill.OrderID)
	if had && !matched {
		e.log.Error("working_order_id_mismatch",
			logger.String("instrument", fill.Instrument),
			logger.String("direction", string(fill.Direction)),
			logger.String("order_id", fill.OrderID),
		)
	}
}
