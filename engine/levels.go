package engine

import (
	"errors"
	"fmt"

	"github.com/quantfix/pyra/logger"
	"github.com/quantfix/pyra/metrics"
	"github.com/quantfix/pyra/position"
	"github.com/quantfix/pyra/types"
)

// workingOrders tracks the at-most-one outstanding order per purpose:
// entry buy, entry short, protective stop.
type workingOrders struct {
	buy   string
	short string
	stop  string
}

func (w *workingOrders) hasEntry() bool {
	return w.buy != "" || w.short != ""
}

// setEntry records an entry order id; an already occupied slot is the
// duplicate-order anomaly of the error taxonomy.
func (w *workingOrders) setEntry(dir types.Direction, id string) error {
	switch dir {
	case types.DirectionLong:
		if w.buy != "" {
			prev := w.buy
			w.buy = id
			return fmt.Errorf("buy order %s already outstanding", prev)
		}
		w.buy = id
	case types.DirectionShort:
		if w.short != "" {
			prev := w.short
			w.short = id
			return fmt.Errorf("short order %s already outstanding", prev)
		}
		w.short = id
	default:
		return errors.New("entry order without direction")
	}
	return nil
}

// clearEntry removes the entry id on the filled side and reports whether
// the id matched the recorded one.
func (w *workingOrders) clearEntry(dir types.Direction, id string) (had bool, matched bool) {
	switch dir {
	case types.DirectionLong:
		if w.buy == "" {
			return false, false
		}
		matched = w.buy == id
		w.buy = ""
		return true, matched
	case types.DirectionShort:
		if w.short == "" {
			return false, false
		}
		matched = w.short == id
		w.short = ""
		return true, matched
	default:
		return false, false
	}
}

// setPriceLevels is the price/stop level engine. It derives the cached
// breakout entry levels and the protective stop from the pyramid state and
// the channel extremes, and (re)issues the stop order when its level
// moved. Must run after every ATR refresh and every reconciled fill.
func (e *Engine) setPriceLevels(rt *Runtime) {
	if !rt.warm {
		return
	}

	if rt.pos.State() == position.Ready {
		// Flat: both breakout sides armed at the entry channel extremes.
		rt.buyPrice = rt.report.EntryHigh
		rt.shortPrice = rt.report.EntryLow
		rt.stopPrice = types.NoSignal
		return
	}

	// Positioned: the held side keeps pyramiding at the state machine's
	// add-on level (NoSignal once four tranches are on); the opposite side
	// is disabled. The stop tightens toward the tighter of the volatility
	// stop and the exit channel, never loosening past the channel.
	var stop float64
	switch rt.pos.Direction() {
	case types.DirectionLong:
		rt.buyPrice = rt.pos.OpenPrice()
		rt.shortPrice = types.NoSignal
		stop = rt.pos.StopPrice()
		if rt.report.ExitLow > stop {
			stop = rt.report.ExitLow
		}
	case types.DirectionShort:
		rt.shortPrice = rt.pos.OpenPrice()
		rt.buyPrice = types.NoSignal
		stop = rt.pos.StopPrice()
		if rt.report.ExitHigh < stop {
			stop = rt.report.ExitHigh
		}
	case types.DirectionNone:
		e.log.Error("position_without_direction",
			logger.String("instrument", rt.instrument),
			logger.String("state", rt.pos.State().String()),
		)
		return
	}
	rt.stopPrice = stop
	e.issueStop(rt)
}

// issueStop cancels and replaces the working stop order whenever the stop
// level changed from the one last issued. Cancel always precedes the
// replacement so two stops are never live at once.
func (e *Engine) issueStop(rt *Runtime) {
	if rt.stopPrice <= 0 {
		e.log.Error("invalid_stop_price",
			logger.String("instrument", rt.instrument),
			logger.String("state", rt.pos.State().String()),
			logger.Float64("stop", rt.stopPrice),
		)
		return
	}
	if rt.stopPrice == rt.lastIssuedStop && rt.working.stop != "" {
		return
	}

	if rt.working.stop != "" {
		e.gw.Cancel(rt.working.stop)
		metrics.OrdersCanceled.WithLabelValues("stop").Inc()
		rt.working.stop = ""
	}

	total := rt.pos.TotalPosition()
	dir := rt.pos.Direction().Opposite()
	volume := total
	if volume < 0 {
		volume = -volume
	}
	id := e.gw.Place(types.OrderRequest{
		Instrument: rt.instrument,
		Direction:  dir,
		Offset:     types.OffsetClose,
		Price:      rt.stopPrice,
		Volume:     volume,
		Stop:       true,
	})
	if id == "" {
		metrics.OrdersRefused.Inc()
		e.log.Warn("stop_order_refused",
			logger.String("instrument", rt.instrument),
			logger.Float64("stop", rt.stopPrice),
		)
		return
	}
	rt.working.stop = id
	rt.lastIssuedStop = rt.stopPrice
	metrics.OrdersPlaced.WithLabelValues("stop").Inc()
	e.log.Info("stop_order_updated",
		logger.String("instrument", rt.instrument),
		logger.String("state", rt.pos.State().String()),
		logger.Float64("stop", rt.stopPrice),
		logger.Int("volume", volume),
		logger.String("order_id", id),
	)
}
