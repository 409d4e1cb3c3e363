package market

import (
	"time"

	"github.com/quantfix/pyra/config"
	"github.com/quantfix/pyra/metrics"
	"github.com/quantfix/pyra/types"
)

// Aggregator converts the tick stream of one instrument into completed
// OHLC bars at the configured granularity. The current partial bar is
// mutated in place; it is emitted once the period boundary is crossed.
type Aggregator struct {
	instrument string
	period     config.BarPeriod
	current    *types.Bar
	start      time.Time
}

func NewAggregator(instrument string, period config.BarPeriod) *Aggregator {
	return &Aggregator{instrument: instrument, period: period}
}

// Apply folds a tick into the current bar. When the tick opens a new
// period the previous bar is returned as completed; at most one bar is
// emitted per tick.
func (a *Aggregator) Apply(tick types.Tick) (types.Bar, bool) {
	start := a.period.Start(tick.Time)
	if a.current != nil && start.Equal(a.start) {
		if tick.Price > a.current.High {
			a.current.High = tick.Price
		}
		if tick.Price < a.current.Low {
			a.current.Low = tick.Price
		}
		a.current.Close = tick.Price
		return types.Bar{}, false
	}

	var done types.Bar
	completed := false
	if a.current != nil {
		done = *a.current
		completed = true
		metrics.BarsCompleted.WithLabelValues(a.instrument).Inc()
	}
	a.current = &types.Bar{
		Instrument: a.instrument,
		Open:       tick.Price,
		High:       tick.Price,
		Low:        tick.Price,
		Close:      tick.Price,
		Start:      start,
	}
	a.start = start
	return done, completed
}

// Current returns a copy of the live partial bar, if any.
func (a *Aggregator) Current() (types.Bar, bool) {
	if a.current == nil {
		return types.Bar{}, false
	}
	return *a.current, true
}
