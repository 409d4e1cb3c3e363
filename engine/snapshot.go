package engine

import (
	"context"
	"fmt"

	"github.com/quantfix/pyra/indicator"
	"github.com/quantfix/pyra/position"
	"github.com/quantfix/pyra/store"
)

// InstrumentSnapshot is the read-only monitoring record exported per
// instrument: full pyramid bookkeeping plus the cached levels feeding the
// next decisions.
type InstrumentSnapshot struct {
	Position   position.Snapshot `json:"position"`
	BuyPrice   float64           `json:"buyPrice"`
	ShortPrice float64           `json:"shortPrice"`
	StopPrice  float64           `json:"stopPrice"`
	LastPrice  float64           `json:"lastPrice"`
	OpenVolume int               `json:"openVolume"`
	Channel    indicator.Report  `json:"channel"`
	Warm       bool              `json:"warm"`
	Excluded   bool              `json:"excluded"`
}

// Snapshot exports the monitoring record for one instrument. Like every
// other accessor of the runtime map it must run on the event loop.
func (e *Engine) Snapshot(instrument string) (InstrumentSnapshot, bool) {
	rt, ok := e.runtimes[instrument]
	if !ok {
		return InstrumentSnapshot{}, false
	}
	return InstrumentSnapshot{
		Position:   rt.pos.Snapshot(),
		BuyPrice:   rt.buyPrice,
		ShortPrice: rt.shortPrice,
		StopPrice:  rt.stopPrice,
		LastPrice:  rt.lastPrice,
		OpenVolume: rt.openVolume,
		Channel:    rt.report,
		Warm:       rt.warm,
		Excluded:   rt.excluded,
	}, true
}

// Snapshots exports the records for every active instrument.
func (e *Engine) Snapshots() map[string]InstrumentSnapshot {
	out := make(map[string]InstrumentSnapshot, len(e.runtimes))
	for inst := range e.runtimes {
		snap, _ := e.Snapshot(inst)
		out[inst] = snap
	}
	return out
}

// SavePositions persists the pyramid bookkeeping of every active
// instrument. Host-invoked around lifecycle events, never mid-processing.
func (e *Engine) SavePositions(ctx context.Context, st store.Store) error {
	for inst, rt := range e.runtimes {
		if err := st.Save(ctx, rt.pos.Snapshot()); err != nil {
			return fmt.Errorf("engine: persist %s: %w", inst, err)
		}
	}
	return nil
}

// LoadPositions restores persisted pyramid bookkeeping for the configured
// instruments. A runtime is created for every configured instrument;
// those without a stored snapshot start fresh.
func (e *Engine) LoadPositions(ctx context.Context, st store.Store) error {
	for _, inst := range e.cfg.Instruments {
		rt := e.runtime(inst.Symbol)
		snap, ok, err := st.Load(ctx, inst.Symbol)
		if err != nil {
			return fmt.Errorf("engine: load %s: %w", inst.Symbol, err)
		}
		if !ok {
			continue
		}
		pos, err := position.Restore(snap)
		if err != nil {
			return fmt.Errorf("engine: restore %s: %w", inst.Symbol, err)
		}
		rt.pos = pos
	}
	return nil
}
